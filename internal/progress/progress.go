package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketFiles = []byte("processed_files")
	bucketMeta  = []byte("meta")

	keyTotal         = []byte("total_files")
	keyLastProcessed = []byte("last_processed")
	keyLastUpdate    = []byte("last_update")
)

// ErrClosed is returned when the store is used after Close
var ErrClosed = errors.New("progress store closed")

// Record is the stored state of one processed file
type Record struct {
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash,omitempty"`
	Chunks      int       `json:"chunks"`
	Skipped     bool      `json:"skipped,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Snapshot summarizes ingestion progress
type Snapshot struct {
	ProcessedFiles []string  `json:"processed_files"`
	LastProcessed  string    `json:"last_processed,omitempty"`
	TotalFiles     int       `json:"total_files"`
	CompletedFiles int       `json:"completed_files"`
	LastUpdate     time.Time `json:"last_update"`
}

// Percent returns completion as a percentage of TotalFiles
func (s Snapshot) Percent() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return float64(s.CompletedFiles) / float64(s.TotalFiles) * 100
}

// Store persists which files have been ingested so interrupted runs resume
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the progress database at path
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open progress store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFiles); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create progress buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// IsProcessed reports whether path was recorded by a previous run
func (s *Store) IsProcessed(path string) (bool, error) {
	rec, err := s.Get(path)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Get returns the record for path, or nil when the file was never processed
func (s *Store) Get(path string) (*Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(path))
		if data == nil {
			return nil
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for %s: %w", path, err)
	}
	return rec, nil
}

// MarkProcessed records that rec.Path has been ingested
func (s *Store) MarkProcessed(rec Record) error {
	if s.db == nil {
		return ErrClosed
	}
	now := s.now().UTC()
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = now
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode progress record: %w", err)
	}
	stamp, err := now.MarshalText()
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketFiles).Put([]byte(rec.Path), data); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyLastProcessed, []byte(rec.Path)); err != nil {
			return err
		}
		return meta.Put(keyLastUpdate, stamp)
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", rec.Path, err)
	}
	return nil
}

// SetTotal records the number of files discovered for the current run
func (s *Store) SetTotal(total int) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyTotal, []byte(fmt.Sprint(total)))
	})
}

// Reset forgets all progress
func (s *Store) Reset() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketFiles, bucketMeta} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset progress: %w", err)
	}
	return nil
}

// Snapshot returns the current progress summary
func (s *Store) Snapshot() (Snapshot, error) {
	var snap Snapshot
	if s.db == nil {
		return snap, ErrClosed
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketFiles).ForEach(func(k, _ []byte) error {
			snap.ProcessedFiles = append(snap.ProcessedFiles, string(k))
			return nil
		})
		if err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyTotal); v != nil {
			if _, err := fmt.Sscan(string(v), &snap.TotalFiles); err != nil {
				return err
			}
		}
		snap.LastProcessed = string(meta.Get(keyLastProcessed))
		if v := meta.Get(keyLastUpdate); v != nil {
			return snap.LastUpdate.UnmarshalText(v)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read progress: %w", err)
	}

	sort.Strings(snap.ProcessedFiles)
	snap.CompletedFiles = len(snap.ProcessedFiles)
	return snap, nil
}
