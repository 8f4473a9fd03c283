// Package progress records which source files an ingestion run has finished,
// so an interrupted run can resume without reprocessing them.
//
// State lives in a bbolt database: one bucket keyed by file path and one for
// run totals.
package progress
