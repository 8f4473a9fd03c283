// Package tokenizer counts text in embedding-model tokens.
//
// Counter wraps a tiktoken encoding whose BPE ranks ship with the binary, so
// loading needs no network access. When the encoding cannot be loaded, or
// fails on a particular input, counts fall back to two tokens per character,
// which over-estimates real token counts and keeps chunks under budget.
package tokenizer
