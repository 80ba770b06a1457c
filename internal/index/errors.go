package index

import "errors"

// ErrEmbedding wraps an embedding-backend failure. During Refresh it is
// logged and the affected tool is skipped; during Search it is fatal for
// that query.
var ErrEmbedding = errors.New("index: embedding backend error")

// ErrDimensionMismatch indicates a record's embedding length does not match
// the index's fixed dimension. This is an internal invariant violation and
// is never expected in practice.
var ErrDimensionMismatch = errors.New("index: embedding dimension mismatch")
