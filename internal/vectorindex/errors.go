package vectorindex

import "errors"

var (
	// ErrDiverged means the document on disk holds entries the in-memory
	// index could not embed. The index must be reloaded before further writes.
	ErrDiverged = errors.New("knowledge base on disk diverged from the in-memory index")

	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
