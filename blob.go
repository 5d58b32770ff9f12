package chasm

import "io"

// Metadata is optional descriptive information attached to a blob write.
type Metadata struct {
	ContentType *string
	Filename    *string
}

// IsZero reports whether m carries no metadata at all.
func (m Metadata) IsZero() bool {
	return m.ContentType == nil && m.Filename == nil
}

// ChasmBlob is a payload materialized fully in memory, plus optional
// metadata recorded at write time.
type ChasmBlob struct {
	Bytes    []byte
	Metadata Metadata
}

// ChasmStream is a payload yielded lazily, plus optional metadata. Callers
// must Close the stream when done with it.
type ChasmStream struct {
	Reader   io.ReadCloser
	Metadata Metadata
}

// WriteResult is the outcome of a write operation: the id assigned to the
// written content, and whether the write actually created a new object
// (false when the target already existed and the write was a no-op).
type WriteResult[T any] struct {
	Id      T
	Created bool
}
