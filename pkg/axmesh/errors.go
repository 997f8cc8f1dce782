package axmesh

import (
	"errors"
	"fmt"
)

// Declaration errors.
var (
	ErrUnknownAttributeKind = errors.New("unknown attribute kind")
	ErrRangeOverlap         = errors.New("stream range overlaps an existing stream")
	ErrIndexOutOfBounds     = errors.New("index out of bounds")
)

// Population errors.
var (
	ErrVertexBufferSizeMismatch = errors.New("vertex buffer size mismatch")
	ErrIndexOutOfRange          = errors.New("index out of range")
	ErrInvalidMesh              = errors.New("invalid mesh")
)

// Codec errors.
var (
	ErrCorruptHeader            = errors.New("corrupt axmesh header")
	ErrUnsupportedFormatVersion = errors.New("unsupported axmesh format version")
	ErrTruncatedFile            = errors.New("truncated axmesh data")
	ErrTrailingData             = errors.New("trailing data after axmesh payload")
	ErrIO                       = errors.New("axmesh i/o error")
)

// VertexBufferSizeError reports a vertex payload whose length does not
// match vertexCount × stride.
type VertexBufferSizeError struct {
	Expected int
	Actual   int
}

func (e *VertexBufferSizeError) Error() string {
	return fmt.Sprintf("%v: expected %d values, got %d", ErrVertexBufferSizeMismatch, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrVertexBufferSizeMismatch) match.
func (e *VertexBufferSizeError) Is(target error) bool {
	return target == ErrVertexBufferSizeMismatch
}

// IndexOutOfRangeError reports an index value that does not reference a vertex.
type IndexOutOfRangeError struct {
	Index       uint32 // Offending value
	Position    int    // Position in the index buffer
	VertexCount int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%v: index %d at position %d (vertex count %d)", ErrIndexOutOfRange, e.Index, e.Position, e.VertexCount)
}

// Is makes errors.Is(err, ErrIndexOutOfRange) match.
func (e *IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// TruncatedError reports a short read and the file section being read.
type TruncatedError struct {
	Section string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%v: reading %s", ErrTruncatedFile, e.Section)
}

// Is makes errors.Is(err, ErrTruncatedFile) match.
func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncatedFile
}

func truncated(section string) error {
	return &TruncatedError{Section: section}
}
