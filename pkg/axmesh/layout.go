package axmesh

import (
	"fmt"
	"strings"
)

// Stream is a contiguous run of the attribute declaration stored as one
// interleaved buffer.
type Stream struct {
	AttributeStart int
	AttributeCount int
	Stride         int // Floats per vertex, derived from the covered attributes
}

// End returns the index one past the last attribute the stream covers.
func (s Stream) End() int {
	return s.AttributeStart + s.AttributeCount
}

// Covers reports whether the stream contains attribute index i.
func (s Stream) Covers(i int) bool {
	return i >= s.AttributeStart && i < s.End()
}

// Layout is an attribute declaration and its partition into streams.
type Layout struct {
	attributes []AttributeType
	streams    []Stream
	owner      []int // Stream index per attribute, -1 when uncovered
}

// NewLayout creates a layout for the given attribute declaration with no streams.
func NewLayout(attrs ...AttributeType) (*Layout, error) {
	l := &Layout{}
	if err := l.SetAttributes(attrs...); err != nil {
		return nil, err
	}
	return l, nil
}

// SetAttributes replaces the attribute declaration. Every previously declared
// stream is dropped and must be declared again.
func (l *Layout) SetAttributes(attrs ...AttributeType) error {
	if _, err := componentSum(attrs); err != nil {
		return err
	}
	l.attributes = append([]AttributeType(nil), attrs...)
	l.streams = nil
	l.owner = make([]int, len(attrs))
	for i := range l.owner {
		l.owner[i] = -1
	}
	return nil
}

// DeclareStream appends a stream covering attributes[start : start+count].
func (l *Layout) DeclareStream(start, count int) (Stream, error) {
	if start < 0 || count <= 0 || start+count > len(l.attributes) {
		return Stream{}, fmt.Errorf("%w: stream range [%d, %d) outside %d attributes",
			ErrIndexOutOfBounds, start, start+count, len(l.attributes))
	}
	for _, i := range l.owner[start : start+count] {
		if i >= 0 {
			s := l.streams[i]
			return Stream{}, fmt.Errorf("%w: range [%d, %d) intersects stream %d [%d, %d)",
				ErrRangeOverlap, start, start+count, i, s.AttributeStart, s.End())
		}
	}

	stride, err := componentSum(l.attributes[start : start+count])
	if err != nil {
		return Stream{}, err
	}

	s := Stream{AttributeStart: start, AttributeCount: count, Stride: stride}
	for i := start; i < start+count; i++ {
		l.owner[i] = len(l.streams)
	}
	l.streams = append(l.streams, s)
	return s, nil
}

// Attributes returns a copy of the attribute declaration.
func (l *Layout) Attributes() []AttributeType {
	return append([]AttributeType(nil), l.attributes...)
}

// Streams returns a copy of the declared streams.
func (l *Layout) Streams() []Stream {
	return append([]Stream(nil), l.streams...)
}

// StreamCount returns the number of declared streams.
func (l *Layout) StreamCount() int {
	return len(l.streams)
}

// StrideOf returns the cached stride of stream i.
func (l *Layout) StrideOf(i int) (int, error) {
	if i < 0 || i >= len(l.streams) {
		return 0, fmt.Errorf("%w: stream %d of %d", ErrIndexOutOfBounds, i, len(l.streams))
	}
	return l.streams[i].Stride, nil
}

// TotalStride returns the number of floats one vertex occupies across all streams.
func (l *Layout) TotalStride() int {
	total := 0
	for _, s := range l.streams {
		total += s.Stride
	}
	return total
}

// Complete returns an error unless the streams cover every declared attribute.
func (l *Layout) Complete() error {
	if len(l.attributes) == 0 {
		return fmt.Errorf("%w: no attributes declared", ErrInvalidMesh)
	}
	for i := range l.attributes {
		if l.streamOf(i) < 0 {
			return fmt.Errorf("%w: attribute %d (%s) is not covered by any stream",
				ErrInvalidMesh, i, l.attributes[i])
		}
	}
	return nil
}

func (l *Layout) streamOf(attr int) int {
	return l.owner[attr]
}

// Locate returns the stream carrying attribute index attr and the element
// offset of that attribute inside the stream's vertex record.
func (l *Layout) Locate(attr int) (stream, offset int, err error) {
	if attr < 0 || attr >= len(l.attributes) {
		return 0, 0, fmt.Errorf("%w: attribute %d of %d", ErrIndexOutOfBounds, attr, len(l.attributes))
	}
	stream = l.streamOf(attr)
	if stream < 0 {
		return 0, 0, fmt.Errorf("%w: attribute %d is not covered by any stream", ErrInvalidMesh, attr)
	}
	offset, err = componentSum(l.attributes[l.streams[stream].AttributeStart:attr])
	if err != nil {
		return 0, 0, err
	}
	return stream, offset, nil
}

// Find returns the index of the first attribute of kind t, or -1.
func (l *Layout) Find(t AttributeType) int {
	for i, a := range l.attributes {
		if a == t {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy of the layout.
func (l *Layout) Clone() *Layout {
	return &Layout{
		attributes: l.Attributes(),
		streams:    l.Streams(),
		owner:      append([]int(nil), l.owner...),
	}
}

// Equal compares attribute declarations and stream coverage. Strides are
// derived data and are not compared.
func (l *Layout) Equal(other *Layout) bool {
	if l == nil || other == nil {
		return l == other
	}
	if len(l.attributes) != len(other.attributes) || len(l.streams) != len(other.streams) {
		return false
	}
	for i := range l.attributes {
		if l.attributes[i] != other.attributes[i] {
			return false
		}
	}
	for i := range l.streams {
		a, b := l.streams[i], other.streams[i]
		if a.AttributeStart != b.AttributeStart || a.AttributeCount != b.AttributeCount {
			return false
		}
	}
	return true
}

// DescribeStream returns a short description such as "Stream(Position,Normal)".
func (l *Layout) DescribeStream(i int) string {
	if i < 0 || i >= len(l.streams) {
		return "Stream()"
	}
	s := l.streams[i]
	names := make([]string, 0, s.AttributeCount)
	for _, a := range l.attributes[s.AttributeStart:s.End()] {
		names = append(names, a.String())
	}
	return "Stream(" + strings.Join(names, ",") + ")"
}

// SingleStreamLayout declares attrs and one stream covering all of them.
func SingleStreamLayout(attrs ...AttributeType) (*Layout, error) {
	l, err := NewLayout(attrs...)
	if err != nil {
		return nil, err
	}
	if _, err := l.DeclareStream(0, len(attrs)); err != nil {
		return nil, err
	}
	return l, nil
}

// PartitionedLayout concatenates groups into one attribute declaration and
// declares one stream per group.
func PartitionedLayout(groups ...[]AttributeType) (*Layout, error) {
	var attrs []AttributeType
	for _, g := range groups {
		attrs = append(attrs, g...)
	}
	l, err := NewLayout(attrs...)
	if err != nil {
		return nil, err
	}
	start := 0
	for _, g := range groups {
		if _, err := l.DeclareStream(start, len(g)); err != nil {
			return nil, err
		}
		start += len(g)
	}
	return l, nil
}
