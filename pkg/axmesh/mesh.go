package axmesh

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is a mesh asset: vertex count, attribute/stream layout, vertex payload
// and index payload.
//
// The vertex payload stores one block per stream, in stream order. A block
// holds vertexCount records of Stride floats, attributes in declaration order
// and components in order inside each record.
type Mesh struct {
	vertexCount int
	layout      *Layout
	vertices    []float32
	indices     []uint32
	written     []bool // Per attribute, set once its values were supplied
}

// NewMesh creates an empty mesh for vertexCount vertices. The layout must
// cover every declared attribute; the mesh keeps its own copy of it.
func NewMesh(vertexCount int, layout *Layout) (*Mesh, error) {
	if vertexCount <= 0 || int64(vertexCount) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: vertex count %d", ErrInvalidMesh, vertexCount)
	}
	if layout == nil {
		return nil, fmt.Errorf("%w: nil layout", ErrInvalidMesh)
	}
	if err := layout.Complete(); err != nil {
		return nil, err
	}
	return &Mesh{
		vertexCount: vertexCount,
		layout:      layout.Clone(),
		written:     make([]bool, len(layout.attributes)),
	}, nil
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return m.vertexCount }

// Layout returns a copy of the mesh layout.
func (m *Mesh) Layout() *Layout { return m.layout.Clone() }

// Attributes returns the attribute declaration.
func (m *Mesh) Attributes() []AttributeType { return m.layout.Attributes() }

// Streams returns the stream declarations with their strides.
func (m *Mesh) Streams() []Stream { return m.layout.Streams() }

// Stride returns the number of floats per vertex across all streams.
func (m *Mesh) Stride() int { return m.layout.TotalStride() }

// Vertices returns a copy of the vertex payload.
func (m *Mesh) Vertices() []float32 {
	if m.vertices == nil {
		return nil
	}
	return append([]float32(nil), m.vertices...)
}

// Indices returns a copy of the index payload.
func (m *Mesh) Indices() []uint32 {
	if m.indices == nil {
		return nil
	}
	return append([]uint32(nil), m.indices...)
}

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int { return len(m.indices) }

// VertexLen returns the required vertex payload length.
func (m *Mesh) VertexLen() int {
	return m.vertexCount * m.layout.TotalStride()
}

// SetVertices replaces the whole vertex payload.
func (m *Mesh) SetVertices(v []float32) error {
	if expected := m.VertexLen(); len(v) != expected {
		return &VertexBufferSizeError{Expected: expected, Actual: len(v)}
	}
	m.vertices = append([]float32(nil), v...)
	m.markWritten(0, len(m.written))
	return nil
}

func (m *Mesh) markWritten(start, end int) {
	for i := start; i < end; i++ {
		m.written[i] = true
	}
}

// SetIndices replaces the index payload. Every index must reference a vertex.
func (m *Mesh) SetIndices(idx []uint32) error {
	if err := checkIndices(idx, m.vertexCount); err != nil {
		return err
	}
	m.indices = append([]uint32(nil), idx...)
	return nil
}

func checkIndices(idx []uint32, vertexCount int) error {
	for i, v := range idx {
		if int64(v) >= int64(vertexCount) {
			return &IndexOutOfRangeError{Index: v, Position: i, VertexCount: vertexCount}
		}
	}
	return nil
}

// streamRange returns the [begin, end) element range of stream i in the payload.
func (m *Mesh) streamRange(i int) (int, int) {
	begin := 0
	for _, s := range m.layout.streams[:i] {
		begin += s.Stride * m.vertexCount
	}
	return begin, begin + m.layout.streams[i].Stride*m.vertexCount
}

func (m *Mesh) ensureVertices() {
	if m.vertices == nil {
		m.vertices = make([]float32, m.VertexLen())
	}
}

// StreamVertices returns a copy of the payload block of stream i.
func (m *Mesh) StreamVertices(i int) ([]float32, error) {
	if i < 0 || i >= m.layout.StreamCount() {
		return nil, fmt.Errorf("%w: stream %d of %d", ErrIndexOutOfBounds, i, m.layout.StreamCount())
	}
	if m.vertices == nil {
		return nil, nil
	}
	begin, end := m.streamRange(i)
	return append([]float32(nil), m.vertices[begin:end]...), nil
}

// StreamOffset returns the element offset of stream i's block inside the
// vertex payload.
func (m *Mesh) StreamOffset(i int) (int, error) {
	if i < 0 || i >= m.layout.StreamCount() {
		return 0, fmt.Errorf("%w: stream %d of %d", ErrIndexOutOfBounds, i, m.layout.StreamCount())
	}
	begin, _ := m.streamRange(i)
	return begin, nil
}

// SetStreamVertices replaces the payload block of stream i.
func (m *Mesh) SetStreamVertices(i int, v []float32) error {
	if i < 0 || i >= m.layout.StreamCount() {
		return fmt.Errorf("%w: stream %d of %d", ErrIndexOutOfBounds, i, m.layout.StreamCount())
	}
	begin, end := m.streamRange(i)
	if len(v) != end-begin {
		return &VertexBufferSizeError{Expected: end - begin, Actual: len(v)}
	}
	m.ensureVertices()
	copy(m.vertices[begin:end], v)
	s := m.layout.streams[i]
	m.markWritten(s.AttributeStart, s.End())
	return nil
}

// SetAttribute writes tightly packed values (vertexCount × components) of
// attribute index attr into its stream. The payload is allocated zeroed on
// first use; Validate rejects the mesh until every attribute was written.
func (m *Mesh) SetAttribute(attr int, values []float32) error {
	stream, offset, err := m.layout.Locate(attr)
	if err != nil {
		return err
	}
	n, _ := m.layout.attributes[attr].Components()
	if expected := m.vertexCount * n; len(values) != expected {
		return &VertexBufferSizeError{Expected: expected, Actual: len(values)}
	}

	m.ensureVertices()
	begin, _ := m.streamRange(stream)
	stride := m.layout.streams[stream].Stride
	for v := 0; v < m.vertexCount; v++ {
		dst := begin + v*stride + offset
		copy(m.vertices[dst:dst+n], values[v*n:(v+1)*n])
	}
	m.written[attr] = true
	return nil
}

// Attribute returns the values of attribute index attr for every vertex,
// tightly packed.
func (m *Mesh) Attribute(attr int) ([]float32, error) {
	stream, offset, err := m.layout.Locate(attr)
	if err != nil {
		return nil, err
	}
	if len(m.vertices) != m.VertexLen() {
		return nil, &VertexBufferSizeError{Expected: m.VertexLen(), Actual: len(m.vertices)}
	}
	n, _ := m.layout.attributes[attr].Components()

	out := make([]float32, m.vertexCount*n)
	begin, _ := m.streamRange(stream)
	stride := m.layout.streams[stream].Stride
	for v := 0; v < m.vertexCount; v++ {
		src := begin + v*stride + offset
		copy(out[v*n:(v+1)*n], m.vertices[src:src+n])
	}
	return out, nil
}

// Validate checks every layout and payload invariant.
func (m *Mesh) Validate() error {
	if m.vertexCount <= 0 {
		return fmt.Errorf("%w: vertex count %d", ErrInvalidMesh, m.vertexCount)
	}
	if err := m.layout.Complete(); err != nil {
		return err
	}
	if expected := m.VertexLen(); len(m.vertices) != expected {
		return fmt.Errorf("%w: %w", ErrInvalidMesh,
			&VertexBufferSizeError{Expected: expected, Actual: len(m.vertices)})
	}
	for i, ok := range m.written {
		if !ok {
			return fmt.Errorf("%w: attribute %d (%s) was never written", ErrInvalidMesh, i, m.layout.attributes[i])
		}
	}
	if err := checkIndices(m.indices, m.vertexCount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMesh, err)
	}
	return nil
}

// Equal reports structural equality: vertex count, attributes, stream
// coverage, vertices (bitwise) and indices.
func (m *Mesh) Equal(other *Mesh) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.vertexCount != other.vertexCount || !m.layout.Equal(other.layout) {
		return false
	}
	if len(m.vertices) != len(other.vertices) || len(m.indices) != len(other.indices) {
		return false
	}
	for i := range m.vertices {
		if math.Float32bits(m.vertices[i]) != math.Float32bits(other.vertices[i]) {
			return false
		}
	}
	for i := range m.indices {
		if m.indices[i] != other.indices[i] {
			return false
		}
	}
	return true
}

// Bounds returns the axis-aligned bounding box of the first Position
// attribute. ok is false when the mesh has no positions.
func (m *Mesh) Bounds() (min, max mgl32.Vec3, ok bool) {
	attr := m.layout.Find(Position)
	if attr < 0 {
		return min, max, false
	}
	values, err := m.Attribute(attr)
	if err != nil || len(values) < 3 {
		return min, max, false
	}

	min = mgl32.Vec3{values[0], values[1], values[2]}
	max = min
	for i := 3; i+2 < len(values); i += 3 {
		p := mgl32.Vec3{values[i], values[i+1], values[i+2]}
		for c := 0; c < 3; c++ {
			if p[c] < min[c] {
				min[c] = p[c]
			}
			if p[c] > max[c] {
				max[c] = p[c]
			}
		}
	}
	return min, max, true
}

// Relayout rebuilds m under a different stream partition of the same
// attribute declaration.
func Relayout(m *Mesh, layout *Layout) (*Mesh, error) {
	if layout == nil {
		return nil, fmt.Errorf("%w: nil layout", ErrInvalidMesh)
	}
	src, dst := m.layout.attributes, layout.attributes
	if len(src) != len(dst) {
		return nil, fmt.Errorf("%w: layout declares %d attributes, mesh has %d", ErrInvalidMesh, len(dst), len(src))
	}
	for i := range src {
		if src[i] != dst[i] {
			return nil, fmt.Errorf("%w: attribute %d is %s in layout, %s in mesh", ErrInvalidMesh, i, dst[i], src[i])
		}
	}

	out, err := NewMesh(m.vertexCount, layout)
	if err != nil {
		return nil, err
	}
	for i := range src {
		values, err := m.Attribute(i)
		if err != nil {
			return nil, err
		}
		if err := out.SetAttribute(i, values); err != nil {
			return nil, err
		}
	}
	if err := out.SetIndices(m.indices); err != nil {
		return nil, err
	}
	return out, nil
}
