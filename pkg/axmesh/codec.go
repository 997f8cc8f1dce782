package axmesh

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// File format constants.
const (
	Magic         uint32 = 0x58455041 // "APEX" on disk
	KindMesh      uint32 = 1
	FormatVersion uint32 = 1

	headerSize = 12 // magic, kind, version
)

// DecodeOptions controls how strictly a file is decoded.
type DecodeOptions struct {
	// Strict rejects bytes after the index payload.
	Strict bool
}

// Encode writes m to w in the axmesh binary format.
func Encode(w io.Writer, m *Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}

	header := [...]uint32{Magic, KindMesh, FormatVersion, uint32(m.vertexCount)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("%w: writing header: %w", ErrIO, err)
	}

	// Attribute declaration
	attrs := make([]uint32, 0, 1+len(m.layout.attributes))
	attrs = append(attrs, uint32(len(m.layout.attributes)))
	for _, a := range m.layout.attributes {
		attrs = append(attrs, uint32(a))
	}
	if err := binary.Write(w, binary.LittleEndian, attrs); err != nil {
		return fmt.Errorf("%w: writing attributes: %w", ErrIO, err)
	}

	// Stream declaration; stride is derived and never stored
	streams := make([]uint32, 0, 1+2*len(m.layout.streams))
	streams = append(streams, uint32(len(m.layout.streams)))
	for _, s := range m.layout.streams {
		streams = append(streams, uint32(s.AttributeStart), uint32(s.AttributeCount))
	}
	if err := binary.Write(w, binary.LittleEndian, streams); err != nil {
		return fmt.Errorf("%w: writing streams: %w", ErrIO, err)
	}

	if err := binary.Write(w, binary.LittleEndian, m.vertices); err != nil {
		return fmt.Errorf("%w: writing vertices: %w", ErrIO, err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.indices))); err != nil {
		return fmt.Errorf("%w: writing index count: %w", ErrIO, err)
	}
	if len(m.indices) > 0 {
		if err := binary.Write(w, binary.LittleEndian, m.indices); err != nil {
			return fmt.Errorf("%w: writing indices: %w", ErrIO, err)
		}
	}
	return nil
}

// EncodedSize returns the number of bytes Encode writes for m.
func EncodedSize(m *Mesh) int {
	return headerSize + 4 +
		4 + 4*len(m.layout.attributes) +
		4 + 8*len(m.layout.streams) +
		4*m.VertexLen() +
		4 + 4*len(m.indices)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Mesh) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, EncodedSize(m)))
	if err := Encode(buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Trailing data is ignored.
func (m *Mesh) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data, DecodeOptions{})
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

// Header holds the fixed leading fields of an axmesh file.
type Header struct {
	Magic   uint32
	Kind    uint32
	Version uint32
}

// ParseHeader validates the leading magic, kind and version fields.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, truncated("header")
	}
	h := Header{
		Magic:   binary.LittleEndian.Uint32(data[0:4]),
		Kind:    binary.LittleEndian.Uint32(data[4:8]),
		Version: binary.LittleEndian.Uint32(data[8:12]),
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: bad magic 0x%08x", ErrCorruptHeader, h.Magic)
	}
	if h.Kind != KindMesh {
		return h, fmt.Errorf("%w: not a mesh asset (kind %d)", ErrCorruptHeader, h.Kind)
	}
	if h.Version == 0 {
		return h, fmt.Errorf("%w: version 0", ErrCorruptHeader)
	}
	if h.Version > FormatVersion {
		return h, fmt.Errorf("%w: %d (reader supports up to %d)", ErrUnsupportedFormatVersion, h.Version, FormatVersion)
	}
	return h, nil
}

// Decode parses an axmesh file from raw bytes.
func Decode(data []byte, opts DecodeOptions) (*Mesh, error) {
	if _, err := ParseHeader(data); err != nil {
		return nil, err
	}
	r := bytes.NewReader(data[headerSize:])

	vertexCount, err := readUint32(r, "vertex count")
	if err != nil {
		return nil, err
	}

	// Attribute declaration
	attrCount, err := readUint32(r, "attributes")
	if err != nil {
		return nil, err
	}
	rawAttrs, err := readUint32s(r, int64(attrCount), "attributes")
	if err != nil {
		return nil, err
	}
	attrs := make([]AttributeType, len(rawAttrs))
	for i, a := range rawAttrs {
		attrs[i] = AttributeType(a)
	}
	layout, err := NewLayout(attrs...)
	if err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}

	// Stream declaration
	streamCount, err := readUint32(r, "streams")
	if err != nil {
		return nil, err
	}
	// Streams are non-empty and disjoint, so there can be no more of them than attributes
	if streamCount > attrCount {
		return nil, fmt.Errorf("%w: %d streams for %d attributes", ErrIndexOutOfBounds, streamCount, attrCount)
	}
	rawStreams, err := readUint32s(r, 2*int64(streamCount), "streams")
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(rawStreams); i += 2 {
		if _, err := layout.DeclareStream(int(rawStreams[i]), int(rawStreams[i+1])); err != nil {
			return nil, fmt.Errorf("decoding stream %d: %w", i/2, err)
		}
	}

	mesh, err := NewMesh(int(vertexCount), layout)
	if err != nil {
		return nil, fmt.Errorf("decoding layout: %w", err)
	}

	// Vertex payload
	vertices, err := readFloat32s(r, int64(vertexCount)*int64(layout.TotalStride()), "vertices")
	if err != nil {
		return nil, err
	}
	mesh.vertices = vertices
	mesh.markWritten(0, len(mesh.written))

	// Index payload
	indexCount, err := readUint32(r, "index count")
	if err != nil {
		return nil, err
	}
	indices, err := readUint32s(r, int64(indexCount), "indices")
	if err != nil {
		return nil, err
	}
	if err := checkIndices(indices, mesh.vertexCount); err != nil {
		return nil, fmt.Errorf("decoding indices: %w", err)
	}
	mesh.indices = indices

	if opts.Strict && r.Len() > 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Len())
	}
	return mesh, nil
}

func readUint32(r *bytes.Reader, section string) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, truncated(section)
	}
	return v, nil
}

// readUint32s reads n values after checking the reader holds enough bytes,
// so a corrupt count never triggers a huge allocation.
func readUint32s(r *bytes.Reader, n int64, section string) ([]uint32, error) {
	if n > int64(r.Len())/4 {
		return nil, truncated(section)
	}
	out := make([]uint32, n)
	if n == 0 {
		return out, nil
	}
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, truncated(section)
	}
	return out, nil
}

func readFloat32s(r *bytes.Reader, n int64, section string) ([]float32, error) {
	if n > int64(r.Len())/4 || n > math.MaxInt32 {
		return nil, truncated(section)
	}
	out := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, truncated(section)
	}
	return out, nil
}
