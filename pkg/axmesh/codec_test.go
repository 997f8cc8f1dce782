package axmesh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

// makeAxmeshHeader builds the fixed leading header bytes.
func makeAxmeshHeader(magic, kind, version uint32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, magic)
	binary.Write(buf, binary.LittleEndian, kind)
	binary.Write(buf, binary.LittleEndian, version)
	return buf.Bytes()
}

// createTestAxmesh hand-assembles a file with the given declaration.
func createTestAxmesh(vertexCount uint32, attrs []uint32, streams [][2]uint32, vertices []float32, indices []uint32) []byte {
	buf := bytes.NewBuffer(makeAxmeshHeader(Magic, KindMesh, FormatVersion))

	binary.Write(buf, binary.LittleEndian, vertexCount)

	binary.Write(buf, binary.LittleEndian, uint32(len(attrs)))
	for _, a := range attrs {
		binary.Write(buf, binary.LittleEndian, a)
	}

	binary.Write(buf, binary.LittleEndian, uint32(len(streams)))
	for _, s := range streams {
		binary.Write(buf, binary.LittleEndian, s[0])
		binary.Write(buf, binary.LittleEndian, s[1])
	}

	for _, v := range vertices {
		binary.Write(buf, binary.LittleEndian, v)
	}

	binary.Write(buf, binary.LittleEndian, uint32(len(indices)))
	for _, i := range indices {
		binary.Write(buf, binary.LittleEndian, i)
	}
	return buf.Bytes()
}

func TestEncode_ByteLayout(t *testing.T) {
	mesh := createTestQuad(t)

	data, err := mesh.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	expected := createTestAxmesh(4, []uint32{0, 1, 3}, [][2]uint32{{0, 3}}, quadVertices(), quadIndices)
	if !bytes.Equal(data, expected) {
		t.Fatalf("encoded bytes differ from hand-built file:\n got %x\nwant %x", data, expected)
	}
	if len(data) != EncodedSize(mesh) {
		t.Errorf("EncodedSize = %d, actual %d", EncodedSize(mesh), len(data))
	}
	if string(data[0:4]) != "APEX" {
		t.Errorf("expected magic bytes APEX, got %q", data[0:4])
	}
}

func TestDecode_Quad(t *testing.T) {
	data := createTestAxmesh(4, []uint32{0, 1, 3}, [][2]uint32{{0, 3}}, quadVertices(), quadIndices)

	mesh, err := Decode(data, DecodeOptions{Strict: true})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if mesh.VertexCount() != 4 {
		t.Errorf("expected 4 vertices, got %d", mesh.VertexCount())
	}
	if mesh.Stride() != 8 {
		t.Errorf("expected stride 8, got %d", mesh.Stride())
	}
	if len(mesh.Vertices()) != 32 {
		t.Errorf("expected 32 vertex values, got %d", len(mesh.Vertices()))
	}
	for i, v := range quadIndices {
		if mesh.Indices()[i] != v {
			t.Errorf("index %d = %d, expected %d", i, mesh.Indices()[i], v)
		}
	}
	attrs := mesh.Attributes()
	if len(attrs) != 3 || attrs[0] != Position || attrs[1] != Normal || attrs[2] != TexCoord0 {
		t.Errorf("unexpected attributes %v", attrs)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *Mesh
	}{
		{"quad", createTestQuad},
		{"skinned two streams", createSkinnedMesh},
		{"no indices", func(t *testing.T) *Mesh {
			layout, _ := SingleStreamLayout(Position, Color)
			m, _ := NewMesh(2, layout)
			m.SetVertices([]float32{1, 2, 3, 0, 0, 0, 1, 4, 5, 6, 1, 1, 1, 1})
			return m
		}},
		{"special floats", func(t *testing.T) *Mesh {
			layout, _ := SingleStreamLayout(TexCoord1)
			m, _ := NewMesh(3, layout)
			m.SetVertices([]float32{
				float32(math.Inf(1)), float32(math.Inf(-1)),
				float32(math.NaN()), -0.0,
				math.SmallestNonzeroFloat32, math.MaxFloat32,
			})
			m.SetIndices([]uint32{2, 2, 2})
			return m
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mesh := tt.build(t)
			data, err := mesh.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary failed: %v", err)
			}
			var decoded Mesh
			if err := decoded.UnmarshalBinary(data); err != nil {
				t.Fatalf("UnmarshalBinary failed: %v", err)
			}
			if !decoded.Equal(mesh) {
				t.Error("decoded mesh differs from original")
			}
			for i, s := range decoded.Streams() {
				if s.Stride != mesh.Streams()[i].Stride {
					t.Errorf("stream %d stride %d, expected %d", i, s.Stride, mesh.Streams()[i].Stride)
				}
			}
		})
	}
}

func TestEncode_InvalidMesh(t *testing.T) {
	layout, _ := SingleStreamLayout(Position)
	mesh, _ := NewMesh(3, layout)

	var buf bytes.Buffer
	if err := Encode(&buf, mesh); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("expected ErrInvalidMesh, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("invalid mesh wrote %d bytes", buf.Len())
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid", makeAxmeshHeader(Magic, KindMesh, 1), nil},
		{"flipped magic", makeAxmeshHeader(^Magic, KindMesh, 1), ErrCorruptHeader},
		{"wrong magic", append([]byte("XPEA"), makeAxmeshHeader(Magic, KindMesh, 1)[4:]...), ErrCorruptHeader},
		{"wrong kind", makeAxmeshHeader(Magic, 2, 1), ErrCorruptHeader},
		{"version zero", makeAxmeshHeader(Magic, KindMesh, 0), ErrCorruptHeader},
		{"newer version", makeAxmeshHeader(Magic, KindMesh, FormatVersion+1), ErrUnsupportedFormatVersion},
		{"empty", []byte{}, ErrTruncatedFile},
		{"short", []byte{'A', 'P', 'E'}, ErrTruncatedFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecode_FlippedMagic(t *testing.T) {
	data, _ := createTestQuad(t).MarshalBinary()
	for i := 0; i < 4; i++ {
		data[i] = ^data[i]
	}
	if _, err := Decode(data, DecodeOptions{}); !errors.Is(err, ErrCorruptHeader) {
		t.Errorf("expected ErrCorruptHeader, got %v", err)
	}
}

func TestDecode_Truncated(t *testing.T) {
	data, _ := createTestQuad(t).MarshalBinary()

	// Offsets of each section in the quad file
	tests := []struct {
		name    string
		length  int
		section string
	}{
		{"inside header", 6, "header"},
		{"after header", headerSize, "vertex count"},
		{"before attribute count", headerSize + 4, "attributes"},
		{"inside attributes", headerSize + 4 + 4 + 4, "attributes"},
		{"before streams", headerSize + 4 + 16, "streams"},
		{"inside streams", headerSize + 4 + 16 + 4 + 4, "streams"},
		{"inside vertices", headerSize + 4 + 16 + 12 + 40, "vertices"},
		{"before index count", headerSize + 4 + 16 + 12 + 128, "index count"},
		{"inside indices", len(data) - 1, "indices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(data[:tt.length], DecodeOptions{})
			if !errors.Is(err, ErrTruncatedFile) {
				t.Fatalf("expected ErrTruncatedFile, got %v", err)
			}
			var truncErr *TruncatedError
			if !errors.As(err, &truncErr) {
				t.Fatalf("expected *TruncatedError, got %T", err)
			}
			if truncErr.Section != tt.section {
				t.Errorf("expected section %q, got %q", tt.section, truncErr.Section)
			}
		})
	}
}

func TestDecode_TrailingData(t *testing.T) {
	data, _ := createTestQuad(t).MarshalBinary()
	data = append(data, 0xde, 0xad)

	mesh, err := Decode(data, DecodeOptions{})
	if err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
	if !mesh.Equal(createTestQuad(t)) {
		t.Error("lenient decode changed the mesh")
	}

	if _, err := Decode(data, DecodeOptions{Strict: true}); !errors.Is(err, ErrTrailingData) {
		t.Errorf("expected ErrTrailingData, got %v", err)
	}
}

func TestDecode_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "unknown attribute",
			data:    createTestAxmesh(1, []uint32{0, 77}, [][2]uint32{{0, 2}}, make([]float32, 3), nil),
			wantErr: ErrUnknownAttributeKind,
		},
		{
			name:    "overlapping streams",
			data:    createTestAxmesh(1, []uint32{0, 1}, [][2]uint32{{0, 2}, {1, 1}}, make([]float32, 6), nil),
			wantErr: ErrRangeOverlap,
		},
		{
			name:    "stream out of bounds",
			data:    createTestAxmesh(1, []uint32{0}, [][2]uint32{{0, 2}}, make([]float32, 3), nil),
			wantErr: ErrIndexOutOfBounds,
		},
		{
			name:    "more streams than attributes",
			data:    createTestAxmesh(1, []uint32{0}, [][2]uint32{{0, 1}, {0, 1}}, make([]float32, 3), nil),
			wantErr: ErrIndexOutOfBounds,
		},
		{
			name:    "uncovered attribute",
			data:    createTestAxmesh(1, []uint32{0, 1}, [][2]uint32{{0, 1}}, make([]float32, 3), nil),
			wantErr: ErrInvalidMesh,
		},
		{
			name:    "zero vertices",
			data:    createTestAxmesh(0, []uint32{0}, [][2]uint32{{0, 1}}, nil, nil),
			wantErr: ErrInvalidMesh,
		},
		{
			name:    "index out of range",
			data:    createTestAxmesh(2, []uint32{3}, [][2]uint32{{0, 1}}, make([]float32, 4), []uint32{0, 2}),
			wantErr: ErrIndexOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, DecodeOptions{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecode_HugeCounts(t *testing.T) {
	// A corrupt count must fail as truncation rather than allocate.
	buf := bytes.NewBuffer(makeAxmeshHeader(Magic, KindMesh, FormatVersion))
	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, uint32(0xFFFFFFFF))

	if _, err := Decode(buf.Bytes(), DecodeOptions{}); !errors.Is(err, ErrTruncatedFile) {
		t.Errorf("expected ErrTruncatedFile, got %v", err)
	}
}

func TestDecode_ManyStreamsLinear(t *testing.T) {
	// One single-attribute stream per attribute, vertex payload missing.
	const n = 100000
	attrs := make([]uint32, n)
	streams := make([][2]uint32, n)
	for i := range streams {
		streams[i] = [2]uint32{uint32(i), 1}
	}
	data := createTestAxmesh(1, attrs, streams, nil, nil)

	start := time.Now()
	_, err := Decode(data, DecodeOptions{})
	elapsed := time.Since(start)

	var truncErr *TruncatedError
	if !errors.As(err, &truncErr) || truncErr.Section != "vertices" {
		t.Fatalf("expected truncation in vertices, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("decoding %d stream declarations took %v", n, elapsed)
	}
}

func TestLayout_ManyStreamsCoverage(t *testing.T) {
	attrs := make([]AttributeType, 50000)
	l, err := NewLayout(attrs...)
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	for i := len(attrs) - 1; i >= 0; i-- {
		if _, err := l.DeclareStream(i, 1); err != nil {
			t.Fatalf("DeclareStream(%d) failed: %v", i, err)
		}
	}
	if err := l.Complete(); err != nil {
		t.Errorf("Complete failed: %v", err)
	}
	if _, err := l.DeclareStream(123, 2); !errors.Is(err, ErrRangeOverlap) {
		t.Errorf("expected ErrRangeOverlap, got %v", err)
	}
	if stream, _, _ := l.Locate(0); stream != len(attrs)-1 {
		t.Errorf("attribute 0 in stream %d, expected %d", stream, len(attrs)-1)
	}
}
