package objfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const quadOBJ = `# unit quad
o plane
v -1 0 1
v 1 0 1
v 1 0 -1
v -1 0 -1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 1 0
usemtl none
s off
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParse_Quad(t *testing.T) {
	m, err := Parse(strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(m.Positions) != 4 || len(m.TexCoords) != 4 || len(m.Normals) != 1 {
		t.Fatalf("unexpected counts: %d positions, %d texcoords, %d normals",
			len(m.Positions), len(m.TexCoords), len(m.Normals))
	}
	if len(m.Faces) != 1 || len(m.Faces[0].Corners) != 4 {
		t.Fatalf("expected one quad face, got %v", m.Faces)
	}
	c := m.Faces[0].Corners[2]
	if c.Position != 2 || c.TexCoord != 2 || c.Normal != 0 {
		t.Errorf("unexpected corner %+v", c)
	}
	if m.TriangleCount() != 2 {
		t.Errorf("expected 2 triangles, got %d", m.TriangleCount())
	}
}

func TestParse_CornerForms(t *testing.T) {
	tests := []struct {
		name   string
		face   string
		expect Corner
	}{
		{"position only", "f 1 2 3", Corner{Position: 0, TexCoord: -1, Normal: -1}},
		{"position texcoord", "f 1/1 2/1 3/1", Corner{Position: 0, TexCoord: 0, Normal: -1}},
		{"position normal", "f 1//1 2//1 3//1", Corner{Position: 0, TexCoord: -1, Normal: 0}},
		{"full", "f 1/1/1 2/1/1 3/1/1", Corner{Position: 0, TexCoord: 0, Normal: 0}},
		{"negative", "f -3/-1/-1 -2/-1/-1 -1/-1/-1", Corner{Position: 0, TexCoord: 0, Normal: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0.5 0.5\nvn 0 0 1\n" + tt.face + "\n"
			m, err := Parse(strings.NewReader(src))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := m.Faces[0].Corners[0]; got != tt.expect {
				t.Errorf("corner = %+v, expected %+v", got, tt.expect)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
		line    string
	}{
		{"short vertex", "v 1 2\n", ErrInvalidOBJ, "line 1"},
		{"bad number", "v 0 0 0\nv a 0 0\n", ErrInvalidOBJ, "line 2"},
		{"two corner face", "v 0 0 0\nv 1 0 0\nf 1 2\n", ErrInvalidOBJ, "line 3"},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", ErrIndexOutOfRange, "line 4"},
		{"index past end", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", ErrIndexOutOfRange, "line 4"},
		{"missing normal", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1//1 2//1 3//1\n", ErrIndexOutOfRange, "line 4"},
		{"too many slashes", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/1/1/1 2 3\n", ErrInvalidOBJ, "line 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !strings.Contains(err.Error(), tt.line) {
				t.Errorf("error %q does not name %s", err, tt.line)
			}
		})
	}
}

func TestLoops_Quad(t *testing.T) {
	m, err := Parse(strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	records, indices, err := m.Loops()
	if err != nil {
		t.Fatalf("Loops failed: %v", err)
	}
	if len(records) != 6 || len(indices) != 6 {
		t.Fatalf("expected 6 records and indices, got %d and %d", len(records), len(indices))
	}
	for i, idx := range indices {
		if idx != uint32(i) {
			t.Errorf("index %d = %d, expected sequential", i, idx)
		}
	}

	// Fan: (0,1,2) then (0,2,3)
	if records[3].Position != (mgl32.Vec3{-1, 0, 1}) || records[5].Position != (mgl32.Vec3{-1, 0, -1}) {
		t.Errorf("unexpected fan order: %v %v", records[3].Position, records[5].Position)
	}
	if records[4].UV != (mgl32.Vec2{1, 1}) {
		t.Errorf("expected uv (1,1), got %v", records[4].UV)
	}
	for _, r := range records {
		if r.Normal != (mgl32.Vec3{0, 1, 0}) {
			t.Errorf("expected normal (0,1,0), got %v", r.Normal)
		}
	}
}

func TestLoops_FaceNormalFallback(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	m, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	records, _, err := m.Loops()
	if err != nil {
		t.Fatalf("Loops failed: %v", err)
	}
	for _, r := range records {
		if !r.Normal.ApproxEqual(mgl32.Vec3{0, 0, 1}) {
			t.Errorf("expected face normal (0,0,1), got %v", r.Normal)
		}
		if r.UV != (mgl32.Vec2{}) {
			t.Errorf("expected zero uv, got %v", r.UV)
		}
	}
}

func TestLoops_NoFaces(t *testing.T) {
	m, err := Parse(strings.NewReader("v 0 0 0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, _, err := m.Loops(); !errors.Is(err, ErrNoFaces) {
		t.Errorf("expected ErrNoFaces, got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plane.obj")
	if err := os.WriteFile(path, []byte(quadOBJ), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	m, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(m.Faces) != 1 {
		t.Errorf("expected 1 face, got %d", len(m.Faces))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.obj")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
