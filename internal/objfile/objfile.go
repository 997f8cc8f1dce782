// Package objfile reads Wavefront OBJ geometry and turns it into loop
// records ready for mesh asset export.
package objfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/axmesh/internal/loops"
)

// OBJ format errors.
var (
	ErrInvalidOBJ      = errors.New("invalid OBJ data")
	ErrIndexOutOfRange = errors.New("OBJ face index out of range")
	ErrNoFaces         = errors.New("OBJ data has no faces")
)

// Corner is one face corner. Indices are zero-based; -1 means absent.
type Corner struct {
	Position int
	TexCoord int
	Normal   int
}

// Face is a polygon of three or more corners.
type Face struct {
	Corners []Corner
}

// Model holds the geometry statements of an OBJ file.
type Model struct {
	Positions []mgl32.Vec3
	TexCoords []mgl32.Vec2
	Normals   []mgl32.Vec3
	Faces     []Face
}

// Parse reads OBJ geometry. Statements other than v, vt, vn and f are skipped.
func Parse(r io.Reader) (*Model, error) {
	m := &Model{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "v":
			var v mgl32.Vec3
			v, err = parseVec3(fields[1:])
			m.Positions = append(m.Positions, v)
		case "vn":
			var v mgl32.Vec3
			v, err = parseVec3(fields[1:])
			m.Normals = append(m.Normals, v)
		case "vt":
			var v mgl32.Vec2
			v, err = parseVec2(fields[1:])
			m.TexCoords = append(m.TexCoords, v)
		case "f":
			var f Face
			f, err = m.parseFace(fields[1:])
			m.Faces = append(m.Faces, f)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	return m, nil
}

// ParseFile parses an OBJ file from disk.
func ParseFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidOBJ, n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidOBJ, fields[i])
		}
		out[i] = float32(f)
	}
	return out, nil
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	f, err := parseFloats(fields, 3)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return mgl32.Vec3{f[0], f[1], f[2]}, nil
}

func parseVec2(fields []string) (mgl32.Vec2, error) {
	// "vt u" is legal; v defaults to 0
	if len(fields) == 1 {
		fields = append(fields, "0")
	}
	f, err := parseFloats(fields, 2)
	if err != nil {
		return mgl32.Vec2{}, err
	}
	return mgl32.Vec2{f[0], f[1]}, nil
}

// parseFace parses corners written as p, p/t, p//n or p/t/n.
func (m *Model) parseFace(fields []string) (Face, error) {
	if len(fields) < 3 {
		return Face{}, fmt.Errorf("%w: face with %d corners", ErrInvalidOBJ, len(fields))
	}
	face := Face{Corners: make([]Corner, len(fields))}
	for i, field := range fields {
		parts := strings.Split(field, "/")
		if len(parts) > 3 {
			return Face{}, fmt.Errorf("%w: corner %q", ErrInvalidOBJ, field)
		}

		c := Corner{Position: -1, TexCoord: -1, Normal: -1}
		var err error
		if c.Position, err = resolveIndex(parts[0], len(m.Positions)); err != nil {
			return Face{}, err
		}
		if c.Position < 0 {
			return Face{}, fmt.Errorf("%w: corner %q has no position", ErrInvalidOBJ, field)
		}
		if len(parts) > 1 {
			if c.TexCoord, err = resolveIndex(parts[1], len(m.TexCoords)); err != nil {
				return Face{}, err
			}
		}
		if len(parts) > 2 {
			if c.Normal, err = resolveIndex(parts[2], len(m.Normals)); err != nil {
				return Face{}, err
			}
		}
		face.Corners[i] = c
	}
	return face, nil
}

// resolveIndex converts a 1-based or negative relative OBJ index to a
// zero-based index. An empty string yields -1.
func resolveIndex(s string, count int) (int, error) {
	if s == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrInvalidOBJ, s)
	}
	idx := n - 1
	if n < 0 {
		idx = count + n
	}
	if n == 0 || idx < 0 || idx >= count {
		return 0, fmt.Errorf("%w: %d with %d elements", ErrIndexOutOfRange, n, count)
	}
	return idx, nil
}

// TriangleCount returns the number of triangles fan triangulation produces.
func (m *Model) TriangleCount() int {
	n := 0
	for _, f := range m.Faces {
		n += len(f.Corners) - 2
	}
	return n
}

// Loops fan-triangulates every face and returns one record per triangle
// corner plus the sequential index list. Corners without a normal get the
// triangle's face normal; corners without a texture coordinate get (0, 0).
func (m *Model) Loops() ([]loops.Record, []uint32, error) {
	if len(m.Faces) == 0 {
		return nil, nil, ErrNoFaces
	}

	records := make([]loops.Record, 0, m.TriangleCount()*3)
	for _, f := range m.Faces {
		for i := 1; i+1 < len(f.Corners); i++ {
			tri := [3]Corner{f.Corners[0], f.Corners[i], f.Corners[i+1]}
			faceNormal := m.faceNormal(tri)
			for _, c := range tri {
				r := loops.Record{
					Position: m.Positions[c.Position],
					Normal:   faceNormal,
				}
				if c.Normal >= 0 {
					r.Normal = m.Normals[c.Normal]
				}
				if c.TexCoord >= 0 {
					r.UV = m.TexCoords[c.TexCoord]
				}
				records = append(records, r)
			}
		}
	}
	return records, loops.Sequential(len(records)), nil
}

func (m *Model) faceNormal(tri [3]Corner) mgl32.Vec3 {
	p0 := m.Positions[tri[0].Position]
	e1 := m.Positions[tri[1].Position].Sub(p0)
	e2 := m.Positions[tri[2].Position].Sub(p0)
	n := e1.Cross(e2)
	if n.Len() < 1e-12 {
		return mgl32.Vec3{}
	}
	return n.Normalize()
}
