// Package loops converts per-loop records handed over by an authoring tool
// into mesh assets.
//
// A loop is one face corner of an already triangulated mesh. The authoring
// tool resolves split normals and the active UV layer before handing loops
// over, so every record is complete.
package loops

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/axmesh/pkg/axmesh"
)

// FloatsPerRecord is the number of floats one record flattens to.
const FloatsPerRecord = 8

// ErrMissingAttribute is returned when a mesh lacks one of the record attributes.
var ErrMissingAttribute = errors.New("mesh lacks loop attribute")

// Record is one face corner.
type Record struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// Attributes returns the attribute declaration records map to.
func Attributes() []axmesh.AttributeType {
	return []axmesh.AttributeType{axmesh.Position, axmesh.Normal, axmesh.TexCoord0}
}

// Layout returns the single-stream layout records are exported with.
func Layout() (*axmesh.Layout, error) {
	return axmesh.SingleStreamLayout(Attributes()...)
}

// Sequential returns the index list 0..n-1, one index per loop.
func Sequential(n int) []uint32 {
	idx := make([]uint32, n)
	for i := range idx {
		idx[i] = uint32(i)
	}
	return idx
}

// Flatten interleaves records as position, normal, uv per loop.
func Flatten(records []Record) []float32 {
	out := make([]float32, 0, len(records)*FloatsPerRecord)
	for _, r := range records {
		out = append(out, r.Position[:]...)
		out = append(out, r.Normal[:]...)
		out = append(out, r.UV[:]...)
	}
	return out
}

// Build creates a mesh with one vertex per record.
func Build(records []Record, indices []uint32) (*axmesh.Mesh, error) {
	return FromFlat(Flatten(records), indices)
}

// BuildLayout creates a mesh with one vertex per record under the given
// layout. The layout may declare any subset of the record attributes in any
// order and stream partition.
func BuildLayout(records []Record, indices []uint32, layout *axmesh.Layout) (*axmesh.Mesh, error) {
	mesh, err := axmesh.NewMesh(len(records), layout)
	if err != nil {
		return nil, err
	}
	for i, attr := range layout.Attributes() {
		values, err := column(records, attr)
		if err != nil {
			return nil, err
		}
		if err := mesh.SetAttribute(i, values); err != nil {
			return nil, err
		}
	}
	if err := mesh.SetIndices(indices); err != nil {
		return nil, err
	}
	return mesh, nil
}

func column(records []Record, attr axmesh.AttributeType) ([]float32, error) {
	var out []float32
	switch attr {
	case axmesh.Position:
		out = make([]float32, 0, len(records)*3)
		for _, r := range records {
			out = append(out, r.Position[:]...)
		}
	case axmesh.Normal:
		out = make([]float32, 0, len(records)*3)
		for _, r := range records {
			out = append(out, r.Normal[:]...)
		}
	case axmesh.TexCoord0:
		out = make([]float32, 0, len(records)*2)
		for _, r := range records {
			out = append(out, r.UV[:]...)
		}
	default:
		return nil, fmt.Errorf("%w: records carry no %s", ErrMissingAttribute, attr)
	}
	return out, nil
}

// FromFlat creates a mesh from the flat float list a scripting exporter
// produces: FloatsPerRecord values per loop.
func FromFlat(vertices []float32, indices []uint32) (*axmesh.Mesh, error) {
	if len(vertices)%FloatsPerRecord != 0 {
		return nil, fmt.Errorf("%w: %d floats is not a multiple of %d",
			axmesh.ErrVertexBufferSizeMismatch, len(vertices), FloatsPerRecord)
	}

	layout, err := Layout()
	if err != nil {
		return nil, err
	}
	mesh, err := axmesh.NewMesh(len(vertices)/FloatsPerRecord, layout)
	if err != nil {
		return nil, err
	}
	if err := mesh.SetVertices(vertices); err != nil {
		return nil, err
	}
	if err := mesh.SetIndices(indices); err != nil {
		return nil, err
	}
	return mesh, nil
}

// Records extracts one record per vertex from any mesh declaring position,
// normal and first texture coordinate, whatever its stream partition.
func Records(m *axmesh.Mesh) ([]Record, error) {
	layout := m.Layout()
	columns := make([][]float32, 0, 3)
	for _, attr := range Attributes() {
		i := layout.Find(attr)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingAttribute, attr)
		}
		values, err := m.Attribute(i)
		if err != nil {
			return nil, err
		}
		columns = append(columns, values)
	}

	pos, nrm, uv := columns[0], columns[1], columns[2]
	out := make([]Record, m.VertexCount())
	for v := range out {
		out[v] = Record{
			Position: mgl32.Vec3{pos[v*3], pos[v*3+1], pos[v*3+2]},
			Normal:   mgl32.Vec3{nrm[v*3], nrm[v*3+1], nrm[v*3+2]},
			UV:       mgl32.Vec2{uv[v*2], uv[v*2+1]},
		}
	}
	return out, nil
}

// Transform applies a model matrix to positions and its normal matrix to
// normals, returning new records. Normals are renormalized.
func Transform(records []Record, model mgl32.Mat4) []Record {
	normalMat := model.Mat3().Inv().Transpose()
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{
			Position: mgl32.TransformCoordinate(r.Position, model),
			Normal:   normalMat.Mul3x1(r.Normal),
			UV:       r.UV,
		}
		if out[i].Normal.Len() > 0 {
			out[i].Normal = out[i].Normal.Normalize()
		}
	}
	return out
}
