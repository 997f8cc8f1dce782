// Package axmesh implements the axmesh mesh asset: a vertex attribute
// declaration, its partition into interleaved streams, the vertex and index
// payloads, and the binary file codec.
package axmesh

import (
	"fmt"
	"strings"
)

// AttributeType identifies a per-vertex attribute kind.
// Identifiers are part of the file format: new kinds are appended, existing
// ones are never renumbered.
type AttributeType uint32

// Attribute kinds.
const (
	Position    AttributeType = 0
	Normal      AttributeType = 1
	Tangent     AttributeType = 2
	TexCoord0   AttributeType = 3
	TexCoord1   AttributeType = 4
	Color       AttributeType = 5
	BoneWeights AttributeType = 6
	BoneIndices AttributeType = 7
)

type attributeInfo struct {
	name       string
	components int
}

var attributeCatalog = [...]attributeInfo{
	Position:    {"Position", 3},
	Normal:      {"Normal", 3},
	Tangent:     {"Tangent", 3},
	TexCoord0:   {"TexCoord0", 2},
	TexCoord1:   {"TexCoord1", 2},
	Color:       {"Color", 4},
	BoneWeights: {"BoneWeights", 4},
	BoneIndices: {"BoneIndices", 4},
}

// AttributeTypes returns every known attribute kind in identifier order.
func AttributeTypes() []AttributeType {
	out := make([]AttributeType, len(attributeCatalog))
	for i := range attributeCatalog {
		out[i] = AttributeType(i)
	}
	return out
}

// Valid reports whether t is a known attribute kind.
func (t AttributeType) Valid() bool {
	return int(t) < len(attributeCatalog)
}

// Components returns the number of float values the attribute occupies per vertex.
func (t AttributeType) Components() (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAttributeKind, uint32(t))
	}
	return attributeCatalog[t].components, nil
}

// String returns the attribute name.
func (t AttributeType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
	return attributeCatalog[t].name
}

// ParseAttributeType resolves an attribute name, ignoring case.
// The plural "TexCoords0"/"TexCoords1" spellings are accepted as well.
func ParseAttributeType(name string) (AttributeType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "texcoords0", "uv", "uv0":
		return TexCoord0, nil
	case "texcoords1", "uv1":
		return TexCoord1, nil
	}
	for i, info := range attributeCatalog {
		if strings.ToLower(info.name) == key {
			return AttributeType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAttributeKind, name)
}

// MarshalText implements encoding.TextMarshaler.
func (t AttributeType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAttributeKind, uint32(t))
	}
	return []byte(strings.ToLower(attributeCatalog[t].name)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AttributeType) UnmarshalText(text []byte) error {
	parsed, err := ParseAttributeType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// componentSum returns the total component count of attrs.
func componentSum(attrs []AttributeType) (int, error) {
	sum := 0
	for i, a := range attrs {
		n, err := a.Components()
		if err != nil {
			return 0, fmt.Errorf("attribute %d: %w", i, err)
		}
		sum += n
	}
	return sum, nil
}
