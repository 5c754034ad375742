package voxel

import (
	"fmt"
	"strings"
)

// Type tags the content of a single voxel cell.
type Type uint8

const (
	// Nothing is returned for coordinates outside any loaded chunk. It never
	// appears inside chunk storage.
	Nothing Type = iota
	Air
	Grass
	Dirt
	Stone
	Sand
	Water
	TreeTrunk
	TreeLeaves
	Snow
	Ice
)

var typeNames = [...]string{
	Nothing:    "nothing",
	Air:        "air",
	Grass:      "grass",
	Dirt:       "dirt",
	Stone:      "stone",
	Sand:       "sand",
	Water:      "water",
	TreeTrunk:  "tree_trunk",
	TreeLeaves: "tree_leaves",
	Snow:       "snow",
	Ice:        "ice",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("voxel(%d)", uint8(t))
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return int(t) < len(typeNames)
}

func ParseType(name string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range typeNames {
		if n == key {
			return Type(i), nil
		}
	}
	return Nothing, fmt.Errorf("unknown voxel type %q", name)
}

func (t Type) MarshalText() ([]byte, error) {
	if int(t) >= len(typeNames) {
		return nil, fmt.Errorf("unknown voxel type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
