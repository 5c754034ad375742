package world

import "fmt"

// Direction is one of the six axis-aligned voxel faces.
type Direction uint8

const (
	Backwards Direction = iota
	Down
	Forward
	Left
	Right
	Up
)

// FaceOrder is the order faces are visited during meshing.
var FaceOrder = [...]Direction{Backwards, Down, Forward, Left, Right, Up}

func (d Direction) Vector() Pos {
	switch d {
	case Backwards:
		return Pos{Z: -1}
	case Down:
		return Pos{Y: -1}
	case Forward:
		return Pos{Z: 1}
	case Left:
		return Pos{X: -1}
	case Right:
		return Pos{X: 1}
	case Up:
		return Pos{Y: 1}
	}
	panic(fmt.Sprintf("invalid direction %d", d))
}

func (d Direction) String() string {
	switch d {
	case Backwards:
		return "backwards"
	case Down:
		return "down"
	case Forward:
		return "forward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	}
	return fmt.Sprintf("direction(%d)", d)
}

// Offset2D is a horizontal (x, z) step.
type Offset2D struct {
	X int
	Z int
}

// Directions2D lists the eight compass steps N, NE, E, SE, S, SW, W, NW.
var Directions2D = [...]Offset2D{
	{X: 0, Z: 1},
	{X: 1, Z: 1},
	{X: 1, Z: 0},
	{X: -1, Z: 1},
	{X: -1, Z: 0},
	{X: -1, Z: -1},
	{X: 0, Z: -1},
	{X: 1, Z: -1},
}
