package jps

import "naturalist.ai/internal/sim/grid"

// Direction indexes the 8 unit steps clockwise from north. Even values are
// straight, odd values diagonal.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var vectors = [8]grid.Pos{
	{X: 0, Y: -1},
	{X: 1, Y: -1},
	{X: 1, Y: 0},
	{X: 1, Y: 1},
	{X: 0, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: 0},
	{X: -1, Y: -1},
}

var directionNames = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func (d Direction) Vec() grid.Pos { return vectors[d&7] }
func (d Direction) Diagonal() bool { return d&1 == 1 }
func (d Direction) String() string { return directionNames[d&7] }

// Turn rotates d clockwise by k eighths (counter-clockwise when k < 0).
func (d Direction) Turn(k int) Direction {
	return Direction(((int(d)+k)%8 + 8) % 8)
}

// DirectionOf returns the direction of the unit step toward delta. ok is false
// for the zero delta.
func DirectionOf(delta grid.Pos) (Direction, bool) {
	s := delta.Sign()
	for i, v := range vectors {
		if v == s {
			return Direction(i), true
		}
	}
	return 0, false
}
