package grid

import "fmt"

// Pos is an integer grid coordinate. Y grows southward, so north is (0,-1).
type Pos struct {
	X int
	Y int
}

func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Pos) Sub(o Pos) Pos { return Pos{X: p.X - o.X, Y: p.Y - o.Y} }

// Sign clamps each component to {-1,0,1}.
func (p Pos) Sign() Pos { return Pos{X: sign(p.X), Y: sign(p.Y)} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Manhattan returns |dx|+|dy|.
func Manhattan(a, b Pos) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

// Chebyshev returns max(|dx|,|dy|), the number of unit steps between a and b
// when diagonal steps are allowed.
func Chebyshev(a, b Pos) int {
	dx := absInt(a.X - b.X)
	dy := absInt(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Adjacent reports whether b is one of the 8 cells surrounding a.
func Adjacent(a, b Pos) bool { return Chebyshev(a, b) == 1 }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
