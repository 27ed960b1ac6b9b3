package world

// Direction is a cardinal facing on the grid.
type Direction int

const (
	South Direction = iota // +z
	West                   // -x
	North                  // -z
	East                   // +x
)

var deltas = [4][2]int{{0, 1}, {-1, 0}, {0, -1}, {1, 0}}

// Delta returns the (dx, dz) step for the direction. Unknown values face south.
func (d Direction) Delta() (int, int) {
	if !d.Valid() {
		d = South
	}
	return deltas[d][0], deltas[d][1]
}

func (d Direction) Valid() bool {
	return d >= South && d <= East
}

// Left rotates counter-clockwise.
func (d Direction) Left() Direction {
	return (d + 3) % 4
}

// Right rotates clockwise.
func (d Direction) Right() Direction {
	return (d + 1) % 4
}

func (d Direction) String() string {
	switch d {
	case South:
		return "south"
	case West:
		return "west"
	case North:
		return "north"
	case East:
		return "east"
	}
	return "unknown"
}

// Position is an integer grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Step returns the column adjacent to p in direction d, keeping p.Y.
func (p Position) Step(d Direction) Position {
	dx, dz := d.Delta()
	return Position{X: p.X + dx, Y: p.Y, Z: p.Z + dz}
}
