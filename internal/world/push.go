package world

import "time"

const (
	PushDistance = 2
	PushCooldown = 2 * time.Second
)

// PushResult describes where a pushed player ends up.
type PushResult struct {
	To          Position
	Tiles       int
	FellOffEdge bool
}

// Moved reports whether the victim advanced at least one tile.
func (r PushResult) Moved() bool {
	return r.Tiles > 0
}

// ResolvePush advances a victim at from up to PushDistance tiles in dir.
// Each step stops on the world edge, on a column occupied by another player,
// or on a climb of more than one block. Running off the edge sets
// FellOffEdge when edgeFalls is true.
func ResolvePush(g *Grid, from Position, dir Direction, edgeFalls bool, occupied func(x, z int) bool) PushResult {
	res := PushResult{To: from}
	dx, dz := dir.Delta()
	cur := from
	for step := 1; step <= PushDistance; step++ {
		nx, nz := cur.X+dx, cur.Z+dz
		if !InBounds(nx, nz) {
			res.FellOffEdge = edgeFalls
			break
		}
		if occupied != nil && occupied(nx, nz) {
			break
		}
		ny, ok := g.CanMoveTo(cur.Y, nx, nz)
		if !ok {
			break
		}
		cur = Position{X: nx, Y: ny, Z: nz}
		res.Tiles++
	}
	res.To = cur
	return res
}
