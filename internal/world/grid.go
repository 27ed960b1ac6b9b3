package world

import (
	"fmt"
	"sort"
)

const (
	WorldSize = 20
	MaxHeight = 10
)

// BlockType distinguishes the immutable floor from placed blocks.
type BlockType string

const (
	Floor BlockType = "floor"
	Solid BlockType = "block"
)

// Palette is the set of block/player colors selectable with keys 1-8.
var Palette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F"}

type Block struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Z        int       `json:"z"`
	Color    string    `json:"color"`
	Type     BlockType `json:"type"`
	PlacedBy string    `json:"placedBy,omitempty"`
}

// Key returns the coordinate string used to index blocks.
func Key(x, y, z int) string {
	return fmt.Sprintf("%d,%d,%d", x, y, z)
}

// InBounds reports whether (x,z) lies on the world grid.
func InBounds(x, z int) bool {
	return x >= 0 && x < WorldSize && z >= 0 && z < WorldSize
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v >= WorldSize {
		return WorldSize - 1
	}
	return v
}

// Grid holds every block in a room. The y=0 floor is always present.
type Grid struct {
	blocks map[string]Block
}

// NewGrid returns a grid containing only the floor.
func NewGrid() *Grid {
	g := &Grid{blocks: make(map[string]Block)}
	g.fillFloor()
	return g
}

// Generate returns a grid with the floor and the default decorations.
func Generate() *Grid {
	g := NewGrid()
	for _, d := range decorations {
		b := d
		b.Type = Solid
		g.blocks[Key(b.X, b.Y, b.Z)] = b
	}
	return g
}

func floorColor(x, z int) string {
	if (x+z)%2 == 0 {
		return "#8B7355"
	}
	return "#A0522D"
}

func (g *Grid) fillFloor() {
	for x := 0; x < WorldSize; x++ {
		for z := 0; z < WorldSize; z++ {
			key := Key(x, 0, z)
			if b, ok := g.blocks[key]; ok && b.Type == Floor {
				continue
			}
			g.blocks[key] = Block{X: x, Y: 0, Z: z, Color: floorColor(x, z), Type: Floor}
		}
	}
}

func (g *Grid) Len() int {
	return len(g.blocks)
}

func (g *Grid) Has(x, y, z int) bool {
	_, ok := g.blocks[Key(x, y, z)]
	return ok
}

func (g *Grid) Get(x, y, z int) (Block, bool) {
	b, ok := g.blocks[Key(x, y, z)]
	return b, ok
}

// Blocks returns every block ordered by (y, x, z).
func (g *Grid) Blocks() []Block {
	out := make([]Block, 0, len(g.blocks))
	for _, b := range g.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// Replace swaps the whole block set, as when adopting a snapshot.
// Floor tiles missing from the input are restored.
func (g *Grid) Replace(blocks []Block) {
	g.blocks = make(map[string]Block, len(blocks))
	for _, b := range blocks {
		if b.Y == 0 && !InBounds(b.X, b.Z) {
			continue
		}
		if b.Y == 0 {
			b.Type = Floor
		}
		g.blocks[Key(b.X, b.Y, b.Z)] = b
	}
	g.fillFloor()
}

// Place adds a non-floor block. It is a no-op on an occupied cell, out of
// bounds, or at y outside [1, MaxHeight].
func (g *Grid) Place(b Block) bool {
	if !InBounds(b.X, b.Z) || b.Y < 1 || b.Y > MaxHeight {
		return false
	}
	key := Key(b.X, b.Y, b.Z)
	if _, ok := g.blocks[key]; ok {
		return false
	}
	b.Type = Solid
	g.blocks[key] = b
	return true
}

// Remove deletes a non-floor block. Floor and empty cells are left alone.
func (g *Grid) Remove(x, y, z int) bool {
	key := Key(x, y, z)
	b, ok := g.blocks[key]
	if !ok || b.Type == Floor {
		return false
	}
	delete(g.blocks, key)
	return true
}

// GroundLevel is the y a walker stands at in column (x,z): one above the
// highest occupied cell.
func (g *Grid) GroundLevel(x, z int) int {
	for y := MaxHeight; y >= 0; y-- {
		if g.Has(x, y, z) {
			return y + 1
		}
	}
	return 1
}

// CanMoveTo checks a step from height fromY onto column (toX,toZ). Climbing
// more than one block is refused; dropping any distance is allowed.
func (g *Grid) CanMoveTo(fromY, toX, toZ int) (int, bool) {
	if !InBounds(toX, toZ) {
		return 0, false
	}
	ground := g.GroundLevel(toX, toZ)
	if ground-fromY <= 1 {
		return ground, true
	}
	return 0, false
}

// PlacementTarget returns the cell a player at (x,z) facing dir would build
// into: the first free cell above the top of the adjacent column.
func (g *Grid) PlacementTarget(x, z int, dir Direction) (int, int, int, bool) {
	dx, dz := dir.Delta()
	tx, tz := clamp(x+dx), clamp(z+dz)
	ty := 1
	for y := MaxHeight; y >= 1; y-- {
		if g.Has(tx, y, tz) {
			ty = y + 1
			break
		}
	}
	if ty > MaxHeight || g.Has(tx, ty, tz) {
		return 0, 0, 0, false
	}
	return tx, ty, tz, true
}

// RemovalTarget returns the highest non-floor block in the column adjacent
// to (x,z) in direction dir.
func (g *Grid) RemovalTarget(x, z int, dir Direction) (Block, bool) {
	dx, dz := dir.Delta()
	tx, tz := clamp(x+dx), clamp(z+dz)
	for y := MaxHeight; y >= 1; y-- {
		if b, ok := g.Get(tx, y, tz); ok && b.Type != Floor {
			return b, true
		}
	}
	return Block{}, false
}

var decorations = []Block{
	{X: 5, Y: 1, Z: 5, Color: "#4ECDC4"}, {X: 5, Y: 2, Z: 6, Color: "#4ECDC4"},
	{X: 5, Y: 3, Z: 7, Color: "#4ECDC4"}, {X: 5, Y: 4, Z: 8, Color: "#4ECDC4"},
	{X: 14, Y: 1, Z: 14, Color: "#FF6B6B"}, {X: 14, Y: 2, Z: 14, Color: "#FF6B6B"},
	{X: 14, Y: 3, Z: 14, Color: "#FF6B6B"}, {X: 14, Y: 4, Z: 14, Color: "#FF6B6B"},
	{X: 14, Y: 5, Z: 14, Color: "#FF6B6B"},
	{X: 13, Y: 1, Z: 14, Color: "#FF8B8B"}, {X: 12, Y: 1, Z: 14, Color: "#FF8B8B"},
	{X: 13, Y: 2, Z: 14, Color: "#FF8B8B"}, {X: 13, Y: 3, Z: 14, Color: "#FF8B8B"},
	{X: 13, Y: 4, Z: 14, Color: "#FF8B8B"},
	{X: 3, Y: 1, Z: 15, Color: "#96CEB4"}, {X: 4, Y: 1, Z: 15, Color: "#96CEB4"},
	{X: 3, Y: 1, Z: 16, Color: "#96CEB4"}, {X: 4, Y: 1, Z: 16, Color: "#96CEB4"},
	{X: 5, Y: 1, Z: 15, Color: "#96CEB4"}, {X: 5, Y: 1, Z: 16, Color: "#96CEB4"},
	{X: 3, Y: 2, Z: 16, Color: "#76AE94"}, {X: 4, Y: 2, Z: 16, Color: "#76AE94"},
	{X: 8, Y: 1, Z: 3, Color: "#FFEAA7"}, {X: 10, Y: 2, Z: 3, Color: "#FFEAA7"},
	{X: 12, Y: 3, Z: 3, Color: "#FFEAA7"},
}
