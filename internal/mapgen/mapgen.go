// Package mapgen produces the battle map as a pure function of the room's
// seed. Every client in a match generates its own copy, so identical inputs
// must always yield identical output.
package mapgen

import "math/rand"

type Tile int

const (
	TileEmpty Tile = iota
	TileWall
	TileDestructible
)

const (
	Width  = 64
	Height = 48
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Map struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Tiles   [][]Tile `json:"tiles"` // Tiles[y][x]
	Bases   [2]Point `json:"bases"` // index 0 = team 1
	Flags   [2]Point `json:"flags"`
	Turrets []Point  `json:"turrets"`
}

// Generate builds the round's map. The round number perturbs the seed so a
// rematch on the same room gets fresh terrain.
func Generate(seed int64, round int) *Map {
	rng := rand.New(rand.NewSource(seed + int64(round)*7919))

	m := &Map{Width: Width, Height: Height}
	m.Tiles = make([][]Tile, Height)
	for y := range m.Tiles {
		m.Tiles[y] = make([]Tile, Width)
	}

	// Border walls.
	for x := 0; x < Width; x++ {
		m.Tiles[0][x] = TileWall
		m.Tiles[Height-1][x] = TileWall
	}
	for y := 0; y < Height; y++ {
		m.Tiles[y][0] = TileWall
		m.Tiles[y][Width-1] = TileWall
	}

	// Scatter cover on the left half, mirrored to the right so neither
	// team gets an easier approach.
	for i := 0; i < 180; i++ {
		x := 1 + rng.Intn(Width/2-1)
		y := 1 + rng.Intn(Height-2)
		tile := TileDestructible
		if rng.Intn(4) == 0 {
			tile = TileWall
		}
		m.Tiles[y][x] = tile
		m.Tiles[y][Width-1-x] = tile
	}

	// Bases sit mid-height at opposite ends; flags spawn at the bases.
	m.Bases[0] = Point{X: 4, Y: Height / 2}
	m.Bases[1] = Point{X: Width - 5, Y: Height / 2}
	m.Flags = m.Bases

	// Keep base plots clear.
	for _, b := range m.Bases {
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				m.Tiles[b.Y+dy][b.X+dx] = TileEmpty
			}
		}
	}

	// Neutral turrets along the midline, mirrored top/bottom.
	n := 2 + rng.Intn(3)
	for i := 0; i < n; i++ {
		y := 4 + rng.Intn(Height/2-4)
		m.Turrets = append(m.Turrets, Point{X: Width / 2, Y: y}, Point{X: Width / 2, Y: Height - 1 - y})
	}

	return m
}
