// Package grid implements rectangular mazes that satisfy forksearch.Graph.
//
// The text format has one row per line:
//
//	#  wall
//	.  open cell (a space is also open)
//	S  start cell, exactly one
//	E  goal cell, at most one
//
// Rows shorter than the longest row are padded with walls.
package grid

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"lukechampine.com/blake3"
)

var (
	ErrNoStart       = errors.New("grid has no start cell")
	ErrMultipleStart = errors.New("grid has more than one start cell")
	ErrMultipleGoal  = errors.New("grid has more than one goal cell")
	ErrEmpty         = errors.New("grid is empty")
	ErrOutOfBounds   = errors.New("point outside grid")
)

// Point is a (row, column) cell position.
type Point struct {
	Row int
	Col int
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

// directions is the neighbor order: north, east, south, west.
var directions = [4]Point{{-1, 0}, {0, 1}, {1, 0}, {0, -1}}

// Grid is an immutable-after-construction maze. Concurrent reads are safe.
type Grid struct {
	rows, cols int
	walls      []bool
	start      Point
	goal       Point
	hasGoal    bool
}

// New returns a rows x cols grid with every cell open, start at (0,0) and no goal.
func New(rows, cols int) *Grid {
	return &Grid{rows: rows, cols: cols, walls: make([]bool, rows*cols)}
}

// Parse reads a maze in the text format.
func Parse(r io.Reader) (*Grid, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, ErrEmpty
	}

	cols := 0
	for _, line := range lines {
		cols = max(cols, len(line))
	}
	g := New(len(lines), cols)
	for i := range g.walls {
		g.walls[i] = true
	}

	starts, goals := 0, 0
	for row, line := range lines {
		for col, ch := range []byte(line) {
			p := Point{row, col}
			switch ch {
			case '#':
				continue
			case '.', ' ':
			case 'S':
				g.start = p
				starts++
			case 'E':
				g.goal = p
				g.hasGoal = true
				goals++
			default:
				return nil, fmt.Errorf("unexpected character %q at %v", ch, p)
			}
			g.walls[g.index(p)] = false
		}
	}
	switch {
	case starts == 0:
		return nil, ErrNoStart
	case starts > 1:
		return nil, ErrMultipleStart
	case goals > 1:
		return nil, ErrMultipleGoal
	}
	return g, nil
}

// Load parses the maze file at path.
func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid: %w", err)
	}
	defer f.Close()
	g, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func (g *Grid) index(p Point) int { return p.Row*g.cols + p.Col }

func (g *Grid) inBounds(p Point) bool {
	return p.Row >= 0 && p.Row < g.rows && p.Col >= 0 && p.Col < g.cols
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// Start returns the start cell.
func (g *Grid) Start() Point { return g.start }

// Goal returns the goal cell and whether the grid has one.
func (g *Grid) Goal() (Point, bool) { return g.goal, g.hasGoal }

// SetWall marks p as wall (true) or open (false). Out of bounds points are ignored.
func (g *Grid) SetWall(p Point, wall bool) {
	if g.inBounds(p) {
		g.walls[g.index(p)] = wall
	}
}

// SetStart opens p and makes it the start cell.
func (g *Grid) SetStart(p Point) {
	g.SetWall(p, false)
	g.start = p
}

// SetGoal opens p and makes it the goal cell.
func (g *Grid) SetGoal(p Point) {
	g.SetWall(p, false)
	g.goal = p
	g.hasGoal = true
}

// Contains reports whether p is an open cell of the grid.
func (g *Grid) Contains(p Point) bool {
	return g.inBounds(p) && !g.walls[g.index(p)]
}

// IsGoal reports whether p is the goal cell.
func (g *Grid) IsGoal(p Point) bool {
	return g.hasGoal && p == g.goal
}

// Neighbors returns the open cells adjacent to p, in north, east, south, west order.
func (g *Grid) Neighbors(p Point) ([]Point, error) {
	if !g.inBounds(p) {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	res := make([]Point, 0, len(directions))
	for _, d := range directions {
		np := Point{p.Row + d.Row, p.Col + d.Col}
		if g.Contains(np) {
			res = append(res, np)
		}
	}
	return res, nil
}

// OpenCells returns the number of non-wall cells.
func (g *Grid) OpenCells() int {
	n := 0
	for _, wall := range g.walls {
		if !wall {
			n++
		}
	}
	return n
}

// String renders the grid in the text format accepted by Parse.
func (g *Grid) String() string {
	var b strings.Builder
	b.Grow((g.cols + 1) * g.rows)
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			p := Point{row, col}
			switch {
			case p == g.start:
				b.WriteByte('S')
			case g.IsGoal(p):
				b.WriteByte('E')
			case g.walls[g.index(p)]:
				b.WriteByte('#')
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Digest returns the hex BLAKE3 hash of the rendered grid. Equal mazes have equal digests.
func (g *Grid) Digest() string {
	sum := blake3.Sum256([]byte(g.String()))
	return hex.EncodeToString(sum[:])
}
