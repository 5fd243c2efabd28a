package grid

import "math/rand"

// RandomOptions controls Random. Zero fields take the defaults used by the CLI.
type RandomOptions struct {
	Seed     int64
	Clusters int
	Steps    int
	Density  float64
}

// Random builds a rows x cols grid with clustered walls laid down by random
// walks. Rows and cols below 1 are raised to 1. Start and goal are random
// open cells, distinct unless the grid has a single cell.
// The same options always produce the same grid.
func Random(rows, cols int, opts RandomOptions) *Grid {
	rows, cols = max(rows, 1), max(cols, 1)
	if opts.Clusters <= 0 {
		opts.Clusters = 8
	}
	if opts.Steps <= 0 {
		opts.Steps = 200
	}
	if opts.Density <= 0 || opts.Density > 1 {
		opts.Density = 0.25
	}
	r := rand.New(rand.NewSource(opts.Seed))

	g := New(rows, cols)
	start, goal := Point{}, Point{}
	for rows*cols > 1 {
		start = Point{r.Intn(rows), r.Intn(cols)}
		goal = Point{r.Intn(rows), r.Intn(cols)}
		if start != goal {
			break
		}
	}

	// clustered random walls via random walks
	for c := 0; c < opts.Clusters; c++ {
		p := Point{r.Intn(rows), r.Intn(cols)}
		for s := 0; s < opts.Steps; s++ {
			if r.Float64() < opts.Density && p != start && p != goal {
				g.SetWall(p, true)
			}
			d := directions[r.Intn(len(directions))]
			np := Point{p.Row + d.Row, p.Col + d.Col}
			if g.inBounds(np) {
				p = np
			}
		}
	}

	g.SetStart(start)
	g.SetGoal(goal)
	return g
}
