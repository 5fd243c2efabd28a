package forksearch_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pdrpinto/forksearch"
	"github.com/pdrpinto/forksearch/grid"
)

func mustParse(t *testing.T, text string) *grid.Grid {
	t.Helper()
	g, err := grid.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return g
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// checkPath verifies path runs start..goal over open, adjacent, distinct cells.
func checkPath(t *testing.T, g *grid.Grid, path []grid.Point, start, goal grid.Point) {
	t.Helper()
	if len(path) == 0 {
		t.Fatal("empty path")
	}
	if path[0] != start || path[len(path)-1] != goal {
		t.Fatalf("path runs %v..%v, want %v..%v", path[0], path[len(path)-1], start, goal)
	}
	seen := make(map[grid.Point]bool, len(path))
	for i, p := range path {
		if !g.Contains(p) {
			t.Fatalf("path step %d at %v is not open", i, p)
		}
		if seen[p] {
			t.Fatalf("path revisits %v", p)
		}
		seen[p] = true
		if i == 0 {
			continue
		}
		prev := path[i-1]
		dr, dc := p.Row-prev.Row, p.Col-prev.Col
		if dr*dr+dc*dc != 1 {
			t.Fatalf("path step %v -> %v is not adjacent", prev, p)
		}
	}
}

// yieldingGraph wraps a graph and yields the processor inside every callback
// to shake out interleavings.
type yieldingGraph struct {
	*grid.Grid
}

func (g yieldingGraph) Neighbors(p grid.Point) ([]grid.Point, error) {
	runtime.Gosched()
	res, err := g.Grid.Neighbors(p)
	runtime.Gosched()
	return res, err
}

func (g yieldingGraph) IsGoal(p grid.Point) bool {
	runtime.Gosched()
	return g.Grid.IsGoal(p)
}

// countingObserver counts node visits and claims per node.
type countingObserver struct {
	mu     sync.Mutex
	visits map[any]int
	claims map[any]int

	goalSeen       atomic.Bool
	claimsPostGoal atomic.Int64
}

func newCountingObserver() *countingObserver {
	return &countingObserver{visits: map[any]int{}, claims: map[any]int{}}
}

func (o *countingObserver) OnEvent(_ context.Context, event forksearch.Event) {
	switch event.Type {
	case forksearch.EventGoalFound:
		o.goalSeen.Store(true)
	case forksearch.EventNodeVisit:
		o.mu.Lock()
		o.visits[event.Node]++
		o.mu.Unlock()
	case forksearch.EventNodeClaim:
		if o.goalSeen.Load() {
			o.claimsPostGoal.Add(1)
		}
		o.mu.Lock()
		o.claims[event.Node]++
		o.mu.Unlock()
	}
}

func TestSearch_OpenGridFindsGoal(t *testing.T) {
	g := grid.New(3, 3)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	g.SetGoal(grid.Point{Row: 2, Col: 2})

	result, err := forksearch.Search(context.Background(), g, g.Start(), forksearch.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Found || result.Outcome != forksearch.OutcomeFound {
		t.Fatalf("Outcome = %q, Found = %v, want found", result.Outcome, result.Found)
	}
	if result.ClaimedNodes > 9 {
		t.Errorf("ClaimedNodes = %d, want <= 9", result.ClaimedNodes)
	}
	if result.Goal != (grid.Point{Row: 2, Col: 2}) {
		t.Errorf("Goal = %v, want (2,2)", result.Goal)
	}
	checkPath(t, g, result.Path, g.Start(), result.Goal)
	if result.RunID == "" {
		t.Error("expected a run ID")
	}
}

func TestSearch_WalledOffGoalExhausts(t *testing.T) {
	g := mustParse(t, ""+
		"S.#..\n"+
		"..#.E\n"+
		"..#..\n")

	result, err := forksearch.Search(context.Background(), g, g.Start(), forksearch.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Found || result.Outcome != forksearch.OutcomeExhausted {
		t.Fatalf("Outcome = %q, want exhausted", result.Outcome)
	}
	if result.ClaimedNodes != 6 {
		t.Errorf("ClaimedNodes = %d, want 6 (reachable component)", result.ClaimedNodes)
	}
	if result.VisitedNodes != 6 {
		t.Errorf("VisitedNodes = %d, want 6", result.VisitedNodes)
	}
	if result.Path != nil {
		t.Errorf("Path = %v, want nil", result.Path)
	}
}

func TestSearch_LineGraphUsesOneTask(t *testing.T) {
	const n = 25
	tests := []struct {
		name    string
		goal    bool
		outcome forksearch.Outcome
	}{
		{"with goal at far end", true, forksearch.OutcomeFound},
		{"without goal", false, forksearch.OutcomeExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := grid.New(1, n)
			g.SetStart(grid.Point{Row: 0, Col: 0})
			if tt.goal {
				g.SetGoal(grid.Point{Row: 0, Col: n - 1})
			}
			result, err := forksearch.Search(context.Background(), g, g.Start(), forksearch.WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if result.Outcome != tt.outcome {
				t.Errorf("Outcome = %q, want %q", result.Outcome, tt.outcome)
			}
			if result.TasksCreated != 1 {
				t.Errorf("TasksCreated = %d, want 1", result.TasksCreated)
			}
			if result.VisitedNodes != n {
				t.Errorf("VisitedNodes = %d, want %d", result.VisitedNodes, n)
			}
			if tt.goal {
				want := make([]grid.Point, n)
				for i := range want {
					want[i] = grid.Point{Row: 0, Col: i}
				}
				if diff := cmp.Diff(want, result.Path); diff != "" {
					t.Errorf("Path mismatch:\n%s", diff)
				}
			}
		})
	}
}

func TestSearch_ForksAtIntersections(t *testing.T) {
	g := grid.New(1, 5)
	g.SetStart(grid.Point{Row: 0, Col: 2})

	result, err := forksearch.Search(context.Background(), g, g.Start(), forksearch.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// East is claimed and kept by the root; west is forked once.
	if result.TasksCreated != 2 {
		t.Errorf("TasksCreated = %d, want 2", result.TasksCreated)
	}
	if result.VisitedNodes != 5 {
		t.Errorf("VisitedNodes = %d, want 5", result.VisitedNodes)
	}
}

func TestSearch_InvalidStart(t *testing.T) {
	g := mustParse(t, "S.#\n...\n")
	for _, start := range []grid.Point{{Row: 0, Col: 2}, {Row: -1, Col: 0}, {Row: 5, Col: 5}} {
		t.Run(start.String(), func(t *testing.T) {
			var forks atomic.Int64
			observer := forksearch.ObserverFunc(func(_ context.Context, event forksearch.Event) {
				if event.Type == forksearch.EventTaskFork {
					forks.Add(1)
				}
			})
			_, err := forksearch.Search(context.Background(), g, start,
				forksearch.WithObserver(observer), forksearch.WithLogger(quietLogger()))
			if !errors.Is(err, forksearch.ErrInvalidStart) {
				t.Fatalf("err = %v, want ErrInvalidStart", err)
			}
			if forks.Load() != 0 {
				t.Errorf("%d tasks launched for an invalid start", forks.Load())
			}
		})
	}
}

func TestSearch_ExactlyOnceVisitUnderContention(t *testing.T) {
	g := grid.New(12, 12)
	g.SetStart(grid.Point{Row: 6, Col: 6})
	graph := yieldingGraph{g}

	for i := 0; i < 50; i++ {
		observer := newCountingObserver()
		result, err := forksearch.Search(context.Background(), graph, g.Start(),
			forksearch.WithObserver(observer), forksearch.WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("iteration %d: Search: %v", i, err)
		}
		if result.Outcome != forksearch.OutcomeExhausted {
			t.Fatalf("iteration %d: Outcome = %q", i, result.Outcome)
		}
		if result.VisitedNodes != 144 || len(observer.visits) != 144 {
			t.Fatalf("iteration %d: visited %d nodes (%d distinct), want 144", i, result.VisitedNodes, len(observer.visits))
		}
		for node, count := range observer.visits {
			if count != 1 {
				t.Fatalf("iteration %d: node %v visited %d times", i, node, count)
			}
		}
		for node, count := range observer.claims {
			if count != 1 {
				t.Fatalf("iteration %d: node %v claimed %d times", i, node, count)
			}
		}
	}
}

func TestSearch_ExactlyOnceWithGoal(t *testing.T) {
	g := grid.Random(30, 30, grid.RandomOptions{Seed: 7})
	graph := yieldingGraph{g}

	for i := 0; i < 20; i++ {
		observer := newCountingObserver()
		result, err := forksearch.Search(context.Background(), graph, g.Start(),
			forksearch.WithObserver(observer), forksearch.WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("iteration %d: Search: %v", i, err)
		}
		for node, count := range observer.visits {
			if count != 1 {
				t.Fatalf("iteration %d: node %v visited %d times", i, node, count)
			}
		}
		if result.Found {
			checkPath(t, g, result.Path, g.Start(), result.Goal)
		}
	}
}

func TestSearch_ClaimsAfterGoalAreBounded(t *testing.T) {
	g := grid.New(60, 60)
	g.SetStart(grid.Point{Row: 30, Col: 30})
	g.SetGoal(grid.Point{Row: 31, Col: 33})

	for i := 0; i < 10; i++ {
		observer := newCountingObserver()
		result, err := forksearch.Search(context.Background(), yieldingGraph{g}, g.Start(),
			forksearch.WithObserver(observer), forksearch.WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if !result.Found {
			t.Fatalf("Outcome = %q, want found", result.Outcome)
		}
		if post := observer.claimsPostGoal.Load(); post > int64(result.TasksCreated) {
			t.Errorf("%d claims after goal with %d tasks, want at most one per task", post, result.TasksCreated)
		}
	}
}

// concurrencyGraph records the highest number of goroutines inside Neighbors at once.
type concurrencyGraph struct {
	*grid.Grid
	inflight atomic.Int64
	peak     atomic.Int64
}

func (g *concurrencyGraph) Neighbors(p grid.Point) ([]grid.Point, error) {
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(50 * time.Microsecond)
	return g.Grid.Neighbors(p)
}

func TestSearch_MaxTasks(t *testing.T) {
	tests := []struct {
		name     string
		maxTasks int
	}{
		{"single task", 1},
		{"three tasks", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := grid.New(15, 15)
			g.SetStart(grid.Point{Row: 7, Col: 7})
			graph := &concurrencyGraph{Grid: g}

			result, err := forksearch.Search(context.Background(), graph, g.Start(),
				forksearch.WithMaxTasks(tt.maxTasks), forksearch.WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if result.VisitedNodes != 225 {
				t.Errorf("VisitedNodes = %d, want 225", result.VisitedNodes)
			}
			if peak := graph.peak.Load(); peak > int64(tt.maxTasks) {
				t.Errorf("peak concurrency = %d, want <= %d", peak, tt.maxTasks)
			}
			if tt.maxTasks == 1 && result.TasksCreated != 1 {
				t.Errorf("TasksCreated = %d, want 1", result.TasksCreated)
			}
		})
	}
}

func TestSearch_MaxTasksStillFindsGoal(t *testing.T) {
	g := grid.New(10, 10)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	g.SetGoal(grid.Point{Row: 9, Col: 9})

	result, err := forksearch.Search(context.Background(), g, g.Start(),
		forksearch.WithMaxTasks(2), forksearch.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Found {
		t.Fatalf("Outcome = %q, want found", result.Outcome)
	}
	checkPath(t, g, result.Path, g.Start(), result.Goal)
}

// failingGraph fails neighbor enumeration at one node and may panic at another.
type failingGraph struct {
	*grid.Grid
	failAt  grid.Point
	panicAt *grid.Point
}

func (g failingGraph) Neighbors(p grid.Point) ([]grid.Point, error) {
	if g.panicAt != nil && p == *g.panicAt {
		panic("corrupt cell")
	}
	if p == g.failAt {
		return nil, fmt.Errorf("cell %v unreadable", p)
	}
	return g.Grid.Neighbors(p)
}

func TestSearch_NeighborErrorAbortsOnlyThatNode(t *testing.T) {
	g := grid.New(1, 6)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	g.SetGoal(grid.Point{Row: 0, Col: 5})
	graph := failingGraph{Grid: g, failAt: grid.Point{Row: 0, Col: 2}}

	var errorEvents atomic.Int64
	observer := forksearch.ObserverFunc(func(_ context.Context, event forksearch.Event) {
		if event.Type == forksearch.EventNeighborsError {
			errorEvents.Add(1)
		}
	})
	result, err := forksearch.Search(context.Background(), graph, g.Start(),
		forksearch.WithObserver(observer), forksearch.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Outcome != forksearch.OutcomeExhausted {
		t.Errorf("Outcome = %q, want exhausted", result.Outcome)
	}
	if result.VisitedNodes != 3 {
		t.Errorf("VisitedNodes = %d, want 3", result.VisitedNodes)
	}
	if errorEvents.Load() != 1 {
		t.Errorf("neighbors.error events = %d, want 1", errorEvents.Load())
	}
}

func TestSearch_PanicIsFatal(t *testing.T) {
	g := grid.New(8, 8)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	panicAt := grid.Point{Row: 4, Col: 4}
	graph := failingGraph{Grid: g, failAt: grid.Point{Row: -1, Col: -1}, panicAt: &panicAt}

	result, err := forksearch.Search(context.Background(), graph, g.Start(), forksearch.WithLogger(quietLogger()))
	var panicErr *forksearch.TaskPanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("err = %v, want *TaskPanicError", err)
	}
	if panicErr.Node != panicAt {
		t.Errorf("panic node = %v, want %v", panicErr.Node, panicAt)
	}
	if result.Outcome != forksearch.OutcomeCancelled {
		t.Errorf("Outcome = %q, want cancelled", result.Outcome)
	}
}

func TestSearch_ObserverPanicIsFatal(t *testing.T) {
	// The root keeps east, so (0,0) is only visited by the forked west branch.
	forkedVisit := func(event forksearch.Event) bool {
		return event.Type == forksearch.EventNodeVisit && event.Node == grid.Point{Row: 0, Col: 0}
	}
	completion := func(event forksearch.Event) bool {
		return event.Type == forksearch.EventSearchComplete
	}
	tests := []struct {
		name      string
		panicWhen func(forksearch.Event) bool
	}{
		{"inside forked branch", forkedVisit},
		{"on completion", completion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := grid.New(1, 5)
			g.SetStart(grid.Point{Row: 0, Col: 2})
			observer := forksearch.ObserverFunc(func(_ context.Context, event forksearch.Event) {
				if tt.panicWhen(event) {
					panic("observer failed")
				}
			})

			_, err := forksearch.Search(context.Background(), g, g.Start(),
				forksearch.WithLogger(quietLogger()),
				forksearch.WithObserver(observer),
			)
			var panicErr *forksearch.TaskPanicError
			if !errors.As(err, &panicErr) {
				t.Fatalf("err = %v, want *TaskPanicError", err)
			}
			if panicErr.Value != "observer failed" {
				t.Errorf("panic value = %v, want %q", panicErr.Value, "observer failed")
			}
		})
	}
}

// slowGraph sleeps inside every enumeration.
type slowGraph struct {
	*grid.Grid
	delay time.Duration
}

func (g slowGraph) Neighbors(p grid.Point) ([]grid.Point, error) {
	time.Sleep(g.delay)
	return g.Grid.Neighbors(p)
}

func TestSearch_Timeout(t *testing.T) {
	g := grid.New(40, 40)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	graph := slowGraph{Grid: g, delay: 2 * time.Millisecond}

	result, err := forksearch.Search(context.Background(), graph, g.Start(),
		forksearch.WithTimeout(20*time.Millisecond), forksearch.WithLogger(quietLogger()))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if result.Found || result.Outcome != forksearch.OutcomeCancelled {
		t.Errorf("Outcome = %q, want cancelled", result.Outcome)
	}
	if result.VisitedNodes >= 1600 {
		t.Errorf("VisitedNodes = %d, search should have stopped early", result.VisitedNodes)
	}
}

func TestSearch_CancelledContext(t *testing.T) {
	g := grid.New(5, 5)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	g.SetGoal(grid.Point{Row: 4, Col: 4})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := forksearch.Search(ctx, g, g.Start(), forksearch.WithLogger(quietLogger()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result.Outcome != forksearch.OutcomeCancelled {
		t.Errorf("Outcome = %q, want cancelled", result.Outcome)
	}
	if result.VisitedNodes != 0 {
		t.Errorf("VisitedNodes = %d, want 0", result.VisitedNodes)
	}
}

func TestCoordinator_ConcurrentRunsAreIndependent(t *testing.T) {
	g := grid.New(20, 20)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	g.SetGoal(grid.Point{Row: 19, Col: 19})
	coordinator := forksearch.NewCoordinator[grid.Point](g, forksearch.WithLogger(quietLogger()))

	const runs = 8
	results := make([]forksearch.Result[grid.Point], runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coordinator.Run(context.Background(), g.Start())
		}(i)
	}
	wg.Wait()

	ids := map[string]bool{}
	for i, result := range results {
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if !result.Found {
			t.Errorf("run %d: Outcome = %q, want found", i, result.Outcome)
		}
		ids[result.RunID] = true
	}
	if len(ids) != runs {
		t.Errorf("got %d distinct run IDs, want %d", len(ids), runs)
	}
}

func TestSlogObserver_LogsEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	g := grid.New(2, 2)
	g.SetStart(grid.Point{Row: 0, Col: 0})
	g.SetGoal(grid.Point{Row: 1, Col: 1})
	_, err := forksearch.Search(context.Background(), g, g.Start(),
		forksearch.WithObserver(forksearch.NewSlogObserver(logger)), forksearch.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"type=search.start", "type=goal.found", "type=search.complete", "type=node.visit"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}
