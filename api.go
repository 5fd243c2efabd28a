package forksearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pdrpinto/forksearch/internal/logging"
)

// Graph is generic over node type N.
// N must be comparable so it can be used in maps.
type Graph[NodeType comparable] interface {
	// Neighbors returns the nodes adjacent to node in a fixed order.
	// An error aborts the exploration of node only.
	Neighbors(node NodeType) ([]NodeType, error)
	// IsGoal reports whether node ends the search.
	IsGoal(node NodeType) bool
	// Contains reports whether node belongs to the graph.
	Contains(node NodeType) bool
}

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeCancelled Outcome = "cancelled"
)

// Result contains the outcome of a search
type Result[NodeType comparable] struct {
	RunID        string
	Outcome      Outcome
	Found        bool
	Goal         NodeType
	Path         []NodeType
	VisitedNodes int
	ClaimedNodes int
	TasksCreated int
	Elapsed      time.Duration
}

// Options defines parameters for the search.
type Options struct {
	// MaxTasks caps the number of branch goroutines alive at once, root included.
	// Zero means unbounded.
	MaxTasks int
	// Timeout stops the search after the given duration. Zero means no deadline.
	Timeout  time.Duration
	Observer Observer
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithMaxTasks caps concurrently running branches. Branches that find no free
// slot are explored inline by their parent once its own branch is done.
func WithMaxTasks(maxTasks int) Option {
	return func(options *Options) { options.MaxTasks = maxTasks }
}

// WithTimeout bounds the run. Expiry cancels the search without reporting a goal.
func WithTimeout(timeout time.Duration) Option {
	return func(options *Options) { options.Timeout = timeout }
}

// WithObserver sends search events to observer.
func WithObserver(observer Observer) Option {
	return func(options *Options) { options.Observer = observer }
}

// WithLogger replaces the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(options *Options) { options.Logger = logger }
}

// WithMetrics records run statistics into metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(options *Options) { options.Metrics = metrics }
}

// Coordinator runs searches over one graph. It holds no per-run state, so
// Run may be called repeatedly and concurrently.
type Coordinator[NodeType comparable] struct {
	graph   Graph[NodeType]
	options Options
}

// NewCoordinator applies options over the defaults and returns a Coordinator for graph.
func NewCoordinator[NodeType comparable](graph Graph[NodeType], options ...Option) *Coordinator[NodeType] {
	// --- Apply options ---
	searchOptions := Options{
		Observer: NoopObserver{},
	}
	for _, option := range options {
		option(&searchOptions)
	}
	if searchOptions.Observer == nil {
		searchOptions.Observer = NoopObserver{}
	}
	if searchOptions.Logger == nil {
		searchOptions.Logger = logging.New("forksearch")
	}
	return &Coordinator[NodeType]{graph: graph, options: searchOptions}
}

// Search executes one concurrent branch-and-explore run from startNode.
func Search[NodeType comparable](
	contextObject context.Context,
	graph Graph[NodeType],
	startNode NodeType,
	options ...Option,
) (Result[NodeType], error) {
	return NewCoordinator(graph, options...).Run(contextObject, startNode)
}

// Run explores the graph from startNode and returns once every branch it
// spawned has joined. Reaching no goal is not an error. If ctx ends or the
// timeout fires first, Run returns the partial Result and the context error.
func (coordinator *Coordinator[NodeType]) Run(contextObject context.Context, startNode NodeType) (Result[NodeType], error) {
	if !coordinator.graph.Contains(startNode) {
		return Result[NodeType]{}, fmt.Errorf("%w: %v", ErrInvalidStart, startNode)
	}

	if coordinator.options.Timeout > 0 {
		var cancel context.CancelFunc
		contextObject, cancel = context.WithTimeout(contextObject, coordinator.options.Timeout)
		defer cancel()
	}

	// --- Initialize state ---
	searchRun := &run[NodeType]{
		ctx:      contextObject,
		id:       uuid.NewString(),
		graph:    coordinator.graph,
		registry: NewClaimRegistry[NodeType](),
		token:    NewCancellationToken(),
		observer: coordinator.options.Observer,
		metrics:  coordinator.options.Metrics,
	}
	if coordinator.options.MaxTasks > 0 {
		searchRun.limiter = semaphore.NewWeighted(int64(coordinator.options.MaxTasks))
	}
	logger := coordinator.options.Logger.With("run_id", searchRun.id)
	searchRun.logger = logger

	if contextObject.Err() != nil {
		searchRun.token.Signal(context.Cause(contextObject))
	}
	stopWatching := context.AfterFunc(contextObject, func() {
		searchRun.token.Signal(context.Cause(contextObject))
	})

	startedAt := time.Now()
	logger.Debug("search started", "start", startNode, "max_tasks", coordinator.options.MaxTasks)
	searchRun.emit(EventSearchStart, startNode, nil)

	searchRun.registry.TryClaim(startNode)
	searchRun.acquire()
	var root errgroup.Group
	searchRun.fork(&root, startNode)
	taskErr := root.Wait()
	stopWatching()
	// Freeze the cause: a deadline that fires from here on no longer counts.
	searchRun.token.Signal(errExhausted)

	result := Result[NodeType]{
		RunID:        searchRun.id,
		VisitedNodes: int(searchRun.visited.Load()),
		ClaimedNodes: searchRun.registry.Len(),
		TasksCreated: int(searchRun.tasks.Load()),
		Elapsed:      time.Since(startedAt),
	}
	cause := searchRun.token.Cause()
	switch {
	case errors.Is(cause, ErrGoalFound):
		result.Outcome = OutcomeFound
		result.Found = true
		result.Goal = searchRun.goal
		result.Path = searchRun.registry.PathTo(searchRun.goal, startNode)
	case cause == errExhausted:
		result.Outcome = OutcomeExhausted
	default:
		result.Outcome = OutcomeCancelled
	}

	coordinator.options.Metrics.searchDone(result.Outcome, result.Elapsed)
	searchRun.emit(EventSearchComplete, nil, map[string]any{
		"outcome":       result.Outcome,
		"visited_nodes": result.VisitedNodes,
		"tasks_created": result.TasksCreated,
		"elapsed_ms":    result.Elapsed.Milliseconds(),
	})
	logger.Info("search finished",
		"outcome", result.Outcome,
		"visited", result.VisitedNodes,
		"claimed", result.ClaimedNodes,
		"tasks", result.TasksCreated,
		"elapsed", result.Elapsed,
	)

	if taskErr == nil {
		if failure := searchRun.failure.Load(); failure != nil {
			taskErr = failure
		}
	}
	if taskErr != nil {
		return result, taskErr
	}
	if result.Outcome == OutcomeCancelled {
		return result, cause
	}
	return result, nil
}
