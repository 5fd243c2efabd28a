package forksearch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// run is the state shared by every branch of one Coordinator.Run call.
type run[NodeType comparable] struct {
	ctx      context.Context
	id       string
	graph    Graph[NodeType]
	registry *ClaimRegistry[NodeType]
	token    *CancellationToken
	limiter  *semaphore.Weighted
	observer Observer
	metrics  *Metrics
	logger   *slog.Logger

	visited atomic.Int64
	tasks   atomic.Int64
	// failure holds the first panic recovered from a graph or observer callback.
	failure atomic.Pointer[TaskPanicError]

	// goal is written once, by the branch whose Signal call won.
	goal NodeType
}

// explore claims node (unless the parent already did), checks it against the
// goal, claims its free neighbors, keeps the first for itself and forks the
// rest. It returns after every branch it forked has returned.
func (r *run[NodeType]) explore(node NodeType, alreadyClaimed bool) error {
	if r.token.IsSet() {
		return nil
	}
	if !alreadyClaimed && !r.registry.TryClaim(node) {
		return nil
	}

	r.visited.Add(1)
	r.metrics.visited()
	r.emit(EventNodeVisit, node, nil)

	var isGoal bool
	if err := r.guard(node, func() { isGoal = r.graph.IsGoal(node) }); err != nil {
		return err
	}
	if isGoal {
		if r.token.Signal(ErrGoalFound) {
			r.goal = node
			r.emit(EventGoalFound, node, nil)
		}
		return nil
	}

	var neighbors []NodeType
	var enumErr error
	if err := r.guard(node, func() { neighbors, enumErr = r.graph.Neighbors(node) }); err != nil {
		return err
	}
	if enumErr != nil {
		r.logger.Warn("neighbor enumeration failed", "node", node, "error", enumErr)
		r.emit(EventNeighborsError, node, map[string]any{"error": enumErr.Error()})
		return nil
	}

	accepted := make([]NodeType, 0, len(neighbors))
	for _, neighbor := range neighbors {
		if r.token.IsSet() {
			return nil
		}
		if r.registry.TryClaimFrom(neighbor, node) {
			accepted = append(accepted, neighbor)
			r.emit(EventNodeClaim, neighbor, map[string]any{"parent": node})
		} else {
			r.metrics.rejected()
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	var children errgroup.Group
	var inline []NodeType
	for _, neighbor := range accepted[1:] {
		if !r.acquire() {
			inline = append(inline, neighbor)
			continue
		}
		r.fork(&children, neighbor)
	}

	var branchErr error
	if !r.token.IsSet() {
		branchErr = r.explore(accepted[0], true)
	}
	for _, neighbor := range inline {
		if branchErr != nil || r.token.IsSet() {
			break
		}
		branchErr = r.explore(neighbor, true)
	}

	if err := children.Wait(); branchErr == nil {
		branchErr = err
	}
	return branchErr
}

// fork starts a new branch for an already claimed node. The caller must hold
// a limiter slot; the branch releases it when it returns.
func (r *run[NodeType]) fork(group *errgroup.Group, node NodeType) {
	r.tasks.Add(1)
	r.metrics.taskStarted()
	r.emit(EventTaskFork, node, nil)
	group.Go(func() error {
		defer r.release()
		defer r.metrics.taskDone()
		return r.explore(node, true)
	})
}

// guard runs a graph or observer callback for node. A panic becomes a
// TaskPanicError that stops every branch; explore still joins its children
// before returning it.
func (r *run[NodeType]) guard(node any, call func()) (err error) {
	defer func() {
		if value := recover(); value != nil {
			panicErr := &TaskPanicError{Node: node, Value: value}
			r.failure.CompareAndSwap(nil, panicErr)
			r.token.Signal(panicErr)
			err = panicErr
		}
	}()
	call()
	return nil
}

func (r *run[NodeType]) acquire() bool {
	if r.limiter == nil {
		return true
	}
	return r.limiter.TryAcquire(1)
}

func (r *run[NodeType]) release() {
	if r.limiter != nil {
		r.limiter.Release(1)
	}
}

// emit delivers an event to the observer. An observer panic is recorded like
// a graph callback panic and surfaces from Run.
func (r *run[NodeType]) emit(eventType EventType, node any, data map[string]any) {
	_ = r.guard(node, func() {
		r.observer.OnEvent(r.ctx, Event{
			Type:      eventType,
			Timestamp: time.Now(),
			RunID:     r.id,
			Node:      node,
			Data:      data,
		})
	})
}
