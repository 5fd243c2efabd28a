package forksearch

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives events emitted while a search runs.
// OnEvent is called concurrently from every branch and must not block for long.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// EventType categorizes search events.
type EventType string

const (
	EventSearchStart    EventType = "search.start"
	EventSearchComplete EventType = "search.complete"
	EventNodeClaim      EventType = "node.claim"
	EventNodeVisit      EventType = "node.visit"
	EventTaskFork       EventType = "task.fork"
	EventGoalFound      EventType = "goal.found"
	EventNeighborsError EventType = "neighbors.error"
)

// Event describes one occurrence during a run. Node is the node concerned,
// if any; Data carries event-specific metadata.
type Event struct {
	Type      EventType
	Timestamp time.Time
	RunID     string
	Node      any
	Data      map[string]any
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) OnEvent(context.Context, Event) {}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) { f(ctx, event) }

// SlogObserver logs every event at debug level, except search boundaries and
// enumeration failures which go out at info and warn.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver wraps logger. Pass slog.Default() for the process logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	level := slog.LevelDebug
	switch event.Type {
	case EventSearchStart, EventSearchComplete, EventGoalFound:
		level = slog.LevelInfo
	case EventNeighborsError:
		level = slog.LevelWarn
	}
	o.logger.Log(ctx, level, "Event",
		"type", event.Type,
		"run_id", event.RunID,
		"node", event.Node,
		"data", event.Data,
	)
}
