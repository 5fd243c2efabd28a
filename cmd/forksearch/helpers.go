package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdrpinto/forksearch"
	"github.com/pdrpinto/forksearch/grid"
	"github.com/pdrpinto/forksearch/internal/logging"
	"github.com/pdrpinto/forksearch/internal/store"
)

var searchFlags struct {
	maxTasks int
	timeout  time.Duration
	trace    bool
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&searchFlags.maxTasks, "max-tasks", 0, "Cap on concurrently running branches (0 = unbounded)")
	cmd.Flags().DurationVar(&searchFlags.timeout, "timeout", 0, "Abandon a search after this long (0 = no deadline)")
	cmd.Flags().BoolVar(&searchFlags.trace, "trace", false, "Log every search event at debug level")
}

// searchOptions builds forksearch options from the resolved config.
func searchOptions(logger *slog.Logger, metrics *forksearch.Metrics) []forksearch.Option {
	opts := []forksearch.Option{
		forksearch.WithMaxTasks(cfg.Search.MaxTasks),
		forksearch.WithTimeout(cfg.Search.Timeout),
		forksearch.WithLogger(logger),
		forksearch.WithMetrics(metrics),
	}
	if searchFlags.trace {
		opts = append(opts, forksearch.WithObserver(forksearch.NewSlogObserver(logging.New("trace"))))
	}
	return opts
}

// openStore returns nil when run recording is disabled.
func openStore() (store.Store, error) {
	if cfg.Store.Disabled {
		return nil, nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return st, nil
}

func toRun(source string, g *grid.Grid, result forksearch.Result[grid.Point]) store.Run {
	return store.Run{
		ID:           result.RunID,
		Source:       source,
		Digest:       g.Digest(),
		Outcome:      string(result.Outcome),
		VisitedNodes: result.VisitedNodes,
		ClaimedNodes: result.ClaimedNodes,
		TasksCreated: result.TasksCreated,
		PathLength:   len(result.Path),
		Elapsed:      result.Elapsed,
	}
}
