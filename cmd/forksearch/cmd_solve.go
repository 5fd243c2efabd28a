package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/pdrpinto/forksearch"
	"github.com/pdrpinto/forksearch/grid"
	"github.com/pdrpinto/forksearch/internal/format"
	"github.com/pdrpinto/forksearch/internal/logging"
)

var solveOutput string

var solveCmd = &cobra.Command{
	Use:   "solve <file|glob>...",
	Short: "Search each maze file and print a summary table",
	Long: "Search each maze file matching the arguments. Patterns use doublestar\n" +
		"syntax, so 'mazes/**/*.txt' walks subdirectories.",
	Args: cobra.MinimumNArgs(1),
	RunE: runSolve,
}

func init() {
	addSearchFlags(solveCmd)
	solveCmd.Flags().StringVar(&solveOutput, "format", "table", "Output format: table or markdown")
}

// expandPatterns resolves every pattern and returns the sorted, de-duplicated files.
func expandPatterns(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no maze files match %q", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	files, err := expandPatterns(args)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	logger := logging.New("solve")
	tb := format.NewTable(format.ParseMode(solveOutput))
	tb.Header("File", "Outcome", "Visited", "Claimed", "Tasks", "Path", "Elapsed")
	tb.AlignRight(3, 4, 5, 6)

	var failed []error
	for _, file := range files {
		g, err := grid.Load(file)
		if err != nil {
			failed = append(failed, err)
			tb.Row(file, "error", "-", "-", "-", "-", "-")
			continue
		}

		result, err := forksearch.Search(cmd.Context(), g, g.Start(), searchOptions(logger, nil)...)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			failed = append(failed, fmt.Errorf("%s: %w", file, err))
		}
		tb.Row(file, result.Outcome, result.VisitedNodes, result.ClaimedNodes,
			result.TasksCreated, len(result.Path), result.Elapsed.Round(time.Microsecond))

		if st != nil && result.RunID != "" {
			if err := st.SaveRun(toRun(file, g, result)); err != nil {
				logger.Warn("record run failed", "file", file, "error", err)
			}
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), tb.String())
	return errors.Join(failed...)
}
