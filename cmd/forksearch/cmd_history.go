package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdrpinto/forksearch/internal/format"
)

var historyFlags struct {
	limit  int
	format string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded search runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "Maximum runs to show (0 = all)")
	historyCmd.Flags().StringVar(&historyFlags.format, "format", "table", "Output format: table or markdown")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("run history is disabled")
	}
	defer st.Close()

	runs, err := st.ListRuns(historyFlags.limit)
	if err != nil {
		return err
	}

	tb := format.NewTable(format.ParseMode(historyFlags.format))
	tb.Header("When", "Source", "Outcome", "Visited", "Tasks", "Path", "Elapsed", "Digest")
	tb.AlignRight(4, 5, 6)
	for _, run := range runs {
		tb.Row(run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.Source, run.Outcome,
			run.VisitedNodes, run.TasksCreated, run.PathLength, run.Elapsed, shortDigest(run.Digest))
	}
	tb.Footer("", fmt.Sprintf("%d runs", len(runs)))
	fmt.Fprintln(cmd.OutOrStdout(), tb.String())
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
