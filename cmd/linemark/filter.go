package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/linemark"
	"github.com/aretw0/linemark/pkg/search"
	"github.com/spf13/cobra"
)

var filterStats bool

var filterCmd = &cobra.Command{
	Use:   "filter <file> <step>...",
	Short: "Run a filter chain over a file and mirror bookmarks into the view",
	Long: `Apply an ordered chain of filter steps to a file and print the resulting
view. Steps look like "contains:ERROR", "regex:^WARN" or "!contains:debug"
(leading '!' inverts). Bookmarks of the source whose lines survive the
chain get mirrors in the view, shown with a '*' marker.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		path, err := filepath.Abs(args[0])
		if err != nil {
			fatal("Invalid path", err)
		}

		var steps []search.Step
		for _, expr := range args[1:] {
			step, err := search.ParseStep(expr)
			if err != nil {
				fatal("Invalid filter step", err)
			}
			steps = append(steps, step)
		}

		session, err := linemark.Open(resolveWorkspace(), linemark.WithLogger(slog.Default()))
		if err != nil {
			fatal("Error opening workspace", err)
		}
		defer session.Close()

		ctx := context.Background()
		session.Runner.Define("cli", steps)
		viewID, result, err := session.Runner.Materialize(ctx, session.Views, path, "cli")
		if err != nil {
			fatal("Error running filter chain", err)
		}

		if err := session.Service.AttachView(ctx, path, viewID); err != nil {
			slog.Default().Warn("some mirrors were not created", "error", err)
		}

		// Mark lines carrying a mirror.
		marked := make(map[int]bool)
		for _, b := range session.Service.FindBookmarks(linemark.Criteria{DocumentID: viewID}) {
			marked[b.LineNumber] = true
		}

		for i, line := range result.Lines {
			marker := " "
			if marked[i] {
				marker = "*"
			}
			fmt.Printf("%s %5d  %s\n", marker, result.SourceLines[i], line)
		}

		if filterStats {
			fmt.Println()
			for _, stat := range result.Stats {
				fmt.Printf("%-30s %d -> %d\n", stat.Step.String(), stat.Input, stat.Matched)
			}
		}
	},
}

func init() {
	filterCmd.Flags().BoolVar(&filterStats, "stats", false, "Print per-step match statistics")
	rootCmd.AddCommand(filterCmd)
}
