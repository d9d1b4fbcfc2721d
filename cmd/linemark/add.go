package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/aretw0/linemark"
	"github.com/spf13/cobra"
)

var addLabel string

var addCmd = &cobra.Command{
	Use:   "add <file> <line>",
	Short: "Bookmark a line in a file",
	Long: `Bookmark a line (0-based) in a file. The surrounding context is captured
as a fingerprint so the bookmark can be re-anchored after edits.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		line, err := strconv.Atoi(args[1])
		if err != nil {
			fatal("Invalid line number", err)
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			fatal("Invalid path", err)
		}

		session, err := linemark.Open(resolveWorkspace(), linemark.WithLogger(slog.Default()))
		if err != nil {
			fatal("Error opening workspace", err)
		}
		defer session.Close()

		b, err := session.Service.CreateBookmark(context.Background(), path, line, addLabel)
		if err != nil {
			fatal("Error creating bookmark", err)
		}

		fmt.Printf("Bookmarked %s:%d  %q  (%s)\n", args[0], b.LineNumber, b.LineText, b.ID)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addLabel, "label", "l", "", "Optional bookmark label")
	rootCmd.AddCommand(addCmd)
}
