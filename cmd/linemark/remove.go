package main

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/linemark"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a bookmark (and its linked mirror, if any)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		session, err := linemark.Open(resolveWorkspace(), linemark.WithLogger(slog.Default()))
		if err != nil {
			fatal("Error opening workspace", err)
		}
		defer session.Close()

		if _, ok := session.Service.Store().Get(args[0]); !ok {
			fmt.Printf("No bookmark %s\n", args[0])
			return
		}

		session.Service.RemoveBookmark(args[0])
		fmt.Printf("Removed %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
