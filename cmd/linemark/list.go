package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/aretw0/linemark"
	"github.com/aretw0/linemark/pkg/core"
	"github.com/spf13/cobra"
)

var (
	listJSON    bool
	listSource  string
	listMirrors bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all bookmarks in the workspace",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		session, err := linemark.Open(resolveWorkspace(), linemark.WithLogger(slog.Default()))
		if err != nil {
			fatal("Error opening workspace", err)
		}
		defer session.Close()

		bookmarks := session.Service.FindBookmarks(core.Criteria{SourceURI: listSource})

		var filtered []core.Bookmark
		for _, b := range bookmarks {
			if !listMirrors && !b.IsSource() {
				continue
			}
			filtered = append(filtered, b)
		}
		sort.Slice(filtered, func(i, j int) bool {
			if filtered[i].SourceURI != filtered[j].SourceURI {
				return filtered[i].SourceURI < filtered[j].SourceURI
			}
			return filtered[i].LineNumber < filtered[j].LineNumber
		})

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(filtered); err != nil {
				fatal("Error encoding bookmarks", err)
			}
			return
		}

		for _, b := range filtered {
			label := b.Label
			if label != "" {
				label = "  [" + label + "]"
			}
			fmt.Printf("%s  %s:%d  %q%s\n", b.ID, b.SourceURI, b.LineNumber, b.LineText, label)
		}
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().StringVar(&listSource, "source", "", "Only bookmarks of this source file")
	listCmd.Flags().BoolVar(&listMirrors, "mirrors", false, "Include mirrors in derived views")
	rootCmd.AddCommand(listCmd)
}
