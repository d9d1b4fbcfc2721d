package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/linemark"
	"github.com/aretw0/linemark/pkg/core"
	"github.com/spf13/cobra"
)

var watchPattern string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and re-anchor bookmarks as files change",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		session, err := linemark.Open(resolveWorkspace(), linemark.WithLogger(slog.Default()))
		if err != nil {
			fatal("Error opening workspace", err)
		}
		defer session.Close()

		fsEvents := make(chan core.Event, 100)
		watcher, err := session.NewWatcher(fsEvents, watchPattern)
		if err != nil {
			fatal("Error creating watcher", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := watcher.Start(ctx); err != nil {
			fatal("Error starting watcher", err)
		}
		defer watcher.Stop(context.Background())

		updates := session.Service.Subscribe()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		fmt.Println("Watching for changes (Ctrl-C to stop)...")
		for {
			select {
			case e := <-fsEvents:
				switch e.Type {
				case core.EventDelete:
					if n := session.Service.PurgeSource(e.ID); n > 0 {
						fmt.Printf("Purged %d bookmark(s) of deleted %s\n", n, e.ID)
					}
				default:
					session.Service.OnDocumentChanged(e.ID, nil)
					session.Service.MarkSaved(e.ID)
				}
			case e, ok := <-updates:
				if !ok {
					return
				}
				if e.Type == core.EventRefresh {
					fmt.Println("Bookmarks re-anchored")
				}
			case <-sigs:
				fmt.Println("Stopping...")
				return
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchPattern, "pattern", "p", "", "Glob pattern of files to watch (default **/*)")
	rootCmd.AddCommand(watchCmd)
}
