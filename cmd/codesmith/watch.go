package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"codesmith/internal/orchestrator"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Re-run the analyzer suite whenever the file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second,
		"quiet period after a change before re-analyzing")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}

	client, tracker, err := buildClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	defer func() { _ = tracker.Save() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	// One controller for the whole watch session: a tripped quota stays
	// tripped across file changes.
	offline := orchestrator.NewOfflineController()

	// Initial pass, then once per quiet period after writes.
	out, err := reviewFile(cmd.Context(), client, offline, path)
	if err != nil {
		return err
	}
	if err := renderReport(path, out); err != nil {
		return err
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Editors emit bursts of writes; collapse them.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			fmt.Fprintf(os.Stderr, "change detected, re-analyzing %s\n", path)
			out, err := reviewFile(cmd.Context(), client, offline, path)
			if err != nil {
				fmt.Fprintln(os.Stderr, "review failed:", err)
				continue
			}
			if err := renderReport(path, out); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}
