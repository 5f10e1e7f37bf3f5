package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"codesmith/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show recorded token usage per model and operation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := usage.NewTracker(dataDir(cfg))
		if err != nil {
			return err
		}
		snap := tracker.Snapshot()

		fmt.Printf("total: %d calls, %d prompt tokens, %d output tokens\n",
			snap.Total.Calls, snap.Total.PromptTokens, snap.Total.OutputTokens)

		printCounts("by model", snap.ByModel)
		printCounts("by operation", snap.ByOperation)
		return nil
	},
}

func printCounts(title string, m map[string]usage.Counts) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		c := m[k]
		fmt.Printf("  %-28s %5d calls  %8d in  %8d out\n", k, c.Calls, c.PromptTokens, c.OutputTokens)
	}
}
