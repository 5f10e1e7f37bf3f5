package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"codesmith/internal/analyzers"
	"codesmith/internal/llm"
	"codesmith/internal/orchestrator"
)

var reviewJobs []string

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Run the analyzer suite against one source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().StringSliceVar(&reviewJobs, "jobs", nil,
		"analyzers to run (default all: "+fmt.Sprint(analyzers.Names())+")")
}

func runReview(cmd *cobra.Command, args []string) error {
	client, tracker, err := buildClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	defer func() { _ = tracker.Save() }()

	out, err := reviewFile(cmd.Context(), client, orchestrator.NewOfflineController(), args[0])
	if err != nil {
		return err
	}
	return renderReport(args[0], out)
}

// reviewFile runs the analyzer suite over one file with a live progress
// line on stderr. Shared by review and watch; the offline controller is
// owned by the caller so its state spans repeated runs in one process.
func reviewFile(ctx context.Context, client *llm.GenerationClient, offline *orchestrator.OfflineController, path string) (orchestrator.RunOutput, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.RunOutput{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	jobs := analyzers.Jobs(client, reviewJobs)
	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrency:    cfg.Orchestrator.MaxConcurrency,
		Timeout:           time.Duration(cfg.Orchestrator.TimeoutMs) * time.Millisecond,
		MaxRetries:        cfg.Orchestrator.MaxRetries,
		BackoffMultiplier: cfg.Orchestrator.BackoffMultiplier,
	}, offline)

	obs := orchestrator.ObserverFunc(func(p orchestrator.Progress) {
		if p.Status == orchestrator.StatusRunning {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s...\n", p.Current, p.Total, p.Job)
		}
	})
	return orch.Run(ctx, string(code), jobs, obs), nil
}

var scoreStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))

func renderReport(target string, out orchestrator.RunOutput) error {
	md := analyzers.Report(target, out)

	rendered, err := glamour.Render(md, "dark")
	if err != nil {
		// Plain markdown beats no report.
		fmt.Println(md)
		return nil
	}
	fmt.Print(rendered)
	fmt.Println(scoreStyle.Render(fmt.Sprintf("Overall: %d/100", out.Summary.OverallScore)))
	return nil
}
