package analyzers

import (
	"strings"
	"testing"

	"codesmith/internal/llm"
	"codesmith/internal/orchestrator"
)

func TestReportRendersAllSections(t *testing.T) {
	out := orchestrator.RunOutput{
		Results: []orchestrator.Result{
			{
				Name: "correctness", Succeeded: true,
				Payload: orchestrator.Payload{
					Score: 90, Summary: "solid",
					Issues:      []string{"unchecked error"},
					Suggestions: []string{"wrap errors"},
				},
			},
			{
				Name: "security", Succeeded: false, Fallback: true,
				ErrorKind: llm.KindRateLimited, Error: "cooldown",
				Payload: orchestrator.Payload{Score: 50, Summary: "security unavailable"},
			},
			{
				Name: "style", Succeeded: true, Offline: true, Fallback: true,
				Payload: orchestrator.Payload{Score: 50, Summary: "style skipped"},
			},
		},
		Errors: []orchestrator.JobError{
			{Name: "security", Kind: llm.KindRateLimited, Message: "cooldown", Fallback: true},
		},
		Summary: orchestrator.Summary{OverallScore: 63, TotalIssues: 1, TotalSuggestions: 1, Offline: true},
	}

	md := Report("main.go", out)

	for _, want := range []string{
		"# Code review: main.go",
		"Overall score: 63/100",
		"## Correctness: 90/100",
		"- unchecked error",
		"(fallback: rate_limited)",
		"(offline placeholder)",
		"## Degraded analyzers",
		"Offline mode was active",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n---\n%s", want, md)
		}
	}
}
