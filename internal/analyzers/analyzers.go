// Package analyzers defines the six code analysis jobs the review surface
// runs through the orchestrator, plus the report assembly the UI and CLI
// share. Each analyzer is an opaque job body to the orchestration core: it
// builds a prompt, calls the generation client, and parses the structured
// payload out of the reply.
package analyzers

import (
	"context"
	"fmt"

	"codesmith/internal/llm"
	"codesmith/internal/logging"
	"codesmith/internal/orchestrator"
)

// Analyzer is one named analysis pass over a source file.
type Analyzer struct {
	Name  string
	Title string
	focus string
}

// All is the fixed analyzer set, in display order.
var All = []Analyzer{
	{"correctness", "Correctness", "logic errors, off-by-one mistakes, unhandled edge cases, broken control flow"},
	{"security", "Security", "injection risks, unsafe input handling, secrets in code, insecure API usage"},
	{"performance", "Performance", "needless allocations, quadratic loops, blocking calls on hot paths, missing caching"},
	{"style", "Style", "naming, formatting consistency, idiomatic constructs for the language in use"},
	{"maintainability", "Maintainability", "function length, coupling, duplication, testability of the design"},
	{"documentation", "Documentation", "missing or stale comments, undocumented public surface, unclear intent"},
}

// Names returns the analyzer names in order.
func Names() []string {
	names := make([]string, len(All))
	for i, a := range All {
		names[i] = a.Name
	}
	return names
}

// byName resolves an analyzer, reporting whether it exists.
func byName(name string) (Analyzer, bool) {
	for _, a := range All {
		if a.Name == name {
			return a, true
		}
	}
	return Analyzer{}, false
}

// Generator is the slice of the generation client the analyzers need.
type Generator interface {
	GenerateOp(ctx context.Context, prompt llm.Prompt, operation string) llm.Outcome
}

// Jobs builds orchestrator jobs for the enabled analyzers. An empty
// enabled list selects all of them; unknown names are ignored.
func Jobs(gen Generator, enabled []string) []orchestrator.Job {
	selected := All
	if len(enabled) > 0 {
		selected = selected[:0:0]
		for _, name := range enabled {
			if a, ok := byName(name); ok {
				selected = append(selected, a)
			}
		}
	}

	jobs := make([]orchestrator.Job, 0, len(selected))
	for _, a := range selected {
		a := a
		jobs = append(jobs, orchestrator.Job{
			Name: a.Name,
			Run: func(ctx context.Context, input string) (orchestrator.Payload, error) {
				return a.run(ctx, gen, input)
			},
		})
	}
	return jobs
}

const systemPrompt = `You are a code review assistant. Respond with a single JSON object and nothing else:
{"score": <0-100>, "issues": ["..."], "suggestions": ["..."], "summary": "..."}
Score 100 means flawless for the reviewed aspect. Keep issues and suggestions concrete and short.`

func (a Analyzer) run(ctx context.Context, gen Generator, input string) (orchestrator.Payload, error) {
	prompt := llm.Prompt{
		System: systemPrompt,
		User: fmt.Sprintf("Review the following code strictly for %s. Focus on: %s.\n\n```\n%s\n```",
			a.Title, a.focus, input),
	}

	out := gen.GenerateOp(ctx, prompt, "analyze:"+a.Name)
	if !out.OK() {
		return orchestrator.Payload{}, out.Failure
	}

	payload, err := parsePayload(out.Text)
	if err != nil {
		logging.Get(logging.CategoryAnalyzers).Warnf("%s: unparsable reply (%v), using heuristic extraction", a.Name, err)
		payload = heuristicPayload(a.Name, out.Text)
	}
	logging.Get(logging.CategoryAnalyzers).Debugf("%s scored %d with %d issues", a.Name, payload.Score, len(payload.Issues))
	return payload, nil
}
