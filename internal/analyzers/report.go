package analyzers

import (
	"fmt"
	"strings"

	"codesmith/internal/orchestrator"
)

// Report renders a run as markdown, shared by the CLI and the docs view of
// the browser UI.
func Report(target string, out orchestrator.RunOutput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Code review: %s\n\n", target)
	fmt.Fprintf(&sb, "**Overall score: %d/100** (%d issues, %d suggestions)\n\n",
		out.Summary.OverallScore, out.Summary.TotalIssues, out.Summary.TotalSuggestions)

	if out.Summary.Offline {
		sb.WriteString("> Offline mode was active: some results are neutral placeholders.\n\n")
	}
	if out.Summary.Cancelled {
		sb.WriteString("> The run was cancelled before all analyzers finished.\n\n")
	}

	for _, r := range out.Results {
		title := r.Name
		if a, ok := byName(r.Name); ok {
			title = a.Title
		}
		fmt.Fprintf(&sb, "## %s: %d/100", title, r.Payload.Score)
		switch {
		case r.Offline:
			sb.WriteString(" _(offline placeholder)_")
		case !r.Succeeded:
			fmt.Fprintf(&sb, " _(fallback: %s)_", r.ErrorKind)
		}
		sb.WriteString("\n\n")

		if r.Payload.Summary != "" {
			sb.WriteString(r.Payload.Summary + "\n\n")
		}
		if len(r.Payload.Issues) > 0 {
			sb.WriteString("Issues:\n")
			for _, issue := range r.Payload.Issues {
				fmt.Fprintf(&sb, "- %s\n", issue)
			}
			sb.WriteString("\n")
		}
		if len(r.Payload.Suggestions) > 0 {
			sb.WriteString("Suggestions:\n")
			for _, s := range r.Payload.Suggestions {
				fmt.Fprintf(&sb, "- %s\n", s)
			}
			sb.WriteString("\n")
		}
	}

	if len(out.Errors) > 0 {
		sb.WriteString("## Degraded analyzers\n\n")
		for _, e := range out.Errors {
			fmt.Fprintf(&sb, "- `%s`: %s (%s)\n", e.Name, e.Message, e.Kind)
		}
	}
	return sb.String()
}
