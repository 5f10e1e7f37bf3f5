package analyzers

import (
	"encoding/json"
	"fmt"
	"strings"

	"codesmith/internal/orchestrator"
)

// parsePayload extracts the structured payload from a model reply. Models
// wrap JSON in prose and code fences more often than not, so extraction is
// tolerant: fenced block first, then the first balanced object.
func parsePayload(text string) (orchestrator.Payload, error) {
	raw := extractJSON(text)
	if raw == "" {
		return orchestrator.Payload{}, fmt.Errorf("no JSON object in reply")
	}

	var p orchestrator.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return orchestrator.Payload{}, fmt.Errorf("invalid payload JSON: %w", err)
	}
	p.Score = clampScore(p.Score)
	if p.Summary == "" {
		p.Summary = "no summary provided"
	}
	return p, nil
}

// extractJSON returns the best JSON object candidate in text, or "".
func extractJSON(text string) string {
	// Fenced block wins when present.
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			candidate := strings.TrimSpace(rest[:j])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// First balanced top-level object.
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// heuristicPayload salvages something presentable when the reply is not
// JSON at all: the prose becomes the summary with a neutral score.
func heuristicPayload(name, text string) orchestrator.Payload {
	summary := strings.TrimSpace(text)
	if len(summary) > 400 {
		summary = summary[:400] + "…"
	}
	if summary == "" {
		summary = name + ": model returned no usable analysis"
	}
	return orchestrator.Payload{
		Score:   orchestrator.NeutralScore,
		Summary: summary,
	}
}
