package analyzers

import (
	"strings"
	"testing"
)

func TestExtractJSONVariants(t *testing.T) {
	obj := `{"score": 70, "issues": [], "suggestions": [], "summary": "ok"}`
	cases := []struct {
		name string
		text string
	}{
		{"bare object", obj},
		{"json fence", "```json\n" + obj + "\n```"},
		{"anonymous fence", "```\n" + obj + "\n```"},
		{"prose around object", "Sure! Here is my review:\n" + obj + "\nHope that helps."},
		{"nested braces", `{"score": 70, "issues": ["map[string]{} misuse"], "suggestions": [], "summary": "ok {really}"}`},
		{"brace inside string", `{"score": 70, "issues": ["\"{\" unbalanced"], "suggestions": [], "summary": "ok"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := parsePayload(tc.text)
			if err != nil {
				t.Fatalf("parsePayload failed: %v", err)
			}
			if p.Score != 70 {
				t.Fatalf("score = %d, want 70", p.Score)
			}
		})
	}
}

func TestParsePayloadClampsScore(t *testing.T) {
	p, err := parsePayload(`{"score": 450, "summary": "x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if p.Score != 100 {
		t.Fatalf("score = %d, want clamp to 100", p.Score)
	}

	p, err = parsePayload(`{"score": -3, "summary": "x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if p.Score != 0 {
		t.Fatalf("score = %d, want clamp to 0", p.Score)
	}
}

func TestParsePayloadRejectsNonJSON(t *testing.T) {
	if _, err := parsePayload("no structured data here"); err == nil {
		t.Fatal("expected error for prose-only reply")
	}
	if _, err := parsePayload(`{"score": broken`); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestHeuristicPayloadTruncates(t *testing.T) {
	long := strings.Repeat("a", 900)
	p := heuristicPayload("style", long)
	if len(p.Summary) > 410 {
		t.Fatalf("summary length = %d, want truncated", len(p.Summary))
	}
}
