// Package usage records token consumption per model and per operation so
// operators can see where the quota goes. Counts persist as JSON under the
// workspace data directory.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codesmith/internal/logging"
)

// Counts is one token tally.
type Counts struct {
	Calls        int `json:"calls"`
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (c *Counts) add(promptTokens, outputTokens int) {
	c.Calls++
	c.PromptTokens += promptTokens
	c.OutputTokens += outputTokens
}

// Data is the persisted shape.
type Data struct {
	Version     string            `json:"version"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Total       Counts            `json:"total"`
	ByModel     map[string]Counts `json:"by_model"`
	ByOperation map[string]Counts `json:"by_operation"`
}

// Tracker accumulates and persists usage. Implements llm.UsageRecorder.
type Tracker struct {
	mu       sync.Mutex
	data     Data
	filePath string
	dirty    bool
}

// NewTracker loads (or initializes) the tracker persisted at dir/usage.json.
func NewTracker(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}
	t := &Tracker{
		filePath: filepath.Join(dir, "usage.json"),
		data: Data{
			Version:     "1.0",
			ByModel:     make(map[string]Counts),
			ByOperation: make(map[string]Counts),
		},
	}
	if err := t.load(); err != nil {
		// Corrupt or missing history is not fatal; start fresh.
		logging.Get(logging.CategoryUsage).Warnf("usage history unreadable, starting fresh: %v", err)
	}
	return t, nil
}

// Record adds one call's tokens.
func (t *Tracker) Record(model, operation string, promptTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Total.add(promptTokens, outputTokens)

	m := t.data.ByModel[model]
	m.add(promptTokens, outputTokens)
	t.data.ByModel[model] = m

	op := t.data.ByOperation[operation]
	op.add(promptTokens, outputTokens)
	t.data.ByOperation[operation] = op

	t.dirty = true
}

// Snapshot returns a copy for status surfaces.
func (t *Tracker) Snapshot() Data {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.data
	out.ByModel = make(map[string]Counts, len(t.data.ByModel))
	for k, v := range t.data.ByModel {
		out.ByModel[k] = v
	}
	out.ByOperation = make(map[string]Counts, len(t.data.ByOperation))
	for k, v := range t.data.ByOperation {
		out.ByOperation[k] = v
	}
	return out
}

// Save writes the tally to disk when it changed since the last save.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return nil
	}
	t.data.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage data: %w", err)
	}
	tmp := t.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write usage data: %w", err)
	}
	if err := os.Rename(tmp, t.filePath); err != nil {
		return fmt.Errorf("failed to replace usage data: %w", err)
	}
	t.dirty = false
	return nil
}

func (t *Tracker) load() error {
	raw, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	if data.ByModel == nil {
		data.ByModel = make(map[string]Counts)
	}
	if data.ByOperation == nil {
		data.ByOperation = make(map[string]Counts)
	}
	t.data = data
	return nil
}
