package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesmith/internal/config"
	"codesmith/internal/llm"
	"codesmith/internal/logging"
	"codesmith/internal/orchestrator"
)

func TestMain(m *testing.M) {
	logging.InitializeNop()
	os.Exit(m.Run())
}

// quotaEndpoint answers every call with a dead daily quota.
type quotaEndpoint struct{ calls int32 }

func (e *quotaEndpoint) Model() string { return "test-model" }

func (e *quotaEndpoint) Call(_ context.Context, _ llm.Request) (*llm.Response, error) {
	atomic.AddInt32(&e.calls, 1)
	return nil, &llm.CallError{HTTPStatus: 403, Message: "quota exhausted"}
}

func TestRepeatedReviewsShareOfflineState(t *testing.T) {
	cfg = config.Default()
	cfg.Orchestrator.TimeoutMs = 1000

	ep := &quotaEndpoint{}
	client := llm.NewGenerationClient(ep, llm.ClientConfig{
		CallTimeout:    time.Second,
		CallsPerMinute: 100,
	}, nil)
	defer client.Close()

	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("func main() {}"), 0644))

	offline := orchestrator.NewOfflineController()

	out, err := reviewFile(context.Background(), client, offline, path)
	require.NoError(t, err)
	require.True(t, offline.IsOffline(), "dead quota should trip offline mode")
	assert.Len(t, out.Results, 6)

	// The next run in the same process must not touch the network again.
	before := atomic.LoadInt32(&ep.calls)
	out, err = reviewFile(context.Background(), client, offline, path)
	require.NoError(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&ep.calls),
		"a tripped quota must suppress endpoint calls on later runs")
	for _, r := range out.Results {
		assert.True(t, r.Offline, "result %s should be an offline placeholder", r.Name)
	}
}
