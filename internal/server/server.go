// Package server exposes the JSON/SSE HTTP API the browser UI consumes:
// analysis runs with streamed progress, single completions, chat replies,
// the snippet library, and the offline/usage status surfaces.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codesmith/internal/analyzers"
	"codesmith/internal/config"
	"codesmith/internal/llm"
	"codesmith/internal/logging"
	"codesmith/internal/orchestrator"
	"codesmith/internal/store"
	"codesmith/internal/usage"
)

// Server wires the orchestration core behind HTTP handlers.
type Server struct {
	cfg     config.Config
	gen     analyzers.Generator
	offline *orchestrator.OfflineController
	store   *store.Store
	usage   *usage.Tracker
	mux     *http.ServeMux
}

// New builds the server. usage may be nil.
func New(cfg config.Config, gen analyzers.Generator, offline *orchestrator.OfflineController, st *store.Store, tracker *usage.Tracker) *Server {
	s := &Server{
		cfg:     cfg,
		gen:     gen,
		offline: offline,
		store:   st,
		usage:   tracker,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/api/complete", s.handleComplete)
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/snippets", s.handleSnippets)
	s.mux.HandleFunc("/api/snippets/", s.handleSnippetByID)
	s.mux.HandleFunc("/api/offline", s.handleOfflineStatus)
	s.mux.HandleFunc("/api/offline/reset", s.handleOfflineReset)
	s.mux.HandleFunc("/api/usage", s.handleUsage)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	logging.Server("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

type analyzeRequest struct {
	Code        string   `json:"code"`
	Target      string   `json:"target"` // display name, e.g. the file path
	EnabledJobs []string `json:"enabled_jobs,omitempty"`
}

type analyzeResponse struct {
	orchestrator.RunOutput
	Report string `json:"report"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		badRequest(w, "code is required")
		return
	}
	if req.Target == "" {
		req.Target = "untitled"
	}

	enabled := req.EnabledJobs
	if len(enabled) == 0 {
		enabled = s.cfg.Orchestrator.EnabledJobs
	}
	jobs := analyzers.Jobs(s.gen, enabled)
	if len(jobs) == 0 {
		badRequest(w, "no known analyzers selected")
		return
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrency:    s.cfg.Orchestrator.MaxConcurrency,
		Timeout:           time.Duration(s.cfg.Orchestrator.TimeoutMs) * time.Millisecond,
		MaxRetries:        s.cfg.Orchestrator.MaxRetries,
		BackoffMultiplier: s.cfg.Orchestrator.BackoffMultiplier,
	}, s.offline)

	if wantsSSE(r) {
		s.analyzeSSE(w, r, orch, req, jobs)
		return
	}

	out := orch.Run(r.Context(), req.Code, jobs, nil)
	writeJSON(w, http.StatusOK, analyzeResponse{
		RunOutput: out,
		Report:    analyzers.Report(req.Target, out),
	})
}

// analyzeSSE streams progress events followed by one final result event.
func (s *Server) analyzeSSE(w http.ResponseWriter, r *http.Request, orch *orchestrator.Orchestrator, req analyzeRequest, jobs []orchestrator.Job) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	obs := orchestrator.NewChannelObserver(64)
	done := make(chan orchestrator.RunOutput, 1)
	go func() {
		out := orch.Run(r.Context(), req.Code, jobs, obs)
		obs.Close()
		done <- out
	}()

	for p := range obs.Events() {
		writeSSE(w, "progress", p)
		flusher.Flush()
	}
	out := <-done
	writeSSE(w, "result", analyzeResponse{
		RunOutput: out,
		Report:    analyzers.Report(req.Target, out),
	})
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
}

func wantsSSE(r *http.Request) bool {
	return r.URL.Query().Get("stream") == "1" ||
		strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// ---------------------------------------------------------------------------
// Completion and chat
// ---------------------------------------------------------------------------

type completeRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type generateResponse struct {
	Text    string `json:"text"`
	Offline bool   `json:"offline,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

const offlineReply = "codesmith is in offline mode: the generation endpoint is unavailable until an operator resets it."

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if s.offline.IsOffline() {
		writeJSON(w, http.StatusOK, generateResponse{Text: offlineReply, Offline: true})
		return
	}

	out := s.gen.GenerateOp(r.Context(), llm.Prompt{
		User:            req.Prompt,
		MaxOutputTokens: req.MaxTokens,
	}, "complete")
	s.writeOutcome(w, out)
}

type chatRequest struct {
	Session string `json:"session"`
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Session == "" || strings.TrimSpace(req.Message) == "" {
		badRequest(w, "session and message are required")
		return
	}

	if _, err := s.store.AppendMessage(r.Context(), store.Message{
		Session: req.Session, Role: "user", Content: req.Message,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.offline.IsOffline() {
		s.appendAssistant(r, req.Session, offlineReply)
		writeJSON(w, http.StatusOK, generateResponse{Text: offlineReply, Offline: true})
		return
	}

	transcript, err := s.store.Transcript(r.Context(), req.Session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var sb strings.Builder
	for _, m := range transcript {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("assistant:")

	out := s.gen.GenerateOp(r.Context(), llm.Prompt{
		System: "You are codesmith, a concise coding assistant. Continue the conversation.",
		User:   sb.String(),
	}, "chat")
	if out.OK() {
		s.appendAssistant(r, req.Session, out.Text)
	}
	s.writeOutcome(w, out)
}

func (s *Server) appendAssistant(r *http.Request, session, text string) {
	if _, err := s.store.AppendMessage(r.Context(), store.Message{
		Session: session, Role: "assistant", Content: text,
	}); err != nil {
		logging.Get(logging.CategoryServer).Warnf("failed to persist assistant reply: %v", err)
	}
}

// writeOutcome maps an Outcome onto the wire: classified failures are data,
// not HTTP errors. The UI renders them inline. Outcomes also feed the
// offline controller so a dead quota trips it no matter which endpoint
// surfaced the failure.
func (s *Server) writeOutcome(w http.ResponseWriter, out llm.Outcome) {
	if out.OK() {
		s.offline.RecordSuccess()
		writeJSON(w, http.StatusOK, generateResponse{Text: out.Text})
		return
	}
	s.offline.RecordFailure(out.Failure.Kind)
	writeJSON(w, http.StatusOK, generateResponse{
		Error: out.Failure.Message,
		Kind:  out.Failure.Kind.String(),
	})
}

// ---------------------------------------------------------------------------
// Snippets
// ---------------------------------------------------------------------------

func (s *Server) handleSnippets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.store.ListSnippets(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []store.Snippet{}
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var sn store.Snippet
		if err := json.NewDecoder(r.Body).Decode(&sn); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		saved, err := s.store.SaveSnippet(r.Context(), sn)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSnippetByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/snippets/")
	if id == "" {
		badRequest(w, "snippet id is required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		sn, err := s.store.GetSnippet(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sn)
	case http.MethodDelete:
		if err := s.store.DeleteSnippet(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// ---------------------------------------------------------------------------
// Status surfaces
// ---------------------------------------------------------------------------

type offlineStatus struct {
	Offline             bool `json:"offline"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
}

func (s *Server) handleOfflineStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	off, failures := s.offline.Snapshot()
	writeJSON(w, http.StatusOK, offlineStatus{Offline: off, ConsecutiveFailures: failures})
}

func (s *Server) handleOfflineReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.offline.Reset()
	off, failures := s.offline.Snapshot()
	writeJSON(w, http.StatusOK, offlineStatus{Offline: off, ConsecutiveFailures: failures})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.usage == nil {
		writeJSON(w, http.StatusOK, usage.Data{})
		return
	}
	writeJSON(w, http.StatusOK, s.usage.Snapshot())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Get(logging.CategoryServer).Warnf("failed to encode response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
