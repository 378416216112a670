package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/agent"
	"github.com/agent-sphere/agent-sphere/src/config"
	"github.com/agent-sphere/agent-sphere/src/memory"
	"github.com/agent-sphere/agent-sphere/src/models"
	"github.com/agent-sphere/agent-sphere/src/orchestrator"
	"github.com/agent-sphere/agent-sphere/src/scheduler"
)

// Orchestrator plans and executes a user request.
type Orchestrator interface {
	Handle(ctx context.Context, request string) orchestrator.Result
}

// ProviderTester checks one configured LLM backend.
type ProviderTester interface {
	TestProvider(ctx context.Context, name string) models.TestResult
}

// ScheduleEngine is the slice of the scheduler the API needs.
type ScheduleEngine interface {
	AddJob(job scheduler.Job) (scheduler.Job, error)
	List() ([]scheduler.Job, error)
	Get(id string) (scheduler.Job, bool, error)
	Pause(id string) error
	Resume(id string) error
	Delete(id string) error
	RunNow(id string) error
	History(jobID string, limit int) []scheduler.Execution
}

// MemoryStore holds long-term facts per agent.
type MemoryStore interface {
	Add(agentID, content, category, source string, importance int) (memory.Entry, error)
	List(agentID string) []memory.Entry
	Delete(agentID, id string) (bool, error)
	Search(agentID, query string) []memory.Entry
}

// IntentDetector spots and confirms scheduling requests in chat.
type IntentDetector interface {
	Detect(ctx context.Context, message string) *scheduler.Intent
	ToJob(intent *scheduler.Intent) scheduler.Job
	StorePending(sessionKey string, job scheduler.Job)
	PopPending(sessionKey string) (scheduler.Job, bool)
	HasPending(sessionKey string) bool
}

// Server exposes the HTTP and websocket API.
type Server struct {
	orch     Orchestrator
	agents   map[string]*agent.Agent
	agentIDs []string
	engine   ScheduleEngine
	detector IntentDetector
	memories MemoryStore
	llm      *config.LLMManager
	tester   ProviderTester
	hub      *Hub
	logger   zerolog.Logger
}

// Options configures New.
type Options struct {
	Orchestrator Orchestrator
	Agents       []*agent.Agent
	Engine       ScheduleEngine
	Detector     IntentDetector
	Memories     MemoryStore
	LLM          *config.LLMManager
	Tester       ProviderTester
	Hub          *Hub
	Logger       zerolog.Logger
}

func New(opts Options) *Server {
	s := &Server{
		orch:     opts.Orchestrator,
		agents:   make(map[string]*agent.Agent),
		engine:   opts.Engine,
		detector: opts.Detector,
		memories: opts.Memories,
		llm:      opts.LLM,
		tester:   opts.Tester,
		hub:      opts.Hub,
		logger:   opts.Logger.With().Str("component", "server").Logger(),
	}
	if s.hub == nil {
		s.hub = NewHub(opts.Logger)
	}
	for _, a := range opts.Agents {
		s.agents[a.ID()] = a
		s.agentIDs = append(s.agentIDs, a.ID())
	}
	return s
}

// Hub returns the websocket hub for broadcast wiring.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/agents/{id}/chat", s.handleAgentChat)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)

	mux.HandleFunc("GET /api/agents/{id}/memory", s.handleListMemory)
	mux.HandleFunc("POST /api/agents/{id}/memory", s.handleAddMemory)
	mux.HandleFunc("DELETE /api/agents/{id}/memory/{memID}", s.handleDeleteMemory)

	mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
	mux.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /api/schedules/history", s.handleScheduleHistory)
	mux.HandleFunc("GET /api/schedules/{id}", s.handleGetSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.handleDeleteSchedule)
	mux.HandleFunc("POST /api/schedules/{id}/pause", s.handlePauseSchedule)
	mux.HandleFunc("POST /api/schedules/{id}/resume", s.handleResumeSchedule)
	mux.HandleFunc("POST /api/schedules/{id}/run", s.handleRunSchedule)

	mux.HandleFunc("GET /api/llm/config", s.handleGetLLMConfig)
	mux.HandleFunc("PUT /api/llm/config", s.handlePutLLMConfig)
	mux.HandleFunc("POST /api/llm/test/{provider}", s.handleTestProvider)

	mux.HandleFunc("GET /ws", s.hub.HandleWS)
	return mux
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response string   `json:"response"`
	Success  bool     `json:"success"`
	Errors   []string `json:"errors,omitempty"`
}

// handleChat runs a request through schedule-intent interception, then the
// orchestrator.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	session := req.SessionID
	if session == "" {
		session = "default"
	}

	if s.detector != nil {
		if reply, handled := s.interceptSchedule(r.Context(), session, req.Message); handled {
			writeJSON(w, http.StatusOK, chatResponse{Response: reply, Success: true})
			return
		}
	}

	result := s.orch.Handle(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, chatResponse{
		Response: result.FinalResponse,
		Success:  result.Success,
		Errors:   result.Errors,
	})
}

// interceptSchedule handles pending confirmations and new scheduling
// intents. It reports whether the message was consumed.
func (s *Server) interceptSchedule(ctx context.Context, session, message string) (string, bool) {
	if s.detector.HasPending(session) {
		switch {
		case scheduler.IsConfirmation(message):
			job, _ := s.detector.PopPending(session)
			created, err := s.engine.AddJob(job)
			if err != nil {
				return "I couldn't create that schedule: " + err.Error(), true
			}
			return "Schedule created: **" + created.Name + "** (" + created.ScheduleDesc + ")", true
		case scheduler.IsCancellation(message):
			s.detector.PopPending(session)
			return "Okay, I won't schedule that.", true
		default:
			// Neither yes nor no; drop the pending job and treat the
			// message as a fresh request.
			s.detector.PopPending(session)
		}
	}

	if intent := s.detector.Detect(ctx, message); intent != nil {
		job := s.detector.ToJob(intent)
		s.detector.StorePending(session, job)
		return scheduler.BuildConfirmation(intent), true
	}
	return "", false
}

// handleAgentChat routes a message directly to one built-in agent,
// keeping conversation state per client session.
func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	a, ok := s.agents[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	session := req.SessionID
	if session == "" {
		session = "default"
	}

	reply := a.ThinkAndAct(r.Context(), session, req.Message)
	writeJSON(w, http.StatusOK, chatResponse{Response: reply, Success: true})
}

type agentInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	out := make([]agentInfo, 0, len(s.agentIDs))
	for _, id := range s.agentIDs {
		a := s.agents[id]
		out = append(out, agentInfo{ID: a.ID(), Name: a.Name(), Role: a.Role()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

type addMemoryRequest struct {
	Content    string `json:"content"`
	Category   string `json:"category"`
	Importance int    `json:"importance"`
}

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.agents[id]; !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	var entries []memory.Entry
	if q := r.URL.Query().Get("q"); q != "" {
		entries = s.memories.Search(id, q)
	} else {
		entries = s.memories.List(id)
	}
	if entries == nil {
		entries = []memory.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": entries})
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.agents[id]; !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	var req addMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Importance == 0 {
		req.Importance = 3
	}
	entry, err := s.memories.Add(id, req.Content, req.Category, "manual", req.Importance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.agents[id]; !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	removed, err := s.memories.Delete(id, r.PathValue("memID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.engine.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []scheduler.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": jobs})
}

type createScheduleRequest struct {
	Name         string     `json:"name"`
	AgentID      string     `json:"agent_id"`
	Prompt       string     `json:"prompt"`
	ScheduleDesc string     `json:"schedule_desc"`
	Type         string     `json:"schedule_type"`
	Spec         string     `json:"spec"`
	RunAt        *time.Time `json:"run_at"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "name and prompt are required")
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = "orchestrator"
	}
	job, err := s.engine.AddJob(scheduler.Job{
		ID:           "job_" + strconv.FormatInt(time.Now().UnixNano(), 36),
		Name:         req.Name,
		AgentID:      agentID,
		Prompt:       req.Prompt,
		ScheduleDesc: req.ScheduleDesc,
		Type:         scheduler.JobType(req.Type),
		Spec:         req.Spec,
		RunAt:        req.RunAt,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	job, found, err := s.engine.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePauseSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Pause(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": scheduler.StatusPaused})
}

func (s *Server) handleResumeSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Resume(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": scheduler.StatusActive})
}

func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RunNow(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Job queued for immediate execution"})
}

func (s *Server) handleScheduleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history := s.engine.History(r.URL.Query().Get("job_id"), limit)
	if history == nil {
		history = []scheduler.Execution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handleGetLLMConfig returns the routing config with API keys masked.
func (s *Server) handleGetLLMConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.llm.Config()
	for name, settings := range cfg.Providers {
		if settings.APIKey != "" {
			settings.APIKey = "***"
			cfg.Providers[name] = settings
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config":    cfg,
		"providers": config.Providers,
	})
}

type llmConfigUpdate struct {
	DefaultProvider string                             `json:"default_provider"`
	DefaultModel    string                             `json:"default_model"`
	FailoverOrder   []string                           `json:"failover_order"`
	Providers       map[string]config.ProviderSettings `json:"providers"`
}

func (s *Server) handlePutLLMConfig(w http.ResponseWriter, r *http.Request) {
	var req llmConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DefaultProvider != "" {
		if err := s.llm.SetDefault(req.DefaultProvider, req.DefaultModel); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if len(req.FailoverOrder) > 0 {
		if err := s.llm.SetFailoverOrder(req.FailoverOrder); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for name, settings := range req.Providers {
		if err := s.llm.SetProvider(name, settings); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Changes apply to new router builds; a restart picks them up.
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Config saved. Restart to apply provider changes."})
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	writeJSON(w, http.StatusOK, s.tester.TestProvider(ctx, r.PathValue("provider")))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
