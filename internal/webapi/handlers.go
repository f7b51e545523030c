package webapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/catalog"
	"github.com/aiwargamer/sitroom/internal/chat"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/orchestration"
	"github.com/aiwargamer/sitroom/internal/render"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// maxBodyBytes bounds request bodies for edits and chat messages.
const maxBodyBytes = 4 << 20

// ContextFunc returns the current transcript context blob.
type ContextFunc func() string

// Deps are the collaborators the handlers read from.
type Deps struct {
	Reports ReportStore
	Runs    RunStore
	Catalog *catalog.Catalog
	Chat    *chat.Controller
	Context ContextFunc
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	reports ReportStore
	runs    RunStore
	catalog *catalog.Catalog
	chat    *chat.Controller
	context ContextFunc
}

// NewHandlers creates a new Handlers from deps. A nil catalog means the built-in one.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		reports: deps.Reports,
		runs:    deps.Runs,
		catalog: deps.Catalog,
		chat:    deps.Chat,
		context: deps.Context,
	}
	if h.catalog == nil {
		h.catalog = catalog.Default()
	}
	if h.context == nil {
		h.context = func() string { return "" }
	}
	return h
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok", Version: Version}
	if entries, err := h.reports.Reports(); err == nil {
		resp.Reports = len(entries)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleReports lists every catalog task plus any extra cache keys, with status.
func (h *Handlers) HandleReports(w http.ResponseWriter, _ *http.Request) {
	entries, err := h.reports.Reports()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var list []ReportSummary
	known := map[string]bool{}
	for _, t := range h.catalog.Tasks() {
		key := t.ID.CacheKey()
		known[key] = true
		content, ok := cache.Lookup(entries, key)
		list = append(list, summarize(key, string(t.ID.Kind), t.ID.Name, t.Icon, content, ok))
	}

	var extra []string
	for key := range entries {
		if known[key] {
			continue
		}
		if id, err := models.ParseCacheKey(key); err == nil && known[id.CacheKey()] {
			continue
		}
		extra = append(extra, key)
	}
	sort.Strings(extra)
	for _, key := range extra {
		kind, name := "other", key
		if id, err := models.ParseCacheKey(key); err == nil {
			kind, name = string(id.Kind), id.Name
		}
		list = append(list, summarize(key, kind, name, "", entries[key], true))
	}

	if list == nil {
		list = []ReportSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func summarize(key, kind, name, icon, content string, present bool) ReportSummary {
	s := ReportSummary{Key: key, Kind: kind, Name: name, Icon: icon, Status: StatusMissing}
	if present {
		s.Chars = len(content)
		s.Status = StatusReady
		if orchestration.IsFailurePlaceholder(content) {
			s.Status = StatusFailed
		}
	}
	return s
}

// HandleReport returns a single report's markdown.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	detail, ok, err := h.report(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handlers) report(key string) (*ReportDetail, bool, error) {
	entries, err := h.reports.Reports()
	if err != nil {
		return nil, false, err
	}
	content, ok := cache.Lookup(entries, key)
	if !ok {
		return nil, false, nil
	}

	kind, name, icon := "other", key, ""
	if t, err := h.catalog.LookupKey(key); err == nil {
		kind, name, icon = string(t.ID.Kind), t.ID.Name, t.Icon
		key = t.ID.CacheKey()
	} else if id, err := models.ParseCacheKey(key); err == nil {
		kind, name = string(id.Kind), id.Name
	}
	return &ReportDetail{
		ReportSummary: summarize(key, kind, name, icon, content, true),
		Content:       content,
	}, true, nil
}

// HandleEditReport applies a manual override to one key.
func (h *Handlers) HandleEditReport(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "report key is required")
		return
	}

	var req EditRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	if err := h.reports.Edit(key, *req.Content); err != nil {
		slog.Error("Manual override failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("Manual override saved", "key", key, "chars", len(*req.Content))

	detail, _, err := h.report(key)
	if err != nil || detail == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleDeleteReport removes one key from the cache.
func (h *Handlers) HandleDeleteReport(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := h.reports.Delete(key); err != nil {
		switch {
		case errors.Is(err, cache.ErrKeyNotFound), errors.Is(err, cache.ErrNotFound):
			writeError(w, http.StatusNotFound, "report not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReportPage renders a report as an HTML page with the navigation sidebar.
func (h *Handlers) HandleReportPage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	page := render.Page{Title: key}
	t, err := h.catalog.LookupKey(key)
	if err == nil {
		page.Title, page.Icon = t.ID.Name, t.Icon
		key = t.ID.CacheKey()
	}

	detail, ok, err := h.report(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok && t.ID.Name == "" {
		http.NotFound(w, r)
		return
	}
	if ok {
		page.Markdown = detail.Content
		if detail.Status == StatusFailed {
			page.Notice = "Generation failed for this report. Re-run precompute or apply a manual override."
		}
	}

	for _, task := range h.catalog.Tasks() {
		k := task.ID.CacheKey()
		page.Nav = append(page.Nav, render.NavItem{
			Label:  task.ID.Name,
			Icon:   task.Icon,
			Href:   "/reports/" + k,
			Active: k == key,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WritePage(w, page); err != nil {
		slog.Error("Rendering report page failed", "key", key, "error", err)
	}
}

// HandleIndex redirects to the first report page.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	tasks := h.catalog.Tasks()
	if len(tasks) == 0 {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/reports/"+tasks[0].ID.CacheKey(), http.StatusFound)
}

// HandleAdvisors lists chat personas with briefing and chat status.
func (h *Handlers) HandleAdvisors(w http.ResponseWriter, _ *http.Request) {
	entries, err := h.reports.Reports()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	advisors := h.catalog.Advisors()
	resp := make([]AdvisorResponse, 0, len(advisors))
	for _, a := range advisors {
		key := models.TaskID{Kind: models.TaskKindBriefing, Name: a.Name}.CacheKey()
		content, ok := cache.Lookup(entries, key)
		ar := AdvisorResponse{
			Name:        a.Name,
			Icon:        a.Icon,
			BriefingKey: key,
			HasBriefing: ok && !orchestration.IsFailurePlaceholder(content),
			ChatState:   chat.StateUnstarted.String(),
		}
		if h.chat != nil {
			if s, ok := h.chat.Lookup(a.Name); ok {
				ar.ChatState = s.State().String()
			}
		}
		resp = append(resp, ar)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleChatHistory returns the advisor's conversation so far.
func (h *Handlers) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not enabled")
		return
	}
	s, err := h.chat.GetOrCreate(r.PathValue("advisor"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// HandleChatSend sends one message to an advisor.
func (h *Handlers) HandleChatSend(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not enabled")
		return
	}
	s, err := h.chat.GetOrCreate(r.PathValue("advisor"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	reply, err := h.chat.Send(r.Context(), s, req.Message, h.context())
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ChatReplyResponse{Reply: reply, Session: sessionResponse(s)})
}

// HandleChatReset discards an advisor's conversation.
func (h *Handlers) HandleChatReset(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not enabled")
		return
	}
	advisor := r.PathValue("advisor")
	if _, err := h.catalog.Advisor(advisor); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.chat.Reset(advisor)
	w.WriteHeader(http.StatusNoContent)
}

func sessionResponse(s *chat.Session) ChatSessionResponse {
	return ChatSessionResponse{
		Advisor:        s.Advisor().Name,
		ConversationID: s.ID(),
		State:          s.State().String(),
		Turns:          s.History(),
	}
}

// HandleRuns returns the precompute runs, newest first.
func (h *Handlers) HandleRuns(w http.ResponseWriter, _ *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusOK, []RunSummary{})
		return
	}
	runs, err := h.runs.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRunDetail returns one run with its events.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" || h.runs == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	detail, err := h.runs.GetRun(id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// RegisterRoutes registers all web API and page routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	h := NewHandlers(deps)
	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("GET /reports/{key}", h.HandleReportPage)

	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/reports", h.HandleReports)
	mux.HandleFunc("GET /api/reports/{key}", h.HandleReport)
	mux.HandleFunc("PUT /api/reports/{key}", h.HandleEditReport)
	mux.HandleFunc("DELETE /api/reports/{key}", h.HandleDeleteReport)

	mux.HandleFunc("GET /api/advisors", h.HandleAdvisors)
	mux.HandleFunc("GET /api/chat/{advisor}", h.HandleChatHistory)
	mux.HandleFunc("POST /api/chat/{advisor}", h.HandleChatSend)
	mux.HandleFunc("DELETE /api/chat/{advisor}", h.HandleChatReset)

	mux.HandleFunc("GET /api/runs", h.HandleRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.HandleRunDetail)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
