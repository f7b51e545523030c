package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/catalog"
	"github.com/aiwargamer/sitroom/internal/chat"
	"github.com/aiwargamer/sitroom/internal/execution"
	"github.com/aiwargamer/sitroom/internal/orchestration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore implements ReportStore for testing.
type mockStore struct {
	mu      sync.Mutex
	entries map[string]string
	loadErr error
	editErr error
}

func newMockStore(entries map[string]string) *mockStore {
	if entries == nil {
		entries = map[string]string{}
	}
	return &mockStore{entries: entries}
}

func (m *mockStore) Reports() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) Edit(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.entries[key] = value
	return nil
}

func (m *mockStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return fmt.Errorf("%w: %s", cache.ErrKeyNotFound, key)
	}
	delete(m.entries, key)
	return nil
}

func sampleEntries() map[string]string {
	return map[string]string{
		"report_Sitrep":       "# Sitrep\n\nBlue holds.",
		"report_Sigacts":      orchestration.FailurePlaceholder(errors.New("quota")),
		"briefing_Red_Teamer": "Attack the plan.",
		"notes":               "hand written",
	}
}

func newTestMux(t *testing.T, store ReportStore) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	cat := catalog.Default()
	RegisterRoutes(mux, Deps{
		Reports: store,
		Catalog: cat,
		Chat:    chat.NewController(cat, execution.NewMockGenerator("mock")),
		Context: func() string { return "HOST: hello\n" },
	})
	return mux
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux(t, newMockStore(sampleEntries()))

	rec := do(t, mux, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.Equal(t, 4, resp.Reports)
}

func TestHandleReports(t *testing.T) {
	mux := newTestMux(t, newMockStore(sampleEntries()))

	rec := do(t, mux, http.MethodGet, "/api/reports", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []ReportSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))

	// 6 reports + 4 briefings + 1 extra key
	require.Len(t, list, 11)
	byKey := map[string]ReportSummary{}
	for _, s := range list {
		byKey[s.Key] = s
	}
	assert.Equal(t, StatusReady, byKey["report_Sitrep"].Status)
	assert.Equal(t, "📊", byKey["report_Sitrep"].Icon)
	assert.Equal(t, StatusFailed, byKey["report_Sigacts"].Status)
	assert.Equal(t, StatusMissing, byKey["report_ORBAT"].Status)
	assert.Equal(t, StatusReady, byKey["briefing_Red_Teamer"].Status)
	assert.Equal(t, "other", byKey["notes"].Kind)
	assert.Equal(t, "report_Sitrep", list[0].Key)
	assert.Equal(t, "notes", list[len(list)-1].Key)
}

func TestHandleReports_LegacyKeyNotListedTwice(t *testing.T) {
	mux := newTestMux(t, newMockStore(map[string]string{"briefing_Red Teamer": "legacy"}))

	rec := do(t, mux, http.MethodGet, "/api/reports", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []ReportSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 10)
	for _, s := range list {
		if s.Key == "briefing_Red_Teamer" {
			assert.Equal(t, StatusReady, s.Status)
		}
	}
}

func TestHandleReports_StoreError(t *testing.T) {
	store := newMockStore(nil)
	store.loadErr = &cache.IOError{Op: "parse", Path: "x.json", Err: errors.New("bad")}
	mux := newTestMux(t, store)

	rec := do(t, mux, http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleReport(t *testing.T) {
	mux := newTestMux(t, newMockStore(sampleEntries()))

	rec := do(t, mux, http.MethodGet, "/api/reports/briefing_Red%20Teamer", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail ReportDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, "briefing_Red_Teamer", detail.Key)
	assert.Equal(t, "Red Teamer", detail.Name)
	assert.Equal(t, "Attack the plan.", detail.Content)

	rec = do(t, mux, http.MethodGet, "/api/reports/report_ORBAT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEditReport(t *testing.T) {
	store := newMockStore(sampleEntries())
	mux := newTestMux(t, store)

	rec := do(t, mux, http.MethodPut, "/api/reports/report_Sigacts", `{"content": "# Sigacts\n\nManual."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail ReportDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, StatusReady, detail.Status)
	assert.Equal(t, "# Sigacts\n\nManual.", store.entries["report_Sigacts"])
	assert.Equal(t, "# Sitrep\n\nBlue holds.", store.entries["report_Sitrep"])
}

func TestHandleEditReport_BadRequests(t *testing.T) {
	mux := newTestMux(t, newMockStore(nil))

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPut, "/api/reports/report_Sitrep", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPut, "/api/reports/report_Sitrep", `{"other": 1}`).Code)
}

func TestHandleEditReport_StoreError(t *testing.T) {
	store := newMockStore(nil)
	store.editErr = errors.New("disk full")
	mux := newTestMux(t, store)

	rec := do(t, mux, http.MethodPut, "/api/reports/report_Sitrep", `{"content": "x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
}

func TestHandleDeleteReport(t *testing.T) {
	store := newMockStore(sampleEntries())
	mux := newTestMux(t, store)

	assert.Equal(t, http.StatusNoContent, do(t, mux, http.MethodDelete, "/api/reports/notes", "").Code)
	assert.NotContains(t, store.entries, "notes")
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodDelete, "/api/reports/notes", "").Code)
}

func TestHandleReportPage(t *testing.T) {
	mux := newTestMux(t, newMockStore(sampleEntries()))

	rec := do(t, mux, http.MethodGet, "/reports/report_Sitrep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "📊 Sitrep</h1>")
	assert.Contains(t, body, `href="/reports/report_Sitrep" class="active"`)
	assert.Contains(t, body, "Citizen")

	rec = do(t, mux, http.MethodGet, "/reports/report_Sigacts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Generation failed for this report")

	rec = do(t, mux, http.MethodGet, "/reports/report_ORBAT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "has not been generated")

	rec = do(t, mux, http.MethodGet, "/reports/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleIndexRedirects(t *testing.T) {
	mux := newTestMux(t, newMockStore(nil))

	rec := do(t, mux, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/reports/report_Sitrep", rec.Header().Get("Location"))
}

func TestHandleAdvisors(t *testing.T) {
	mux := newTestMux(t, newMockStore(sampleEntries()))

	rec := do(t, mux, http.MethodGet, "/api/advisors", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var advisors []AdvisorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&advisors))
	require.Len(t, advisors, 4)
	assert.Equal(t, "Integrator", advisors[0].Name)
	assert.False(t, advisors[0].HasBriefing)
	assert.Equal(t, "Red Teamer", advisors[1].Name)
	assert.True(t, advisors[1].HasBriefing)
	assert.Equal(t, "briefing_Red_Teamer", advisors[1].BriefingKey)
	assert.Equal(t, "unstarted", advisors[1].ChatState)
}

func TestChatFlow(t *testing.T) {
	mux := newTestMux(t, newMockStore(nil))

	rec := do(t, mux, http.MethodPost, "/api/chat/Red%20Teamer", `{"message": "What is the weakest point?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply ChatReplyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	assert.Equal(t, "assistant", string(reply.Reply.Role))
	assert.False(t, reply.Reply.Failed)
	assert.Equal(t, "active", reply.Session.State)
	require.Len(t, reply.Session.Turns, 2)
	assert.Equal(t, "What is the weakest point?", reply.Session.Turns[0].Content)

	rec = do(t, mux, http.MethodGet, "/api/chat/Red_Teamer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history ChatSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.Len(t, history.Turns, 2)

	assert.Equal(t, http.StatusNoContent, do(t, mux, http.MethodDelete, "/api/chat/Red%20Teamer", "").Code)

	rec = do(t, mux, http.MethodGet, "/api/chat/Red%20Teamer", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.Empty(t, history.Turns)
	assert.Equal(t, "unstarted", history.State)
}

func TestChatErrors(t *testing.T) {
	mux := newTestMux(t, newMockStore(nil))

	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodPost, "/api/chat/Napoleon", `{"message": "hi"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/chat/Integrator", `{"message": "  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/chat/Integrator", `nope`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodDelete, "/api/chat/Napoleon", "").Code)
}

func TestChatDisabled(t *testing.T) {
	mux := http.NewServeMux()
	RegisterRoutes(mux, Deps{Reports: newMockStore(nil)})

	assert.Equal(t, http.StatusServiceUnavailable, do(t, mux, http.MethodPost, "/api/chat/Integrator", `{"message": "hi"}`).Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/api/runs", "").Code)
}

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no origins configured", func(t *testing.T) {
		h := CORSMiddleware(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed origin", func(t *testing.T) {
		h := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
	})

	t.Run("preflight", func(t *testing.T) {
		h := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodOptions, "/api/reports/report_Sitrep", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestCacheStore(t *testing.T) {
	store := cache.NewStore(filepath.Join(t.TempDir(), "cache.json"))
	cs := NewCacheStore(store, nil)

	entries, err := cs.Reports()
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, cs.Edit("report_Sitrep", "x"))
	entries, err = cs.Reports()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"report_Sitrep": "x"}, entries)

	require.NoError(t, cs.Delete("report_Sitrep"))
	assert.ErrorIs(t, cs.Delete("report_Sitrep"), cache.ErrKeyNotFound)
}

func TestCacheStore_WatcherServesOwnWrites(t *testing.T) {
	store := cache.NewStore(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, store.Save(map[string]string{"report_Sitrep": "X"}))

	w, err := cache.NewWatcher(store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	mux := newTestMux(t, NewCacheStore(store, w))

	rec := do(t, mux, http.MethodPut, "/api/reports/report_Sitrep", `{"content": "Y"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail ReportDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, "Y", detail.Content)

	rec = do(t, mux, http.MethodGet, "/api/reports/report_Sitrep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, "Y", detail.Content)

	assert.Equal(t, http.StatusNoContent, do(t, mux, http.MethodDelete, "/api/reports/report_Sitrep", "").Code)
	assert.Empty(t, w.Current())
}
