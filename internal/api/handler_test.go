package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mamounyosef/agentic-tutor/internal/config"
	"github.com/mamounyosef/agentic-tutor/internal/constructor"
	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/extract"
	"github.com/mamounyosef/agentic-tutor/internal/identity"
	"github.com/mamounyosef/agentic-tutor/internal/session"
	"github.com/mamounyosef/agentic-tutor/internal/store"
	"github.com/mamounyosef/agentic-tutor/internal/tutor"
)

func newTestServer(t *testing.T) (http.Handler, store.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := store.NewSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	cons := constructor.Deps{Repo: repo, Extractors: extract.NewRegistry()}
	tut := tutor.Deps{Repo: repo}

	mgr := session.NewManager(repo, nil)
	mgr.RegisterKind(domain.KindConstructor, constructor.Restore(cons))
	mgr.RegisterKind(domain.KindTutor, tutor.Restore(tut))

	cfg := &config.Config{
		RateLimit:       100,
		RateLimitWindow: time.Minute,
		UploadDir:       filepath.Join(dir, "uploads"),
	}
	h := NewHandler(mgr, repo, cons, tut, cfg, nil)

	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r, repo
}

// asUser wraps a request with a fixed anonymous identity.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(identity.WithUserID(r.Context(), userID))
}

func doJSON(t *testing.T, srv http.Handler, method, path, userID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := asUser(httptest.NewRequest(method, path, &buf), userID)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestCreateSession_Constructor(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, out := doJSON(t, srv, http.MethodPost, "/api/sessions", "u1",
		map[string]string{"kind": "constructor"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if out["session_id"] == "" || out["course_id"] == "" {
		t.Errorf("response = %v", out)
	}
	msg, _ := out["message"].(string)
	if !strings.Contains(msg, "course") {
		t.Errorf("welcome message = %q", msg)
	}
}

func TestCreateSession_TutorNeedsCourse(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/sessions", "u1",
		map[string]string{"kind": "tutor"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/sessions", "u1",
		map[string]string{"kind": "banana"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rec.Code)
	}
}

func TestGetSession_OwnershipEnforced(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out := doJSON(t, srv, http.MethodPost, "/api/sessions", "u1",
		map[string]string{"kind": "constructor"})
	id, _ := out["session_id"].(string)

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/sessions/"+id, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner status = %d", rec.Code)
	}

	// Another user must not learn the session exists.
	rec, _ = doJSON(t, srv, http.MethodGet, "/api/sessions/"+id, "u2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign user status = %d, want 404", rec.Code)
	}
}

func TestGetSession_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodGet, "/api/sessions/does-not-exist", "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPostMessage_RunsTurn(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out := doJSON(t, srv, http.MethodPost, "/api/sessions", "u1",
		map[string]string{"kind": "constructor"})
	id, _ := out["session_id"].(string)

	rec, out := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/message", "u1",
		map[string]string{"message": "I want to build a Go course for beginners"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if out["response"] == "" {
		t.Error("empty turn response")
	}
	events, _ := out["events"].([]any)
	if len(events) == 0 {
		t.Error("no buffered events in synchronous reply")
	}

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/message", "u1",
		map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}
}

func TestTutorSession_EndToEnd(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

	courseID := "course-1"
	if err := repo.SaveTopics(ctx, courseID, []domain.Topic{{ID: "t1", Title: "Basics"}}); err != nil {
		t.Fatalf("SaveTopics: %v", err)
	}

	rec, out := doJSON(t, srv, http.MethodPost, "/api/sessions", "u1",
		map[string]string{"kind": "tutor", "course_id": courseID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	id, _ := out["session_id"].(string)

	rec, out = doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/end", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end status = %d, body = %s", rec.Code, rec.Body)
	}
	if ended, _ := out["ended"].(bool); !ended {
		t.Errorf("end response = %v", out)
	}

	// The session row is inactive afterwards.
	sess, err := repo.GetSession(ctx, id)
	if err != nil || sess == nil {
		t.Fatalf("GetSession: %v, %v", sess, err)
	}
	if sess.Active {
		t.Error("session still active after end")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("first two requests denied")
	}
	if rl.Allow("u1") {
		t.Error("third request allowed over limit")
	}
	if !rl.Allow("u2") {
		t.Error("independent key denied")
	}
}

func TestJSONHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusTeapot, map[string]string{"a": "b"})
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	rec = httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "nope")
	if !strings.Contains(rec.Body.String(), "nope") {
		t.Errorf("body = %q", rec.Body)
	}
}
