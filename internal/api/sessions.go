package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mamounyosef/agentic-tutor/internal/constructor"
	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/extract"
	"github.com/mamounyosef/agentic-tutor/internal/identity"
	"github.com/mamounyosef/agentic-tutor/internal/session"
	"github.com/mamounyosef/agentic-tutor/internal/stream"
	"github.com/mamounyosef/agentic-tutor/internal/tutor"
)

// maxUploadSize caps one multipart upload request.
const maxUploadSize = 20 << 20

// RegisterRoutes mounts the session API under the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.Post("/sessions/{id}/message", h.PostMessage)
	r.Post("/sessions/{id}/quiz-answer", h.PostQuizAnswer)
	r.Post("/sessions/{id}/upload", h.Upload)
	r.Post("/sessions/{id}/end", h.EndSession)
}

type createSessionRequest struct {
	Kind     string `json:"kind"`
	CourseID string `json:"course_id,omitempty"`
}

// CreateSession starts a new constructor or tutor session and runs the
// welcome turn synchronously so the client has an opening message.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if !h.limiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := uuid.NewString()
	var coord session.Coordinator
	var courseID string

	switch req.Kind {
	case domain.KindConstructor:
		c := constructor.New(sessionID, userID, h.cons)
		coord, courseID = c, c.CourseID()
	case domain.KindTutor:
		if req.CourseID == "" {
			Error(w, http.StatusBadRequest, "course_id is required for tutor sessions")
			return
		}
		coord, courseID = tutor.New(sessionID, userID, req.CourseID, h.tut), req.CourseID
	default:
		Error(w, http.StatusBadRequest, "kind must be constructor or tutor")
		return
	}

	now := time.Now()
	sess := &domain.Session{
		SessionID:      sessionID,
		OwnerID:        userID,
		Kind:           req.Kind,
		SubjectID:      courseID,
		Active:         true,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := h.mgr.Add(r.Context(), coord, sess); err != nil {
		h.log.Error("create session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	var buf stream.Buffer
	res, err := h.mgr.Turn(r.Context(), sessionID, stream.Input{}, &buf)
	if err != nil {
		h.log.Error("welcome turn", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	JSON(w, http.StatusCreated, map[string]any{
		"session_id": sessionID,
		"kind":       req.Kind,
		"course_id":  courseID,
		"phase":      res.Phase,
		"message":    res.Response,
	})
}

// GetSession reports a session's phase and progress.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"session_id":    sess.SessionID,
		"kind":          sess.Kind,
		"course_id":     sess.SubjectID,
		"phase":         sess.Phase,
		"active":        sess.Active,
		"turns":         sess.TurnCounter,
		"last_activity": sess.LastActivityAt,
	})
}

type messageRequest struct {
	Message string `json:"message"`
}

// PostMessage is the synchronous fallback for clients without a
// websocket: the turn runs to completion and the buffered events
// return in one response. Turn semantics are identical to the
// websocket path.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if !h.limiter.Allow(sess.OwnerID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	h.runTurn(w, r, sess.SessionID, stream.Input{Type: stream.InputMessage, Message: req.Message})
}

type quizAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// PostQuizAnswer submits an answer to the pending quiz question.
func (h *Handler) PostQuizAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req quizAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		Error(w, http.StatusBadRequest, "answer is required")
		return
	}

	h.runTurn(w, r, sess.SessionID, stream.Input{
		Type:       stream.InputQuizAnswer,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
	})
}

// Upload accepts course material files, stores them, and hands the new
// file ids to the session as an upload input.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		Error(w, http.StatusBadRequest, "no files provided")
		return
	}

	dir := filepath.Join(h.cfg.UploadDir, sess.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.log.Error("create upload dir", "error", err)
		Error(w, http.StatusInternalServerError, "failed to store files")
		return
	}

	var fileIDs []string
	for _, fh := range files {
		id := uuid.NewString()
		path := filepath.Join(dir, id+"-"+filepath.Base(fh.Filename))
		if err := saveUpload(fh, path); err != nil {
			h.log.Error("store upload", "name", fh.Filename, "error", err)
			Error(w, http.StatusInternalServerError, "failed to store files")
			return
		}

		rec := &domain.UploadedFile{
			ID:        id,
			SessionID: sess.SessionID,
			Name:      fh.Filename,
			Type:      extract.DetectType(fh.Filename, fh.Header.Get("Content-Type")),
			Path:      path,
			CreatedAt: time.Now(),
		}
		if err := h.repo.SaveFile(r.Context(), rec); err != nil {
			h.log.Error("save file record", "name", fh.Filename, "error", err)
			Error(w, http.StatusInternalServerError, "failed to store files")
			return
		}
		fileIDs = append(fileIDs, id)
	}

	h.runTurn(w, r, sess.SessionID, stream.Input{Type: stream.InputUpload, FileIDs: fileIDs})
}

// EndSession finishes a session. Tutor sessions run a final summary
// turn; constructor sessions are simply deactivated.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	if sess.Kind == domain.KindTutor && sess.Active {
		h.runTurn(w, r, sess.SessionID, stream.Input{Type: stream.InputMessage, Message: "finish"})
		return
	}

	h.mgr.Remove(sess.SessionID)
	sess.Active = false
	if err := h.repo.UpdateSession(r.Context(), sess); err != nil {
		h.log.Error("deactivate session", "session_id", sess.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"session_id": sess.SessionID, "ended": true})
}

// runTurn executes one turn with a buffering sink and writes the
// complete result.
func (h *Handler) runTurn(w http.ResponseWriter, r *http.Request, sessionID string, in stream.Input) {
	var buf stream.Buffer
	res, err := h.mgr.Turn(r.Context(), sessionID, in, &buf)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			Error(w, http.StatusNotFound, "session not found")
			return
		}
		h.log.Error("turn failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "turn failed")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"response":   res.Response,
		"phase":      res.Phase,
		"terminal":   res.Terminal,
		"ended":      res.Ended,
		"events":     buf.Events(),
	})
}

// ownedSession loads the session from the path id and enforces that the
// caller owns it. Missing and foreign sessions are indistinguishable.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	sessionID := chi.URLParam(r, "id")
	userID := identity.UserIDFromContext(r.Context())

	sess, err := h.mgr.Session(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			Error(w, http.StatusNotFound, "session not found")
			return nil, false
		}
		h.log.Error("load session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if sess.OwnerID != userID {
		Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
