package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/mamounyosef/agentic-tutor/internal/stream"
)

// turnTimeout bounds a single turn run from a websocket input. The turn
// context is detached from the connection: a client dropping mid-turn
// must not abort sub-agent work or lose the checkpoint.
const turnTimeout = 2 * time.Minute

// WSHandler serves a session's event stream over a websocket. One
// connection per session id; a newer connection replaces the older one.
type WSHandler struct {
	mgr           *Manager
	log           *slog.Logger
	allowedOrigin string
	isDev         bool

	mu     sync.Mutex
	active map[string]*websocket.Conn
}

// NewWSHandler creates a websocket handler on top of the session
// manager.
func NewWSHandler(mgr *Manager, log *slog.Logger, allowedOrigin string, isDev bool) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		mgr:           mgr,
		log:           log,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		active:        make(map[string]*websocket.Conn),
	}
}

// ServeHTTP upgrades the connection and pumps inputs through the
// session manager until the client disconnects or the session ends.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	if _, err := h.mgr.Session(r.Context(), sessionID); err != nil {
		if errors.Is(err, ErrUnknownSession) {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		h.log.Error("session lookup failed", "session_id", sessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns(),
	})
	if err != nil {
		h.log.Warn("websocket accept failed", "session_id", sessionID, "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
	}()

	h.register(sessionID, ws)
	defer h.unregister(sessionID, ws)

	h.log.Info("websocket connected", "session_id", sessionID, "ip", r.RemoteAddr)
	h.readLoop(r.Context(), sessionID, ws)
}

func (h *WSHandler) readLoop(connCtx context.Context, sessionID string, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(connCtx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.log.Debug("websocket closed by client", "session_id", sessionID)
			} else {
				h.log.Warn("websocket read error", "session_id", sessionID, "error", err)
			}
			return
		}

		var in stream.Input
		if err := json.Unmarshal(data, &in); err != nil {
			h.writeEvent(ws, stream.Error("malformed input"))
			continue
		}
		if in.Type == "ping" {
			h.writeEvent(ws, stream.Event{Type: "pong"})
			continue
		}

		// Detach from the connection context so a disconnect mid-turn
		// lets the turn finish and checkpoint.
		turnCtx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		sink := stream.SinkFunc(func(ev stream.Event) error {
			return h.writeEvent(ws, ev)
		})
		res, err := h.mgr.Turn(turnCtx, sessionID, in, sink)
		cancel()
		if err != nil {
			h.log.Error("turn failed", "session_id", sessionID, "error", err)
			h.writeEvent(ws, stream.Error("turn failed"))
			if errors.Is(err, ErrUnknownSession) {
				return
			}
			continue
		}

		h.writeEvent(ws, stream.Event{
			Type: stream.EventStatus,
			Metadata: map[string]any{
				"phase":    res.Phase,
				"terminal": res.Terminal,
				"ended":    res.Ended,
			},
		})
		if res.Ended {
			h.log.Info("session ended over websocket", "session_id", sessionID)
			return
		}
	}
}

func (h *WSHandler) register(sessionID string, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.active[sessionID]; ok && existing != ws {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	h.active[sessionID] = ws
}

func (h *WSHandler) unregister(sessionID string, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.active[sessionID]; ok && current == ws {
		delete(h.active, sessionID)
	}
}

// originPatterns translates the configured allowed origin into the host
// pattern the websocket handshake enforces. Accept is the only origin
// gate on this path.
func (h *WSHandler) originPatterns() []string {
	if h.isDev || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return []string{"*"}
	}
	if u, err := url.Parse(h.allowedOrigin); err == nil && u.Host != "" {
		return []string{u.Host}
	}
	return []string{h.allowedOrigin}
}

func (h *WSHandler) writeEvent(ws *websocket.Conn, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		h.log.Debug("websocket write error", "error", err)
		return err
	}
	return nil
}
