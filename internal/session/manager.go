package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/store"
	"github.com/mamounyosef/agentic-tutor/internal/stream"
)

// ErrUnknownSession is returned for a session id that has neither a live
// coordinator nor a persisted checkpoint.
var ErrUnknownSession = errors.New("unknown session")

// sweepInterval is how often the idle sweeper runs.
const sweepInterval = 5 * time.Minute

// handle pairs a live coordinator with its session row. The mutex
// serializes turns: a coordinator never sees two inputs at once.
type handle struct {
	mu       sync.Mutex
	coord    Coordinator
	sess     *domain.Session
	lastUsed time.Time
}

// Manager owns the live coordinators: one per session id, created on
// Add, rehydrated from the latest checkpoint on a miss, checkpointed
// after every turn, and evicted when idle or ended.
type Manager struct {
	repo store.Repository
	log  *slog.Logger

	mu        sync.Mutex
	live      map[string]*handle
	restorers map[string]RestoreFunc
}

// NewManager creates a manager backed by repo.
func NewManager(repo store.Repository, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		repo:      repo,
		log:       log,
		live:      make(map[string]*handle),
		restorers: make(map[string]RestoreFunc),
	}
}

// RegisterKind installs the restore function used to rehydrate
// coordinators of one kind after a restart.
func (m *Manager) RegisterKind(kind string, restore RestoreFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restorers[kind] = restore
}

// Add registers a freshly created coordinator and persists its session
// row.
func (m *Manager) Add(ctx context.Context, coord Coordinator, sess *domain.Session) error {
	if err := m.repo.CreateSession(ctx, sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	m.live[sess.SessionID] = &handle{coord: coord, sess: sess, lastUsed: time.Now()}
	m.mu.Unlock()

	m.log.Info("session registered", "session_id", sess.SessionID, "kind", sess.Kind)
	return nil
}

// Turn runs exactly one coordinator turn for the session, serialized
// against any concurrent turn for the same session, and checkpoints the
// resulting state. Events stream to sink as the turn produces them.
func (m *Manager) Turn(ctx context.Context, sessionID string, in stream.Input, sink stream.Sink) (*TurnResult, error) {
	h, err := m.handleFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.coord.Turn(ctx, in, sink)
	if err != nil {
		return nil, fmt.Errorf("turn: %w", err)
	}

	m.checkpoint(ctx, h, res)

	if res.Ended {
		m.Remove(sessionID)
	}
	return res, nil
}

// Session returns the session row for id, consulting live state first.
func (m *Manager) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	h, ok := m.live[sessionID]
	m.mu.Unlock()
	if ok {
		return h.sess, nil
	}
	sess, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnknownSession
	}
	return sess, nil
}

// Remove drops the live coordinator for a session. The persisted
// checkpoint stays; a later turn rehydrates from it.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, sessionID)
}

// handleFor returns the live handle for a session, rehydrating it from
// the latest checkpoint when the coordinator isn't in memory.
func (m *Manager) handleFor(ctx context.Context, sessionID string) (*handle, error) {
	m.mu.Lock()
	if h, ok := m.live[sessionID]; ok {
		h.lastUsed = time.Now()
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	sess, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrUnknownSession
	}

	snapshot, version, err := m.repo.LatestCheckpoint(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: no checkpoint for %s", ErrUnknownSession, sessionID)
	}

	restore, ok := m.restorers[sess.Kind]
	if !ok {
		return nil, fmt.Errorf("no restorer for session kind %q", sess.Kind)
	}
	coord, err := restore(sessionID, snapshot)
	if err != nil {
		return nil, fmt.Errorf("restore %s coordinator: %w", sess.Kind, err)
	}

	m.log.Info("session rehydrated", "session_id", sessionID, "kind", sess.Kind, "checkpoint_version", version)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have rehydrated concurrently; first one wins.
	if h, ok := m.live[sessionID]; ok {
		h.lastUsed = time.Now()
		return h, nil
	}
	h := &handle{coord: coord, sess: sess, lastUsed: time.Now()}
	m.live[sessionID] = h
	return h, nil
}

// checkpoint persists the coordinator state and the session row after a
// turn. Failures are logged, not returned: the turn itself succeeded
// and its output is already on the wire.
func (m *Manager) checkpoint(ctx context.Context, h *handle, res *TurnResult) {
	snapshot, err := h.coord.Snapshot()
	if err != nil {
		m.log.Error("snapshot failed", "session_id", h.sess.SessionID, "error", err)
		return
	}
	version, err := m.repo.PutCheckpoint(ctx, h.sess.SessionID, snapshot)
	if err != nil {
		m.log.Error("checkpoint write failed", "session_id", h.sess.SessionID, "error", err)
		return
	}

	h.sess.Phase = res.Phase
	h.sess.TurnCounter++
	h.sess.LastActivityAt = time.Now()
	h.sess.Active = !res.Ended
	if err := m.repo.UpdateSession(ctx, h.sess); err != nil {
		m.log.Warn("session row update failed", "session_id", h.sess.SessionID, "error", err)
	}

	m.log.Debug("turn checkpointed",
		"session_id", h.sess.SessionID,
		"version", version,
		"phase", res.Phase,
		"terminal", res.Terminal)
}

// StartSweeper runs a background goroutine that periodically expires
// idle sessions in the store and evicts their live coordinators.
func (m *Manager) StartSweeper(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		m.log.Info("idle sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				m.sweep(ctx, ttl)
			case <-ctx.Done():
				m.log.Info("idle sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (m *Manager) sweep(ctx context.Context, ttl time.Duration) {
	n, err := m.repo.ExpireIdleSessions(ctx, ttl)
	if err != nil {
		m.log.Error("expire idle sessions failed", "error", err)
	} else if n > 0 {
		m.log.Info("expired idle sessions", "count", n)
	}

	cutoff := time.Now().Add(-ttl)
	m.mu.Lock()
	for id, h := range m.live {
		if h.lastUsed.Before(cutoff) {
			delete(m.live, id)
			m.log.Info("evicted idle coordinator", "session_id", id)
		}
	}
	m.mu.Unlock()
}
