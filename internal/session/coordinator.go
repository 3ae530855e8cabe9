// Package session glues live coordinator instances to sessions: it holds
// one coordinator per session id in memory, serializes turns, checkpoints
// state after every turn, and rehydrates coordinators from the store
// after a restart.
package session

import (
	"context"

	"github.com/mamounyosef/agentic-tutor/internal/stream"
)

// Terminal nodes a turn can end at.
const (
	TerminalEndTurn   = "end_turn"
	TerminalFinalize  = "finalize"
	TerminalSummarize = "summarize"
)

// TurnResult is the outcome of one coordinator turn.
type TurnResult struct {
	// Phase is the coordinator state after the turn.
	Phase string

	// Response is the complete assistant text produced this turn.
	Response string

	// Terminal names the node the turn ended at.
	Terminal string

	// Progress is the coordinator's overall progress in [0,1].
	Progress float64

	// Ended is true when the session is finished (finalize/summarize).
	Ended bool
}

// Coordinator is one live per-session state machine. Implementations are
// not safe for concurrent turns; the manager serializes access.
type Coordinator interface {
	// Kind returns the coordinator kind (constructor or tutor).
	Kind() string

	// SessionID returns the session this coordinator drives.
	SessionID() string

	// Turn processes exactly one external input, emitting ordered output
	// events to sink, and runs to a terminal node.
	Turn(ctx context.Context, in stream.Input, sink stream.Sink) (*TurnResult, error)

	// Snapshot serializes the coordinator state for checkpointing.
	Snapshot() ([]byte, error)
}

// RestoreFunc rebuilds a coordinator of one kind from a checkpoint blob.
type RestoreFunc func(sessionID string, snapshot []byte) (Coordinator, error)
