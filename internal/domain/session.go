package domain

import "time"

// Session kinds.
const (
	KindConstructor = "constructor"
	KindTutor       = "tutor"
)

// Session is the unit of conversation. One row per session; mutated once
// per turn by its coordinator. Sessions are never deleted automatically,
// they become inactive after an idle timeout or an explicit end request.
type Session struct {
	SessionID      string
	OwnerID        string
	Kind           string
	SubjectID      string // course id, empty until the course exists
	Phase          string
	TurnCounter    int
	Active         bool
	CreatedAt      time.Time
	LastActivityAt time.Time
}
