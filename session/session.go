package session

import (
	"errors"
	"time"

	"github.com/mohammad-safakhou/newsgpt/models"
	"github.com/mohammad-safakhou/newsgpt/session/session_models"
)

// ErrTurnInProgress is returned when a second turn starts before the first finished.
var ErrTurnInProgress = errors.New("a conversation turn is already in progress")

// Store interface for session management
type Store interface {
	EnsureSession(id string, ttl time.Duration) (Session, error)
	GetSession(id string) (Session, error)
}

// State is the slice of a session the assistant writes after a turn.
type State interface {
	SetArticles(articles []models.Article) error
	SetLastResponse(text string)
}

// Session is the per-user conversation context handed to every handler.
type Session interface {
	State
	ID() string
	Expire(ttl time.Duration)
	Expired(now time.Time) bool
	History() []models.Turn
	AppendTurns(turns ...models.Turn)
	Reset() error
	Articles() []models.Article
	LastResponse() string
	SearchArticles(q string, k int) ([]session_models.SearchHit, error)
	// BeginTurn reports false when a turn is already running; EndTurn releases it.
	BeginTurn() bool
	EndTurn()
}
