// Package session tracks per-conversation state with sliding expiration,
// backed by an in-process map or redis.
package session

import (
	"context"
	"time"
)

// State is the top-level conversation state.
type State string

const (
	StateIdle            State = "IDLE"
	StateAdminMenu       State = "ADMIN_MENU"
	StateSelectingLetter State = "SELECTING_LETTER"
	StateSelectingPerson State = "SELECTING_PERSON"
	StateViewingCard     State = "VIEWING_CARD"
	StateBuilderMode     State = "BUILDER_MODE"
)

// Mode distinguishes what a navigation flow will do with the selected record.
type Mode string

const (
	ModeNone     Mode = ""
	ModeViewOnly Mode = "VIEW_ONLY"
	ModeEdit     Mode = "EDIT"
	ModeCreate   Mode = "CREATE"
)

// Step is the sub-state inside BUILDER_MODE.
type Step string

const (
	StepNone          Step = ""
	StepMenu          Step = "MENU"
	StepWaitingValue  Step = "WAITING_VALUE"
	StepWaitingNewCat Step = "WAITING_NEW_CAT"
)

// Person is one candidate from the last letter search, remembered so the
// list can be re-rendered without refetching.
type Person struct {
	Label string `json:"label"`
	Row   int    `json:"row"`
}

// Session is the mutable per-chat state bag.
type Session struct {
	State        State             `json:"state"`
	Mode         Mode              `json:"mode,omitempty"`
	Draft        map[string]string `json:"draft"`
	Step         Step              `json:"step,omitempty"`
	CurrentField string            `json:"current_field,omitempty"`
	LastLetter   string            `json:"last_letter,omitempty"`
	People       []Person          `json:"people_list,omitempty"`
	ViewingRow   int               `json:"viewing_row,omitempty"`
	EditingRow   int               `json:"editing_row,omitempty"`
	UserID       int64             `json:"user_id,omitempty"`
	LastAccess   int64             `json:"last_access"`
	CreatedAt    string            `json:"created_at"`
}

// New returns the default session a never-seen or expired chat gets.
func New() *Session {
	return &Session{
		State:      StateIdle,
		Draft:      make(map[string]string),
		LastAccess: time.Now().Unix(),
		CreatedAt:  time.Now().Format(time.RFC3339),
	}
}

// Store is the session backing. Get refreshes the sliding expiration window
// as a side effect and returns a fresh default session on miss or expiry.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, chatID int64, s *Session) error
	Clear(ctx context.Context, chatID int64) error
	// SweepExpired removes dead sessions for backings without native TTL;
	// it reports how many were dropped.
	SweepExpired(ctx context.Context) (int, error)
}
