// Package session stores the in-progress booking dialogue of each user.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a step of the booking dialogue.
type State uint8

const (
	StateStart State = iota
	StateCategorySelection
	StateSpecialtySelection
	StateProviderSelection
	StateItemSelection
	StateDateInput
	StateTimeInput
	StateConfirmation
	StateCompleted
	StateCancelled
)

var stateNames = [...]string{
	StateStart:              "start",
	StateCategorySelection:  "category_selection",
	StateSpecialtySelection: "specialty_selection",
	StateProviderSelection:  "provider_selection",
	StateItemSelection:      "item_selection",
	StateDateInput:          "date_input",
	StateTimeInput:          "time_input",
	StateConfirmation:       "confirmation",
	StateCompleted:          "completed",
	StateCancelled:          "cancelled",
}

// ErrUnknownState is returned when decoding a state name that does not exist.
var ErrUnknownState = errors.New("session: unknown state")

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal reports whether the dialogue has ended.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownState, uint8(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState resolves a state name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// Session is one user's unfinished booking dialogue.
type Session struct {
	// ID identifies one dialogue for log correlation.
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	State       State     `json:"state"`
	DisplayName string    `json:"display_name,omitempty"`
	Category    string    `json:"category,omitempty"`
	Specialty   string    `json:"specialty,omitempty"`
	Item        string    `json:"item,omitempty"`
	Date        string    `json:"date,omitempty"`
	Time        string    `json:"time,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Reset clears the booking selections, keeping identity fields.
func (s *Session) Reset() {
	s.Category = ""
	s.Specialty = ""
	s.Item = ""
	s.Date = ""
	s.Time = ""
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Store persists sessions keyed by user id.
type Store interface {
	// Get returns nil, nil when the user has no session.
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID string) error
}
