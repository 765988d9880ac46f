package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle states of a conversational session.
type SessionState string

const (
	StateAwaitingQuery         SessionState = "awaiting_query"
	StateAwaitingClarification SessionState = "awaiting_clarification"
	StateSearching             SessionState = "searching"
	StateResultsEmpty          SessionState = "results_empty"
	StateResultsReady          SessionState = "results_ready"
	StateSynthesizing          SessionState = "synthesizing"
	StateAwaitingRecipient     SessionState = "awaiting_recipient"
	StateDelivering            SessionState = "delivering"
	StateCompleted             SessionState = "completed"
	StateAbandoned             SessionState = "abandoned"
)

// IsTerminal returns true if the state represents a final state that will
// not change.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateAbandoned:
		return true
	default:
		return false
	}
}

// validStateTransitions defines the allowed state transitions for a session.
// Searching, ResultsReady, Synthesizing and Delivering are transient states
// passed through within a single turn; the remaining states persist between
// turns. This is a package-level variable to avoid re-allocating on every call.
var validStateTransitions = map[SessionState][]SessionState{
	StateAwaitingQuery: {
		StateAwaitingQuery, // rejected query, re-prompt
		StateAwaitingClarification,
		StateSearching,
		StateAbandoned,
	},
	StateAwaitingClarification: {
		StateAwaitingClarification, // still ambiguous after merge
		StateSearching,
		StateAbandoned,
	},
	StateSearching: {
		StateResultsEmpty,
		StateResultsReady,
		StateAwaitingQuery, // provider error, context preserved
		StateAbandoned,
	},
	StateResultsEmpty: {
		StateAwaitingQuery, // user opts to broaden
		StateSearching,     // user supplies a fresh query directly
		StateAwaitingClarification,
		StateResultsEmpty,
		StateAbandoned,
	},
	StateResultsReady: {
		StateSynthesizing,
		StateAbandoned,
	},
	StateSynthesizing: {
		StateAwaitingRecipient,
		StateDelivering, // recipient already known
		StateAbandoned,  // synthesis failure is fatal
	},
	StateAwaitingRecipient: {
		StateAwaitingRecipient, // invalid address, re-prompt
		StateDelivering,
		StateAbandoned,
	},
	StateDelivering: {
		StateCompleted,
		StateAwaitingRecipient, // delivery failed, allow correction
		StateAbandoned,
	},
}

// IsValidStateTransition reports whether moving from one session state to
// another is allowed.
func IsValidStateTransition(from, to SessionState) bool {
	for _, allowed := range validStateTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Session holds the state of one user's multi-turn interaction. A session is
// created on the first user message and discarded once delivery completes or
// the user abandons it. Sessions are not shared between users; access within
// one session is serialized by the conversation store.
type Session struct {
	ID uuid.UUID

	// RawQuery is the user's topic text, mutable until it passes validation.
	// Clarification turns are merged into it.
	RawQuery string

	// EnhancedQuery is the expanded search query. Immutable once set; it is
	// only set after RawQuery passes validation.
	EnhancedQuery string

	// ExpansionTerms are the vocabulary terms appended to the raw query.
	ExpansionTerms []string

	// Recipient is the validated destination address, empty until known.
	Recipient string

	// Articles is the ordered result of the last successful search.
	Articles []*Article

	// Report is set only after Articles is non-empty and synthesis succeeded.
	Report *Report

	// Delivery is the record of the most recent send attempt.
	Delivery *DeliveryRecord

	State     SessionState
	Turns     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a session in the AwaitingQuery state.
func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New(),
		State:     StateAwaitingQuery,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the session to a new state, returning an error if the
// transition is not allowed.
func (s *Session) Transition(to SessionState) error {
	if !IsValidStateTransition(s.State, to) {
		return NewInvalidTransitionError(s.State, to)
	}
	s.State = to
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Abandon marks the session abandoned. Valid from any non-terminal state.
func (s *Session) Abandon() {
	if s.State.IsTerminal() {
		return
	}
	s.State = StateAbandoned
	s.UpdatedAt = time.Now().UTC()
}

// Abandoned reports whether the session has been abandoned. Results of
// in-flight external calls must be discarded when this returns true.
func (s *Session) Abandoned() bool {
	return s.State == StateAbandoned
}

// ResetQuery clears query-derived state so a new topic can be accepted while
// preserving the recipient address.
func (s *Session) ResetQuery() {
	s.RawQuery = ""
	s.EnhancedQuery = ""
	s.ExpansionTerms = nil
	s.Articles = nil
	s.Report = nil
	s.UpdatedAt = time.Now().UTC()
}
