package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    SessionState
		terminal bool
	}{
		{StateAwaitingQuery, false},
		{StateAwaitingClarification, false},
		{StateSearching, false},
		{StateResultsEmpty, false},
		{StateResultsReady, false},
		{StateSynthesizing, false},
		{StateAwaitingRecipient, false},
		{StateDelivering, false},
		{StateCompleted, true},
		{StateAbandoned, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}

func TestIsValidStateTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     SessionState
		to       SessionState
		expected bool
	}{
		{
			name:     "awaiting_query to searching is valid",
			from:     StateAwaitingQuery,
			to:       StateSearching,
			expected: true,
		},
		{
			name:     "awaiting_query to awaiting_clarification is valid",
			from:     StateAwaitingQuery,
			to:       StateAwaitingClarification,
			expected: true,
		},
		{
			name:     "awaiting_query loops on rejection",
			from:     StateAwaitingQuery,
			to:       StateAwaitingQuery,
			expected: true,
		},
		{
			name:     "awaiting_query to delivering is invalid",
			from:     StateAwaitingQuery,
			to:       StateDelivering,
			expected: false,
		},
		{
			name:     "clarification loops back to searching",
			from:     StateAwaitingClarification,
			to:       StateSearching,
			expected: true,
		},
		{
			name:     "searching to results_empty is valid",
			from:     StateSearching,
			to:       StateResultsEmpty,
			expected: true,
		},
		{
			name:     "searching to awaiting_query on provider error",
			from:     StateSearching,
			to:       StateAwaitingQuery,
			expected: true,
		},
		{
			name:     "searching to completed is invalid",
			from:     StateSearching,
			to:       StateCompleted,
			expected: false,
		},
		{
			name:     "results_empty back to awaiting_query",
			from:     StateResultsEmpty,
			to:       StateAwaitingQuery,
			expected: true,
		},
		{
			name:     "results_ready to synthesizing is valid",
			from:     StateResultsReady,
			to:       StateSynthesizing,
			expected: true,
		},
		{
			name:     "synthesizing to awaiting_recipient is valid",
			from:     StateSynthesizing,
			to:       StateAwaitingRecipient,
			expected: true,
		},
		{
			name:     "synthesizing skips to delivering when recipient known",
			from:     StateSynthesizing,
			to:       StateDelivering,
			expected: true,
		},
		{
			name:     "awaiting_recipient loops on invalid address",
			from:     StateAwaitingRecipient,
			to:       StateAwaitingRecipient,
			expected: true,
		},
		{
			name:     "delivering to completed is valid",
			from:     StateDelivering,
			to:       StateCompleted,
			expected: true,
		},
		{
			name:     "delivering back to awaiting_recipient on failure",
			from:     StateDelivering,
			to:       StateAwaitingRecipient,
			expected: true,
		},
		{
			name:     "completed is a dead end",
			from:     StateCompleted,
			to:       StateAwaitingQuery,
			expected: false,
		},
		{
			name:     "abandoned is a dead end",
			from:     StateAbandoned,
			to:       StateAwaitingQuery,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidStateTransition(tt.from, tt.to))
		})
	}
}

func TestSession_Transition(t *testing.T) {
	sess := NewSession()
	require.Equal(t, StateAwaitingQuery, sess.State)

	err := sess.Transition(StateSearching)
	require.NoError(t, err)
	assert.Equal(t, StateSearching, sess.State)

	err = sess.Transition(StateCompleted)
	require.Error(t, err)

	var transErr *InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, StateSearching, transErr.From)
	assert.Equal(t, StateCompleted, transErr.To)
	assert.Equal(t, StateSearching, sess.State, "failed transition must not change state")
}

func TestSession_Abandon(t *testing.T) {
	sess := NewSession()
	sess.Abandon()
	assert.Equal(t, StateAbandoned, sess.State)
	assert.True(t, sess.Abandoned())

	// Abandoning a completed session must not resurrect it.
	done := NewSession()
	done.State = StateCompleted
	done.Abandon()
	assert.Equal(t, StateCompleted, done.State)
}

func TestSession_ResetQuery(t *testing.T) {
	sess := NewSession()
	sess.RawQuery = "type 2 diabetes treatment"
	sess.EnhancedQuery = "type 2 diabetes treatment diabetes mellitus"
	sess.ExpansionTerms = []string{"diabetes mellitus"}
	sess.Recipient = "user@example.org"
	sess.Articles = []*Article{{ID: "pubmed:1"}}
	sess.Report = &Report{}

	sess.ResetQuery()

	assert.Empty(t, sess.RawQuery)
	assert.Empty(t, sess.EnhancedQuery)
	assert.Nil(t, sess.ExpansionTerms)
	assert.Nil(t, sess.Articles)
	assert.Nil(t, sess.Report)
	assert.Equal(t, "user@example.org", sess.Recipient, "recipient survives a query reset")
}
