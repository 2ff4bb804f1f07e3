package onboarding

import (
	"fmt"

	"github.com/mesikahq/niv-onboarding/internal/ehr"
)

// Status is the onboarding lifecycle state. The workflow is cyclic: REVIEWED
// and CHANGED both route back to WATCHLIST, so there is no terminal state.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusWatchlist Status = "WATCHLIST"
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusReviewed  Status = "REVIEWED"
	StatusChanged   Status = "CHANGED"
)

// transitions is the only source of edge legality. Any pair not listed here,
// including self-transitions and edges into NEW, is rejected.
var transitions = map[Status][]Status{
	StatusNew:       {StatusWatchlist},
	StatusWatchlist: {StatusPending, StatusReviewed},
	StatusPending:   {StatusActive},
	StatusActive:    {StatusChanged},
	StatusReviewed:  {StatusWatchlist},
	StatusChanged:   {StatusWatchlist},
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo is a pure predicate over the transition table.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s Status) IsActive() bool {
	return s == StatusActive
}

func (s Status) IsInProgress() bool {
	return s == StatusPending || s == StatusWatchlist
}

// ErrInvalidTransition builds the fatal, non-retryable error surfaced when a
// requested status change is not in the transition table.
func ErrInvalidTransition(from, to Status) *ehr.DomainError {
	return &ehr.DomainError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("cannot transition onboarding status from %s to %s", from, to),
		Action:  ehr.ActionStop,
		Context: map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		},
	}
}
