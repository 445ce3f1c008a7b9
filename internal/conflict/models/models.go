package models

import (
	"fmt"
	"strings"
	"time"

	"wordhub/internal/taxonomy"
	"wordhub/pkg/domain"
	dErrors "wordhub/pkg/domain-errors"
)

// Decision is the arbiter's answer to a duplicate add.
type Decision string

const (
	// DecisionNew keeps the existing entry untouched.
	DecisionNew Decision = "new"
	// DecisionReplace hands the entry over to the requester and resets it.
	DecisionReplace Decision = "replace"
	// DecisionCancel drops the request.
	DecisionCancel Decision = "cancel"
)

// Decisions lists the valid decisions in prompt order.
var Decisions = []Decision{DecisionNew, DecisionReplace, DecisionCancel}

// ParseDecision validates user input.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionNew, DecisionReplace, DecisionCancel:
		return d, nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown decision %q", s))
}

// PendingConflict is an add that hit an existing word and waits for the
// existing owner to arbitrate. It is consumed by exactly one decision.
type PendingConflict struct {
	Token     domain.ConflictToken `json:"token"`
	Arbiter   domain.ActorID       `json:"arbiter"`
	Requester domain.ActorID       `json:"requester"`
	Type      taxonomy.WordType    `json:"type"`
	Word      string               `json:"word"`
	Chat      domain.ChatID        `json:"chat"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// IsExpired reports whether the conflict outlived its TTL at now.
func (c *PendingConflict) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Outcome describes an accepted decision.
type Outcome struct {
	Conflict PendingConflict
	Decision Decision
	// Replaced is true when the entry now belongs to the requester.
	Replaced bool
}
