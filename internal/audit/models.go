package audit

import (
	"time"

	"github.com/google/uuid"

	id "corebank/pkg/domain"
)

// Outcome classifies how an audited action ended.
type Outcome string

const (
	// OutcomeSuccess: the operation committed.
	OutcomeSuccess Outcome = "success"
	// OutcomeDenied: the authorization gate refused the actor.
	OutcomeDenied Outcome = "denied"
	// OutcomeFailed: the operation was attempted and failed (validation or
	// mid-operation failure).
	OutcomeFailed Outcome = "failed"
)

// Record is one append-only audit trail entry. Records are never mutated or
// deleted once written; ordering is insertion order.
type Record struct {
	ID         uuid.UUID `json:"id"`
	ActorID    id.UserID `json:"actor_id"`
	Role       id.Role   `json:"role"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Outcome    Outcome   `json:"outcome"`
	Timestamp  time.Time `json:"timestamp"`
	Detail     string    `json:"detail,omitempty"`
}

// Filter narrows audit listings. Zero values mean "any".
type Filter struct {
	ActorID id.UserID
	Action  string
	Since   time.Time
	Until   time.Time
}

// Matches applies the filter in memory.
func (f Filter) Matches(r *Record) bool {
	if !f.ActorID.IsZero() && r.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	return true
}
