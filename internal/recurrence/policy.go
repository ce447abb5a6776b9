package recurrence

import (
	"time"
)

// Definition is a recurring task template as seen by the recurrence engine.
type Definition struct {
	ID int64

	Title          string
	Description    string
	Priority       string
	Tags           []string
	EstimatedHours *float64
	ProjectID      *int64
	ChannelID      string
	CreatorID      string
	Assignees      []string

	// BaseDueDate anchors the due dates of spawned instances, if set.
	BaseDueDate *time.Time

	Pattern   Pattern
	Frequency int
	// EndDate is inclusive; no occurrence after it fires.
	EndDate *time.Time
	// LastRecurrence is the anchor the next occurrence is computed from.
	LastRecurrence *time.Time

	IsRecurring bool
	IsCancelled bool
}

// Instance is a concrete task materialized from a Definition.
type Instance struct {
	ID       int64
	OriginID int64

	Title          string
	Description    string
	Priority       string
	Tags           []string
	EstimatedHours *float64
	ProjectID      *int64
	ChannelID      string
	CreatorID      string
	Assignees      []string

	DueDate *time.Time
	Status  string
}

// Decision is the outcome of evaluating one definition at one instant.
type Decision struct {
	// Fire is false for NoAction.
	Fire bool
	// NewDueDate is the due date of the spawned instance, nil when the
	// definition has no base due date.
	NewDueDate *time.Time
	// NewAnchor replaces the definition's LastRecurrence once the instance is stored.
	NewAnchor time.Time
}

// NoAction is the decision that leaves a definition untouched.
var NoAction = Decision{}

// Evaluate decides whether def is due for a new instance at now. It is pure;
// the caller applies the decision.
//
// The anchor resets to now rather than to the missed occurrence, so a
// definition that was dormant for several periods fires once, not once per
// missed period.
func Evaluate(def Definition, now time.Time) (Decision, error) {
	if !def.IsRecurring || def.IsCancelled || def.LastRecurrence == nil {
		return NoAction, nil
	}

	candidate, err := NextOccurrence(*def.LastRecurrence, def.Pattern, def.Frequency)
	if err != nil {
		return NoAction, err
	}
	if candidate.After(now) {
		return NoAction, nil
	}
	if def.EndDate != nil && candidate.After(*def.EndDate) {
		return NoAction, nil
	}

	decision := Decision{Fire: true, NewAnchor: now}
	if def.BaseDueDate != nil {
		due, err := NextOccurrence(*def.BaseDueDate, def.Pattern, def.Frequency)
		if err != nil {
			return NoAction, err
		}
		decision.NewDueDate = &due
	}
	return decision, nil
}
