package recurrence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// InitialStatus is the status given to every materialized instance.
const InitialStatus = "todo"

// Repository is the storage collaborator of the sweep.
type Repository interface {
	// ListActiveRecurring returns definitions that are recurring, not cancelled
	// and whose end date is unset or not before now.
	ListActiveRecurring(ctx context.Context, now time.Time) ([]Definition, error)

	// Materialize stores inst and moves the definition's anchor to anchor in a
	// single transaction. Nothing is written when it returns an error.
	Materialize(ctx context.Context, def Definition, inst Instance, anchor time.Time) (Instance, error)
}

// Failure records why one definition could not be processed.
type Failure struct {
	DefinitionID int64
	Err          error
}

func (f Failure) Error() string {
	return fmt.Sprintf("definition %d: %v", f.DefinitionID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result summarizes one sweep.
type Result struct {
	Evaluated int
	Created   []Instance
	Failures  []Failure
}

// Err joins all per-definition failures, or returns nil.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Sweeper evaluates recurring definitions and materializes due instances.
type Sweeper struct {
	repo   Repository
	logger *slog.Logger
}

// NewSweeper creates a Sweeper backed by repo.
func NewSweeper(repo Repository, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sweeper{
		repo:   repo,
		logger: logger.With("component", "recurrence_sweeper"),
	}
}

// Run loads the active definitions and sweeps them at now. The returned error
// is only set when the definitions could not be loaded; per-definition problems
// are reported in Result.Failures.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Result, error) {
	defs, err := s.repo.ListActiveRecurring(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load recurring definitions", "error", err)
		return Result{}, fmt.Errorf("failed to load recurring definitions: %w", err)
	}
	return s.Sweep(ctx, defs, now), nil
}

// Sweep applies the recurrence policy to each definition independently. A
// failure on one definition is recorded and the sweep moves on.
func (s *Sweeper) Sweep(ctx context.Context, defs []Definition, now time.Time) Result {
	var res Result

	for _, def := range defs {
		if !eligible(def, now) {
			continue
		}
		res.Evaluated++

		decision, err := Evaluate(def, now)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed recurring definition",
				"definition_id", def.ID, "pattern", def.Pattern, "frequency", def.Frequency, "error", err)
			res.Failures = append(res.Failures, Failure{DefinitionID: def.ID, Err: err})
			continue
		}
		if !decision.Fire {
			continue
		}

		inst, err := s.repo.Materialize(ctx, def, NewInstance(def, decision), decision.NewAnchor)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to materialize recurring instance, anchor left unchanged",
				"definition_id", def.ID, "error", err)
			res.Failures = append(res.Failures, Failure{DefinitionID: def.ID, Err: err})
			continue
		}

		s.logger.InfoContext(ctx, "Materialized recurring instance",
			"definition_id", def.ID, "instance_id", inst.ID, "new_anchor", decision.NewAnchor)
		res.Created = append(res.Created, inst)
	}

	return res
}

func eligible(def Definition, now time.Time) bool {
	if !def.IsRecurring || def.IsCancelled {
		return false
	}
	return def.EndDate == nil || !def.EndDate.Before(now)
}

// NewInstance builds the instance a firing decision spawns from def. Slices
// are copied so later edits to the definition never reach the instance.
func NewInstance(def Definition, decision Decision) Instance {
	inst := Instance{
		OriginID:    def.ID,
		Title:       def.Title,
		Description: def.Description,
		Priority:    def.Priority,
		Tags:        append([]string(nil), def.Tags...),
		ChannelID:   def.ChannelID,
		CreatorID:   def.CreatorID,
		Assignees:   append([]string(nil), def.Assignees...),
		Status:      InitialStatus,
	}
	if def.EstimatedHours != nil {
		h := *def.EstimatedHours
		inst.EstimatedHours = &h
	}
	if def.ProjectID != nil {
		id := *def.ProjectID
		inst.ProjectID = &id
	}
	if decision.NewDueDate != nil {
		due := *decision.NewDueDate
		inst.DueDate = &due
	}
	return inst
}
