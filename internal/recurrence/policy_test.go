package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/taskbot/internal/model"
)

func ptr[T any](v T) *T { return &v }

func dailyDef(anchor time.Time) Definition {
	return Definition{
		ID:             1,
		Title:          "Standup notes",
		Pattern:        Daily,
		Frequency:      1,
		LastRecurrence: ptr(anchor),
		IsRecurring:    true,
	}
}

func TestEvaluate_InertDefinitions(t *testing.T) {
	t.Parallel()

	anchor := date(2025, 1, 1)

	notRecurring := dailyDef(anchor)
	notRecurring.IsRecurring = false

	cancelled := dailyDef(anchor)
	cancelled.IsCancelled = true

	noAnchor := dailyDef(anchor)
	noAnchor.LastRecurrence = nil

	for _, def := range []Definition{notRecurring, cancelled, noAnchor} {
		for _, offset := range []time.Duration{0, 24 * time.Hour, 400 * 24 * time.Hour} {
			got, err := Evaluate(def, anchor.Add(offset))
			require.NoError(t, err)
			assert.Equal(t, NoAction, got)
		}
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	anchor := date(2025, 1, 1)

	tests := []struct {
		name     string
		def      func() Definition
		now      time.Time
		wantFire bool
	}{
		{
			name:     "not yet due",
			def:      func() Definition { return dailyDef(anchor) },
			now:      anchor.Add(23 * time.Hour),
			wantFire: false,
		},
		{
			name:     "due exactly at candidate",
			def:      func() Definition { return dailyDef(anchor) },
			now:      anchor.AddDate(0, 0, 1),
			wantFire: true,
		},
		{
			name: "candidate past end date",
			def: func() Definition {
				d := dailyDef(anchor)
				d.EndDate = ptr(anchor.Add(12 * time.Hour))
				return d
			},
			now:      anchor.AddDate(0, 0, 2),
			wantFire: false,
		},
		{
			name: "candidate on end date",
			def: func() Definition {
				d := dailyDef(anchor)
				d.EndDate = ptr(anchor.AddDate(0, 0, 1))
				return d
			},
			now:      anchor.AddDate(0, 0, 1),
			wantFire: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Evaluate(tt.def(), tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFire, got.Fire)
			if tt.wantFire {
				assert.True(t, tt.now.Equal(got.NewAnchor))
			}
		})
	}
}

func TestEvaluate_InertAfterEndDateIsPermanent(t *testing.T) {
	t.Parallel()

	anchor := date(2025, 1, 1)
	def := dailyDef(anchor)
	def.Frequency = 7
	def.EndDate = ptr(anchor.AddDate(0, 0, 3))

	for days := 0; days < 120; days++ {
		got, err := Evaluate(def, anchor.AddDate(0, 0, days))
		require.NoError(t, err)
		assert.False(t, got.Fire, "day %d", days)
	}
}

func TestEvaluate_EndDayTypedAsDateIsInclusive(t *testing.T) {
	t.Parallel()

	end, err := model.ParseDueDate("2025-01-02", time.UTC)
	require.NoError(t, err)

	anchor := time.Date(2025, 1, 1, 23, 59, 30, 0, time.UTC)
	def := dailyDef(anchor)
	def.EndDate = &end

	got, err := Evaluate(def, anchor.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, got.Fire, "an occurrence late on the end day still fires")

	def.LastRecurrence = ptr(got.NewAnchor)
	got, err = Evaluate(def, anchor.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.False(t, got.Fire, "the day after the end day never fires")
}

func TestEvaluate_DueDateFollowsBaseDueDate(t *testing.T) {
	t.Parallel()

	anchor := date(2025, 1, 31)
	def := dailyDef(anchor)
	def.Pattern = Monthly
	def.BaseDueDate = ptr(date(2025, 1, 31))

	got, err := Evaluate(def, date(2025, 3, 1))
	require.NoError(t, err)
	require.True(t, got.Fire)
	require.NotNil(t, got.NewDueDate)
	assert.True(t, date(2025, 2, 28).Equal(*got.NewDueDate))

	def.BaseDueDate = nil
	got, err = Evaluate(def, date(2025, 3, 1))
	require.NoError(t, err)
	assert.True(t, got.Fire)
	assert.Nil(t, got.NewDueDate)
}

func TestEvaluate_NoBacklogBurst(t *testing.T) {
	t.Parallel()

	anchor := date(2025, 1, 1)
	def := dailyDef(anchor)
	now := anchor.AddDate(0, 0, 30)

	got, err := Evaluate(def, now)
	require.NoError(t, err)
	require.True(t, got.Fire)
	assert.True(t, now.Equal(got.NewAnchor))

	def.LastRecurrence = ptr(got.NewAnchor)
	got, err = Evaluate(def, now)
	require.NoError(t, err)
	assert.False(t, got.Fire)
}

func TestEvaluate_MalformedDefinition(t *testing.T) {
	t.Parallel()

	def := dailyDef(date(2025, 1, 1))
	def.Frequency = 0

	got, err := Evaluate(def, date(2025, 2, 1))
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	assert.Equal(t, NoAction, got)

	def.Frequency = 1
	def.Pattern = "fortnightly"
	_, err = Evaluate(def, date(2025, 2, 1))
	assert.ErrorIs(t, err, ErrInvalidPattern)
}
