package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lvdashuaibi/votely/internal/model"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func window() *model.Election {
	return &model.Election{ID: "e1", StartDate: t0, EndDate: t0.Add(time.Hour)}
}

func TestDerive(t *testing.T) {
	require := require.New(t)
	end := t0.Add(time.Hour)

	require.Equal(model.StatusUpcoming, Derive(t0, end, t0.Add(-time.Nanosecond)))
	require.Equal(model.StatusOngoing, Derive(t0, end, t0))
	require.Equal(model.StatusOngoing, Derive(t0, end, end.Add(-time.Nanosecond)))
	require.Equal(model.StatusEnded, Derive(t0, end, end))
}

func TestEffectiveOverride(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		ts := t0.Add(d)
		return &ts
	}

	tests := []struct {
		name     string
		override model.ElectionStatus
		setAt    *time.Time
		now      time.Duration
		expected model.ElectionStatus
	}{
		{"no override", "", nil, 10 * time.Minute, model.StatusOngoing},
		{"forced ongoing before start", model.StatusOngoing, at(-time.Hour), -30 * time.Minute, model.StatusOngoing},
		{"forced ongoing lapses at end", model.StatusOngoing, at(-time.Hour), 2 * time.Hour, model.StatusEnded},
		{"forced ended holds through window", model.StatusEnded, at(-time.Hour), 10 * time.Minute, model.StatusEnded},
		{"pause holds while ongoing", model.StatusUpcoming, at(5 * time.Minute), 30 * time.Minute, model.StatusUpcoming},
		{"pause lapses when window ends", model.StatusUpcoming, at(5 * time.Minute), 61 * time.Minute, model.StatusEnded},
		{"override without timestamp ignored", model.StatusEnded, nil, 10 * time.Minute, model.StatusOngoing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := window()
			e.StatusOverride = tt.override
			e.OverriddenAt = tt.setAt
			require.Equal(t, tt.expected, Effective(e, t0.Add(tt.now)))
		})
	}
}

func TestCheckVotable(t *testing.T) {
	require := require.New(t)
	e := window()

	require.ErrorIs(CheckVotable(e, t0.Add(-time.Minute)), model.ErrElectionNotOngoing)
	require.NoError(CheckVotable(e, t0.Add(time.Minute)))
	require.ErrorIs(CheckVotable(e, t0.Add(time.Hour)), model.ErrElectionNotOngoing)

	require.ErrorIs(CheckCandidateCreate(e, t0.Add(-time.Minute)), model.ErrCandidateNotOngoing)
	require.NoError(CheckCandidateCreate(e, t0.Add(time.Minute)))
}

func TestCheckDateChange(t *testing.T) {
	require := require.New(t)
	e := window()

	require.NoError(CheckDateChange(e, t0.Add(-time.Minute)))
	require.ErrorIs(CheckDateChange(e, t0), model.ErrElectionStarted)
	require.ErrorIs(CheckDateChange(e, t0.Add(2*time.Hour)), model.ErrElectionStarted)
}

func TestCheckStatusTransition(t *testing.T) {
	require := require.New(t)

	require.NoError(CheckStatusTransition(model.StatusUpcoming, model.StatusOngoing, false))
	require.NoError(CheckStatusTransition(model.StatusOngoing, model.StatusEnded, false))
	require.NoError(CheckStatusTransition(model.StatusOngoing, model.StatusOngoing, false))
	require.ErrorIs(CheckStatusTransition(model.StatusEnded, model.StatusOngoing, false), model.ErrInvalidTransition)
	require.ErrorIs(CheckStatusTransition(model.StatusUpcoming, model.StatusEnded, false), model.ErrInvalidTransition)

	require.NoError(CheckStatusTransition(model.StatusEnded, model.StatusUpcoming, true))
	require.ErrorIs(CheckStatusTransition(model.StatusEnded, "paused", true), model.ErrInvalidTransition)
}

func TestDeletableAndWindow(t *testing.T) {
	require := require.New(t)

	require.NoError(CheckElectionDeletable(false))
	require.ErrorIs(CheckElectionDeletable(true), model.ErrElectionHasVotes)
	require.NoError(CheckCandidateDeletable(false))
	require.ErrorIs(CheckCandidateDeletable(true), model.ErrCandidateHasVotes)

	require.NoError(CheckWindow(t0, t0.Add(time.Second)))
	require.ErrorIs(CheckWindow(t0, t0), model.ErrInvalidElectionDates)
}
