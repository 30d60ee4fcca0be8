package workout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWithProgress(t *testing.T, date Date) *Snapshot {
	t.Helper()
	s := DefaultSnapshot("user-1", date)
	require.NoError(t, s.Apply(SelectDay{DayID: "push"}))
	require.NoError(t, s.Apply(SaveSets{
		DayID:     "push",
		WorkoutID: "bench-press",
		Sets: []Set{
			{Reps: 8, Weight: 70, Completed: true},
			{Reps: 7, Weight: 70, Completed: true},
		},
	}))
	require.NoError(t, s.Apply(CompleteDay{DayID: "push", At: time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)}))
	return s
}

func TestReconcile_SameDateIsNoop(t *testing.T) {
	s := snapshotWithProgress(t, "2024-01-01")

	got, rolled := Reconcile(s, "2024-01-01")
	assert.False(t, rolled)
	assert.Same(t, s, got)
	assert.Empty(t, got.WorkoutHistory)
}

func TestReconcile_DateBoundary(t *testing.T) {
	s := snapshotWithProgress(t, "2024-01-01")
	before := s.Clone()

	got, rolled := Reconcile(s, "2024-01-02")
	require.True(t, rolled)
	assert.Equal(t, before, s, "input snapshot must not be modified")

	assert.Equal(t, Date("2024-01-02"), got.SelectedDate)
	require.NotNil(t, got.SelectedDayID)
	assert.Equal(t, "push", *got.SelectedDayID)

	require.Contains(t, got.WorkoutHistory, Date("2024-01-01"))
	archived := got.WorkoutHistory["2024-01-01"]
	require.Len(t, archived, 3)
	assert.Equal(t, before.Days, archived)
	require.NotNil(t, archived[0].CompletedAt)

	bench, err := got.Workout("push", "bench-press")
	require.NoError(t, err)
	assert.Empty(t, bench.TodaySets)
	assert.NotNil(t, bench.TodaySets)
	assert.Equal(t, []Set{
		{Reps: 8, Weight: 70, Completed: true},
		{Reps: 7, Weight: 70, Completed: true},
	}, bench.PreviousSets)
	assert.False(t, bench.Completed())

	// untouched workouts keep their previous sets
	squats, err := got.Workout("legs", "squats")
	require.NoError(t, err)
	assert.Len(t, squats.PreviousSets, 4)

	for _, day := range got.Days {
		assert.Nil(t, day.CompletedAt)
	}
}

func TestReconcile_HistoryIsDeepCopy(t *testing.T) {
	s := snapshotWithProgress(t, "2024-01-01")

	got, rolled := Reconcile(s, "2024-01-02")
	require.True(t, rolled)

	require.NoError(t, got.Apply(SaveSets{
		DayID:     "push",
		WorkoutID: "bench-press",
		Sets:      []Set{{Reps: 1, Weight: 1}},
	}))
	got.Days[0].Workouts[0].PreviousSets[0].Weight = 999

	archived := got.WorkoutHistory["2024-01-01"]
	assert.Equal(t, []Set{
		{Reps: 8, Weight: 70, Completed: true},
		{Reps: 7, Weight: 70, Completed: true},
	}, archived[0].Workouts[0].TodaySets)
}

func TestReconcile_Idempotent(t *testing.T) {
	s := snapshotWithProgress(t, "2024-01-01")

	once, rolled := Reconcile(s, "2024-01-02")
	require.True(t, rolled)
	twice, rolled := Reconcile(once, "2024-01-02")
	assert.False(t, rolled)
	assert.Equal(t, once, twice)
}

func TestReconcile_NoProgressNotArchived(t *testing.T) {
	s := DefaultSnapshot("user-1", "2024-01-01")
	require.NoError(t, s.Apply(SelectDay{DayID: "pull"}))

	got, rolled := Reconcile(s, "2024-01-02")
	require.True(t, rolled)
	assert.Empty(t, got.WorkoutHistory)
	assert.Equal(t, Date("2024-01-02"), got.SelectedDate)

	lat, err := got.Workout("pull", "lat-pulldown")
	require.NoError(t, err)
	assert.Len(t, lat.PreviousSets, 4)
}

func TestReconcile_NoSelectedDayNotArchived(t *testing.T) {
	s := DefaultSnapshot("user-1", "2024-01-01")
	require.NoError(t, s.Apply(SaveSets{
		DayID:     "legs",
		WorkoutID: "squats",
		Sets:      []Set{{Reps: 10, Weight: 100, Completed: true}},
	}))

	got, rolled := Reconcile(s, "2024-01-02")
	require.True(t, rolled)
	assert.Empty(t, got.WorkoutHistory)

	squats, err := got.Workout("legs", "squats")
	require.NoError(t, err)
	assert.Equal(t, []Set{{Reps: 10, Weight: 100, Completed: true}}, squats.PreviousSets)
}

func TestReconcile_MultiDayGapSingleStep(t *testing.T) {
	s := snapshotWithProgress(t, "2024-01-01")

	got, rolled := Reconcile(s, "2024-01-05")
	require.True(t, rolled)
	assert.Len(t, got.WorkoutHistory, 1)
	assert.Contains(t, got.WorkoutHistory, Date("2024-01-01"))
	assert.Equal(t, Date("2024-01-05"), got.SelectedDate)
}

func TestReconcile_ClockWentBackwards(t *testing.T) {
	s := snapshotWithProgress(t, "2024-01-05")

	got, rolled := Reconcile(s, "2024-01-04")
	require.True(t, rolled)
	assert.Empty(t, got.WorkoutHistory)
	assert.Equal(t, Date("2024-01-04"), got.SelectedDate)
	for date := range got.WorkoutHistory {
		assert.True(t, date.Before(got.SelectedDate))
	}
}

func TestReconcile_OverwritesExistingHistoryEntry(t *testing.T) {
	s := snapshotWithProgress(t, "2024-01-01")
	s.WorkoutHistory["2024-01-01"] = []Day{{ID: "stale", Name: "Stale", Workouts: []Workout{}}}

	got, _ := Reconcile(s, "2024-01-02")
	require.Len(t, got.WorkoutHistory["2024-01-01"], 3)
	assert.Equal(t, "push", got.WorkoutHistory["2024-01-01"][0].ID)
}
