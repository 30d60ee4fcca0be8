package workout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkout_Completed(t *testing.T) {
	testCases := []struct {
		name     string
		sets     []Set
		expected bool
	}{
		{name: "no sets", sets: nil, expected: false},
		{name: "empty sets", sets: []Set{}, expected: false},
		{name: "all completed", sets: []Set{{Reps: 8, Completed: true}, {Reps: 8, Completed: true}}, expected: true},
		{name: "one pending", sets: []Set{{Reps: 8, Completed: true}, {Reps: 8}}, expected: false},
		{name: "none completed", sets: []Set{{Reps: 8}}, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := Workout{ID: "w", Name: "W", TodaySets: tc.sets}
			assert.Equal(t, tc.expected, w.Completed())
		})
	}
}

func TestWorkout_MarshalJSON(t *testing.T) {
	w := Workout{
		ID:          "bench",
		Name:        "Bench Press",
		DefaultSets: 3,
		DefaultReps: NewRepRange(8, 12),
		TodaySets:   nil,
	}

	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "bench",
		"name": "Bench Press",
		"defaultSets": 3,
		"defaultReps": {"min": 8, "max": 12},
		"machineSetupNotes": "",
		"todaySets": [],
		"completed": false
	}`, string(b))

	w.TodaySets = []Set{{Reps: 10, Weight: 50, Completed: true}}
	w.PreviousSets = []Set{{Reps: 9, Weight: 50, Completed: true}}
	b, err = json.Marshal(w)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, true, decoded["completed"])
	assert.Len(t, decoded["previousSets"], 1)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := DefaultSnapshot("user-1", "2024-03-10")
	require.NoError(t, s.Apply(SelectDay{DayID: "push"}))
	s.WorkoutHistory["2024-03-09"] = cloneDays(s.Days)

	c := s.Clone()
	assert.Equal(t, s, c)

	*c.SelectedDayID = "pull"
	c.Days[0].Name = "Changed"
	c.Days[0].Workouts[0].PreviousSets[0].Reps = 100
	c.WorkoutHistory["2024-03-09"][0].Name = "Changed"

	assert.Equal(t, "push", *s.SelectedDayID)
	assert.Equal(t, "Push", s.Days[0].Name)
	assert.Equal(t, 8, s.Days[0].Workouts[0].PreviousSets[0].Reps)
	assert.Equal(t, "Push", s.WorkoutHistory["2024-03-09"][0].Name)
}

func TestDecodeSnapshot(t *testing.T) {
	s := DefaultSnapshot("user-1", "2024-03-10")
	require.NoError(t, s.Apply(SelectDay{DayID: "legs"}))
	require.NoError(t, s.Apply(SaveSets{
		DayID:     "legs",
		WorkoutID: "squats",
		Sets:      []Set{{Reps: 12, Weight: 100, Completed: true}},
	}))

	b, err := json.Marshal(s)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	squats, err := decoded.Workout("legs", "squats")
	require.NoError(t, err)
	assert.True(t, squats.Completed())
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeSnapshot([]byte(`{"userId":"","selectedDate":"2024-01-01"}`))
	assert.ErrorIs(t, err, ErrMalformedSnapshot)

	_, err = DecodeSnapshot([]byte(`{"userId":"u","selectedDate":"yesterday"}`))
	assert.ErrorIs(t, err, ErrMalformedSnapshot)

	decoded, err := DecodeSnapshot([]byte(`{"userId":"u","selectedDate":"2024-01-01"}`))
	require.NoError(t, err)
	assert.NotNil(t, decoded.Days)
	assert.NotNil(t, decoded.WorkoutHistory)
	assert.Nil(t, decoded.SelectedDayID)
}

func TestDefaultRoutine(t *testing.T) {
	n := 0
	days := DefaultRoutine(func(name string) string {
		n++
		return SlugID(name)
	})

	require.Len(t, days, 3)
	assert.Equal(t, []string{"Push", "Pull", "Legs"}, []string{days[0].Name, days[1].Name, days[2].Name})
	assert.Equal(t, 7, n)

	for _, day := range days {
		assert.Nil(t, day.CompletedAt)
		for _, w := range day.Workouts {
			assert.NotNil(t, w.TodaySets)
			assert.Empty(t, w.TodaySets)
			assert.NotEmpty(t, w.PreviousSets)
			assert.NoError(t, w.DefaultReps.Validate())
		}
	}

	bench := days[0].Workouts[0]
	assert.Equal(t, "bench-press", bench.ID)
	assert.Equal(t, 4, bench.DefaultSets)
	assert.Equal(t, "6-8", bench.DefaultReps.String())
}

func TestSlugID(t *testing.T) {
	assert.Equal(t, "bench-press", SlugID("Bench Press"))
	assert.Equal(t, "lat-pulldown", SlugID("Lat  Pulldown"))
	assert.Equal(t, "day-2", SlugID("Day #2"))
	assert.Equal(t, "legs", SlugID(" Legs"))
}
