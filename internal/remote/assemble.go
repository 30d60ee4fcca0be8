package remote

import (
	"sort"
	"time"

	"github.com/2beens/gymtracker/internal/workout"
)

type dayRow struct {
	ID   string
	Name string
}

type workoutRow struct {
	ID                string
	DayID             string
	Name              string
	DefaultSets       int
	DefaultRepsMin    int
	DefaultRepsMax    *int
	MachineSetupNotes string
}

type sessionRow struct {
	ID          int64
	DayID       string
	Date        workout.Date
	CompletedAt *time.Time
}

type setRow struct {
	SessionID int64
	WorkoutID string
	SetNumber int
	Set       workout.Set
}

// assembleSnapshot builds the snapshot of today from relational rows.
// Days and workouts keep the given order. Today's sets and completion come from today's session,
// previous sets from the most recent past session of the same day that logged the workout.
func assembleSnapshot(
	userID string,
	today workout.Date,
	days []dayRow,
	workouts []workoutRow,
	sessions []sessionRow,
	sets []setRow,
) *workout.Snapshot {
	snapshot := workout.NewEmptySnapshot(userID, today)

	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].SetNumber < sets[j].SetNumber
	})
	setsBySession := make(map[int64]map[string][]workout.Set)
	for _, s := range sets {
		byWorkout, ok := setsBySession[s.SessionID]
		if !ok {
			byWorkout = make(map[string][]workout.Set)
			setsBySession[s.SessionID] = byWorkout
		}
		byWorkout[s.WorkoutID] = append(byWorkout[s.WorkoutID], s.Set)
	}

	// newest first, so the first past session holding sets wins
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[j].Date.Before(sessions[i].Date)
	})
	sessionsByDay := make(map[string][]sessionRow)
	for _, s := range sessions {
		sessionsByDay[s.DayID] = append(sessionsByDay[s.DayID], s)
	}

	workoutsByDay := make(map[string][]workoutRow)
	for _, w := range workouts {
		workoutsByDay[w.DayID] = append(workoutsByDay[w.DayID], w)
	}

	for _, d := range days {
		day := workout.Day{
			ID:       d.ID,
			Name:     d.Name,
			Workouts: []workout.Workout{},
		}

		var todaySession *sessionRow
		var pastSessions []sessionRow
		for i, s := range sessionsByDay[d.ID] {
			switch {
			case s.Date == today:
				todaySession = &sessionsByDay[d.ID][i]
			case s.Date.Before(today):
				pastSessions = append(pastSessions, s)
			}
		}
		if todaySession != nil && todaySession.CompletedAt != nil {
			completedAt := *todaySession.CompletedAt
			day.CompletedAt = &completedAt
		}

		for _, w := range workoutsByDay[d.ID] {
			item := workout.Workout{
				ID:                w.ID,
				Name:              w.Name,
				DefaultSets:       w.DefaultSets,
				DefaultReps:       workout.RepRange{Min: w.DefaultRepsMin, Max: w.DefaultRepsMax},
				MachineSetupNotes: w.MachineSetupNotes,
				TodaySets:         []workout.Set{},
			}
			if todaySession != nil {
				if todaySets := setsBySession[todaySession.ID][w.ID]; len(todaySets) > 0 {
					item.TodaySets = todaySets
				}
			}
			for _, s := range pastSessions {
				if previous := setsBySession[s.ID][w.ID]; len(previous) > 0 {
					item.PreviousSets = previous
					break
				}
			}
			day.Workouts = append(day.Workouts, item)
		}

		snapshot.Days = append(snapshot.Days, day)
	}

	return snapshot
}
