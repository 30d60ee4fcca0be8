package workout

import (
	"fmt"
	"strings"
	"time"
)

// Mutation is a single change to a Snapshot. Persistence strategies receive
// the applied mutation so they can persist it however they see fit.
type Mutation interface {
	Kind() string
}

type SelectDay struct {
	DayID string
}

type CompleteDay struct {
	DayID string
	At    time.Time
}

type SaveSets struct {
	DayID     string
	WorkoutID string
	Sets      []Set
}

type AddDay struct {
	DayID    string
	Name     string
	Position int
}

type RemoveDay struct {
	DayID string
}

type AddWorkout struct {
	DayID     string
	WorkoutID string
	Template  Template
	Position  int
}

type RemoveWorkout struct {
	DayID     string
	WorkoutID string
}

type UpdateWorkout struct {
	DayID     string
	WorkoutID string
	Patch     Patch
}

// Rollover records that the snapshot moved from one calendar date to the next.
type Rollover struct {
	From Date
	To   Date
}

func (SelectDay) Kind() string     { return "select_day" }
func (CompleteDay) Kind() string   { return "complete_day" }
func (SaveSets) Kind() string      { return "save_sets" }
func (AddDay) Kind() string        { return "add_day" }
func (RemoveDay) Kind() string     { return "remove_day" }
func (AddWorkout) Kind() string    { return "add_workout" }
func (RemoveWorkout) Kind() string { return "remove_workout" }
func (UpdateWorkout) Kind() string { return "update_workout" }
func (Rollover) Kind() string      { return "rollover" }

// Apply validates and applies m to the snapshot in place.
// On error the snapshot is left unchanged.
func (s *Snapshot) Apply(m Mutation) error {
	switch m := m.(type) {
	case SelectDay:
		if _, ok := s.Day(m.DayID); !ok {
			return ErrDayNotFound
		}
		dayID := m.DayID
		s.SelectedDayID = &dayID

	case CompleteDay:
		day, ok := s.Day(m.DayID)
		if !ok {
			return ErrDayNotFound
		}
		at := m.At
		day.CompletedAt = &at

	case SaveSets:
		for _, set := range m.Sets {
			if err := set.Validate(); err != nil {
				return err
			}
		}
		w, err := s.Workout(m.DayID, m.WorkoutID)
		if err != nil {
			return err
		}
		w.TodaySets = cloneSets(m.Sets)
		if w.TodaySets == nil {
			w.TodaySets = []Set{}
		}

	case AddDay:
		if strings.TrimSpace(m.Name) == "" {
			return ErrInvalidDayName
		}
		if _, exists := s.Day(m.DayID); exists {
			return fmt.Errorf("%w: day %s", ErrDuplicateID, m.DayID)
		}
		s.Days = append(s.Days, Day{
			ID:       m.DayID,
			Name:     m.Name,
			Workouts: []Workout{},
		})

	case RemoveDay:
		idx := -1
		for i := range s.Days {
			if s.Days[i].ID == m.DayID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return ErrDayNotFound
		}
		s.Days = append(s.Days[:idx:idx], s.Days[idx+1:]...)
		if s.SelectedDayID != nil && *s.SelectedDayID == m.DayID {
			s.SelectedDayID = nil
		}

	case AddWorkout:
		if err := m.Template.Validate(); err != nil {
			return err
		}
		day, ok := s.Day(m.DayID)
		if !ok {
			return ErrDayNotFound
		}
		if s.hasWorkout(m.WorkoutID) {
			return fmt.Errorf("%w: workout %s", ErrDuplicateID, m.WorkoutID)
		}
		day.Workouts = append(day.Workouts, m.Template.NewWorkout(m.WorkoutID))

	case RemoveWorkout:
		day, ok := s.Day(m.DayID)
		if !ok {
			return ErrDayNotFound
		}
		idx := -1
		for i := range day.Workouts {
			if day.Workouts[i].ID == m.WorkoutID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return ErrWorkoutNotFound
		}
		day.Workouts = append(day.Workouts[:idx:idx], day.Workouts[idx+1:]...)

	case UpdateWorkout:
		if err := m.Patch.Validate(); err != nil {
			return err
		}
		w, err := s.Workout(m.DayID, m.WorkoutID)
		if err != nil {
			return err
		}
		m.Patch.applyTo(w)

	case Rollover:
		// applied by Reconcile, nothing to do here

	default:
		return fmt.Errorf("unknown mutation: %T", m)
	}

	return nil
}

func (s *Snapshot) hasWorkout(workoutID string) bool {
	for i := range s.Days {
		if _, ok := s.Days[i].Workout(workoutID); ok {
			return true
		}
	}
	return false
}
