package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workout"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNotSynced = errors.New("change applied but not persisted")
	// ErrNotLoaded is returned instead of writing a fallback snapshot over a record that could not be read.
	ErrNotLoaded = errors.New("snapshot was never loaded from storage")
)

type Status struct {
	// Unsynced is set when the last persistence attempt failed; the in-memory state is ahead of storage.
	Unsynced bool `json:"unsynced"`
	// LoadFailed is set when the last read from storage failed. The snapshot is either the one
	// already in memory or, before any successful read, a fallback that is never persisted.
	LoadFailed bool `json:"loadFailed"`
}

type NewTrackerParams struct {
	UserID         string
	Syncer         Syncer
	Clock          workout.Clock
	NewID          func() string
	MetricsManager *metrics.Manager
}

// Tracker holds the snapshot of one user and applies every change to it
// before handing the change to the Syncer.
type Tracker struct {
	userID         string
	syncer         Syncer
	clock          workout.Clock
	newID          func() string
	metricsManager *metrics.Manager

	mutex    sync.Mutex
	snapshot *workout.Snapshot
	status   Status
	// set while snapshot is a fallback built after a failed load, never persisted
	fallback bool
}

func NewTracker(ctx context.Context, params NewTrackerParams) *Tracker {
	t := &Tracker{
		userID:         params.UserID,
		syncer:         params.Syncer,
		clock:          params.Clock,
		newID:          params.NewID,
		metricsManager: params.MetricsManager,
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.load(ctx)

	return t
}

func (t *Tracker) UserID() string {
	return t.userID
}

// Snapshot returns a copy of the current snapshot.
func (t *Tracker) Snapshot(ctx context.Context) (*workout.Snapshot, Status) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.ensureCurrent(ctx)
	return t.snapshot.Clone(), t.status
}

func (t *Tracker) Status() Status {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.status
}

// Reload reads the snapshot from storage again, dropping unsynced changes.
// The selected day is kept if it still exists. On failure the current snapshot is kept.
func (t *Tracker) Reload(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	selectedDayID := t.snapshot.SelectedDayID
	if err := t.load(ctx); err != nil {
		return err
	}
	if t.snapshot.SelectedDayID == nil && selectedDayID != nil {
		if _, ok := t.snapshot.Day(*selectedDayID); ok {
			dayID := *selectedDayID
			t.snapshot.SelectedDayID = &dayID
		}
	}
	return nil
}

func (t *Tracker) SelectDay(ctx context.Context, dayID string) error {
	return t.do(ctx, "select_day", func(*workout.Snapshot) (workout.Mutation, error) {
		return workout.SelectDay{DayID: dayID}, nil
	})
}

func (t *Tracker) MarkDayCompleted(ctx context.Context, dayID string) error {
	return t.do(ctx, "complete_day", func(*workout.Snapshot) (workout.Mutation, error) {
		return workout.CompleteDay{DayID: dayID, At: t.clock.Now()}, nil
	})
}

// UpdateWorkoutSets replaces today's sets of a workout.
func (t *Tracker) UpdateWorkoutSets(ctx context.Context, dayID, workoutID string, sets []workout.Set) error {
	err := t.do(ctx, "save_sets", func(*workout.Snapshot) (workout.Mutation, error) {
		return workout.SaveSets{DayID: dayID, WorkoutID: workoutID, Sets: sets}, nil
	})
	if err == nil || errors.Is(err, ErrNotSynced) {
		t.metricsManager.CounterSetsSaved.Add(float64(len(sets)))
	}
	return err
}

// ToggleWorkoutCompleted flips the derived completion of a workout by rewriting today's sets.
// A completed workout gets all its sets marked not completed, any other workout gets all sets completed.
// Without logged sets, DefaultSets completed sets of DefaultReps.Min reps are created.
func (t *Tracker) ToggleWorkoutCompleted(ctx context.Context, dayID, workoutID string) error {
	return t.do(ctx, "toggle_workout", func(s *workout.Snapshot) (workout.Mutation, error) {
		w, err := s.Workout(dayID, workoutID)
		if err != nil {
			return nil, err
		}

		var sets []workout.Set
		switch {
		case w.Completed():
			sets = make([]workout.Set, len(w.TodaySets))
			for i, set := range w.TodaySets {
				set.Completed = false
				sets[i] = set
			}
		case len(w.TodaySets) == 0:
			sets = make([]workout.Set, w.DefaultSets)
			for i := range sets {
				sets[i] = workout.Set{Reps: w.DefaultReps.Min, Completed: true}
			}
		default:
			sets = make([]workout.Set, len(w.TodaySets))
			for i, set := range w.TodaySets {
				set.Completed = true
				sets[i] = set
			}
		}

		return workout.SaveSets{DayID: dayID, WorkoutID: workoutID, Sets: sets}, nil
	})
}

// AddDay appends a new empty day and returns its id.
func (t *Tracker) AddDay(ctx context.Context, name string) (string, error) {
	dayID := t.newID()
	err := t.do(ctx, "add_day", func(s *workout.Snapshot) (workout.Mutation, error) {
		return workout.AddDay{DayID: dayID, Name: name, Position: len(s.Days)}, nil
	})
	if err != nil && !errors.Is(err, ErrNotSynced) {
		return "", err
	}
	return dayID, err
}

func (t *Tracker) RemoveDay(ctx context.Context, dayID string) error {
	return t.do(ctx, "remove_day", func(*workout.Snapshot) (workout.Mutation, error) {
		return workout.RemoveDay{DayID: dayID}, nil
	})
}

// AddWorkout appends a workout built from the template to a day and returns its id.
func (t *Tracker) AddWorkout(ctx context.Context, dayID string, tmpl workout.Template) (string, error) {
	workoutID := t.newID()
	err := t.do(ctx, "add_workout", func(s *workout.Snapshot) (workout.Mutation, error) {
		day, ok := s.Day(dayID)
		if !ok {
			return nil, workout.ErrDayNotFound
		}
		return workout.AddWorkout{
			DayID:     dayID,
			WorkoutID: workoutID,
			Template:  tmpl,
			Position:  len(day.Workouts),
		}, nil
	})
	if err != nil && !errors.Is(err, ErrNotSynced) {
		return "", err
	}
	return workoutID, err
}

func (t *Tracker) RemoveWorkout(ctx context.Context, dayID, workoutID string) error {
	return t.do(ctx, "remove_workout", func(*workout.Snapshot) (workout.Mutation, error) {
		return workout.RemoveWorkout{DayID: dayID, WorkoutID: workoutID}, nil
	})
}

func (t *Tracker) UpdateWorkout(ctx context.Context, dayID, workoutID string, patch workout.Patch) error {
	return t.do(ctx, "update_workout", func(*workout.Snapshot) (workout.Mutation, error) {
		return workout.UpdateWorkout{DayID: dayID, WorkoutID: workoutID, Patch: patch}, nil
	})
}

// do runs a single change under the tracker lock: roll over if needed, build the mutation
// from the current snapshot, apply it in memory and persist it.
func (t *Tracker) do(
	ctx context.Context,
	operation string,
	build func(s *workout.Snapshot) (workout.Mutation, error),
) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tracker."+operation)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", t.userID))

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.fallback {
		// retry the load, so the change lands on the stored snapshot and not on the fallback
		_ = t.load(ctx)
	}
	t.ensureCurrent(ctx)

	m, err := build(t.snapshot)
	if err != nil {
		return err
	}
	// the snapshot is left untouched when the mutation is rejected
	if err := t.snapshot.Apply(m); err != nil {
		return err
	}

	return t.persist(ctx, m)
}

// ensureCurrent rolls the snapshot over when the date changed since it was last touched.
func (t *Tracker) ensureCurrent(ctx context.Context) {
	today := t.clock.Today()
	staleDate := t.snapshot.SelectedDate

	next, rolled := workout.Reconcile(t.snapshot, today)
	if !rolled {
		return
	}

	t.snapshot = next
	t.metricsManager.CounterRollovers.Inc()
	log.Debugf("tracker: user [%s] rolled over from %s to %s", t.userID, staleDate, today)

	// a failed rollover write is recorded in the status; the change being made still goes ahead
	_ = t.persist(ctx, workout.Rollover{From: staleDate, To: today})
}

func (t *Tracker) persist(ctx context.Context, m workout.Mutation) error {
	if t.fallback {
		t.status.Unsynced = true
		t.metricsManager.CounterSyncFailures.WithLabelValues(m.Kind()).Inc()
		log.Warnf("tracker: not persisting %s for user [%s], snapshot not loaded", m.Kind(), t.userID)
		return fmt.Errorf("%w: %s: %w", ErrNotSynced, m.Kind(), ErrNotLoaded)
	}
	if err := t.syncer.Apply(ctx, t.snapshot, m); err != nil {
		t.status.Unsynced = true
		t.metricsManager.CounterSyncFailures.WithLabelValues(m.Kind()).Inc()
		log.Errorf("tracker: persist %s for user [%s]: %s", m.Kind(), t.userID, err)
		return fmt.Errorf("%w: %s: %w", ErrNotSynced, m.Kind(), err)
	}
	t.status.Unsynced = false
	return nil
}

// load replaces the snapshot with the stored one. When the read fails, a snapshot already
// in memory is kept; otherwise the fallback returned by the syncer is adopted and marked as such.
func (t *Tracker) load(ctx context.Context) error {
	snapshot, err := t.syncer.Load(ctx, t.userID)
	if err != nil {
		t.status.LoadFailed = true
		t.metricsManager.CounterLoadFailures.Inc()
		log.Errorf("tracker: load snapshot for user [%s]: %s", t.userID, err)

		if t.snapshot == nil {
			if snapshot == nil {
				snapshot = workout.NewEmptySnapshot(t.userID, t.clock.Today())
			}
			t.snapshot = snapshot
			t.fallback = true
		}
		t.ensureCurrent(ctx)
		return err
	}

	t.snapshot = snapshot
	t.fallback = false
	t.status = Status{}
	t.ensureCurrent(ctx)
	return nil
}
