package workout

import (
	"encoding/json"
	"time"
)

type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AccessCode string `json:"accessCode"`
}

type Set struct {
	Reps      int     `json:"reps"`
	Weight    float64 `json:"weight"`
	Completed bool    `json:"completed"`
}

func (s Set) Validate() error {
	if s.Reps < 0 || s.Weight < 0 {
		return ErrInvalidSet
	}
	return nil
}

// Workout is a single exercise within a Day, together with today's logged sets.
// Completion is never stored; it is derived from TodaySets.
type Workout struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	DefaultSets       int      `json:"defaultSets"`
	DefaultReps       RepRange `json:"defaultReps"`
	MachineSetupNotes string   `json:"machineSetupNotes"`
	TodaySets         []Set    `json:"todaySets"`
	PreviousSets      []Set    `json:"previousSets,omitempty"`
}

// Completed reports whether at least one set was logged today and all of them are done.
func (w *Workout) Completed() bool {
	if len(w.TodaySets) == 0 {
		return false
	}
	for _, s := range w.TodaySets {
		if !s.Completed {
			return false
		}
	}
	return true
}

type workoutAlias Workout

func (w Workout) MarshalJSON() ([]byte, error) {
	todaySets := w.TodaySets
	if todaySets == nil {
		todaySets = []Set{}
	}
	alias := workoutAlias(w)
	alias.TodaySets = todaySets
	return json.Marshal(struct {
		workoutAlias
		Completed bool `json:"completed"`
	}{
		workoutAlias: alias,
		Completed:    w.Completed(),
	})
}

func (w *Workout) clone() Workout {
	c := *w
	c.TodaySets = cloneSets(w.TodaySets)
	c.PreviousSets = cloneSets(w.PreviousSets)
	if c.TodaySets == nil {
		c.TodaySets = []Set{}
	}
	return c
}

// Template holds the user editable fields of a Workout, used when adding one.
type Template struct {
	Name              string   `json:"name"`
	DefaultSets       int      `json:"defaultSets"`
	DefaultReps       RepRange `json:"defaultReps"`
	MachineSetupNotes string   `json:"machineSetupNotes"`
	PreviousSets      []Set    `json:"previousSets,omitempty"`
}

func (t Template) Validate() error {
	if t.Name == "" || t.DefaultSets < 1 {
		return ErrInvalidWorkout
	}
	if err := t.DefaultReps.Validate(); err != nil {
		return err
	}
	for _, s := range t.PreviousSets {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Template) NewWorkout(id string) Workout {
	return Workout{
		ID:                id,
		Name:              t.Name,
		DefaultSets:       t.DefaultSets,
		DefaultReps:       t.DefaultReps,
		MachineSetupNotes: t.MachineSetupNotes,
		TodaySets:         []Set{},
		PreviousSets:      cloneSets(t.PreviousSets),
	}
}

// Patch is a partial update of a Workout's editable fields; nil fields are left untouched.
type Patch struct {
	Name              *string   `json:"name,omitempty"`
	DefaultSets       *int      `json:"defaultSets,omitempty"`
	DefaultReps       *RepRange `json:"defaultReps,omitempty"`
	MachineSetupNotes *string   `json:"machineSetupNotes,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.DefaultSets == nil && p.DefaultReps == nil && p.MachineSetupNotes == nil
}

func (p Patch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return ErrInvalidWorkout
	}
	if p.DefaultSets != nil && *p.DefaultSets < 1 {
		return ErrInvalidWorkout
	}
	if p.DefaultReps != nil {
		return p.DefaultReps.Validate()
	}
	return nil
}

func (p Patch) applyTo(w *Workout) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.DefaultSets != nil {
		w.DefaultSets = *p.DefaultSets
	}
	if p.DefaultReps != nil {
		w.DefaultReps = *p.DefaultReps
	}
	if p.MachineSetupNotes != nil {
		w.MachineSetupNotes = *p.MachineSetupNotes
	}
}

// Day is a routine template (e.g. "Push") carrying the logging state of the current date.
type Day struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Workouts    []Workout  `json:"workouts"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (d *Day) Workout(workoutID string) (*Workout, bool) {
	for i := range d.Workouts {
		if d.Workouts[i].ID == workoutID {
			return &d.Workouts[i], true
		}
	}
	return nil, false
}

// HasProgress reports whether any set was logged for this day.
func (d *Day) HasProgress() bool {
	for i := range d.Workouts {
		if len(d.Workouts[i].TodaySets) > 0 {
			return true
		}
	}
	return false
}

func (d *Day) clone() Day {
	c := *d
	c.Workouts = make([]Workout, len(d.Workouts))
	for i := range d.Workouts {
		c.Workouts[i] = d.Workouts[i].clone()
	}
	if d.CompletedAt != nil {
		completedAt := *d.CompletedAt
		c.CompletedAt = &completedAt
	}
	return c
}

// Snapshot is the full persisted state of one user on one device.
// SelectedDate is the calendar day the TodaySets and CompletedAt fields represent.
type Snapshot struct {
	UserID         string         `json:"userId"`
	Days           []Day          `json:"days"`
	SelectedDayID  *string        `json:"selectedDayId"`
	SelectedDate   Date           `json:"selectedDate"`
	WorkoutHistory map[Date][]Day `json:"workoutHistory"`
}

func NewEmptySnapshot(userID string, today Date) *Snapshot {
	return &Snapshot{
		UserID:         userID,
		Days:           []Day{},
		SelectedDate:   today,
		WorkoutHistory: map[Date][]Day{},
	}
}

func (s *Snapshot) Day(dayID string) (*Day, bool) {
	for i := range s.Days {
		if s.Days[i].ID == dayID {
			return &s.Days[i], true
		}
	}
	return nil, false
}

func (s *Snapshot) Workout(dayID, workoutID string) (*Workout, error) {
	day, ok := s.Day(dayID)
	if !ok {
		return nil, ErrDayNotFound
	}
	w, ok := day.Workout(workoutID)
	if !ok {
		return nil, ErrWorkoutNotFound
	}
	return w, nil
}

func (s *Snapshot) SelectedDay() (*Day, bool) {
	if s.SelectedDayID == nil {
		return nil, false
	}
	return s.Day(*s.SelectedDayID)
}

// Clone returns a deep copy sharing no slices, maps or pointers with s.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		UserID:         s.UserID,
		Days:           cloneDays(s.Days),
		SelectedDate:   s.SelectedDate,
		WorkoutHistory: make(map[Date][]Day, len(s.WorkoutHistory)),
	}
	if s.SelectedDayID != nil {
		selected := *s.SelectedDayID
		c.SelectedDayID = &selected
	}
	for date, days := range s.WorkoutHistory {
		c.WorkoutHistory[date] = cloneDays(days)
	}
	return c
}

// normalize fills nil collections, so decoded snapshots behave like constructed ones.
func (s *Snapshot) normalize() {
	if s.Days == nil {
		s.Days = []Day{}
	}
	if s.WorkoutHistory == nil {
		s.WorkoutHistory = map[Date][]Day{}
	}
	for i := range s.Days {
		if s.Days[i].Workouts == nil {
			s.Days[i].Workouts = []Workout{}
		}
		for j := range s.Days[i].Workouts {
			if s.Days[i].Workouts[j].TodaySets == nil {
				s.Days[i].Workouts[j].TodaySets = []Set{}
			}
		}
	}
}

// DecodeSnapshot parses a JSON encoded snapshot and validates its basic shape.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.UserID == "" || !s.SelectedDate.IsValid() {
		return nil, ErrMalformedSnapshot
	}
	s.normalize()
	return &s, nil
}

func cloneDays(days []Day) []Day {
	if days == nil {
		return []Day{}
	}
	c := make([]Day, len(days))
	for i := range days {
		c[i] = days[i].clone()
	}
	return c
}

func cloneSets(sets []Set) []Set {
	if sets == nil {
		return nil
	}
	c := make([]Set, len(sets))
	copy(c, sets)
	return c
}
