package workout

// IDFunc generates ids for seeded days and workouts.
type IDFunc func(name string) string

// SlugID keeps the human readable ids used by locally seeded snapshots, e.g. "bench-press".
func SlugID(name string) string {
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+('a'-'A'))
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b = append(b, c)
		case c == ' ' || c == '-' || c == '_':
			if len(b) > 0 && b[len(b)-1] != '-' {
				b = append(b, '-')
			}
		}
	}
	return string(b)
}

type defaultWorkout struct {
	name     string
	sets     int
	reps     RepRange
	notes    string
	previous []Set
}

type defaultDay struct {
	name     string
	workouts []defaultWorkout
}

var defaultRoutine = []defaultDay{
	{
		name: "Push",
		workouts: []defaultWorkout{
			{
				name:  "Bench Press",
				sets:  4,
				reps:  NewRepRange(6, 8),
				notes: "Adjust bench to flat position, ensure proper bar path",
				previous: []Set{
					{Reps: 8, Weight: 60, Completed: true},
					{Reps: 8, Weight: 60, Completed: true},
					{Reps: 6, Weight: 65, Completed: true},
					{Reps: 5, Weight: 65, Completed: true},
				},
			},
			{
				name:  "Shoulder Press",
				sets:  3,
				reps:  NewRepRange(8, 12),
				notes: "Seat height at shoulder level, back support engaged",
				previous: []Set{
					{Reps: 10, Weight: 35, Completed: true},
					{Reps: 9, Weight: 37.5, Completed: true},
					{Reps: 8, Weight: 37.5, Completed: true},
				},
			},
		},
	},
	{
		name: "Pull",
		workouts: []defaultWorkout{
			{
				name:  "Lat Pulldown",
				sets:  4,
				reps:  NewRepRange(8, 12),
				notes: "Wide grip, slight lean back, pull to upper chest",
				previous: []Set{
					{Reps: 10, Weight: 55, Completed: true},
					{Reps: 10, Weight: 60, Completed: true},
					{Reps: 8, Weight: 65, Completed: true},
					{Reps: 7, Weight: 65, Completed: true},
				},
			},
		},
	},
	{
		name: "Legs",
		workouts: []defaultWorkout{
			{
				name:  "Squats",
				sets:  4,
				reps:  NewRepRange(10, 15),
				notes: "Bar at shoulder height, feet shoulder-width apart",
				previous: []Set{
					{Reps: 12, Weight: 85, Completed: true},
					{Reps: 12, Weight: 90, Completed: true},
					{Reps: 10, Weight: 95, Completed: true},
					{Reps: 8, Weight: 95, Completed: true},
				},
			},
		},
	},
}

// DefaultRoutine returns the Push / Pull / Legs routine every new user starts with.
func DefaultRoutine(newID IDFunc) []Day {
	days := make([]Day, 0, len(defaultRoutine))
	for _, dd := range defaultRoutine {
		day := Day{
			ID:       newID(dd.name),
			Name:     dd.name,
			Workouts: make([]Workout, 0, len(dd.workouts)),
		}
		for _, dw := range dd.workouts {
			tmpl := Template{
				Name:              dw.name,
				DefaultSets:       dw.sets,
				DefaultReps:       dw.reps,
				MachineSetupNotes: dw.notes,
				PreviousSets:      dw.previous,
			}
			day.Workouts = append(day.Workouts, tmpl.NewWorkout(newID(dw.name)))
		}
		days = append(days, day)
	}
	return days
}

func DefaultSnapshot(userID string, today Date) *Snapshot {
	s := NewEmptySnapshot(userID, today)
	s.Days = DefaultRoutine(SlugID)
	return s
}
