package workout

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDayNotFound       = errors.New("day not found")
	ErrWorkoutNotFound   = errors.New("workout not found")
	ErrInvalidSet        = errors.New("invalid set: reps and weight must not be negative")
	ErrInvalidWorkout    = errors.New("invalid workout: name required and default sets must be at least 1")
	ErrInvalidDayName    = errors.New("invalid day name")
	ErrInvalidRepRange   = errors.New("invalid rep range")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)
