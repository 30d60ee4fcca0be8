package workout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RepRange is a target rep count (Max == nil) or an inclusive range of reps.
type RepRange struct {
	Min int  `json:"min"`
	Max *int `json:"max,omitempty"`
}

func NewRepRange(lo, hi int) RepRange {
	return RepRange{Min: lo, Max: &hi}
}

func FixedReps(reps int) RepRange {
	return RepRange{Min: reps}
}

// IsRange reports whether the range has a distinct upper bound.
func (r RepRange) IsRange() bool {
	return r.Max != nil && *r.Max != r.Min
}

func (r RepRange) Validate() error {
	if r.Min < 1 {
		return ErrInvalidRepRange
	}
	if r.Max != nil && *r.Max < r.Min {
		return ErrInvalidRepRange
	}
	return nil
}

// String formats the range as "8-12", or "8" for a fixed target.
func (r RepRange) String() string {
	if r.IsRange() {
		return fmt.Sprintf("%d-%d", r.Min, *r.Max)
	}
	return strconv.Itoa(r.Min)
}

func (r RepRange) Equal(other RepRange) bool {
	return r.String() == other.String()
}

// ParseRepRange parses form input like "8" or "8-12" leniently:
// a missing or non numeric min becomes 1, and a missing or non numeric max becomes min.
func ParseRepRange(input string) RepRange {
	trimmed := strings.TrimSpace(input)
	if minStr, maxStr, isRange := strings.Cut(trimmed, "-"); isRange {
		lo := atoiOr(minStr, 0)
		hi := atoiOr(maxStr, 0)
		if lo <= 0 {
			lo = 1
		}
		if hi <= 0 {
			hi = lo
		}
		return NewRepRange(lo, hi)
	}
	reps := atoiOr(trimmed, 1)
	if reps <= 0 {
		reps = 1
	}
	return FixedReps(reps)
}

// ParseRepRangeStrict is like ParseRepRange but rejects malformed input.
func ParseRepRangeStrict(input string) (RepRange, error) {
	trimmed := strings.TrimSpace(input)
	minStr, maxStr, isRange := strings.Cut(trimmed, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(minStr))
	if err != nil {
		return RepRange{}, fmt.Errorf("%w: %q", ErrInvalidRepRange, input)
	}

	r := FixedReps(lo)
	if isRange {
		hi, err := strconv.Atoi(strings.TrimSpace(maxStr))
		if err != nil {
			return RepRange{}, fmt.Errorf("%w: %q", ErrInvalidRepRange, input)
		}
		r = NewRepRange(lo, hi)
	}

	if err := r.Validate(); err != nil {
		return RepRange{}, fmt.Errorf("%w: %q", ErrInvalidRepRange, input)
	}
	return r, nil
}

type repRangeAlias RepRange

// UnmarshalJSON accepts both {"min":8,"max":12} and the "8-12" string form.
func (r *RepRange) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseRepRangeStrict(s)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}

	var alias repRangeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = RepRange(alias)
	return nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}
