package workout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepRange(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  RepRange
		formatted string
	}{
		{name: "range", input: "8-12", expected: NewRepRange(8, 12), formatted: "8-12"},
		{name: "fixed", input: "8", expected: FixedReps(8), formatted: "8"},
		{name: "spaces", input: "  10 - 15 ", expected: NewRepRange(10, 15), formatted: "10-15"},
		{name: "same bounds", input: "8-8", expected: NewRepRange(8, 8), formatted: "8"},
		{name: "empty", input: "", expected: FixedReps(1), formatted: "1"},
		{name: "garbage", input: "abc", expected: FixedReps(1), formatted: "1"},
		{name: "missing max", input: "6-", expected: NewRepRange(6, 6), formatted: "6"},
		{name: "missing min", input: "-5", expected: NewRepRange(1, 5), formatted: "1-5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := ParseRepRange(tc.input)
			assert.Equal(t, tc.expected, r)
			assert.Equal(t, tc.formatted, r.String())
		})
	}
}

func TestParseRepRange_FixedHasNoMax(t *testing.T) {
	r := ParseRepRange("8")
	assert.Equal(t, 8, r.Min)
	assert.Nil(t, r.Max)
	assert.False(t, r.IsRange())

	r = ParseRepRange("8-12")
	assert.Equal(t, 8, r.Min)
	require.NotNil(t, r.Max)
	assert.Equal(t, 12, *r.Max)
	assert.True(t, r.IsRange())
}

func TestRepRange_RoundTrip(t *testing.T) {
	for _, canonical := range []string{"8-12", "8", "1", "15-20"} {
		r, err := ParseRepRangeStrict(canonical)
		require.NoError(t, err)
		assert.Equal(t, canonical, r.String())
		assert.Equal(t, canonical, ParseRepRange(r.String()).String())
	}
}

func TestParseRepRangeStrict_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "12-8", "0", "8-x", "-3"} {
		_, err := ParseRepRangeStrict(input)
		assert.ErrorIs(t, err, ErrInvalidRepRange, input)
	}
}

func TestRepRange_JSON(t *testing.T) {
	b, err := json.Marshal(NewRepRange(8, 12))
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":8,"max":12}`, string(b))

	b, err = json.Marshal(FixedReps(5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":5}`, string(b))

	var fromObject RepRange
	require.NoError(t, json.Unmarshal([]byte(`{"min":6,"max":8}`), &fromObject))
	assert.Equal(t, "6-8", fromObject.String())

	var fromString RepRange
	require.NoError(t, json.Unmarshal([]byte(`"10-15"`), &fromString))
	assert.Equal(t, NewRepRange(10, 15), fromString)

	var invalid RepRange
	assert.ErrorIs(t, json.Unmarshal([]byte(`"15-10"`), &invalid), ErrInvalidRepRange)
}
