package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_LabelAndPairs(t *testing.T) {
	a, err := Parse("select * from test; -- T2, 1 => 11, 2 => 21")
	require.NoError(t, err)

	assert.Equal(t, T(2), a.Label)
	assert.Equal(t, ExpectSubset, a.Expectation.Kind)
	assert.Equal(t, map[int64]int64{1: 11, 2: 21}, a.Expectation.Values)
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name string
		stmt string
		want Label
	}{
		{"t1", "begin; -- T1", T(1)},
		{"lowercase", "commit; -- t2", T(2)},
		{"no whitespace", "commit; --T3", T(3)},
		{"trailing prose", "commit; -- T1. This unblocks T2", T(1)},
		{"comma", "update test set value = 12 where id = 1; -- T2, BLOCKS", T(2)},
		{"either", "select * from test; -- either. Shows 1 => 12", EitherLabel},
		{"Either capitalised", "select * from test; -- Either. Returns 3 => 30", EitherLabel},
		{"beyond three sessions", "commit; -- T7", T(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabel(tt.stmt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		stmt string
	}{
		{"no comment", "select * from test"},
		{"empty comment", "select * from test; --"},
		{"unknown word", "select * from test; -- T1x"},
		{"t0", "select * from test; -- T0"},
		{"prose first", "select * from test; -- shows 1 => 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabel(tt.stmt)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLabel)
		})
	}
}

func TestParseExpectation(t *testing.T) {
	tests := []struct {
		name   string
		stmt   string
		kind   Kind
		values map[int64]int64
	}{
		{
			name:   "no pairs",
			stmt:   "select * from test where id = 1; -- T1",
			kind:   ExpectExact,
			values: map[int64]int64{},
		},
		{
			name:   "returns nothing",
			stmt:   "select * from test where value = 30; -- T1. Returns nothing",
			kind:   ExpectNothing,
			values: map[int64]int64{},
		},
		{
			name:   "still returns nothing",
			stmt:   "select * from test where value % 3 = 0; -- T1. Still returns nothing",
			kind:   ExpectNothing,
			values: map[int64]int64{},
		},
		{
			name:   "pairs win over phrase",
			stmt:   "select * from test where value % 3 = 0; -- T1. Returns the newly inserted row returns 3 => 30",
			kind:   ExpectSubset,
			values: map[int64]int64{3: 30},
		},
		{
			name:   "whitespace tolerant",
			stmt:   "select * from test; -- T1 1=>11, 2   =>   21",
			kind:   ExpectSubset,
			values: map[int64]int64{1: 11, 2: 21},
		},
		{
			name:   "duplicate key last wins",
			stmt:   "select * from test; -- T1 1 => 11, 1 => 12",
			kind:   ExpectSubset,
			values: map[int64]int64{1: 12},
		},
		{
			name:   "pairs after a second comment marker",
			stmt:   "select * from test; -- T1 -- 1 => 11",
			kind:   ExpectSubset,
			values: map[int64]int64{1: 11},
		},
		{
			name:   "parenthesised prose",
			stmt:   "select * from test where value = 20; -- T2, returns 1 => 20 (despite ostensibly having been deleted)",
			kind:   ExpectSubset,
			values: map[int64]int64{1: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpectation(tt.stmt)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.values, got.Values)
		})
	}
}

func TestParseExpectation_Overflow(t *testing.T) {
	_, err := ParseExpectation("select * from test; -- T1 99999999999999999999 => 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidExpectation)
}

func TestExpectation_Matches(t *testing.T) {
	actual := map[int64]int64{1: 11, 2: 21, 3: 30}

	subset := Expectation{Kind: ExpectSubset, Values: map[int64]int64{1: 11, 2: 21}}
	assert.True(t, subset.Matches(actual))

	wrong := Expectation{Kind: ExpectSubset, Values: map[int64]int64{1: 12}}
	assert.False(t, wrong.Matches(actual))

	missingKey := Expectation{Kind: ExpectSubset, Values: map[int64]int64{4: 40}}
	assert.False(t, missingKey.Matches(actual))
}

func TestExpectation_EmptySemantics(t *testing.T) {
	nothing := Expectation{Kind: ExpectNothing, Values: map[int64]int64{}}
	assert.True(t, nothing.Matches(map[int64]int64{}))
	assert.False(t, nothing.Matches(map[int64]int64{9: 90}))

	// An empty exact expectation compares against the unfiltered result.
	exact := Expectation{Kind: ExpectExact, Values: map[int64]int64{}}
	assert.True(t, exact.Matches(map[int64]int64{}))
	assert.False(t, exact.Matches(map[int64]int64{1: 10}))
}

func TestExpectation_String(t *testing.T) {
	e := Expectation{Kind: ExpectSubset, Values: map[int64]int64{2: 21, 1: 11}}
	assert.Equal(t, "{1 => 11, 2 => 21}", e.String())
	assert.Equal(t, "nothing", Expectation{Kind: ExpectNothing}.String())
	assert.Equal(t, "T3", T(3).String())
	assert.Equal(t, "either", EitherLabel.String())
}
