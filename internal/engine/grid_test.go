package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultGrid(t *testing.T) *Grid {
	t.Helper()
	grid, err := NewGrid(DefaultGridConfig())
	require.NoError(t, err)
	return grid
}

func TestGridDefaults(t *testing.T) {
	grid := newDefaultGrid(t)

	assert.Len(t, grid.AllSlots(), 48)
	assert.Equal(t, 42, grid.TeachableSlots())
	assert.Equal(t, 7, grid.TeachablePerDay())
	assert.True(t, grid.IsLunch(Slot{Day: 3, Period: 4}))
	assert.False(t, grid.IsLunch(Slot{Day: 3, Period: 5}))
	assert.Equal(t, "12:00-1:00", grid.Periods()[grid.LunchPeriod()-1])
}

func TestGridRunsSkipLunchInDayThenStartOrder(t *testing.T) {
	grid := newDefaultGrid(t)

	runs := grid.Runs(3)
	require.Len(t, runs, 18)
	assert.Equal(t, []Run{
		{Day: 1, Start: 1, Length: 3},
		{Day: 1, Start: 5, Length: 3},
		{Day: 1, Start: 6, Length: 3},
		{Day: 2, Start: 1, Length: 3},
	}, runs[:4])
	for _, run := range runs {
		for _, slot := range run.Slots() {
			assert.False(t, grid.IsLunch(slot), "run %+v crosses lunch", run)
		}
	}

	assert.Len(t, grid.Runs(1), 42)
	assert.Empty(t, grid.Runs(5))
	assert.Equal(t, 12, grid.MaxDisjointRuns(3))
	assert.Equal(t, 6, grid.MaxDisjointRuns(4))
}

func TestGridRunLabels(t *testing.T) {
	grid := newDefaultGrid(t)

	assert.Equal(t, "9:00-12:00", grid.RunLabel(Run{Day: 1, Start: 1, Length: 3}))
	assert.Equal(t, "1:00-4:00", grid.RunLabel(Run{Day: 1, Start: 5, Length: 3}))
	assert.Equal(t, "4:00-5:00", grid.RunLabel(Run{Day: 1, Start: 8, Length: 1}))

	run, err := grid.ParseRun("monday", "09:00 - 12:00")
	require.NoError(t, err)
	assert.Equal(t, Run{Day: 1, Start: 1, Length: 3}, run)

	run, err = grid.ParseRun("Sat", "2:00-5:00")
	require.NoError(t, err)
	assert.Equal(t, Run{Day: 6, Start: 6, Length: 3}, run)
}

func TestGridParseRunRejects(t *testing.T) {
	grid := newDefaultGrid(t)

	cases := map[string][2]string{
		"lunch":       {"Monday", "11:00-2:00"},
		"unknown day": {"Funday", "9:00-12:00"},
		"sunday":      {"Sunday", "9:00-12:00"},
		"off grid":    {"Monday", "8:00-9:00"},
		"garbage":     {"Monday", "morning"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := grid.ParseRun(tc[0], tc[1])
			assert.ErrorIs(t, err, ErrInvalidDemand)
		})
	}
}

func TestNewGridValidation(t *testing.T) {
	cases := map[string]GridConfig{
		"no days":       {Periods: DefaultPeriods, LunchPeriod: 4},
		"duplicate day": {Days: []int{1, 1}, Periods: DefaultPeriods, LunchPeriod: 4},
		"day range":     {Days: []int{8}, Periods: DefaultPeriods, LunchPeriod: 4},
		"bad label":     {Days: []int{1}, Periods: []string{"9-10", "10:00-11:00"}},
		"lunch range":   {Days: []int{1}, Periods: DefaultPeriods, LunchPeriod: 9},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewGrid(cfg)
			assert.ErrorIs(t, err, ErrInvalidDemand)
		})
	}
}

func TestParseDays(t *testing.T) {
	days, err := ParseDays([]string{"MONDAY", "tue", "3"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, days)

	_, err = ParseDays([]string{"someday"})
	assert.ErrorIs(t, err, ErrInvalidDemand)
	assert.Equal(t, "Friday", DayName(5))
}
