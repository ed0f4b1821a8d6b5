package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertValidSchedule checks occupancy, lunch and coverage of a solved plan.
func assertValidSchedule(t *testing.T, grid *Grid, plan *Plan, result *Result) {
	t.Helper()

	teachers := make(map[resourceSlot]Assignment)
	rooms := make(map[resourceSlot]Assignment)
	whole := make(map[sectionSlot]bool)
	batches := make(map[sectionSlot]map[int]bool)
	units := make(map[string]int)

	for _, a := range result.Assignments {
		for _, slot := range a.Slots() {
			require.True(t, grid.Contains(slot), "%s is off the grid", a)
			require.False(t, grid.IsLunch(slot), "%s covers lunch", a)
			if a.Teacher != "" {
				held, busy := teachers[resourceSlot{a.Teacher, slot}]
				require.False(t, busy, "teacher %s double booked by %s and %s", a.Teacher, held, a)
				teachers[resourceSlot{a.Teacher, slot}] = a
			}
			if a.Room != "" {
				held, busy := rooms[resourceSlot{a.Room, slot}]
				require.False(t, busy, "room %s double booked by %s and %s", a.Room, held, a)
				rooms[resourceSlot{a.Room, slot}] = a
			}
			ss := sectionSlot{a.SectionKey(), slot}
			require.False(t, whole[ss], "section slot of %s already held", a)
			if a.Batch == 0 {
				require.Empty(t, batches[ss], "section slot of %s held by a lab batch", a)
				whole[ss] = true
				continue
			}
			if batches[ss] == nil {
				batches[ss] = make(map[int]bool)
			}
			require.False(t, batches[ss][a.Batch], "batch slot of %s already held", a)
			batches[ss][a.Batch] = true
		}
		if a.Pinned || a.Kind == KindLab {
			continue
		}
		units[a.SectionKey().String()+"/"+a.Subject]++
	}

	for _, d := range plan.Demands {
		if d.Kind == KindLab {
			continue
		}
		key := d.SectionKey().String() + "/" + d.Subject
		assert.Equal(t, d.RequiredUnits, units[key], "coverage of %s", key)
	}
}

// assertWithinDailyCap checks that no subject exceeds its preferred daily limit.
func assertWithinDailyCap(t *testing.T, plan *Plan, result *Result) {
	t.Helper()

	perDay := make(map[string]map[int]int)
	for _, a := range result.Assignments {
		if a.Pinned || a.Kind == KindLab {
			continue
		}
		key := a.SectionKey().String() + "/" + a.Subject
		if perDay[key] == nil {
			perDay[key] = make(map[int]int)
		}
		perDay[key][a.Day]++
	}
	for _, d := range plan.Demands {
		if d.Kind == KindLab || d.MaxPerDay == 0 {
			continue
		}
		key := d.SectionKey().String() + "/" + d.Subject
		for day, n := range perDay[key] {
			assert.LessOrEqual(t, n, d.MaxPerDay, "%s on day %d", key, day)
		}
	}
}

func slotsOf(assignments []Assignment) []Slot {
	slots := make([]Slot, 0, len(assignments))
	for _, a := range assignments {
		slots = append(slots, Slot{Day: a.Day, Period: a.Period})
	}
	return slots
}

func TestSolveSingleSubject(t *testing.T) {
	grid := newDefaultGrid(t)
	plan, err := BuildCore(grid, CoreInput{
		Years: []YearInput{{Year: 1, Sections: []string{"A"}, Subjects: []string{"Java"}, Hours: 3, Teachers: []string{"T1"}}},
		Rooms: []string{"Room 1"},
	}, DefaultOptions())
	require.NoError(t, err)

	result, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
	require.NoError(t, err)

	require.Len(t, result.Assignments, 3)
	assert.Equal(t, []Slot{{Day: 1, Period: 1}, {Day: 1, Period: 2}, {Day: 2, Period: 1}}, slotsOf(result.Assignments))
	for _, a := range result.Assignments {
		assert.Equal(t, "T1", a.Teacher)
		assert.Equal(t, "Room 1", a.Room)
	}
	assert.Equal(t, 3, result.Units)
	assert.Zero(t, result.Backtracks)
	assertValidSchedule(t, grid, plan, result)
	assertWithinDailyCap(t, plan, result)
}

func TestSolveLabRotation(t *testing.T) {
	grid := newDefaultGrid(t)
	plan, err := BuildLabs(grid, LabInput{Years: []LabYear{{
		Year:     1,
		Sections: []LabSection{{Label: "B", Sessions: 4}},
		Subjects: []string{"Java", "Python"},
	}}}, DefaultOptions())
	require.NoError(t, err)

	result, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
	require.NoError(t, err)

	expected := []Assignment{
		{Year: 1, Section: "B", Subject: "Java", Kind: KindLab, Room: "Lab 1", Day: 1, Period: 1, Length: 3, Batch: 1},
		{Year: 1, Section: "B", Subject: "Python", Kind: KindLab, Room: "Lab 2", Day: 1, Period: 1, Length: 3, Batch: 2},
		{Year: 1, Section: "B", Subject: "Python", Kind: KindLab, Room: "Lab 1", Day: 2, Period: 1, Length: 3, Batch: 1},
		{Year: 1, Section: "B", Subject: "Java", Kind: KindLab, Room: "Lab 2", Day: 2, Period: 1, Length: 3, Batch: 2},
	}
	assert.Equal(t, expected, result.Assignments)
	assertValidSchedule(t, grid, plan, result)
}

func TestSolveBacktracksOutOfGreedyChoice(t *testing.T) {
	grid, err := NewGrid(GridConfig{Days: []int{1}, Periods: []string{"9:00-10:00", "10:00-11:00"}})
	require.NoError(t, err)
	plan := &Plan{Demands: []Demand{
		{Year: 1, Section: "A", Subject: "X", Kind: KindCore, RequiredUnits: 1, UnitLength: 1, Pool: []string{"T1"}, Rooms: []string{"R1", "R2"}},
		{Year: 1, Section: "B", Subject: "Y", Kind: KindCore, RequiredUnits: 2, UnitLength: 1, Pool: []string{"T2"}, Rooms: []string{"R1"}},
	}}

	result, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
	require.NoError(t, err)

	require.Len(t, result.Assignments, 3)
	assert.Equal(t, "R2", result.Assignments[0].Room)
	assert.Equal(t, "A", result.Assignments[0].Section)
	assert.Positive(t, result.Backtracks)
	assertValidSchedule(t, grid, plan, result)
}

func infeasiblePlan(t *testing.T) (*Grid, *Plan) {
	t.Helper()
	grid, err := NewGrid(GridConfig{Days: []int{1}, Periods: []string{"9:00-10:00", "10:00-11:00", "11:00-12:00"}})
	require.NoError(t, err)
	return grid, &Plan{Demands: []Demand{
		{Year: 1, Section: "A", Subject: "X", Kind: KindCore, RequiredUnits: 2, UnitLength: 1, Pool: []string{"T1"}, Rooms: []string{"R1"}},
		{Year: 1, Section: "B", Subject: "Y", Kind: KindCore, RequiredUnits: 2, UnitLength: 1, Pool: []string{"T1"}, Rooms: []string{"R2"}},
	}}
}

func TestSolveReportsUnschedulable(t *testing.T) {
	grid, plan := infeasiblePlan(t)

	result, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnschedulable)

	var failure *UnschedulableError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "B", failure.Demand.Section)
	assert.Equal(t, 1, failure.Unit)
	assert.Equal(t, "search space exhausted", failure.Reason)
	assert.Positive(t, failure.Backtracks)
}

func TestSolveStopsAtBacktrackBudget(t *testing.T) {
	grid, plan := infeasiblePlan(t)
	opts := DefaultOptions()
	opts.BacktrackFactor = 1

	_, err := NewScheduler(grid, opts).Solve(plan)

	var failure *UnschedulableError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "backtrack budget exhausted", failure.Reason)
	assert.Equal(t, 5, failure.Backtracks)
}

func TestSolveRejectsUnplaceableDemand(t *testing.T) {
	grid := newDefaultGrid(t)

	_, err := NewScheduler(grid, DefaultOptions()).Solve(nil)
	assert.ErrorIs(t, err, ErrInvalidDemand)

	_, err = NewScheduler(grid, DefaultOptions()).Solve(&Plan{Demands: []Demand{
		{Year: 1, Section: "A", Subject: "Marathon Lab", Kind: KindLab, RequiredUnits: 1, UnitLength: 5, Rooms: []string{"Lab 1"}, Batches: 1, Sessions: 1, Rotation: []string{"Marathon Lab"}},
	}})
	assert.ErrorIs(t, err, ErrInvalidDemand)
}

func TestSolveKeepsPinnedLabs(t *testing.T) {
	grid := newDefaultGrid(t)
	plan, err := BuildCore(grid, CoreInput{
		Years: []YearInput{{Year: 1, Sections: []string{"A"}, Subjects: []string{"Java"}, Hours: 3, Teachers: []string{"T1"}}},
		Rooms: []string{"Room 1"},
		Pinned: []PinnedLab{
			{Year: 1, Section: "A", Day: "Monday", Time: "9:00-12:00", Subject: "Java Lab", Batch: 1, Lab: "Lab 1"},
			{Year: 1, Section: "A", Day: "Monday", Time: "9:00-12:00", Subject: "C Lab", Batch: 2, Lab: "Lab 2"},
		},
	}, DefaultOptions())
	require.NoError(t, err)

	result, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
	require.NoError(t, err)

	require.Len(t, result.Assignments, 5)
	pinned := 0
	for _, a := range result.Assignments {
		if a.Pinned {
			pinned++
			continue
		}
		assert.False(t, a.Day == 1 && a.Period <= 3, "%s placed during a pinned lab", a)
	}
	assert.Equal(t, 2, pinned)
	assertValidSchedule(t, grid, plan, result)
}

func realisticInput() CoreInput {
	return CoreInput{
		Years: []YearInput{
			{
				Year:     1,
				Sections: []string{"A", "B"},
				Subjects: []string{"Java", "DBMS", "Maths", "Networks"},
				Hours:    4,
				Teachers: []string{"Anand", "Bela", "Chitra"},
				Language: "French",
			},
			{
				Year:     2,
				Sections: []string{"A", "B"},
				Subjects: []string{"OS", "Compilers", "AI", "Statistics"},
				Hours:    4,
				Teachers: []string{"Devi", "Esha", "Farid"},
				Optional: []OptionalSubject{{Name: "Music", Hours: 1, Teacher: "Gopal"}},
			},
		},
		Rooms: []string{"Room 1", "Room 2", "Room 3"},
	}
}

func TestSolveRealisticCollegeIsValidAndDeterministic(t *testing.T) {
	grid := newDefaultGrid(t)
	plan, err := BuildCore(grid, realisticInput(), DefaultOptions())
	require.NoError(t, err)

	first, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
	require.NoError(t, err)
	assertValidSchedule(t, grid, plan, first)
	assertWithinDailyCap(t, plan, first)
	assert.Equal(t, plan.Units(), len(first.Assignments))

	again, err := BuildCore(grid, realisticInput(), DefaultOptions())
	require.NoError(t, err)
	second, err := NewScheduler(grid, DefaultOptions()).Solve(again)
	require.NoError(t, err)
	assert.Equal(t, first.Assignments, second.Assignments)
}

func TestLabRowsFeedCoreGeneration(t *testing.T) {
	grid := newDefaultGrid(t)
	labPlan, err := BuildLabs(grid, LabInput{Years: []LabYear{{
		Year:     1,
		Sections: []LabSection{{Label: "A", Sessions: 2}, {Label: "B", Sessions: 4}},
		Subjects: []string{"Java", "Python"},
	}}}, DefaultOptions())
	require.NoError(t, err)
	labs, err := NewScheduler(grid, DefaultOptions()).Solve(labPlan)
	require.NoError(t, err)
	assertValidSchedule(t, grid, labPlan, labs)

	in := realisticInput()
	for _, row := range LabRows(grid, labs.Assignments) {
		in.Pinned = append(in.Pinned, PinnedLab{
			Year: row.Year, Section: row.Section, Day: row.Day, Time: row.Time,
			Subject: row.Subject, Batch: row.Batch, Lab: row.Lab, Teacher: row.Teacher,
		})
	}
	plan, err := BuildCore(grid, in, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, plan.Pinned, 6)

	result, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
	require.NoError(t, err)
	assertValidSchedule(t, grid, plan, result)
	assert.Len(t, result.Assignments, plan.Units()+6)
}

func TestSolveTreatsDailyCapAsPreference(t *testing.T) {
	cases := []struct {
		name  string
		input CoreInput
	}{
		{
			name: "one section fills every teachable slot",
			input: CoreInput{
				Years: []YearInput{{
					Year:     1,
					Sections: []string{"A"},
					Subjects: []string{"Java", "DBMS", "Maths", "Networks", "OS", "AI", "Physics"},
					Hours:    6,
					Teachers: []string{"T1", "T2", "T3", "T4"},
				}},
				Rooms: []string{"Room 1"},
			},
		},
		{
			name: "two sections share one teacher",
			input: CoreInput{
				Years: []YearInput{{
					Year:     1,
					Sections: []string{"A", "B"},
					Subjects: []string{"X", "Y", "Z"},
					Hours:    7,
					Teachers: []string{"T1"},
				}},
				Rooms: []string{"Room 1", "Room 2"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grid := newDefaultGrid(t)
			plan, err := BuildCore(grid, tc.input, DefaultOptions())
			require.NoError(t, err)

			result, err := NewScheduler(grid, DefaultOptions()).Solve(plan)
			require.NoError(t, err)
			require.Len(t, result.Assignments, 42)
			assertValidSchedule(t, grid, plan, result)
		})
	}
}

func wizardScaleInput() CoreInput {
	in := CoreInput{Rooms: []string{"Room 1", "Room 2", "Room 3", "Room 4", "Room 5", "Room 6", "Room 7", "Room 8"}}
	for year := 1; year <= 4; year++ {
		y := YearInput{Year: year, Sections: []string{"A", "B", "C"}, Hours: 4, Language: "French"}
		for s := 1; s <= 5; s++ {
			y.Subjects = append(y.Subjects, fmt.Sprintf("Y%d Subject %d", year, s))
		}
		for n := 1; n <= 8; n++ {
			y.Teachers = append(y.Teachers, fmt.Sprintf("Y%d Teacher %d", year, n))
		}
		in.Years = append(in.Years, y)
	}
	return in
}

func TestSolveWizardScaleCollege(t *testing.T) {
	cases := []struct {
		name string
		cap  int
	}{
		{name: "daily cap", cap: 2},
		{name: "no daily cap", cap: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grid := newDefaultGrid(t)
			opts := DefaultOptions()
			opts.MaxSubjectPerDay = tc.cap
			plan, err := BuildCore(grid, wizardScaleInput(), opts)
			require.NoError(t, err)
			require.Equal(t, 264, plan.Units())

			result, err := NewScheduler(grid, opts).Solve(plan)
			require.NoError(t, err)
			assert.Equal(t, plan.Units(), result.Units)
			require.Len(t, result.Assignments, plan.Units())
			assertValidSchedule(t, grid, plan, result)
			if tc.cap > 0 {
				assertWithinDailyCap(t, plan, result)
			}
		})
	}
}
