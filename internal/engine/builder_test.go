package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCoreRotatesPreferredTeacher(t *testing.T) {
	grid := newDefaultGrid(t)
	plan, err := BuildCore(grid, CoreInput{
		Years: []YearInput{{
			Year:     1,
			Sections: []string{"A", "B"},
			Subjects: []string{"Java", "DBMS"},
			Hours:    3,
			Teachers: []string{"T1", "T2", "T3"},
			Language: "none",
		}},
		Rooms: []string{"Room 1", "Room 2"},
	}, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, plan.Demands, 4)
	assert.Equal(t, []SectionKey{{Year: 1, Section: "A"}, {Year: 1, Section: "B"}}, plan.Sections)

	first := func(i int) string { return plan.Demands[i].Pool[0] }
	assert.Equal(t, "T1", first(0), "1-A Java")
	assert.Equal(t, "T3", first(1), "1-A DBMS")
	assert.Equal(t, "T2", first(2), "1-B Java")
	assert.Equal(t, "T1", first(3), "1-B DBMS")
	assert.ElementsMatch(t, []string{"T1", "T2", "T3"}, plan.Demands[1].Pool)

	for _, d := range plan.Demands {
		assert.Equal(t, 3, d.RequiredUnits)
		assert.Equal(t, 1, d.UnitLength)
		assert.Equal(t, 2, d.MaxPerDay)
		assert.Equal(t, KindCore, d.Kind)
	}
}

func TestBuildCoreLanguageAndElectives(t *testing.T) {
	grid := newDefaultGrid(t)
	plan, err := BuildCore(grid, CoreInput{
		Years: []YearInput{{
			Year:     2,
			Sections: []string{"A"},
			Subjects: []string{"OS"},
			Hours:    4,
			Teachers: []string{"T1"},
			Language: " French ",
			Optional: []OptionalSubject{{Name: "Music", Hours: 1, Teacher: "Ms Lee"}},
		}},
		Rooms: []string{"Room 1"},
	}, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, plan.Demands, 3)
	assert.Equal(t, "OS", plan.Demands[0].Subject)
	assert.Equal(t, "French", plan.Demands[1].Subject)
	assert.Equal(t, KindLanguage, plan.Demands[1].Kind)
	assert.Equal(t, 2, plan.Demands[1].RequiredUnits)
	assert.Equal(t, KindOptional, plan.Demands[2].Kind)
	assert.Equal(t, []string{"Ms Lee"}, plan.Demands[2].Pool)
	assert.Equal(t, 7, plan.Units())
}

func TestBuildCoreRejects(t *testing.T) {
	grid := newDefaultGrid(t)
	base := func() CoreInput {
		return CoreInput{
			Years: []YearInput{{
				Year:     1,
				Sections: []string{"A"},
				Subjects: []string{"Java"},
				Hours:    3,
				Teachers: []string{"T1"},
			}},
			Rooms: []string{"Room 1"},
		}
	}

	cases := map[string]func(in *CoreInput){
		"no years":          func(in *CoreInput) { in.Years = nil },
		"no rooms":          func(in *CoreInput) { in.Rooms = []string{" "} },
		"year out of range": func(in *CoreInput) { in.Years[0].Year = 5 },
		"no teachers":       func(in *CoreInput) { in.Years[0].Teachers = nil },
		"zero hours":        func(in *CoreInput) { in.Years[0].Hours = 0 },
		"hours over grid":   func(in *CoreInput) { in.Years[0].Hours = 43 },
		"duplicate section": func(in *CoreInput) { in.Years[0].Sections = []string{"A", "a"} },
		"duplicate subject": func(in *CoreInput) { in.Years[0].Subjects = []string{"Java", "JAVA"} },
		"section overload": func(in *CoreInput) {
			in.Years[0].Subjects = []string{"Java", "DBMS"}
			in.Years[0].Hours = 22
			in.Years[0].Teachers = []string{"T1", "T2"}
			in.Rooms = []string{"Room 1", "Room 2"}
		},
		"teacher pool overload": func(in *CoreInput) {
			in.Years[0].Sections = []string{"A", "B"}
			in.Years[0].Hours = 22
			in.Rooms = []string{"Room 1", "Room 2"}
		},
		"room overload": func(in *CoreInput) {
			in.Years[0].Sections = []string{"A", "B"}
			in.Years[0].Hours = 22
			in.Years[0].Teachers = []string{"T1", "T2"}
		},
		"pinned lab crosses lunch": func(in *CoreInput) {
			in.Pinned = []PinnedLab{{Year: 1, Section: "A", Day: "Monday", Time: "11:00-2:00", Subject: "Java Lab", Batch: 1}}
		},
		"pinned lab unknown section": func(in *CoreInput) {
			in.Pinned = []PinnedLab{{Year: 1, Section: "Z", Day: "Monday", Time: "9:00-12:00", Subject: "Java Lab", Batch: 1}}
		},
		"pinned labs overlap": func(in *CoreInput) {
			in.Pinned = []PinnedLab{
				{Year: 1, Section: "A", Day: "Monday", Time: "9:00-12:00", Subject: "Java Lab", Batch: 1, Lab: "Lab 1"},
				{Year: 1, Section: "A", Day: "Monday", Time: "9:00-12:00", Subject: "C Lab", Batch: 2, Lab: "Lab 1"},
			}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base()
			mutate(&in)
			_, err := BuildCore(grid, in, DefaultOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDemand)
		})
	}
}

func TestBuildCorePinsLabRows(t *testing.T) {
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

	require.Len(t, plan.Pinned, 2)
	assert.True(t, plan.Pinned[0].Pinned)
	assert.Equal(t, Run{Day: 1, Start: 1, Length: 3}, plan.Pinned[1].Run())
	assert.Equal(t, map[SectionKey]int{{Year: 1, Section: "A"}: 3}, pinnedLoad(plan.Pinned))
}

func TestBuildLabsRoundsAndRotation(t *testing.T) {
	grid := newDefaultGrid(t)
	plan, err := BuildLabs(grid, LabInput{
		Years: []LabYear{{
			Year:     1,
			Sections: []LabSection{{Label: "A", Sessions: 0}, {Label: "B", Sessions: 4}},
			Subjects: []string{"Java", "Python"},
		}},
	}, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, plan.Sections, 2)
	require.Len(t, plan.Demands, 1)
	d := plan.Demands[0]
	assert.Equal(t, "B", d.Section)
	assert.Equal(t, 2, d.RequiredUnits)
	assert.Equal(t, 3, d.UnitLength)
	assert.Equal(t, 1, d.MaxPerDay)
	assert.Equal(t, []string{"Lab 1", "Lab 2"}, d.Rooms)
	assert.Equal(t, "Java/Python", d.Subject)

	assert.Equal(t, []BatchSession{{Batch: 1, Subject: "Java"}, {Batch: 2, Subject: "Python"}}, d.Round(0))
	assert.Equal(t, []BatchSession{{Batch: 1, Subject: "Python"}, {Batch: 2, Subject: "Java"}}, d.Round(1))
}

func TestDemandRoundPartialFinalRound(t *testing.T) {
	d := Demand{Kind: KindLab, Batches: 2, Sessions: 3, Rotation: []string{"Java", "Python", "C"}}

	assert.Equal(t, []BatchSession{{Batch: 1, Subject: "Java"}, {Batch: 2, Subject: "Python"}}, d.Round(0))
	assert.Equal(t, []BatchSession{{Batch: 1, Subject: "Python"}}, d.Round(1))
	assert.Empty(t, d.Round(2))
}

func TestBuildLabsRejects(t *testing.T) {
	grid := newDefaultGrid(t)
	cases := map[string]LabInput{
		"no years": {},
		"too many rounds": {Years: []LabYear{{
			Year: 1, Sections: []LabSection{{Label: "A", Sessions: 26}}, Subjects: []string{"Java"},
		}}},
		"no subjects": {Years: []LabYear{{
			Year: 1, Sections: []LabSection{{Label: "A", Sessions: 2}},
		}}},
		"negative count": {Years: []LabYear{{
			Year: 1, Sections: []LabSection{{Label: "A", Sessions: -1}}, Subjects: []string{"Java"},
		}}},
		"too few labs": {Labs: []string{"Lab 1"}, Years: []LabYear{{
			Year: 1, Sections: []LabSection{{Label: "A", Sessions: 2}}, Subjects: []string{"Java", "C"},
		}}},
		"too few lab teachers": {Years: []LabYear{{
			Year: 1, Sections: []LabSection{{Label: "A", Sessions: 2, Batches: 3}}, Subjects: []string{"Java"}, Teachers: []string{"T1"},
		}}},
		"duplicate section": {Years: []LabYear{{
			Year: 1, Sections: []LabSection{{Label: "A", Sessions: 2}, {Label: "A", Sessions: 2}}, Subjects: []string{"Java"},
		}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildLabs(grid, in, DefaultOptions())
			assert.ErrorIs(t, err, ErrInvalidDemand)
		})
	}
}

func TestPreferredFirst(t *testing.T) {
	assert.Equal(t, []string{"C", "A", "B", "D"}, preferredFirst([]string{"A", "B", "C", "D"}, 2))
	assert.Equal(t, []string{"A"}, preferredFirst([]string{"A"}, 0))
}
