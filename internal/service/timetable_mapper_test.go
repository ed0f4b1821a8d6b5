package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/engine"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

func configWithGrid(days []string, lunch int) config.SchedulerConfig {
	return config.SchedulerConfig{
		Days:             days,
		Periods:          []string{"9:00-10:00", "10:00-11:00", "11:00-12:00", "12:00-1:00"},
		LunchPeriod:      lunch,
		MaxYear:          4,
		BacktrackFactor:  64,
		MaxSubjectPerDay: 2,
		LanguageHours:    2,
		LabBatches:       2,
		LabLength:        3,
	}
}

func TestParseYearKey(t *testing.T) {
	for key, want := range map[string]int{"1": 1, " 2 ": 2, "Year 3": 3, "year4": 4} {
		got, err := parseYearKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
	_, err := parseYearKey("first")
	assert.ErrorIs(t, err, appErrors.ErrInvalidDemand)
}

func TestCoreInputFromRequest(t *testing.T) {
	req := dto.GenerateTimetableRequest{
		YearsSections:          map[string][]string{"2": {"A"}, "Year 1": {"A", "B"}},
		SubjectInput:           map[string][]string{"1": {"Java"}, "2": {"OS", "CN"}},
		HoursInput:             map[string]dto.FlexInt{"1": 4, "2": 3},
		TeacherName:            map[string][]string{"1": {"T1"}, "2": {"T2", "T3"}},
		Lang:                   map[string]string{"1": "French"},
		LangHours:              map[string]dto.FlexInt{"1": 2},
		NumClassrooms:          3,
		OptionalSubject:        map[string][]string{"2": {"Music", "None"}},
		OptionalSubjectHours:   map[string][]dto.FlexInt{"2": {2}},
		OptionalSubjectTeacher: map[string][]string{"2": {"Ms Lee"}},
		LabSummary: []dto.LabSummaryRow{
			{Year: 1, Day: "Monday", Time: "9:00-12:00", Section: "A", Subject: "Java Lab", Batch: 1, Lab: "Lab 1"},
		},
	}

	in, err := coreInputFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Room 1", "Room 2", "Room 3"}, in.Rooms)
	require.Len(t, in.Years, 2)

	first := in.Years[0]
	assert.Equal(t, 1, first.Year)
	assert.Equal(t, []string{"A", "B"}, first.Sections)
	assert.Equal(t, 4, first.Hours)
	assert.Equal(t, "French", first.Language)
	assert.Equal(t, 2, first.LanguageHours)

	second := in.Years[1]
	assert.Equal(t, 2, second.Year)
	assert.Equal(t, []engine.OptionalSubject{{Name: "Music", Hours: 2, Teacher: "Ms Lee"}}, second.Optional)

	require.Len(t, in.Pinned, 1)
	assert.Equal(t, engine.PinnedLab{Year: 1, Section: "A", Day: "Monday", Time: "9:00-12:00", Subject: "Java Lab", Batch: 1, Lab: "Lab 1"}, in.Pinned[0])
}

func TestOptionalSubjectWithoutHoursIsInvalid(t *testing.T) {
	req := dto.GenerateTimetableRequest{
		YearsSections:   map[string][]string{"1": {"A"}},
		SubjectInput:    map[string][]string{"1": {"Java"}},
		OptionalSubject: map[string][]string{"1": {"Music"}},
	}
	_, err := coreInputFromRequest(req)
	assert.ErrorIs(t, err, appErrors.ErrInvalidDemand)
}

func TestClassrooms(t *testing.T) {
	assert.Equal(t, []string{"LH-1", "LH-2"}, classrooms([]string{" LH-1 ", "", "LH-2"}, 5))
	assert.Equal(t, []string{"Room 1", "Room 2"}, classrooms(nil, 2))
	assert.Empty(t, classrooms(nil, 0))
}

func TestLabInputFromRequest(t *testing.T) {
	req := dto.LabTimetableRequest{
		YearsSections:     map[string][]string{"1": {"A", "B"}},
		LabsPerSections:   map[string]dto.FlexInt{"A": 2, "1-A": 4, "B": 3},
		BatchesPerSection: map[string]dto.FlexInt{"B": 3},
		SubjectsPerYear:   map[string][]string{"1": {"Java", "Python"}},
		Labs:              []string{"Lab X"},
		LabTeachers:       map[string][]string{"1": {"T9"}},
	}

	in, err := labInputFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lab X"}, in.Labs)
	require.Len(t, in.Years, 1)
	assert.Equal(t, []engine.LabSection{
		{Label: "A", Sessions: 4},
		{Label: "B", Sessions: 3, Batches: 3},
	}, in.Years[0].Sections)
	assert.Equal(t, []string{"T9"}, in.Years[0].Teachers)
}

func TestGridConfigOverride(t *testing.T) {
	base := engine.DefaultGridConfig()
	lunch := 0
	cfg, err := gridConfig(base, &dto.GridRequest{Days: []string{"Monday"}, LunchPeriod: &lunch})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, cfg.Days)
	assert.Equal(t, base.Periods, cfg.Periods)
	assert.Zero(t, cfg.LunchPeriod)

	cfg, err = gridConfig(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}
