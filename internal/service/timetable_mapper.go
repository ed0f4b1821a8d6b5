package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/engine"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

// EngineSettings is the server-side part of every generation: the default grid and solver options.
type EngineSettings struct {
	Grid    engine.GridConfig
	Options engine.Options
}

// EngineSettingsFromConfig converts scheduler configuration into engine settings.
func EngineSettingsFromConfig(cfg config.SchedulerConfig) (EngineSettings, error) {
	grid := engine.DefaultGridConfig()
	if len(cfg.Days) > 0 {
		days, err := engine.ParseDays(cfg.Days)
		if err != nil {
			return EngineSettings{}, fmt.Errorf("scheduler days: %w", err)
		}
		grid.Days = days
	}
	if len(cfg.Periods) > 0 {
		grid.Periods = append([]string(nil), cfg.Periods...)
	}
	grid.LunchPeriod = cfg.LunchPeriod
	if _, err := engine.NewGrid(grid); err != nil {
		return EngineSettings{}, fmt.Errorf("scheduler grid: %w", err)
	}

	return EngineSettings{
		Grid: grid,
		Options: engine.Options{
			MaxYear:          cfg.MaxYear,
			BacktrackFactor:  cfg.BacktrackFactor,
			TimeBudget:       cfg.TimeBudget,
			MaxSubjectPerDay: cfg.MaxSubjectPerDay,
			LanguageHours:    cfg.LanguageHours,
			LabBatches:       cfg.LabBatches,
			LabLength:        cfg.LabLength,
		},
	}, nil
}

// gridConfig applies a per-request grid override on top of base.
func gridConfig(base engine.GridConfig, req *dto.GridRequest) (engine.GridConfig, error) {
	cfg := engine.GridConfig{
		Days:        append([]int(nil), base.Days...),
		Periods:     append([]string(nil), base.Periods...),
		LunchPeriod: base.LunchPeriod,
	}
	if req == nil {
		return cfg, nil
	}
	if len(req.Days) > 0 {
		days, err := engine.ParseDays(req.Days)
		if err != nil {
			return cfg, err
		}
		cfg.Days = days
	}
	if len(req.Periods) > 0 {
		cfg.Periods = append([]string(nil), req.Periods...)
	}
	if req.LunchPeriod != nil {
		cfg.LunchPeriod = *req.LunchPeriod
	}
	return cfg, nil
}

// parseYearKey accepts "1", " 2 " and "Year 3".
func parseYearKey(key string) (int, error) {
	raw := strings.TrimSpace(key)
	if len(raw) >= 4 && strings.EqualFold(raw[:4], "year") {
		raw = strings.TrimSpace(raw[4:])
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrInvalidDemand, fmt.Sprintf("year key %q is not a number", key))
	}
	return year, nil
}

type yearKey struct {
	year int
	key  string
}

// sortedYears parses and orders the keys of years_sections.
func sortedYears(yearsSections map[string][]string) ([]yearKey, error) {
	keys := make([]yearKey, 0, len(yearsSections))
	for key := range yearsSections {
		year, err := parseYearKey(key)
		if err != nil {
			return nil, err
		}
		keys = append(keys, yearKey{year: year, key: key})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].key < keys[j].key
	})
	return keys, nil
}

// forYear looks a year up by its exact key first and by parsed year second.
func forYear[T any](values map[string]T, yk yearKey) (T, bool) {
	if v, ok := values[yk.key]; ok {
		return v, true
	}
	for key, v := range values {
		if year, err := parseYearKey(key); err == nil && year == yk.year {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func coreInputFromRequest(req dto.GenerateTimetableRequest) (engine.CoreInput, error) {
	years, err := sortedYears(req.YearsSections)
	if err != nil {
		return engine.CoreInput{}, err
	}

	in := engine.CoreInput{Rooms: classrooms(req.Rooms, req.NumClassrooms.Int())}
	for _, yk := range years {
		subjects, ok := forYear(req.SubjectInput, yk)
		if !ok || len(subjects) == 0 {
			return engine.CoreInput{}, appErrors.Clone(appErrors.ErrInvalidDemand, fmt.Sprintf("year %d has sections but no subjects", yk.year))
		}
		if declared, ok := forYear(req.NumSubjects, yk); ok && declared.Int() > 0 && declared.Int() != len(subjects) {
			return engine.CoreInput{}, appErrors.Clone(appErrors.ErrInvalidDemand,
				fmt.Sprintf("year %d declares %d subjects but lists %d", yk.year, declared.Int(), len(subjects)))
		}
		hours, _ := forYear(req.HoursInput, yk)
		teachers, _ := forYear(req.TeacherName, yk)
		language, _ := forYear(req.Lang, yk)
		languageHours, _ := forYear(req.LangHours, yk)

		optional, err := optionalSubjects(req, yk)
		if err != nil {
			return engine.CoreInput{}, err
		}

		in.Years = append(in.Years, engine.YearInput{
			Year:          yk.year,
			Sections:      req.YearsSections[yk.key],
			Subjects:      subjects,
			Hours:         hours.Int(),
			Teachers:      teachers,
			Optional:      optional,
			Language:      language,
			LanguageHours: languageHours.Int(),
		})
	}

	in.Pinned = lo.Map(req.LabSummary, func(row dto.LabSummaryRow, _ int) engine.PinnedLab {
		return engine.PinnedLab{
			Year:    row.Year.Int(),
			Section: row.Section,
			Day:     row.Day,
			Time:    row.Time,
			Subject: row.Subject,
			Batch:   int(row.Batch),
			Lab:     row.Lab,
			Teacher: row.Teacher,
		}
	})
	return in, nil
}

func optionalSubjects(req dto.GenerateTimetableRequest, yk yearKey) ([]engine.OptionalSubject, error) {
	names, _ := forYear(req.OptionalSubject, yk)
	hours, _ := forYear(req.OptionalSubjectHours, yk)
	teachers, _ := forYear(req.OptionalSubjectTeacher, yk)

	var subjects []engine.OptionalSubject
	for i, name := range names {
		if engine.IsNoLanguage(name) {
			continue
		}
		if i >= len(hours) || hours[i].Int() <= 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidDemand,
				fmt.Sprintf("year %d optional subject %q has no weekly hours", yk.year, strings.TrimSpace(name)))
		}
		subject := engine.OptionalSubject{Name: name, Hours: hours[i].Int()}
		if i < len(teachers) {
			subject.Teacher = teachers[i]
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// classrooms uses the named rooms when given and otherwise numbers count rooms.
func classrooms(rooms []string, count int) []string {
	named := lo.FilterMap(rooms, func(room string, _ int) (string, bool) {
		room = strings.TrimSpace(room)
		return room, room != ""
	})
	if len(named) > 0 || count <= 0 {
		return named
	}
	generated := make([]string, count)
	for i := range generated {
		generated[i] = fmt.Sprintf("Room %d", i+1)
	}
	return generated
}

func labInputFromRequest(req dto.LabTimetableRequest) (engine.LabInput, error) {
	years, err := sortedYears(req.YearsSections)
	if err != nil {
		return engine.LabInput{}, err
	}

	in := engine.LabInput{Labs: req.Labs}
	for _, yk := range years {
		subjects, _ := forYear(req.SubjectsPerYear, yk)
		teachers, _ := forYear(req.LabTeachers, yk)
		year := engine.LabYear{Year: yk.year, Subjects: subjects, Teachers: teachers}
		for _, label := range req.YearsSections[yk.key] {
			year.Sections = append(year.Sections, engine.LabSection{
				Label:    label,
				Sessions: sectionValue(req.LabsPerSections, yk.year, label),
				Batches:  sectionValue(req.BatchesPerSection, yk.year, label),
			})
		}
		in.Years = append(in.Years, year)
	}
	return in, nil
}

// sectionValue reads a per-section count keyed "<year>-<section>" or plain "<section>".
func sectionValue(values map[string]dto.FlexInt, year int, section string) int {
	section = strings.TrimSpace(section)
	if v, ok := values[fmt.Sprintf("%d-%s", year, section)]; ok {
		return v.Int()
	}
	if v, ok := values[section]; ok {
		return v.Int()
	}
	return 0
}

func tableRows(table engine.Table) []dto.TableRow {
	return lo.Map(table.Rows, func(row engine.Row, _ int) dto.TableRow {
		cells := make([]dto.TableCell, len(row.Cells))
		for i, text := range row.Cells {
			cells[i] = dto.TableCell{Period: table.Headers[i], Text: text}
		}
		return dto.TableRow{Day: row.Day, Cells: cells}
	})
}

func sectionTimetables(tables []engine.Table) []dto.SectionTimetable {
	return lo.Map(tables, func(t engine.Table, _ int) dto.SectionTimetable {
		return dto.SectionTimetable{Year: t.Year, Section: t.Section, TableData: tableRows(t)}
	})
}

func teacherTimetables(tables []engine.Table) []dto.TeacherTimetable {
	return lo.Map(tables, func(t engine.Table, _ int) dto.TeacherTimetable {
		return dto.TeacherTimetable{Teacher: t.Teacher, TableData: tableRows(t)}
	})
}

func assignmentResponses(grid *engine.Grid, assignments []engine.Assignment) []dto.AssignmentResponse {
	return lo.Map(assignments, func(a engine.Assignment, _ int) dto.AssignmentResponse {
		return dto.AssignmentResponse{
			Year:    a.Year,
			Section: a.Section,
			Subject: a.Subject,
			Kind:    string(a.Kind),
			Teacher: a.Teacher,
			Room:    a.Room,
			Day:     engine.DayName(a.Day),
			Period:  a.Period,
			Length:  a.Run().Length,
			Time:    grid.RunLabel(a.Run()),
			Batch:   a.Batch,
			Pinned:  a.Pinned,
		}
	})
}

func labSummaryRows(rows []engine.LabRow) []dto.LabSummaryRow {
	return lo.Map(rows, func(r engine.LabRow, _ int) dto.LabSummaryRow {
		return dto.LabSummaryRow{
			Year:    dto.FlexInt(r.Year),
			Day:     r.Day,
			Time:    r.Time,
			Section: r.Section,
			Subject: r.Subject,
			Batch:   dto.BatchLabel(r.Batch),
			Lab:     r.Lab,
			Teacher: r.Teacher,
		}
	})
}
