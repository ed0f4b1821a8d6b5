package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const cellSeparator = " / "

// Table is a weekly view: one row per day, one cell per period.
type Table struct {
	Year    int
	Section string
	Teacher string
	Headers []string
	Rows    []Row
}

// Row is one day of a Table. Cells line up with Table.Headers.
type Row struct {
	Day   string
	Cells []string
}

// LabRow is one batch session flattened for the lab rotation view.
type LabRow struct {
	Year    int
	Day     string
	Time    string
	Section string
	Subject string
	Batch   int
	Lab     string
	Teacher string
}

// AssembleSections renders one table per section in the given order, including sections with no assignments.
func AssembleSections(grid *Grid, sections []SectionKey, assignments []Assignment) []Table {
	bySection := lo.GroupBy(assignments, func(a Assignment) SectionKey { return a.SectionKey() })
	tables := make([]Table, 0, len(sections))
	for _, key := range sections {
		table := newTable(grid)
		table.Year = key.Year
		table.Section = key.Section
		fill(grid, &table, bySection[key], sectionCell)
		tables = append(tables, table)
	}
	return tables
}

// AssembleTeachers renders one table per teacher, sorted by name. Unstaffed lab sessions are skipped.
func AssembleTeachers(grid *Grid, assignments []Assignment) []Table {
	byTeacher := lo.GroupBy(
		lo.Filter(assignments, func(a Assignment, _ int) bool { return a.Teacher != "" }),
		func(a Assignment) string { return a.Teacher },
	)
	names := lo.Keys(byTeacher)
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		table := newTable(grid)
		table.Teacher = name
		fill(grid, &table, byTeacher[name], teacherCell)
		tables = append(tables, table)
	}
	return tables
}

// LabRows flattens lab assignments in year, section, day, period and batch order.
func LabRows(grid *Grid, assignments []Assignment) []LabRow {
	labs := lo.Filter(assignments, func(a Assignment, _ int) bool { return a.Kind == KindLab })
	SortAssignments(labs)
	return lo.Map(labs, func(a Assignment, _ int) LabRow {
		return LabRow{
			Year:    a.Year,
			Day:     DayName(a.Day),
			Time:    grid.RunLabel(a.Run()),
			Section: a.Section,
			Subject: a.Subject,
			Batch:   a.Batch,
			Lab:     a.Room,
			Teacher: a.Teacher,
		}
	})
}

// BatchLabel renders a batch number the way lab rows carry it.
func BatchLabel(batch int) string {
	return fmt.Sprintf("Batch %d", batch)
}

func newTable(grid *Grid) Table {
	table := Table{Headers: grid.Periods(), Rows: make([]Row, len(grid.days))}
	for i, day := range grid.days {
		cells := make([]string, len(grid.periods))
		if grid.lunch > 0 {
			cells[grid.lunch-1] = LunchMarker
		}
		table.Rows[i] = Row{Day: DayName(day), Cells: cells}
	}
	return table
}

func fill(grid *Grid, table *Table, assignments []Assignment, render func(Assignment) string) {
	ordered := append([]Assignment(nil), assignments...)
	SortAssignments(ordered)
	for _, a := range ordered {
		pos, ok := grid.DayPosition(a.Day)
		if !ok {
			continue
		}
		text := render(a)
		for _, slot := range a.Slots() {
			if slot.Period < 1 || slot.Period > len(grid.periods) || grid.IsLunch(slot) {
				continue
			}
			cell := &table.Rows[pos].Cells[slot.Period-1]
			if *cell == "" {
				*cell = text
			} else {
				*cell += cellSeparator + text
			}
		}
	}
}

func sectionCell(a Assignment) string {
	if a.Kind == KindLab {
		parts := []string{BatchLabel(a.Batch)}
		if a.Room != "" {
			parts = append(parts, a.Room)
		}
		if a.Teacher != "" {
			parts = append(parts, a.Teacher)
		}
		return fmt.Sprintf("%s [%s]", a.Subject, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s (%s, %s)", a.Subject, a.Teacher, a.Room)
}

func teacherCell(a Assignment) string {
	where := a.SectionKey().String()
	if a.Kind == KindLab {
		where += " " + BatchLabel(a.Batch)
	}
	if a.Room == "" {
		return fmt.Sprintf("%s %s", a.Subject, where)
	}
	return fmt.Sprintf("%s %s (%s)", a.Subject, where, a.Room)
}
