package engine

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// LunchMarker is rendered in every lunch cell.
const LunchMarker = "LUNCH"

var dayNames = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
	7: "Sunday",
}

var dayIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
	"MON":       1,
	"TUE":       2,
	"WED":       3,
	"THU":       4,
	"FRI":       5,
	"SAT":       6,
	"SUN":       7,
}

// DefaultPeriods are the hourly teaching periods of a college day, lunch included.
var DefaultPeriods = []string{
	"9:00-10:00",
	"10:00-11:00",
	"11:00-12:00",
	"12:00-1:00",
	"1:00-2:00",
	"2:00-3:00",
	"3:00-4:00",
	"4:00-5:00",
}

// GridConfig describes the weekly grid. LunchPeriod is 1-based; 0 disables lunch.
type GridConfig struct {
	Days        []int
	Periods     []string
	LunchPeriod int
}

// DefaultGridConfig returns Monday to Saturday with eight periods and lunch fourth.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Days:        []int{1, 2, 3, 4, 5, 6},
		Periods:     append([]string(nil), DefaultPeriods...),
		LunchPeriod: 4,
	}
}

// Grid is the read-only universe of schedulable slots for one request.
type Grid struct {
	days    []int
	dayPos  map[int]int
	periods []string
	starts  []string
	ends    []string
	lunch   int

	mu   sync.Mutex
	runs map[int][]Run
}

// NewGrid validates cfg and builds a grid.
func NewGrid(cfg GridConfig) (*Grid, error) {
	if len(cfg.Days) == 0 {
		return nil, invalid(0, "", "", "grid needs at least one day")
	}
	days := append([]int(nil), cfg.Days...)
	sort.Ints(days)
	dayPos := make(map[int]int, len(days))
	for i, day := range days {
		if _, ok := dayNames[day]; !ok {
			return nil, invalid(0, "", "", "day %d is outside 1..7", day)
		}
		if _, dup := dayPos[day]; dup {
			return nil, invalid(0, "", "", "day %s listed twice", dayNames[day])
		}
		dayPos[day] = i
	}

	if len(cfg.Periods) < 2 {
		return nil, invalid(0, "", "", "grid needs at least two periods")
	}
	g := &Grid{
		days:    days,
		dayPos:  dayPos,
		periods: make([]string, len(cfg.Periods)),
		starts:  make([]string, len(cfg.Periods)),
		ends:    make([]string, len(cfg.Periods)),
		lunch:   cfg.LunchPeriod,
		runs:    make(map[int][]Run),
	}
	for i, label := range cfg.Periods {
		start, end, ok := splitRange(label)
		if !ok {
			return nil, invalid(0, "", "", "period %q is not a start-end time range", label)
		}
		g.periods[i] = start + "-" + end
		g.starts[i] = start
		g.ends[i] = end
	}
	if cfg.LunchPeriod < 0 || cfg.LunchPeriod > len(cfg.Periods) {
		return nil, invalid(0, "", "", "lunch period %d is outside 1..%d", cfg.LunchPeriod, len(cfg.Periods))
	}
	return g, nil
}

// Days returns the configured weekdays in order.
func (g *Grid) Days() []int {
	return append([]int(nil), g.days...)
}

// Periods returns the period labels in order, lunch included.
func (g *Grid) Periods() []string {
	return append([]string(nil), g.periods...)
}

// PeriodCount is the number of periods per day, lunch included.
func (g *Grid) PeriodCount() int {
	return len(g.periods)
}

// LunchPeriod returns the 1-based lunch period or 0.
func (g *Grid) LunchPeriod() int {
	return g.lunch
}

// DayPosition returns the 0-based position of day within the week.
func (g *Grid) DayPosition(day int) (int, bool) {
	pos, ok := g.dayPos[day]
	return pos, ok
}

// AllSlots lists every (Day, Period) pair in day then period order, lunch included.
func (g *Grid) AllSlots() []Slot {
	slots := make([]Slot, 0, len(g.days)*len(g.periods))
	for _, day := range g.days {
		for p := 1; p <= len(g.periods); p++ {
			slots = append(slots, Slot{Day: day, Period: p})
		}
	}
	return slots
}

// IsLunch reports whether slot falls on the reserved lunch period.
func (g *Grid) IsLunch(slot Slot) bool {
	return g.lunch > 0 && slot.Period == g.lunch
}

// Contains reports whether slot exists in the grid.
func (g *Grid) Contains(slot Slot) bool {
	_, ok := g.dayPos[slot.Day]
	return ok && slot.Period >= 1 && slot.Period <= len(g.periods)
}

// TeachableSlots is the number of non-lunch slots per week.
func (g *Grid) TeachableSlots() int {
	perDay := len(g.periods)
	if g.lunch > 0 {
		perDay--
	}
	return perDay * len(g.days)
}

// TeachablePerDay is the number of non-lunch periods per day.
func (g *Grid) TeachablePerDay() int {
	if len(g.days) == 0 {
		return 0
	}
	return g.TeachableSlots() / len(g.days)
}

// Runs lists every window of length contiguous non-lunch periods, day then start period order.
// The result is computed once per length and shared; callers must not modify it.
func (g *Grid) Runs(length int) []Run {
	if length <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if runs, ok := g.runs[length]; ok {
		return runs
	}
	var runs []Run
	for _, day := range g.days {
		for start := 1; start+length-1 <= len(g.periods); start++ {
			run := Run{Day: day, Start: start, Length: length}
			if !g.crossesLunch(run) {
				runs = append(runs, run)
			}
		}
	}
	g.runs[length] = runs
	return runs
}

// MaxDisjointRuns counts how many non-overlapping runs of length fit in one week.
func (g *Grid) MaxDisjointRuns(length int) int {
	if length <= 0 {
		return 0
	}
	perDay := 0
	segment := 0
	for p := 1; p <= len(g.periods)+1; p++ {
		if p <= len(g.periods) && p != g.lunch {
			segment++
			continue
		}
		perDay += segment / length
		segment = 0
	}
	return perDay * len(g.days)
}

// RunLabel renders a run as a time range such as "9:00-12:00".
func (g *Grid) RunLabel(run Run) string {
	if run.Start < 1 || run.End() > len(g.periods) {
		return ""
	}
	return g.starts[run.Start-1] + "-" + g.ends[run.End()-1]
}

// ParseRun resolves a day name and time range back to a run of the grid.
func (g *Grid) ParseRun(dayName, label string) (Run, error) {
	day, ok := ParseDay(dayName)
	if !ok {
		return Run{}, invalid(0, "", "", "unknown day %q", dayName)
	}
	if _, ok := g.dayPos[day]; !ok {
		return Run{}, invalid(0, "", "", "%s is not a teaching day", dayNames[day])
	}
	start, end, ok := splitRange(label)
	if !ok {
		return Run{}, invalid(0, "", "", "time %q is not a start-end time range", label)
	}
	first, last := -1, -1
	for i := range g.periods {
		if g.starts[i] == start {
			first = i + 1
			break
		}
	}
	for i := first - 1; first > 0 && i < len(g.periods); i++ {
		if g.ends[i] == end {
			last = i + 1
			break
		}
	}
	if first < 0 || last < 0 {
		return Run{}, invalid(0, "", "", "time %q does not match the period grid", label)
	}
	run := Run{Day: day, Start: first, Length: last - first + 1}
	if g.crossesLunch(run) {
		return Run{}, invalid(0, "", "", "time %q on %s overlaps lunch", label, dayNames[day])
	}
	return run, nil
}

func (g *Grid) crossesLunch(run Run) bool {
	return g.lunch > 0 && run.Start <= g.lunch && g.lunch <= run.End()
}

// DayName returns the display name of day, e.g. "Monday".
func DayName(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return strconv.Itoa(day)
}

// ParseDay accepts full or three-letter day names in any case and the numbers 1..7.
func ParseDay(raw string) (int, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if day, ok := dayIndex[raw]; ok {
		return day, true
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= 7 {
		return n, true
	}
	return 0, false
}

// ParseDays maps day names onto weekday numbers.
func ParseDays(names []string) ([]int, error) {
	days := make([]int, 0, len(names))
	for _, name := range names {
		day, ok := ParseDay(name)
		if !ok {
			return nil, invalid(0, "", "", "unknown day %q", name)
		}
		days = append(days, day)
	}
	return days, nil
}

func splitRange(label string) (string, string, bool) {
	label = strings.ReplaceAll(label, " ", "")
	parts := strings.Split(label, "-")
	if len(parts) != 2 {
		return "", "", false
	}
	start, ok := normaliseClock(parts[0])
	if !ok {
		return "", "", false
	}
	end, ok := normaliseClock(parts[1])
	if !ok {
		return "", "", false
	}
	return start, end, true
}

// normaliseClock turns "09:00" into "9:00" so hand-typed labels match the grid.
func normaliseClock(raw string) (string, bool) {
	hm := strings.Split(raw, ":")
	if len(hm) != 2 || len(hm[1]) != 2 {
		return "", false
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", false
	}
	return strconv.Itoa(hour) + ":" + hm[1], true
}
