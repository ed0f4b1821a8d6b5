package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// CoreInput is the normalised core generation request.
type CoreInput struct {
	Years  []YearInput
	Rooms  []string
	Pinned []PinnedLab
}

// YearInput carries one year's sections, subjects and teacher pool.
type YearInput struct {
	Year          int
	Sections      []string
	Subjects      []string
	Hours         int
	Teachers      []string
	Optional      []OptionalSubject
	Language      string
	LanguageHours int
}

// OptionalSubject is an elective with its own weekly hours. An empty Teacher draws from the year pool.
type OptionalSubject struct {
	Name    string
	Hours   int
	Teacher string
}

// PinnedLab is a previously generated lab row merged into a core generation as fixed.
type PinnedLab struct {
	Year    int
	Section string
	Day     string
	Time    string
	Subject string
	Batch   int
	Lab     string
	Teacher string
}

// LabInput is the normalised lab rotation request.
type LabInput struct {
	Years []LabYear
	Labs  []string
}

// LabYear lists the lab subjects rotated through a year's sections.
type LabYear struct {
	Year     int
	Sections []LabSection
	Subjects []string
	Teachers []string
}

// LabSection asks for Sessions batch-sessions split over Batches batches. Batches 0 uses the default.
type LabSection struct {
	Label    string
	Sessions int
	Batches  int
}

// IsNoLanguage reports whether name means the year has no language subject.
func IsNoLanguage(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.EqualFold(name, "none")
}

// BuildCore turns a core request into demands, ordered by year then section then input order.
func BuildCore(grid *Grid, in CoreInput, opts Options) (*Plan, error) {
	opts = opts.withDefaults()
	if len(in.Years) == 0 {
		return nil, invalid(0, "", "", "no years requested")
	}
	rooms := lo.Uniq(trimAll(in.Rooms))
	if len(rooms) == 0 {
		return nil, invalid(0, "", "", "no classrooms available")
	}

	years := append([]YearInput(nil), in.Years...)
	sort.SliceStable(years, func(i, j int) bool { return years[i].Year < years[j].Year })

	plan := &Plan{}
	teachable := grid.TeachableSlots()
	sectionLoad := make(map[SectionKey]int)
	roomLoad := 0
	seenYears := make(map[int]struct{}, len(years))

	for _, y := range years {
		if y.Year < 1 || y.Year > opts.MaxYear {
			return nil, invalid(0, "", "", "year %d is outside 1..%d", y.Year, opts.MaxYear)
		}
		if _, dup := seenYears[y.Year]; dup {
			return nil, invalid(y.Year, "", "", "year listed twice")
		}
		seenYears[y.Year] = struct{}{}

		sections, err := cleanNames(y.Year, "section", y.Sections)
		if err != nil {
			return nil, err
		}
		if len(sections) == 0 {
			return nil, invalid(y.Year, "", "", "no sections")
		}
		pool := lo.Uniq(trimAll(y.Teachers))

		subjects, err := yearSubjects(y, opts)
		if err != nil {
			return nil, err
		}

		poolLoad := 0
		for _, subj := range subjects {
			if subj.Hours <= 0 {
				return nil, invalid(y.Year, "", subj.Name, "weekly hours must be positive")
			}
			if subj.Hours > teachable {
				return nil, invalid(y.Year, "", subj.Name, "%d weekly hours exceed the %d teachable periods per week", subj.Hours, teachable)
			}
			if subj.Teacher == "" && len(pool) == 0 {
				return nil, invalid(y.Year, sections[0], subj.Name, "no teachers available")
			}
		}

		for secIdx, section := range sections {
			key := SectionKey{Year: y.Year, Section: section}
			plan.Sections = append(plan.Sections, key)
			pooled := 0
			for _, subj := range subjects {
				teachers := []string{subj.Teacher}
				if subj.Teacher == "" {
					teachers = preferredFirst(pool, (pooled*len(sections)+secIdx)%len(pool))
					pooled++
					poolLoad += subj.Hours
				}
				maxPerDay := 0
				if opts.MaxSubjectPerDay > 0 && subj.Hours <= opts.MaxSubjectPerDay*len(grid.days) {
					maxPerDay = opts.MaxSubjectPerDay
				}
				plan.Demands = append(plan.Demands, Demand{
					Year:          y.Year,
					Section:       section,
					Subject:       subj.Name,
					Kind:          subj.Kind,
					RequiredUnits: subj.Hours,
					UnitLength:    1,
					Pool:          teachers,
					Rooms:         rooms,
					MaxPerDay:     maxPerDay,
				})
				sectionLoad[key] += subj.Hours
				roomLoad += subj.Hours
			}
		}
		if capacity := len(pool) * teachable; poolLoad > capacity {
			return nil, invalid(y.Year, "", "", "%d teacher periods requested but %d teachers cover only %d", poolLoad, len(pool), capacity)
		}
	}

	if capacity := len(rooms) * teachable; roomLoad > capacity {
		return nil, invalid(0, "", "", "%d classroom periods requested but %d rooms cover only %d", roomLoad, len(rooms), capacity)
	}

	pinned, err := pinLabs(grid, in.Pinned, plan.Sections)
	if err != nil {
		return nil, err
	}
	plan.Pinned = pinned
	for key, load := range pinnedLoad(pinned) {
		sectionLoad[key] += load
	}
	for _, key := range plan.Sections {
		if load := sectionLoad[key]; load > teachable {
			return nil, invalid(key.Year, key.Section, "", "%d periods requested but only %d are teachable", load, teachable)
		}
	}
	return plan, nil
}

type yearSubject struct {
	Name    string
	Kind    Kind
	Hours   int
	Teacher string
}

// yearSubjects lists core subjects, then the language subject, then electives.
func yearSubjects(y YearInput, opts Options) ([]yearSubject, error) {
	core, err := cleanNames(y.Year, "subject", y.Subjects)
	if err != nil {
		return nil, err
	}
	if len(core) == 0 {
		return nil, invalid(y.Year, "", "", "no subjects")
	}
	subjects := make([]yearSubject, 0, len(core)+len(y.Optional)+1)
	for _, name := range core {
		subjects = append(subjects, yearSubject{Name: name, Kind: KindCore, Hours: y.Hours})
	}
	if !IsNoLanguage(y.Language) {
		hours := y.LanguageHours
		if hours <= 0 {
			hours = opts.LanguageHours
		}
		subjects = append(subjects, yearSubject{Name: strings.TrimSpace(y.Language), Kind: KindLanguage, Hours: hours})
	}
	for _, opt := range y.Optional {
		name := strings.TrimSpace(opt.Name)
		if name == "" {
			return nil, invalid(y.Year, "", "", "optional subject name is empty")
		}
		subjects = append(subjects, yearSubject{Name: name, Kind: KindOptional, Hours: opt.Hours, Teacher: strings.TrimSpace(opt.Teacher)})
	}
	seen := make(map[string]struct{}, len(subjects))
	for _, subj := range subjects {
		folded := strings.ToLower(subj.Name)
		if _, dup := seen[folded]; dup {
			return nil, invalid(y.Year, "", subj.Name, "subject listed twice")
		}
		seen[folded] = struct{}{}
	}
	return subjects, nil
}

// BuildLabs turns a lab request into one round demand per section.
func BuildLabs(grid *Grid, in LabInput, opts Options) (*Plan, error) {
	opts = opts.withDefaults()
	if len(in.Years) == 0 {
		return nil, invalid(0, "", "", "no years requested")
	}
	years := append([]LabYear(nil), in.Years...)
	sort.SliceStable(years, func(i, j int) bool { return years[i].Year < years[j].Year })

	runs := grid.Runs(opts.LabLength)
	if len(runs) == 0 {
		return nil, invalid(0, "", "", "no run of %d contiguous periods outside lunch", opts.LabLength)
	}
	teachable := grid.TeachableSlots()
	disjoint := grid.MaxDisjointRuns(opts.LabLength)

	labs := lo.Uniq(trimAll(in.Labs))
	defaultLabs := len(labs) == 0
	totalBatches := 0

	plan := &Plan{}
	seenYears := make(map[int]struct{}, len(years))
	for _, y := range years {
		if y.Year < 1 || y.Year > opts.MaxYear {
			return nil, invalid(0, "", "", "year %d is outside 1..%d", y.Year, opts.MaxYear)
		}
		if _, dup := seenYears[y.Year]; dup {
			return nil, invalid(y.Year, "", "", "year listed twice")
		}
		seenYears[y.Year] = struct{}{}

		labels := lo.Map(y.Sections, func(s LabSection, _ int) string { return s.Label })
		if _, err := cleanNames(y.Year, "section", labels); err != nil {
			return nil, err
		}
		rotation, err := cleanNames(y.Year, "lab subject", y.Subjects)
		if err != nil {
			return nil, err
		}
		teachers := lo.Uniq(trimAll(y.Teachers))

		for _, sec := range y.Sections {
			label := strings.TrimSpace(sec.Label)
			key := SectionKey{Year: y.Year, Section: label}
			plan.Sections = append(plan.Sections, key)
			if sec.Sessions < 0 {
				return nil, invalid(y.Year, label, "", "lab count must not be negative")
			}
			if sec.Sessions == 0 {
				continue
			}
			if len(rotation) == 0 {
				return nil, invalid(y.Year, label, "", "labs requested but no lab subjects listed")
			}
			batches := sec.Batches
			if batches <= 0 {
				batches = opts.LabBatches
			}
			rounds := (sec.Sessions + batches - 1) / batches
			if rounds*opts.LabLength > teachable {
				return nil, invalid(y.Year, label, "", "%d lab rounds of %d periods exceed the %d teachable periods", rounds, opts.LabLength, teachable)
			}
			if rounds > disjoint {
				return nil, invalid(y.Year, label, "", "%d lab rounds need separate blocks but only %d fit in a week", rounds, disjoint)
			}
			if len(teachers) > 0 && len(teachers) < batches {
				return nil, invalid(y.Year, label, "", "%d batches run in parallel but only %d lab teachers are listed", batches, len(teachers))
			}
			maxPerDay := 0
			if rounds <= len(grid.days) {
				maxPerDay = 1
			}
			totalBatches += batches
			plan.Demands = append(plan.Demands, Demand{
				Year:          y.Year,
				Section:       label,
				Subject:       strings.Join(rotation, "/"),
				Kind:          KindLab,
				RequiredUnits: rounds,
				UnitLength:    opts.LabLength,
				Pool:          teachers,
				MaxPerDay:     maxPerDay,
				Batches:       batches,
				Rotation:      rotation,
				Sessions:      sec.Sessions,
			})
		}
	}

	if defaultLabs {
		labs = DefaultLabs(totalBatches)
	}
	for i := range plan.Demands {
		if len(labs) < plan.Demands[i].Batches {
			d := plan.Demands[i]
			return nil, invalid(d.Year, d.Section, "", "%d batches run in parallel but only %d labs are available", d.Batches, len(labs))
		}
		plan.Demands[i].Rooms = labs
	}
	return plan, nil
}

// DefaultLabs names n labs "Lab 1".."Lab n".
func DefaultLabs(n int) []string {
	labs := make([]string, n)
	for i := range labs {
		labs[i] = fmt.Sprintf("Lab %d", i+1)
	}
	return labs
}

func pinLabs(grid *Grid, rows []PinnedLab, sections []SectionKey) ([]Assignment, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	known := lo.SliceToMap(sections, func(k SectionKey) (SectionKey, struct{}) { return k, struct{}{} })
	checker := NewChecker()
	pinned := make([]Assignment, 0, len(rows))
	for _, row := range rows {
		key := SectionKey{Year: row.Year, Section: strings.TrimSpace(row.Section)}
		if _, ok := known[key]; !ok {
			return nil, invalid(key.Year, key.Section, "", "lab row refers to an unknown section")
		}
		subject := strings.TrimSpace(row.Subject)
		if subject == "" {
			return nil, invalid(key.Year, key.Section, "", "lab row has no subject")
		}
		if row.Batch <= 0 {
			return nil, invalid(key.Year, key.Section, subject, "lab row batch must be positive")
		}
		run, err := grid.ParseRun(row.Day, row.Time)
		if err != nil {
			var de *DemandError
			if errors.As(err, &de) {
				return nil, invalid(key.Year, key.Section, subject, "%s", de.Reason)
			}
			return nil, err
		}
		a := Assignment{
			Year:    key.Year,
			Section: key.Section,
			Subject: subject,
			Kind:    KindLab,
			Teacher: strings.TrimSpace(row.Teacher),
			Room:    strings.TrimSpace(row.Lab),
			Day:     run.Day,
			Period:  run.Start,
			Length:  run.Length,
			Batch:   row.Batch,
			Pinned:  true,
		}
		if err := checker.Commit(a); err != nil {
			return nil, invalid(key.Year, key.Section, subject, "lab rows overlap: %v", err)
		}
		pinned = append(pinned, a)
	}
	return pinned, nil
}

// pinnedLoad counts section periods held by pinned rows. Parallel batches share a period.
func pinnedLoad(pinned []Assignment) map[SectionKey]int {
	held := make(map[SectionKey]map[Slot]struct{})
	for _, a := range pinned {
		key := a.SectionKey()
		if held[key] == nil {
			held[key] = make(map[Slot]struct{})
		}
		for _, slot := range a.Slots() {
			held[key][slot] = struct{}{}
		}
	}
	return lo.MapValues(held, func(slots map[Slot]struct{}, _ SectionKey) int { return len(slots) })
}

// preferredFirst returns pool with pool[idx] moved to the front.
func preferredFirst(pool []string, idx int) []string {
	ordered := make([]string, 0, len(pool))
	ordered = append(ordered, pool[idx])
	for i, name := range pool {
		if i != idx {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

func cleanNames(year int, what string, names []string) ([]string, error) {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, invalid(year, "", "", "%s name is empty", what)
		}
		folded := strings.ToLower(name)
		if _, dup := seen[folded]; dup {
			return nil, invalid(year, "", "", "%s %q listed twice", what, name)
		}
		seen[folded] = struct{}{}
		cleaned = append(cleaned, name)
	}
	return cleaned, nil
}

func trimAll(names []string) []string {
	return lo.FilterMap(names, func(name string, _ int) (string, bool) {
		name = strings.TrimSpace(name)
		return name, name != ""
	})
}
