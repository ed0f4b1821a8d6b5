// Package engine builds conflict-free weekly college timetables. It has no I/O:
// callers translate requests into a Plan, solve it with a Scheduler and render
// the assignments with the assembler helpers.
package engine

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies what a demand places.
type Kind string

const (
	KindCore     Kind = "core"
	KindOptional Kind = "optional"
	KindLanguage Kind = "language"
	KindLab      Kind = "lab"
)

// Slot is one (Day, Period) cell of the weekly grid. Day uses 1 = Monday and Period is 1-based.
type Slot struct {
	Day    int
	Period int
}

// Run is a block of contiguous non-lunch periods on one day.
type Run struct {
	Day    int
	Start  int
	Length int
}

// Slots expands the run into its periods.
func (r Run) Slots() []Slot {
	slots := make([]Slot, r.Length)
	for i := range slots {
		slots[i] = Slot{Day: r.Day, Period: r.Start + i}
	}
	return slots
}

// End returns the last period covered by the run.
func (r Run) End() int {
	return r.Start + r.Length - 1
}

// SectionKey identifies a section across years.
type SectionKey struct {
	Year    int
	Section string
}

func (k SectionKey) String() string {
	return fmt.Sprintf("%d-%s", k.Year, k.Section)
}

// Assignment is one committed placement. Batch 0 means the whole section.
// An empty Teacher or Room skips that occupancy dimension.
type Assignment struct {
	Year    int
	Section string
	Subject string
	Kind    Kind
	Teacher string
	Room    string
	Day     int
	Period  int
	Length  int
	Batch   int
	Pinned  bool
}

// Run returns the block of periods the assignment covers.
func (a Assignment) Run() Run {
	length := a.Length
	if length <= 0 {
		length = 1
	}
	return Run{Day: a.Day, Start: a.Period, Length: length}
}

// Slots expands the assignment into every slot it occupies.
func (a Assignment) Slots() []Slot {
	return a.Run().Slots()
}

// SectionKey returns the owning section.
func (a Assignment) SectionKey() SectionKey {
	return SectionKey{Year: a.Year, Section: a.Section}
}

func (a Assignment) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", a.SectionKey(), a.Subject)
	if a.Batch > 0 {
		fmt.Fprintf(&b, " batch %d", a.Batch)
	}
	fmt.Fprintf(&b, " day %d period %d", a.Day, a.Period)
	if a.Length > 1 {
		fmt.Fprintf(&b, "-%d", a.Run().End())
	}
	return b.String()
}

// Demand asks for RequiredUnits placements of UnitLength periods each.
// Lab demands are rounds: every unit places one session per participating batch.
type Demand struct {
	Year          int
	Section       string
	Subject       string
	Kind          Kind
	RequiredUnits int
	UnitLength    int
	Pool          []string
	Rooms         []string
	// MaxPerDay is a preferred daily limit; days at the limit are tried last.
	MaxPerDay int

	Batches  int
	Rotation []string
	Sessions int
}

// SectionKey returns the section the demand belongs to.
func (d Demand) SectionKey() SectionKey {
	return SectionKey{Year: d.Year, Section: d.Section}
}

// Footprint is the number of periods the demand consumes for its section.
func (d Demand) Footprint() int {
	return d.RequiredUnits * d.UnitLength
}

func (d Demand) String() string {
	return fmt.Sprintf("%s %s (%s, %d x %d)", d.SectionKey(), d.Subject, d.Kind, d.RequiredUnits, d.UnitLength)
}

// BatchSession is one batch attending one lab subject within a round.
type BatchSession struct {
	Batch   int
	Subject string
}

// Round lists the batch sessions of lab round r. Batch b takes rotation[(b+r) mod n];
// the final round only carries batches that still owe a session.
func (d Demand) Round(r int) []BatchSession {
	if d.Kind != KindLab || d.Batches <= 0 || len(d.Rotation) == 0 {
		return nil
	}
	sessions := make([]BatchSession, 0, d.Batches)
	for b := 0; b < d.Batches; b++ {
		if r*d.Batches+b >= d.Sessions {
			break
		}
		sessions = append(sessions, BatchSession{
			Batch:   b + 1,
			Subject: d.Rotation[(b+r)%len(d.Rotation)],
		})
	}
	return sessions
}

// Plan is the normalised input to the Scheduler.
type Plan struct {
	Demands  []Demand
	Pinned   []Assignment
	Sections []SectionKey
}

// Units returns the total number of search units in the plan.
func (p *Plan) Units() int {
	total := 0
	for _, d := range p.Demands {
		total += d.RequiredUnits
	}
	return total
}

// Options tunes demand construction and search.
type Options struct {
	MaxYear          int
	BacktrackFactor  int
	TimeBudget       time.Duration
	MaxSubjectPerDay int
	LanguageHours    int
	LabBatches       int
	LabLength        int
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		MaxYear:          4,
		BacktrackFactor:  64,
		MaxSubjectPerDay: 2,
		LanguageHours:    2,
		LabBatches:       2,
		LabLength:        3,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxYear <= 0 {
		o.MaxYear = def.MaxYear
	}
	if o.BacktrackFactor <= 0 {
		o.BacktrackFactor = def.BacktrackFactor
	}
	if o.MaxSubjectPerDay < 0 {
		o.MaxSubjectPerDay = 0
	}
	if o.LanguageHours <= 0 {
		o.LanguageHours = def.LanguageHours
	}
	if o.LabBatches <= 0 {
		o.LabBatches = def.LabBatches
	}
	if o.LabLength <= 0 {
		o.LabLength = def.LabLength
	}
	return o
}
