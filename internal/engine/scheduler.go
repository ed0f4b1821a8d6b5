package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const clockCheckInterval = 256

// Result is a complete, conflict-free placement of a plan.
type Result struct {
	Assignments []Assignment
	Units       int
	Backtracks  int
	Elapsed     time.Duration
}

// Scheduler places a plan with ordered greedy search and conflict-directed backjumping.
// A Scheduler must not be shared between goroutines.
type Scheduler struct {
	grid    *Grid
	opts    Options
	checker *Checker
	now     func() time.Time

	demands  []Demand
	units    []unit
	frames   []frame
	owner    map[Assignment]int
	dayCount [][]int
	fault    error
}

type unit struct {
	demand int
	index  int
}

// frame is one choice point: the ranked runs of a unit, its cursor, what it committed and
// the earlier units that blocked any of its candidates.
type frame struct {
	fresh     bool
	order     []int
	next      int
	run       int
	placed    []Assignment
	conflicts map[int]struct{}
}

// NewScheduler builds a scheduler over grid.
func NewScheduler(grid *Grid, opts Options) *Scheduler {
	return &Scheduler{grid: grid, opts: opts.withDefaults(), now: time.Now}
}

// Solve places every demand of plan or fails. It never returns a partial schedule.
func (s *Scheduler) Solve(plan *Plan) (*Result, error) {
	if plan == nil {
		return nil, invalid(0, "", "", "empty plan")
	}
	started := s.now()
	s.checker = NewChecker()
	s.owner = make(map[Assignment]int)
	s.fault = nil

	for _, a := range plan.Pinned {
		if !s.grid.Contains(Slot{Day: a.Day, Period: a.Period}) || s.coversLunch(a) {
			return nil, invalid(a.Year, a.Section, a.Subject, "pinned lab outside the teaching grid")
		}
		if err := s.checker.Commit(a); err != nil {
			return nil, invalid(a.Year, a.Section, a.Subject, "pinned labs overlap: %v", err)
		}
	}

	s.order(plan.Demands)
	if err := s.checkCandidates(); err != nil {
		return nil, err
	}

	budget := s.opts.BacktrackFactor * len(s.units)
	backtracks := 0
	var firstFailure *UnschedulableError

	i := 0
	for steps := 1; i < len(s.units); steps++ {
		if s.opts.TimeBudget > 0 && steps%clockCheckInterval == 0 && s.now().Sub(started) > s.opts.TimeBudget {
			return nil, s.failure(firstFailure, i, backtracks, "time budget exhausted")
		}
		placed := s.advance(i)
		if s.fault != nil {
			return nil, fmt.Errorf("scheduler invariant violated: %w", s.fault)
		}
		if placed {
			i++
			if i < len(s.units) {
				s.frames[i].fresh = true
			}
			continue
		}

		if firstFailure == nil {
			firstFailure = s.unschedulable(i, backtracks, "")
		}
		backtracks++
		if backtracks > budget {
			return nil, s.failure(firstFailure, i, backtracks, "backtrack budget exhausted")
		}
		h := s.backjump(i)
		if h < 0 {
			return nil, s.failure(firstFailure, i, backtracks, "search space exhausted")
		}
		i = h
	}

	assignments := make([]Assignment, 0, len(plan.Pinned)+len(s.units))
	assignments = append(assignments, plan.Pinned...)
	for _, f := range s.frames {
		assignments = append(assignments, f.placed...)
	}
	SortAssignments(assignments)

	return &Result{
		Assignments: assignments,
		Units:       len(s.units),
		Backtracks:  backtracks,
		Elapsed:     s.now().Sub(started),
	}, nil
}

// backjump returns to the latest unit that blocked a candidate of the dead-ended unit i,
// handing it the rest of i's conflicts. Units in between are released and start over
// when the search reaches them again. It returns -1 when no earlier unit is to blame.
func (s *Scheduler) backjump(i int) int {
	h := -1
	for u := range s.frames[i].conflicts {
		if u > h {
			h = u
		}
	}
	if h < 0 {
		return -1
	}
	target := &s.frames[h]
	for u := range s.frames[i].conflicts {
		if u != h {
			target.conflicts[u] = struct{}{}
		}
	}
	for j := i; j > h; j-- {
		if len(s.frames[j].placed) > 0 {
			s.release(s.units[j].demand, &s.frames[j])
		}
		s.frames[j].conflicts = nil
	}
	return h
}

// order sorts demands year-major, section-major in first-seen order, then by descending footprint,
// and flattens them into units.
func (s *Scheduler) order(demands []Demand) {
	sectionRank := make(map[SectionKey]int)
	for _, d := range demands {
		if _, ok := sectionRank[d.SectionKey()]; !ok {
			sectionRank[d.SectionKey()] = len(sectionRank)
		}
	}
	s.demands = append([]Demand(nil), demands...)
	sort.SliceStable(s.demands, func(i, j int) bool {
		a, b := s.demands[i], s.demands[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if ra, rb := sectionRank[a.SectionKey()], sectionRank[b.SectionKey()]; ra != rb {
			return ra < rb
		}
		return a.Footprint() > b.Footprint()
	})

	s.units = s.units[:0]
	for di, d := range s.demands {
		for u := 0; u < d.RequiredUnits; u++ {
			s.units = append(s.units, unit{demand: di, index: u})
		}
	}
	s.frames = make([]frame, len(s.units))
	if len(s.frames) > 0 {
		s.frames[0].fresh = true
	}
	s.dayCount = make([][]int, len(s.demands))
	for di := range s.dayCount {
		s.dayCount[di] = make([]int, len(s.grid.days))
	}
}

func (s *Scheduler) checkCandidates() error {
	for _, d := range s.demands {
		if d.UnitLength <= 0 || len(s.grid.Runs(d.UnitLength)) == 0 {
			return invalid(d.Year, d.Section, d.Subject, "no run of %d periods outside lunch", d.UnitLength)
		}
		if len(d.Rooms) == 0 {
			return invalid(d.Year, d.Section, d.Subject, "no rooms available")
		}
		if d.Kind != KindLab && len(d.Pool) == 0 {
			return invalid(d.Year, d.Section, d.Subject, "no teachers available")
		}
	}
	return nil
}

// advance releases whatever frame i holds and commits its next viable candidate.
func (s *Scheduler) advance(i int) bool {
	f := &s.frames[i]
	u := s.units[i]
	d := &s.demands[u.demand]

	if len(f.placed) > 0 {
		s.release(u.demand, f)
	}

	runs := s.grid.Runs(d.UnitLength)
	if f.fresh {
		f.fresh = false
		f.order = s.rank(u.demand, d, runs)
		f.next = 0
		f.conflicts = make(map[int]struct{})
	}

	var ok bool
	if d.Kind == KindLab {
		ok = s.placeRound(i, d, runs, f)
	} else {
		ok = s.placeUnit(i, d, runs, f)
	}
	if ok {
		for _, a := range f.placed {
			s.owner[a] = i
		}
		s.dayCount[u.demand][s.grid.dayPos[runs[f.run].Day]]++
	}
	return ok
}

// rank orders the runs of a unit. Days where the demand already reached its daily cap go last,
// then runs with fewer of the demand's rooms taken, then earliest day and period.
// The cap only orders candidates, so a capped day is still used when nothing else fits.
func (s *Scheduler) rank(demand int, d *Demand, runs []Run) []int {
	over := make([]bool, len(runs))
	taken := make([]int, len(runs))
	for ri, run := range runs {
		over[ri] = s.dayFull(demand, d, run.Day)
		for _, room := range d.Rooms {
			for _, slot := range run.Slots() {
				if s.checker.RoomBusy(room, slot) {
					taken[ri]++
					break
				}
			}
		}
	}
	order := make([]int, len(runs))
	for ri := range order {
		order[ri] = ri
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := order[a], order[b]
		if over[ra] != over[rb] {
			return !over[ra]
		}
		return taken[ra] < taken[rb]
	})
	return order
}

func (s *Scheduler) candidatesPerRun(d *Demand) int {
	if d.Kind == KindLab {
		return 1
	}
	return len(d.Pool) * len(d.Rooms)
}

func (s *Scheduler) dayFull(demand int, d *Demand, day int) bool {
	return d.MaxPerDay > 0 && s.dayCount[demand][s.grid.dayPos[day]] >= d.MaxPerDay
}

// blame records the earlier units holding what a needs.
func (s *Scheduler) blame(i int, a Assignment) {
	conflicts := s.frames[i].conflicts
	for _, held := range s.checker.blockers(a) {
		if u, ok := s.owner[held]; ok && u < i {
			conflicts[u] = struct{}{}
		}
	}
}

// placeUnit walks ranked runs, then teacher, then room.
func (s *Scheduler) placeUnit(i int, d *Demand, runs []Run, f *frame) bool {
	teachers, rooms := len(d.Pool), len(d.Rooms)
	perRun := s.candidatesPerRun(d)
	total := len(f.order) * perRun

	for k := f.next; k < total; k++ {
		pos, ti, rm := k/perRun, (k/rooms)%teachers, k%rooms
		ri := f.order[pos]
		run := runs[ri]
		a := Assignment{
			Year:    d.Year,
			Section: d.Section,
			Subject: d.Subject,
			Kind:    d.Kind,
			Teacher: d.Pool[ti],
			Room:    d.Rooms[rm],
			Day:     run.Day,
			Period:  run.Start,
			Length:  run.Length,
		}
		clash := s.checker.clash(a)
		if clash == nil {
			s.commit(a)
			f.placed = append(f.placed[:0], a)
			f.run = ri
			f.next = k + 1
			return true
		}
		s.blame(i, a)
		switch clash.Dimension {
		case DimensionSection, DimensionBatch:
			k = (pos+1)*perRun - 1
		case DimensionTeacher:
			k = pos*perRun + (ti+1)*rooms - 1
		}
	}
	f.next = total
	return false
}

// placeRound tries each ranked run and seats every batch of the round on it.
func (s *Scheduler) placeRound(i int, d *Demand, runs []Run, f *frame) bool {
	sessions := d.Round(s.units[i].index)
	for k := f.next; k < len(f.order); k++ {
		ri := f.order[k]
		placed, ok := s.seatBatches(i, d, runs[ri], sessions)
		if ok {
			f.placed = placed
			f.run = ri
			f.next = k + 1
			return true
		}
	}
	f.next = len(f.order)
	return false
}

// seatBatches gives each batch, in index order, the lowest free teacher and lab.
// On failure nothing stays committed.
func (s *Scheduler) seatBatches(i int, d *Demand, run Run, sessions []BatchSession) ([]Assignment, bool) {
	teachers := d.Pool
	if len(teachers) == 0 {
		teachers = []string{""}
	}
	placed := make([]Assignment, 0, len(sessions))
	for _, session := range sessions {
		seated := false
		for _, teacher := range teachers {
			for _, lab := range d.Rooms {
				a := Assignment{
					Year:    d.Year,
					Section: d.Section,
					Subject: session.Subject,
					Kind:    KindLab,
					Teacher: teacher,
					Room:    lab,
					Day:     run.Day,
					Period:  run.Start,
					Length:  run.Length,
					Batch:   session.Batch,
				}
				clash := s.checker.clash(a)
				if clash == nil {
					s.commit(a)
					placed = append(placed, a)
					seated = true
					break
				}
				s.blame(i, a)
				if clash.Dimension == DimensionTeacher || clash.Dimension == DimensionSection || clash.Dimension == DimensionBatch {
					break
				}
			}
			if seated {
				break
			}
		}
		if !seated {
			for _, a := range placed {
				s.checker.Release(a)
			}
			return nil, false
		}
	}
	return placed, true
}

// commit records a candidate that was just checked. A failure here is a checker bug and aborts Solve.
func (s *Scheduler) commit(a Assignment) {
	if err := s.checker.Commit(a); err != nil && s.fault == nil {
		s.fault = err
	}
}

func (s *Scheduler) release(demand int, f *frame) {
	for _, a := range f.placed {
		s.checker.Release(a)
		delete(s.owner, a)
	}
	s.dayCount[demand][s.grid.dayPos[f.placed[0].Day]]--
	f.placed = f.placed[:0]
}

func (s *Scheduler) coversLunch(a Assignment) bool {
	for _, slot := range a.Slots() {
		if !s.grid.Contains(slot) || s.grid.IsLunch(slot) {
			return true
		}
	}
	return false
}

func (s *Scheduler) unschedulable(i, backtracks int, reason string) *UnschedulableError {
	u := s.units[i]
	d := s.demands[u.demand]
	f := s.frames[i]
	return &UnschedulableError{
		Demand:     d,
		Unit:       u.index,
		Candidates: f.next,
		Backtracks: backtracks,
		Reason:     reason,
	}
}

func (s *Scheduler) failure(first *UnschedulableError, i, backtracks int, reason string) *UnschedulableError {
	if first == nil {
		first = s.unschedulable(i, backtracks, reason)
	}
	first.Backtracks = backtracks
	first.Reason = reason
	return first
}

// SortAssignments orders assignments by year, section, day, period, batch and subject.
func SortAssignments(assignments []Assignment) {
	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		switch {
		case a.Year != b.Year:
			return a.Year < b.Year
		case a.Section != b.Section:
			return a.Section < b.Section
		case a.Day != b.Day:
			return a.Day < b.Day
		case a.Period != b.Period:
			return a.Period < b.Period
		case a.Batch != b.Batch:
			return a.Batch < b.Batch
		default:
			return a.Subject < b.Subject
		}
	})
}

// IsDoubleBooking reports whether err stems from an occupancy invariant violation.
func IsDoubleBooking(err error) bool {
	return errors.Is(err, ErrDoubleBooking)
}
