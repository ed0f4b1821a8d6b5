package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDemand marks input that is malformed or infeasible before search starts.
	ErrInvalidDemand = errors.New("invalid demand")
	// ErrDoubleBooking marks a commit that would break an occupancy invariant.
	ErrDoubleBooking = errors.New("double booking")
	// ErrUnschedulable marks a search that ran out of candidates or budget.
	ErrUnschedulable = errors.New("unschedulable")
)

// DemandError explains why a request was rejected before scheduling.
type DemandError struct {
	Year    int
	Section string
	Subject string
	Reason  string
}

func (e *DemandError) Error() string {
	scope := ""
	switch {
	case e.Year > 0 && e.Section != "" && e.Subject != "":
		scope = fmt.Sprintf("year %d section %s subject %s: ", e.Year, e.Section, e.Subject)
	case e.Year > 0 && e.Section != "":
		scope = fmt.Sprintf("year %d section %s: ", e.Year, e.Section)
	case e.Year > 0:
		scope = fmt.Sprintf("year %d: ", e.Year)
	}
	return scope + e.Reason
}

func (e *DemandError) Unwrap() error {
	return ErrInvalidDemand
}

func invalid(year int, section, subject, format string, args ...interface{}) error {
	return &DemandError{Year: year, Section: section, Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

// UnschedulableError reports the first demand the search could not place.
type UnschedulableError struct {
	Demand     Demand
	Unit       int
	Candidates int
	Backtracks int
	Reason     string
}

func (e *UnschedulableError) Error() string {
	return fmt.Sprintf("%s: could not place unit %d of %s after %d candidates (%d backtracks)",
		e.Reason, e.Unit+1, e.Demand, e.Candidates, e.Backtracks)
}

func (e *UnschedulableError) Unwrap() error {
	return ErrUnschedulable
}

// Occupancy dimensions tracked by the Checker.
const (
	DimensionTeacher = "teacher"
	DimensionRoom    = "room"
	DimensionSection = "section"
	DimensionBatch   = "batch"
)

// BookingError describes the occupancy clash behind ErrDoubleBooking.
type BookingError struct {
	Assignment Assignment
	Holder     Assignment
	Dimension  string
	Resource   string
	Slot       Slot
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("%s %q already held by %s at day %d period %d (wanted by %s)",
		e.Dimension, e.Resource, e.Holder, e.Slot.Day, e.Slot.Period, e.Assignment)
}

func (e *BookingError) Unwrap() error {
	return ErrDoubleBooking
}
