package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Wellformed is the closed set of built-in periodicities a workflow may be
// scheduled on. WellformedCron marks a Schedule carrying an arbitrary cron
// expression instead of one of the fixed periodicities.
type Wellformed string

const (
	Hours  Wellformed = "HOURS"
	Days   Wellformed = "DAYS"
	Weeks  Wellformed = "WEEKS"
	Months Wellformed = "MONTHS"
	Years  Wellformed = "YEARS"
	// WellformedCron marks a Schedule whose Expression field holds a
	// five-field cron expression instead of one of the built-in periods.
	WellformedCron Wellformed = "CRON"
)

// ErrInvalidSchedule is returned when a schedule's periodicity or cron
// expression cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Schedule is a workflow's partitioning: either one of the fixed
// periodicities (HOURS, DAYS, WEEKS, MONTHS, YEARS) or an arbitrary cron
// expression. It defines the set of aligned instants for a workflow and
// the canonical parameter-string rendering of each.
//
// Grounded on pkg/models/schedule.go (robfig/cron/v3 parsing)
// and pkg/triggers/schedule/trigger.go, generalized from a single stored
// cron entry into the closed periodicity set Styx's Partitioning describes.
type Schedule struct {
	Kind       Wellformed `json:"kind"`
	Expression string     `json:"expression,omitempty"` // only set when Kind == WellformedCron
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewCronSchedule builds a Schedule from an arbitrary five-field cron
// expression, validating it eagerly.
func NewCronSchedule(expr string) (Schedule, error) {
	if _, err := cronParser.Parse(expr); err != nil {
		return Schedule{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return Schedule{Kind: WellformedCron, Expression: expr}, nil
}

// Validate reports whether the schedule is well-formed.
func (s Schedule) Validate() error {
	switch s.Kind {
	case Hours, Days, Weeks, Months, Years:
		return nil
	case WellformedCron:
		if s.Expression == "" {
			return ErrInvalidSchedule
		}
		_, err := cronParser.Parse(s.Expression)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		return nil
	default:
		return ErrInvalidSchedule
	}
}

// truncated returns t truncated down to the start of its own partition for
// the fixed periodicities. Cron schedules are handled separately since
// robfig/cron has no notion of "floor".
func (s Schedule) truncated(t time.Time) time.Time {
	t = t.UTC()
	switch s.Kind {
	case Hours:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case Days:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Weeks:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// ISO week starts Monday.
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case Months:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Years:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Aligned reports whether t is exactly the start of some partition under
// this schedule.
func (s Schedule) Aligned(t time.Time) bool {
	t = t.UTC().Truncate(time.Second)
	if s.Kind == WellformedCron {
		sched, err := cronParser.Parse(s.Expression)
		if err != nil {
			return false
		}
		// t is aligned iff stepping back one tick from just after t lands
		// exactly on t: cron has no direct "floor", so we probe the
		// previous second and confirm its successor is t.
		prev := sched.Next(t.Add(-time.Second))
		return prev.Equal(t)
	}
	return s.truncated(t).Equal(t)
}

// Next returns the first aligned instant strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	if s.Kind == WellformedCron {
		sched, err := cronParser.Parse(s.Expression)
		if err != nil {
			return t
		}
		return sched.Next(t.UTC())
	}
	floor := s.truncated(t)
	if floor.After(t) {
		return floor
	}
	return s.step(floor, 1)
}

// Previous returns the last aligned instant strictly before t.
func (s Schedule) Previous(t time.Time) time.Time {
	if s.Kind == WellformedCron {
		// Linear back-off: cron has no Prev(), so step back a minute (the
		// finest cron granularity) at a time until Next() of the
		// candidate falls before t.
		sched, err := cronParser.Parse(s.Expression)
		if err != nil {
			return t
		}
		cursor := t.UTC().Add(-time.Second)
		for i := 0; i < 366*24*60*60; i++ {
			n := sched.Next(cursor)
			if n.Before(t.UTC()) {
				return n
			}
			cursor = cursor.Add(-time.Minute)
		}
		return t
	}
	floor := s.truncated(t)
	if floor.Equal(t) {
		return s.step(floor, -1)
	}
	return floor
}

// FirstAlignedAtOrAfter returns t itself if aligned, otherwise the next
// aligned instant. Used to seed a workflow's first natural trigger.
func (s Schedule) FirstAlignedAtOrAfter(t time.Time) time.Time {
	if s.Aligned(t) {
		return t.UTC().Truncate(time.Second)
	}
	return s.Next(t)
}

func (s Schedule) step(t time.Time, n int) time.Time {
	switch s.Kind {
	case Hours:
		return t.Add(time.Duration(n) * time.Hour)
	case Days:
		return t.AddDate(0, 0, n)
	case Weeks:
		return t.AddDate(0, 0, 7*n)
	case Months:
		return t.AddDate(0, n, 0)
	case Years:
		return t.AddDate(n, 0, 0)
	}
	return t
}

// Parameter renders the canonical textual parameter for an aligned instant
// under this schedule, e.g. "2017-01-02" for DAYS, "2017-01-02T03" for
// HOURS. Cron schedules render full RFC 3339 since they carry no implicit
// truncation granularity.
func (s Schedule) Parameter(t time.Time) string {
	t = t.UTC()
	switch s.Kind {
	case Hours:
		return t.Format("2006-01-02T15")
	case Days:
		return t.Format("2006-01-02")
	case Weeks:
		return t.Format("2006-01-02")
	case Months:
		return t.Format("2006-01")
	case Years:
		return t.Format("2006")
	default:
		return t.Format(time.RFC3339)
	}
}
