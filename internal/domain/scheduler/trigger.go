package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// HourSpec selects the hours of the day a trigger fires on.
// Start == End is a single hour; Step > 1 selects every Step hours from Start through End.
type HourSpec struct {
	Start int
	End   int
	Step  int
}

// AtHour fires once a day at hour h.
func AtHour(h int) HourSpec { return HourSpec{Start: h, End: h, Step: 1} }

// HourRange fires every hour from start through end inclusive.
func HourRange(start, end int) HourSpec { return HourSpec{Start: start, End: end, Step: 1} }

// EveryHours fires every step hours from start through end inclusive.
func EveryHours(start, end, step int) HourSpec { return HourSpec{Start: start, End: end, Step: step} }

func (h HourSpec) validate() error {
	if h.Start < 0 || h.Start > 23 {
		return fmt.Errorf("start hour %d out of range 0-23", h.Start)
	}
	if h.End < h.Start || h.End > 23 {
		return fmt.Errorf("end hour %d must be between %d and 23", h.End, h.Start)
	}
	if h.Step < 1 {
		return fmt.Errorf("hour step %d must be at least 1", h.Step)
	}
	return nil
}

func (h HourSpec) field() string {
	switch {
	case h.Start == h.End:
		return strconv.Itoa(h.Start)
	case h.Step <= 1:
		return fmt.Sprintf("%d-%d", h.Start, h.End)
	default:
		return fmt.Sprintf("%d-%d/%d", h.Start, h.End, h.Step)
	}
}

// Trigger is the typed descriptor a job is registered with.
type Trigger struct {
	Hours    HourSpec
	Minute   int
	Location *time.Location
}

// ErrInvalidTrigger is returned for a trigger that cannot be compiled.
var ErrInvalidTrigger = errors.New("invalid trigger")

// Validate checks the hour and minute fields.
func (t Trigger) Validate() error {
	if err := t.Hours.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidTrigger, t.Minute)
	}
	return nil
}

// Expression renders the trigger as a five-field cron expression.
func (t Trigger) Expression() string {
	return fmt.Sprintf("%d %s * * *", t.Minute, t.Hours.field())
}

// Compile validates and parses the trigger once into a Schedule.
func (t Trigger) Compile() (*Schedule, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	expr := t.Expression()
	parsed, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %w", ErrInvalidTrigger, expr, err)
	}
	loc := t.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Schedule{expr: expr, parsed: parsed, loc: loc}, nil
}

// Schedule is a compiled trigger.
type Schedule struct {
	expr   string
	parsed cron.Schedule
	loc    *time.Location
}

// Next returns the first fire time strictly after t.
func (s *Schedule) Next(t time.Time) time.Time {
	return s.parsed.Next(t.In(s.loc))
}

// String returns the cron expression, annotated with the location when not UTC.
func (s *Schedule) String() string {
	if s.loc == time.UTC {
		return s.expr
	}
	return s.expr + " (" + s.loc.String() + ")"
}
