// Package scheduler computes meeting slots for a group of attendees with
// their own time zones, working hours and appointments.
//
// All computation happens on absolute instants. Wall-clock rules such as
// working hours are re-anchored to every calendar date in the attendee's
// zone, so daylight-saving transitions need no special handling.
package scheduler

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultGranularity is the step between consecutive proposal starts.
const DefaultGranularity = 15 * time.Minute

// Scheduler finds common and best-effort meeting slots. It holds no state
// between calls and is safe for concurrent use.
type Scheduler struct {
	granularity time.Duration
	logger      *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithGranularity sets the step by which proposal windows advance.
func WithGranularity(d time.Duration) Option {
	return func(s *Scheduler) { s.granularity = d }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a Scheduler with a 15 minute granularity unless overridden.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		granularity: DefaultGranularity,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.granularity <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGranularity, s.granularity)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Granularity returns the configured proposal step.
func (s *Scheduler) Granularity() time.Duration {
	return s.granularity
}

// FindCommonSlots returns up to maxProposals windows of length duration in
// which every attendee is free, in chronological order. An empty result
// means no such window exists and is not an error.
func (s *Scheduler) FindCommonSlots(attendees []*Attendee, timeframeStart, timeframeEnd time.Time, duration time.Duration, maxProposals int) ([]Interval, error) {
	timeframe, err := validateRequest(attendees, timeframeStart, timeframeEnd, duration)
	if err != nil {
		return nil, err
	}
	if maxProposals < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProposalCount, maxProposals)
	}
	if len(attendees) == 0 {
		return []Interval{}, nil
	}

	free := s.freeIntervals(attendees, timeframe)
	common := IntersectAll(free)
	proposals := Proposals(common, duration, s.granularity, maxProposals)

	s.logger.Debug("Computed common slots.",
		"attendees", len(attendees),
		"common_intervals", len(common),
		"proposals", len(proposals),
	)
	return proposals, nil
}

// FindMaxAttendanceSlot returns the earliest window of length duration that
// the most attendees can attend. A nil result means no attendee has enough
// free time anywhere in the timeframe.
func (s *Scheduler) FindMaxAttendanceSlot(attendees []*Attendee, timeframeStart, timeframeEnd time.Time, duration time.Duration) (*MaxAttendanceResult, error) {
	timeframe, err := validateRequest(attendees, timeframeStart, timeframeEnd, duration)
	if err != nil {
		return nil, err
	}
	if len(attendees) == 0 {
		return nil, nil
	}

	best := MaxAttendance(attendees, s.freeIntervals(attendees, timeframe), duration)
	if best == nil {
		s.logger.Debug("No attendee has a long enough free interval.", "attendees", len(attendees))
		return nil, nil
	}
	s.logger.Debug("Computed max attendance slot.",
		"slot", best.Slot,
		"available", len(best.Attendees),
		"attendees", len(attendees),
	)
	return best, nil
}

// freeIntervals derives every attendee's free time concurrently. Each
// goroutine writes only its own index of the result.
func (s *Scheduler) freeIntervals(attendees []*Attendee, timeframe Interval) [][]Interval {
	free := make([][]Interval, len(attendees))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, a := range attendees {
		g.Go(func() error {
			free[i] = FreeIntervals(a, timeframe)
			return nil
		})
	}
	// Derivation cannot fail; Wait only joins the workers.
	_ = g.Wait()
	return free
}

func validateRequest(attendees []*Attendee, start, end time.Time, duration time.Duration) (Interval, error) {
	if !end.After(start) {
		return Interval{}, fmt.Errorf("%w: %s - %s", ErrInvalidTimeframe, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if duration <= 0 {
		return Interval{}, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}
	seen := make(map[string]struct{}, len(attendees))
	for i, a := range attendees {
		if a == nil {
			return Interval{}, fmt.Errorf("%w: index %d", ErrNilAttendee, i)
		}
		if _, ok := seen[a.ID]; ok {
			return Interval{}, fmt.Errorf("%w: %s", ErrDuplicateAttendee, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return span(start, end), nil
}
