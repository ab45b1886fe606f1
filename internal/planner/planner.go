package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"meetslot/internal/config"
	"meetslot/internal/scheduler"
)

// Request describes one search.
type Request struct {
	Roster   *config.Roster
	From     time.Time
	To       time.Time
	Duration time.Duration
	Count    int
}

// Plan is the outcome of a search. Exactly one of Proposals and Fallback
// is set unless the meeting cannot be scheduled at all.
type Plan struct {
	Request   Request
	Attendees []*scheduler.Attendee
	Proposals []scheduler.Interval
	Fallback  *scheduler.MaxAttendanceResult
}

// Unschedulable reports whether neither a common nor a partial slot exists.
func (p *Plan) Unschedulable() bool {
	return len(p.Proposals) == 0 && p.Fallback == nil
}

// Best returns the slot to book: the first common proposal with everyone,
// or the max-attendance slot with whoever can make it.
func (p *Plan) Best() (scheduler.Interval, []*scheduler.Attendee, bool) {
	if len(p.Proposals) > 0 {
		return p.Proposals[0], p.Attendees, true
	}
	if p.Fallback != nil {
		return p.Fallback.Slot, p.Fallback.Attendees, true
	}
	return scheduler.Interval{}, nil, false
}

// Planner gathers attendees' busy time from their calendars and searches
// for a meeting slot.
type Planner struct {
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	sources   []Source
	strict    bool

	publisher Publisher
	statePath string
	state     BookingState
	dryRun    bool
}

// Options tunes a Planner.
type Options struct {
	// Strict fails the search when any calendar cannot be read. Otherwise
	// the attendee keeps the busy time gathered from the other sources.
	Strict bool
	// DryRun logs bookings instead of making them.
	DryRun bool
	// Publisher books meetings into calendars. Optional.
	Publisher Publisher
	// StatePath is the booking ledger file; defaults to booking-state.json.
	StatePath string
}

// New creates a Planner.
func New(logger *slog.Logger, sched *scheduler.Scheduler, sources []Source, opts Options) (*Planner, error) {
	statePath := opts.StatePath
	if statePath == "" {
		statePath = defaultStateFile
	}
	state, err := loadState(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking state: %w", err)
	}
	if len(state) == 0 {
		logger.Debug("No bookings recorded yet.", "file", statePath)
	}

	return &Planner{
		logger:    logger,
		scheduler: sched,
		sources:   sources,
		strict:    opts.Strict,
		publisher: opts.Publisher,
		statePath: statePath,
		state:     state,
		dryRun:    opts.DryRun,
	}, nil
}

// Plan searches for slots where everyone is free and falls back to the
// slot with the highest attendance when there is none.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	if req.Roster == nil {
		return nil, errors.New("request has no roster")
	}
	// An empty proposal list must mean that no common slot exists.
	if req.Count < 1 {
		return nil, fmt.Errorf("%w: at least one proposal is needed, got %d", scheduler.ErrInvalidProposalCount, req.Count)
	}
	p.logger.Info("Starting slot search.",
		"attendees", len(req.Roster.Attendees),
		"from", req.From,
		"to", req.To,
		"duration", req.Duration,
	)

	attendees, err := p.Profiles(ctx, req.Roster, req.From, req.To)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Request: req, Attendees: attendees}

	plan.Proposals, err = p.scheduler.FindCommonSlots(attendees, req.From, req.To, req.Duration, req.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to find common slots: %w", err)
	}
	if len(plan.Proposals) > 0 {
		p.logger.Info("Found common slots.", "count", len(plan.Proposals))
		return plan, nil
	}

	p.logger.Info("No common slot found, searching for the slot with maximum attendance.")
	plan.Fallback, err = p.scheduler.FindMaxAttendanceSlot(attendees, req.From, req.To, req.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to find max attendance slot: %w", err)
	}
	if plan.Fallback == nil {
		p.logger.Warn("No attendee has enough free time in the timeframe.")
	} else {
		p.logger.Info("Found max attendance slot.",
			"slot", plan.Fallback.Slot,
			"available", len(plan.Fallback.Attendees),
			"attendees", len(attendees),
		)
	}
	return plan, nil
}

// Profiles builds one scheduler attendee per roster entry, with inline
// appointments plus the busy events of every configured source. Attendees
// are fetched concurrently.
func (p *Planner) Profiles(ctx context.Context, roster *config.Roster, from, to time.Time) ([]*scheduler.Attendee, error) {
	profiles := make([]*scheduler.Attendee, len(roster.Attendees))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range roster.Attendees {
		g.Go(func() error {
			profile, err := p.profile(gctx, a, from, to)
			if err != nil {
				return err
			}
			profiles[i] = profile
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (p *Planner) profile(ctx context.Context, a config.Attendee, from, to time.Time) (*scheduler.Attendee, error) {
	profile, err := a.Profile()
	if err != nil {
		return nil, err
	}

	for _, src := range p.sources {
		events, err := src.BusyEvents(ctx, a, from, to)
		if err != nil {
			if p.strict {
				return nil, fmt.Errorf("failed to read %s calendar of %s: %w", src.Name(), a.ID, err)
			}
			p.logger.Error("Could not read calendar, continuing without it", "attendee", a.ID, "source", src.Name(), "error", err)
			continue
		}

		booked := 0
		for _, ev := range events {
			if !ev.Blocks() {
				p.logger.Debug("Event does not block time, skipping.", "attendee", a.ID, "title", ev.Title, "source", ev.Source)
				continue
			}
			appt, err := scheduler.NewAppointment(ev.StartTime, ev.EndTime)
			if err != nil {
				p.logger.Warn("Skipping invalid event", "attendee", a.ID, "title", ev.Title, "error", err)
				continue
			}
			profile.AddAppointment(appt)
			booked++
		}
		p.logger.Debug("Loaded busy time.", "attendee", a.ID, "source", src.Name(), "events", booked)
	}
	return profile, nil
}
