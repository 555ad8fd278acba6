// Package scheduler fires named jobs once per civil day at a configured
// local time. It is the bot's replacement for a cron dependency, built
// around three requirements an off-the-shelf cron does not meet here:
//
//   - The fire instant is re-derived from civil time in the configured
//     timezone on every arm, so a 22:00 trigger stays 22:00 local across
//     daylight-saving transitions (the UTC offset moves, the local time
//     does not).
//   - "Now" comes from an injected clock, so DST and missed-fire scenarios
//     are testable without waiting for a wall clock.
//   - Missed fires are an explicit, per-job policy. If the process was down
//     at trigger time, startup either skips to the next day's instant
//     (default) or fires once immediately — decided against a persisted
//     last-run day, never implicitly.
//
// Each job is an independent state machine (Idle → Armed → Firing → Armed)
// running in its own goroutine. Job bodies execute outside all scheduler
// locks; a body's error or panic is logged and re-armed over, and never
// affects other jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-recipe-bot/internal/clock"
)

// CatchUpPolicy decides what happens when a job's instant for the current
// day passed while the process was down.
type CatchUpPolicy int

const (
	// CatchUpSkip arms for the next future instant; a missed day stays
	// missed. The default: never double-send.
	CatchUpSkip CatchUpPolicy = iota
	// CatchUpFire fires once immediately on startup if today's instant has
	// passed and the persisted last-run day shows the job did not run today.
	CatchUpFire
)

// Job states, exposed for the ops surface and tests.
const (
	StateIdle   = "idle"
	StateArmed  = "armed"
	StateFiring = "firing"
)

// JobFunc is a job body. It receives the scheduler's base context; errors
// are logged by the scheduler and never propagate into scheduling state.
type JobFunc func(ctx context.Context) error

// RunRecorder persists per-job last-run days so missed-fire detection
// survives restarts. Both methods must be safe for concurrent use.
type RunRecorder interface {
	LastRunDay(ctx context.Context, name string) (string, error)
	RecordRun(ctx context.Context, name, day string, at time.Time) error
}

type job struct {
	name   string
	hour   int
	minute int
	policy CatchUpPolicy
	fn     JobFunc

	mu    sync.Mutex
	state string
	next  time.Time
}

// Scheduler drives a set of named daily jobs.
type Scheduler struct {
	clk clock.Clock
	loc *time.Location
	log zerolog.Logger
	rec RunRecorder // may be nil: catch-up then always fires when due

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	wg      sync.WaitGroup
}

// New constructs a Scheduler. rec may be nil when missed-fire persistence is
// not needed (tests, CatchUpSkip-only setups).
func New(clk clock.Clock, loc *time.Location, log zerolog.Logger, rec RunRecorder) *Scheduler {
	return &Scheduler{
		clk:  clk,
		loc:  loc,
		log:  log,
		rec:  rec,
		jobs: make(map[string]*job),
	}
}

// AddJob registers a named job firing daily at hour:minute local time.
// Registration after Start, a duplicate name, or an out-of-range time is a
// configuration error and fails.
func (s *Scheduler) AddJob(name string, hour, minute int, policy CatchUpPolicy, fn JobFunc) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("scheduler: job %q has invalid time %02d:%02d", name, hour, minute)
	}
	if fn == nil {
		return fmt.Errorf("scheduler: job %q has no body", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler: cannot add job %q after start", name)
	}
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("scheduler: duplicate job %q", name)
	}
	s.jobs[name] = &job{
		name:   name,
		hour:   hour,
		minute: minute,
		policy: policy,
		fn:     fn,
		state:  StateIdle,
	}
	return nil
}

// Start applies each job's catch-up policy, then launches one arming loop
// per job. It returns immediately; jobs stop when ctx is cancelled. Wait
// blocks until all loops have exited.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	for _, j := range jobs {
		if j.policy == CatchUpFire && s.missedToday(ctx, j) {
			s.log.Info().Str("job", j.name).Msg("catch-up fire for missed schedule")
			s.run(ctx, j)
		}
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

// Wait blocks until every job loop has stopped (after context cancellation).
func (s *Scheduler) Wait() { s.wg.Wait() }

// Fire runs a job body immediately, bypassing the timer. It is the manual
// control surface for operations and tests; the job's armed timer is left
// untouched.
func (s *Scheduler) Fire(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	s.run(ctx, j)
	return nil
}

// Next returns the instant a job is armed for. ok is false for unknown jobs
// or jobs not yet armed.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	j, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return time.Time{}, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next, !j.next.IsZero()
}

// State returns a job's current state machine position.
func (s *Scheduler) State(name string) (string, bool) {
	s.mu.Lock()
	j, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return "", false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, true
}

// NextInstant computes the first instant strictly after now at which the
// local civil time hour:minute occurs in loc. Civil time is mapped to an
// instant through time.Date on every call, so offset changes (DST) are
// honored: the local reading is pinned, the UTC instant shifts.
func NextInstant(now time.Time, loc *time.Location, hour, minute int) time.Time {
	lt := now.In(loc)
	cand := time.Date(lt.Year(), lt.Month(), lt.Day(), hour, minute, 0, 0, loc)
	if !cand.After(now) {
		cand = time.Date(lt.Year(), lt.Month(), lt.Day()+1, hour, minute, 0, 0, loc)
	}
	return cand
}

// missedToday reports whether today's instant already passed without the job
// having run today (per the recorder). With no recorder every passed instant
// counts as missed.
func (s *Scheduler) missedToday(ctx context.Context, j *job) bool {
	now := s.clk.Now()
	lt := now.In(s.loc)
	todayInstant := time.Date(lt.Year(), lt.Month(), lt.Day(), j.hour, j.minute, 0, 0, s.loc)
	if !todayInstant.Before(now) {
		return false
	}
	if s.rec == nil {
		return true
	}
	lastDay, err := s.rec.LastRunDay(ctx, j.name)
	if err != nil {
		s.log.Warn().Err(err).Str("job", j.name).Msg("last-run lookup failed, skipping catch-up")
		return false
	}
	return lastDay != clock.DayKey(now, s.loc)
}

// loop is the per-job arming loop: compute next instant, sleep, fire,
// repeat. Cancellation stops the loop between fires.
func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()
	for {
		now := s.clk.Now()
		next := NextInstant(now, s.loc, j.hour, j.minute)

		j.mu.Lock()
		j.state = StateArmed
		j.next = next
		j.mu.Unlock()
		s.log.Debug().Str("job", j.name).Time("next", next).Msg("armed")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			j.mu.Lock()
			j.state = StateIdle
			j.next = time.Time{}
			j.mu.Unlock()
			return
		case <-timer.C:
		}

		s.run(ctx, j)
	}
}

// run executes a job body once, outside any scheduler lock, converting
// panics and errors into log entries. A successful completion persists the
// run day for missed-fire detection.
func (s *Scheduler) run(ctx context.Context, j *job) {
	j.mu.Lock()
	j.state = StateFiring
	j.mu.Unlock()

	start := s.clk.Now()
	err := s.invoke(ctx, j)
	if err != nil {
		s.log.Error().Err(err).Str("job", j.name).Msg("job failed")
	} else {
		s.log.Info().Str("job", j.name).Dur("took", s.clk.Now().Sub(start)).Msg("job complete")
		if s.rec != nil {
			day := clock.DayKey(start, s.loc)
			if rerr := s.rec.RecordRun(ctx, j.name, day, start); rerr != nil {
				s.log.Warn().Err(rerr).Str("job", j.name).Msg("record run failed")
			}
		}
	}

	j.mu.Lock()
	j.state = StateArmed
	j.mu.Unlock()
}

func (s *Scheduler) invoke(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return j.fn(ctx)
}
