package maintenance

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when Start is called on a running scheduler.
// Double starts are almost always a wiring bug, so the scheduler fails loud
// instead of treating the second call as a no-op.
var ErrAlreadyRunning = errors.New("scheduler already running")

// ErrNotRunning is returned for operations that require a running scheduler.
var ErrNotRunning = errors.New("scheduler not running")

// Statistics is a read-only snapshot used by administrators to decide
// whether to trigger a manual pass. It is computed fresh from the store on
// every call, never cached.
type Statistics struct {
	UnverifiedUsers    int       `json:"unverified_users"`
	ExpiredOTPRequests int       `json:"expired_otp_requests"`
	OldestUnverifiedAt time.Time `json:"oldest_unverified_at,omitzero"`
	NextRunAt          time.Time `json:"next_run_at,omitzero"`
}

// Scheduler owns the recurring cleanup timer. It is an explicit,
// constructible object rather than a package singleton, so multiple
// instances can coexist in tests. Lifecycle: New -> Start -> Stop.
//
// Exactly one cleanup pass may be in flight at a time: manual runs and
// automatic ticks serialize on passMu. Stop cancels the timer only; it does
// not wait for an in-flight pass, but no further ticks fire after it
// returns.
type Scheduler struct {
	engine *Engine
	notify func(Result) // optional hook invoked after each successful pass

	mu         sync.Mutex // guards the state fields below
	running    bool
	interval   time.Duration
	nextRunAt  time.Time
	lastResult *Result
	lastErr    error
	stopCh     chan struct{}
	ticker     *time.Ticker

	passMu sync.Mutex // one cleanup pass at a time
}

// NewScheduler builds a stopped scheduler around the given engine. notify
// may be nil; when set it is called with the result of every successful pass
// (scheduled or manual) and must not block for long.
func NewScheduler(engine *Engine, notify func(Result)) *Scheduler {
	return &Scheduler{engine: engine, notify: notify}
}

// Start arms the recurring timer. It fails with ErrAlreadyRunning when the
// scheduler is already running.
func (s *Scheduler) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.interval = interval
	s.nextRunAt = time.Now().UTC().Add(interval)
	s.stopCh = make(chan struct{})
	s.ticker = time.NewTicker(interval)
	go s.loop(s.ticker, s.stopCh)
	log.Printf("maintenance: scheduler started (interval=%s)", interval)
	return nil
}

// Stop cancels the timer and clears the next-run time. No-op when already
// stopped. An in-flight pass is left to finish on its own; the select in
// loop guarantees no tick runs after the stop channel closes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.nextRunAt = time.Time{}
	s.ticker.Stop()
	close(s.stopCh)
	s.ticker = nil
	s.stopCh = nil
	log.Printf("maintenance: scheduler stopped")
}

func (s *Scheduler) loop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one scheduled pass. Errors are recorded and logged but never
// propagate: a failed tick must not stop the schedule.
func (s *Scheduler) tick() {
	s.passMu.Lock()
	res, err := s.engine.Run(context.Background())
	s.passMu.Unlock()

	s.mu.Lock()
	if s.running {
		s.nextRunAt = time.Now().UTC().Add(s.interval)
	}
	s.lastResult = &res
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		log.Printf("maintenance: scheduled cleanup failed: %v", err)
		return
	}
	log.Printf("maintenance: scheduled cleanup deleted %d users, %d otp requests",
		res.UnverifiedUsers.DeletedCount, res.ExpiredOTPRequests.DeletedCount)
	if s.notify != nil {
		s.notify(res)
	}
}

// RunNow executes one cleanup pass outside the timer cadence, whether the
// scheduler is running or stopped. The next scheduled run is not moved:
// manual and scheduled runs are independent. Engine failures propagate to
// the caller untouched; the administrative endpoint owns the reporting.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	s.passMu.Lock()
	res, err := s.engine.Run(ctx)
	s.passMu.Unlock()

	s.mu.Lock()
	s.lastResult = &res
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		return res, err
	}
	if s.notify != nil {
		s.notify(res)
	}
	return res, nil
}

// Statistics computes a fresh snapshot from the store. Read-only: nothing is
// deleted or mutated.
func (s *Scheduler) Statistics(ctx context.Context) (Statistics, error) {
	users, otpIDs, err := s.engine.Preview(ctx)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{
		UnverifiedUsers:    len(users),
		ExpiredOTPRequests: len(otpIDs),
		NextRunAt:          s.NextRunAt(),
	}
	for _, u := range users {
		if stats.OldestUnverifiedAt.IsZero() || u.CreatedAt.Before(stats.OldestUnverifiedAt) {
			stats.OldestUnverifiedAt = u.CreatedAt
		}
	}
	return stats, nil
}

// Preview exposes the engine's non-destructive candidate listing.
func (s *Scheduler) Preview(ctx context.Context) ([]UnverifiedUser, []uint64, error) {
	return s.engine.Preview(ctx)
}

// IsRunning reports whether the timer is armed.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRunAt returns the next scheduled run time, zero when stopped.
func (s *Scheduler) NextRunAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// Interval returns the configured tick interval, zero when stopped.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// LastResult returns the most recent pass outcome and its error, either of
// which may be nil/absent when no pass has run yet.
func (s *Scheduler) LastResult() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult, s.lastErr
}
