package flow

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lps-games/lastplayer/go/internal/models"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// SchedulerConfig tunes the auto-flow scheduler loop.
type SchedulerConfig struct {
	Workers       int
	BatchSize     int32
	RetryDelay    time.Duration
	RecheckDelay  time.Duration
	WorkQueueSize int
}

// DefaultSchedulerConfig returns sensible scheduler settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:       4,
		BatchSize:     50,
		RetryDelay:    time.Second,
		RecheckDelay:  500 * time.Millisecond,
		WorkQueueSize: 100,
	}
}

// Scheduler fires auto-flow transitions when a game's persisted
// next_deadline passes. Deadlines live on the game row, not in memory,
// so a restart resumes exactly where the flow left off; the in-process
// timer is only the wakeup mechanism. Fired work re-validates the
// deadline under the game row lock before acting, so a manual host call
// racing a timer is a no-op for whoever loses.
type Scheduler struct {
	ctrl *Controller
	db   sqlutil.DBTX
	cfg  SchedulerConfig

	workCh chan string

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewScheduler(ctrl *Controller, db sqlutil.DBTX, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		ctrl:     ctrl,
		db:       db,
		cfg:      cfg,
		workCh:   make(chan string, cfg.WorkQueueSize),
		inFlight: make(map[string]bool),
	}
}

// Run drives the scheduler loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Int("workers", s.cfg.Workers).
		Msg("flow scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer func() {
		cancelWorkers()
		wg.Wait()
		log.Info().Msg("flow scheduler stopped")
	}()

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}

	for {
		next, err := s.ctrl.games.FetchNextDeadline(ctx, s.db)
		if err != nil {
			log.Error().Err(err).Msg("failed to fetch next deadline")
			if !s.wait(ctx, s.cfg.RetryDelay) {
				return ctx.Err()
			}
			continue
		}

		if next == nil {
			// Nothing scheduled; sleep until a transition wakes us.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.ctrl.wakeCh:
			}
			continue
		}

		until := next.Deadline.Sub(s.ctrl.clock.Now())
		if until > 0 {
			timer := s.ctrl.clock.NewTimer(until)
			select {
			case <-ctx.Done():
				stopAndDrainTimer(timer)
				return ctx.Err()
			case <-s.ctrl.wakeCh:
				// A sooner deadline may exist now; re-fetch.
				stopAndDrainTimer(timer)
				continue
			case <-timer.Chan():
			}
		}

		s.dispatchDue(ctx)

		// Dispatched games keep their deadline until a worker commits
		// the transition; pause briefly before re-fetching.
		if !s.wait(ctx, s.cfg.RecheckDelay) {
			return ctx.Err()
		}
	}
}

// dispatchDue enqueues every game whose deadline has passed, skipping
// games a worker is already handling.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	codes, err := s.ctrl.games.FetchGamesDue(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch due games")
		return
	}

	for _, code := range codes {
		s.mu.Lock()
		if s.inFlight[code] {
			s.mu.Unlock()
			continue
		}
		s.inFlight[code] = true
		s.mu.Unlock()

		select {
		case s.workCh <- code:
		default:
			s.release(code)
			log.Warn().Str("game_code", code).Msg("scheduler work queue full")
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case code := <-s.workCh:
			if err := s.handleDue(ctx, code); err != nil {
				log.Error().
					Err(err).
					Str("game_code", code).
					Int("worker_id", id).
					Msg("auto-flow transition failed")
			}
			s.release(code)
		}
	}
}

// handleDue runs one fired deadline. The deadline is re-checked under
// the game row lock: a host call or another instance may have advanced
// the game first, in which case this firing is stale and does nothing.
func (s *Scheduler) handleDue(ctx context.Context, code string) error {
	return s.ctrl.tx.InTx(ctx, func(q sqlutil.DBTX) error {
		g, err := s.ctrl.games.GetGameByCodeForUpdate(ctx, q, code)
		if err != nil {
			return err
		}
		if g.Phase == models.PhaseFinished || g.NextDeadline == nil {
			return nil
		}
		if s.ctrl.clock.Now().Before(*g.NextDeadline) {
			return nil
		}

		log.Info().
			Str("game_code", code).
			Str("phase", string(g.Phase)).
			Msg("auto-flow deadline fired")
		return s.ctrl.advanceLocked(ctx, q, g)
	})
}

func (s *Scheduler) release(code string) {
	s.mu.Lock()
	delete(s.inFlight, code)
	s.mu.Unlock()
}

// wait sleeps for d, returning false if ctx was cancelled first.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := s.ctrl.clock.NewTimer(d)
	select {
	case <-ctx.Done():
		stopAndDrainTimer(timer)
		return false
	case <-timer.Chan():
		return true
	}
}

// stopAndDrainTimer stops a timer and drains its channel so a fired
// timer cannot leak a wakeup into the next loop iteration.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
