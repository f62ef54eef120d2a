package logging

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// MaintenanceFunc runs after each weekly cleanup. Errors are the hook's own
// business; it must not panic.
type MaintenanceFunc func(ctx context.Context)

// RetentionScheduler fires local-log cleanup once per weekly window. Instead
// of polling the wall clock every minute for an exact hour/minute match, it
// computes the next absolute trigger instant and sleeps until it with a
// single-shot timer, recomputing after each fire. Clock drift or a paused
// process shifts the fire, it cannot double-fire within one window.
type RetentionScheduler struct {
	diag          zerolog.Logger
	store         *LocalLogStore
	retentionDays int
	weekday       time.Weekday
	hour          int
	hook          MaintenanceFunc

	inFlight atomic.Bool

	mu       sync.Mutex
	nextFire time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewRetentionScheduler(diag zerolog.Logger, store *LocalLogStore, retentionDays int, weekday time.Weekday, hour int, hook MaintenanceFunc) *RetentionScheduler {
	return &RetentionScheduler{
		diag:          diag.With().Str("component", "retention").Logger(),
		store:         store,
		retentionDays: retentionDays,
		weekday:       weekday,
		hour:          hour,
		hook:          hook,
		stop:          make(chan struct{}),
	}
}

// NextTrigger computes the first instant at or after now that falls on the
// configured weekday at the configured hour.
func NextTrigger(now time.Time, weekday time.Weekday, hour int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	daysAhead := (int(weekday) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, daysAhead)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// NextFire returns the scheduled instant of the next maintenance window.
func (r *RetentionScheduler) NextFire() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextFire
}

func (r *RetentionScheduler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			next := NextTrigger(time.Now(), r.weekday, r.hour)
			r.mu.Lock()
			r.nextFire = next
			r.mu.Unlock()

			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				r.fire()
			case <-r.stop:
				timer.Stop()
				return
			}
		}
	}()
	r.diag.Info().
		Str("weekday", r.weekday.String()).
		Int("hour", r.hour).
		Msg("retention scheduler started")
}

func (r *RetentionScheduler) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *RetentionScheduler) fire() {
	if !r.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer r.inFlight.Store(false)

	r.diag.Info().Msg("weekly maintenance window entered")
	result, err := r.store.Cleanup(r.retentionDays)
	if err != nil {
		r.diag.Error().Err(err).Msg("cleanup failed")
	} else {
		r.diag.Info().
			Int("files", result.Files).
			Int64("bytes", result.Bytes).
			Msg("weekly cleanup finished")
	}

	if r.hook != nil {
		r.hook(context.Background())
	}
}
