// Package scheduler drives the scrape loop: session upkeep, sequential
// per-card ingestion, and exponential backoff on consecutive failures.
package scheduler

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"hopwatch/internal/config"
	"hopwatch/internal/logger"
	"hopwatch/internal/metrics"
	"hopwatch/internal/pipeline"
	"hopwatch/internal/portal"
)

const (
	baseBackoff = 60 * time.Second
	backoffCap  = 1800 * time.Second
	// panicPause is the flat extra pause after a recovered panic, applied
	// before the regular backoff.
	panicPause = 60 * time.Second
)

// Backoff returns the sleep applied after n consecutive cycle failures:
// baseBackoff doubled per failure, capped at backoffCap.
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := baseBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

type Scheduler struct {
	cfg      *config.Config
	session  *portal.Session
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
}

func New(cfg *config.Config, session *portal.Session, p *pipeline.Pipeline, m *metrics.Metrics) *Scheduler {
	return &Scheduler{cfg: cfg, session: session, pipeline: p, metrics: m}
}

// Run blocks until ctx is cancelled. Every cycle failure — auth errors and
// panics included — is absorbed and backed off; only shutdown stops the
// loop. Sleeps happen strictly between cycles, never mid-transaction, and
// are cut short by cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if s.cfg.StartupDelay > 0 {
		log.Info().Dur("delay", s.cfg.StartupDelay).Msg("waiting before first cycle")
		if !sleep(ctx, s.cfg.StartupDelay) {
			return ctx.Err()
		}
	}

	failures := 0
	for {
		ok, panicked := s.cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ok {
			failures = 0
			log.Info().Dur("period", s.cfg.Period).Msg("sleeping until next cycle")
			if !sleep(ctx, s.cfg.Period) {
				return ctx.Err()
			}
			continue
		}

		failures++
		s.metrics.CycleFailures.Inc()
		if panicked {
			if !sleep(ctx, panicPause) {
				return ctx.Err()
			}
		}
		wait := Backoff(failures)
		log.Warn().
			Int("consecutive_failures", failures).
			Dur("backoff", wait).
			Msg("cycle failed, backing off")
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// cycle runs one full pass over the configured cards. The second return
// reports that the cycle died to a recovered panic rather than an ordinary
// failure.
func (s *Scheduler) cycle(ctx context.Context) (ok bool, panicked bool) {
	log := logger.FromContext(ctx).With().
		Str("cycle_id", uuid.NewString()).
		Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("cycle panicked")
			ok, panicked = false, true
		}
	}()

	started := time.Now()
	s.metrics.CyclesTotal.Inc()

	// Reuse the session while the probe still answers; log in only when it
	// does not. A failed login fails the whole cycle — no mid-cycle retry.
	if !s.session.Valid(ctx) {
		log.Info().Msg("no valid session, signing in")
		if err := s.session.Login(ctx); err != nil {
			log.Error().Err(err).Msg("sign-in failed")
			return false, false
		}
	}

	total := 0
	for _, card := range s.cfg.Cards {
		log.Info().
			Str("card_id", card.ID).
			Str("card_name", card.DisplayName()).
			Msg("scraping card")
		total += s.pipeline.Run(ctx, s.session, card)
	}

	s.metrics.LastCycle.SetToCurrentTime()
	log.Info().
		Int("new_transactions", total).
		Dur("elapsed", time.Since(started)).
		Msg("cycle completed")
	return true, false
}

// sleep waits for d unless ctx is cancelled first; it reports whether the
// full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
