// Package scheduler despacha los emails programados cuyo scheduledFor ya venció.
//
// Cada tick toma una única foto de "now", hace un scan global de emails en
// estado scheduled y despacha los vencidos. Los ticks corren en su propia
// goroutine y pueden solaparse; el claim del dispatcher evita envíos dobles.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	"github.com/dropDatabas3/hellomail/internal/metrics"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"
)

const DefaultInterval = 60 * time.Second

// Sender despacha un email por id (dispatch.Dispatcher).
type Sender interface {
	Send(ctx context.Context, emailID string) (*dispatch.Result, error)
}

// Config del scheduler.
type Config struct {
	Interval   time.Duration // 0 = DefaultInterval
	RunOnStart bool          // tick inmediato al arrancar
}

// TickReport resumen de un tick.
type TickReport struct {
	Scanned    int // emails en estado scheduled
	Due        int // vencidos respecto del snapshot
	Dispatched int
	Skipped    int // otro proceso los reclamó antes
	Failed     int
}

// Scheduler es el poller de emails programados. Vive lo que vive el proceso.
type Scheduler struct {
	emails repository.EmailRepository
	sender Sender
	cfg    Config
	now    func() time.Time

	wg sync.WaitGroup
}

// New crea un Scheduler.
func New(emails repository.EmailRepository, sender Sender, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		emails: emails,
		sender: sender,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run ejecuta ticks cada Interval hasta que ctx se cancela. Al salir espera los
// ticks en curso.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("scheduler"))
	log.Info("scheduler started", logger.Duration(s.cfg.Interval), logger.Bool("run_on_start", s.cfg.RunOnStart))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.spawn(ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.spawn(ctx)
		case <-ctx.Done():
			log.Info("scheduler stopping, waiting for in-flight ticks")
			s.wg.Wait()
			return nil
		}
	}
}

func (s *Scheduler) spawn(ctx context.Context) {
	now := s.now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Tick(ctx, now); err != nil {
			logger.From(ctx).Error("scheduler tick failed", logger.Component("scheduler"), logger.Err(err))
		}
	}()
}

// Tick procesa una vez los emails vencidos respecto de now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	var rep TickReport
	log := logger.From(ctx).With(logger.Component("scheduler"), logger.Time("now", now))
	metrics.SchedulerTicks.Inc()

	scheduled, err := s.emails.ListByStatus(ctx, repository.EmailScheduled)
	if err != nil {
		return rep, fmt.Errorf("scheduler: scan scheduled emails: %w", err)
	}
	rep.Scanned = len(scheduled)

	for i := range scheduled {
		e := &scheduled[i]
		if !e.DueAt(now) {
			if e.ScheduledFor != "" {
				if _, perr := repository.ParseScheduledFor(e.ScheduledFor); perr != nil {
					log.Debug("skipping unparseable scheduledFor",
						logger.EmailID(e.ID),
						logger.String("scheduled_for", e.ScheduledFor))
				}
			}
			continue
		}
		rep.Due++

		_, err := s.sender.Send(ctx, e.ID)
		switch {
		case err == nil:
			rep.Dispatched++
		case errors.Is(err, dispatch.ErrAlreadyClaimed):
			rep.Skipped++
			log.Debug("due email already claimed", logger.EmailID(e.ID))
		default:
			rep.Failed++
			log.Warn("scheduled dispatch failed", logger.EmailID(e.ID), logger.Err(err))
		}
	}
	metrics.SchedulerDue.Add(float64(rep.Due))

	if rep.Due > 0 {
		log.Info("scheduler tick",
			logger.Int("scanned", rep.Scanned),
			logger.Int("due", rep.Due),
			logger.Int("dispatched", rep.Dispatched),
			logger.Int("skipped", rep.Skipped),
			logger.Int("failed", rep.Failed),
		)
	}
	return rep, nil
}
