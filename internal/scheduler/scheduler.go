// Package scheduler runs the partition and index sweep on a cron schedule so
// the next month's partition always exists before rows need it.
package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/griotdb/griot"
)

// Maintainer is the slice of the postgres maintenance surface the sweep
// drives.
type Maintainer interface {
	EnsurePartitions(ctx context.Context, year int) (int, error)
	ProvisionIndexes(ctx context.Context) (int, error)
}

// Observer receives the outcome of each sweep. Implemented by the metrics
// package; nil disables reporting.
type Observer interface {
	ObserveMaintenance(partitions, indexes int, err error)
}

// Scheduler triggers maintenance sweeps on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	maint      Maintainer
	clock      griot.Clock
	obs        Observer
	schedule   string
	leadMonths int

	mu      sync.Mutex
	running bool
}

func New(maint Maintainer, clock griot.Clock, obs Observer, schedule string, leadMonths int) *Scheduler {
	if clock == nil {
		clock = griot.RealClock{}
	}
	return &Scheduler{
		cron:       cron.New(),
		maint:      maint,
		clock:      clock,
		obs:        obs,
		schedule:   schedule,
		leadMonths: leadMonths,
	}
}

// Start runs one sweep immediately, then keeps sweeping on the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, _, err := s.RunOnce(ctx); err != nil {
		return err
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, _, sweepErr := s.RunOnce(context.Background()); sweepErr != nil {
			log.Error().Err(sweepErr).Msg("maintenance sweep failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	log.Info().Str("schedule", s.schedule).Msg("maintenance scheduler started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if !running {
		return
	}
	<-s.cron.Stop().Done()
	log.Info().Msg("maintenance scheduler stopped")
}

// RunOnce ensures partitions exist through the lead window and provisions any
// missing indexes, returning what it created.
func (s *Scheduler) RunOnce(ctx context.Context) (partitions, indexes int, err error) {
	now := s.clock.Now()

	years := []int{now.Year()}
	if lead := now.AddDate(0, s.leadMonths, 0); lead.Year() != now.Year() {
		years = append(years, lead.Year())
	}

	for _, year := range years {
		n, ensureErr := s.maint.EnsurePartitions(ctx, year)
		partitions += n
		if ensureErr != nil {
			s.observe(partitions, indexes, ensureErr)
			return partitions, indexes, ensureErr
		}
	}

	indexes, err = s.maint.ProvisionIndexes(ctx)
	s.observe(partitions, indexes, err)
	if err != nil {
		return partitions, indexes, err
	}

	if partitions > 0 || indexes > 0 {
		log.Info().Int("partitions", partitions).Int("indexes", indexes).Msg("maintenance sweep created objects")
	}
	return partitions, indexes, nil
}

func (s *Scheduler) observe(partitions, indexes int, err error) {
	if s.obs == nil {
		return
	}
	s.obs.ObserveMaintenance(partitions, indexes, err)
}
