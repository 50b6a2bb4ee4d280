package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper runs the periodic maintenance jobs: reservation expiry and the
// full alert sweep. Each job runs on its own ticker and stops when the
// sweeper's context is cancelled.
type Sweeper struct {
	inventory InventoryService
	alerts    StockAlertService
	logger    *slog.Logger

	reservationInterval time.Duration
	alertInterval       time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper over the inventory and alert services.
func NewSweeper(inventory InventoryService, alerts StockAlertService, reservationInterval, alertInterval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		inventory:           inventory,
		alerts:              alerts,
		logger:              logger,
		reservationInterval: reservationInterval,
		alertInterval:       alertInterval,
	}
}

// Start launches the background jobs. Callers stop them via Stop.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.reservationSweepJob(ctx)

	if s.alerts != nil {
		s.wg.Add(1)
		go s.alertSweepJob(ctx)
	}

	s.logger.Info("Background jobs started",
		"reservationSweepInterval", s.reservationInterval,
		"alertSweepInterval", s.alertInterval)
}

// Stop cancels the jobs and waits for them to exit.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Background jobs stopped")
}

// reservationSweepJob periodically reclaims stock from expired reservations.
func (s *Sweeper) reservationSweepJob(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reservationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping reservation sweep job")
			return
		case <-ticker.C:
			s.logger.Debug("Running reservation sweep")

			result, err := s.inventory.ExpireReservations(ctx)
			if err != nil {
				s.logger.Error("Reservation sweep failed", "error", err)
				continue
			}
			if result.Expired > 0 {
				s.logger.Info("Reservation sweep completed",
					"expiredReservations", result.Expired,
					"affectedProducts", len(result.Products))
			}
		}
	}
}

// alertSweepJob periodically re-evaluates every product so that conditions
// not tied to a movement (velocity-based alerts, missed transitions) still
// surface.
func (s *Sweeper) alertSweepJob(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.alertInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping alert sweep job")
			return
		case <-ticker.C:
			s.logger.Debug("Running alert sweep")

			if err := s.alerts.SweepOnce(ctx); err != nil {
				s.logger.Error("Alert sweep failed", "error", err)
			}
		}
	}
}
