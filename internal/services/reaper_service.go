// internal/services/reaper_service.go
package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReaperService periodically releases expired unit reservations and cancels
// the pending orders that held them. A checkout that reaches paid before the
// sweep wins: the sweep only touches rows it can lock, and the normal
// cancelled transition it uses is idempotent.
type ReaperService struct {
	inventory *InventoryService
	checkout  *CheckoutService
	schedule  string
	cron      *cron.Cron
}

func NewReaperService(inventory *InventoryService, checkout *CheckoutService, schedule string) *ReaperService {
	return &ReaperService{
		inventory: inventory,
		checkout:  checkout,
		schedule:  schedule,
		cron:      cron.New(),
	}
}

// Start registers the sweep on the configured cron schedule and launches the
// scheduler goroutine.
func (s *ReaperService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule reaper: %w", err)
	}
	s.cron.Start()
	logrus.WithField("schedule", s.schedule).Info("Reservation reaper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *ReaperService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logrus.Info("Reservation reaper stopped")
}

// Sweep runs one pass: release expired reservations first, then cancel the
// stale pending orders that referenced them. Also callable directly from an
// admin endpoint.
func (s *ReaperService) Sweep() {
	now := time.Now()

	released, err := s.inventory.SweepExpired(now)
	if err != nil {
		logrus.WithError(err).Error("Reaper failed to sweep expired reservations")
	}

	cancelled, err := s.checkout.CancelExpired(now)
	if err != nil {
		logrus.WithError(err).Error("Reaper failed to cancel expired orders")
	}

	if released > 0 || cancelled > 0 {
		logrus.WithFields(logrus.Fields{
			"released_units":   released,
			"cancelled_orders": cancelled,
		}).Info("Reaper sweep completed")
	}
}
