package subscriptions

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/LukasWeidner/TalentFox/app/repository"
)

const sweepBatchSize = 100

// Sweeper periodically lapses serving subscriptions whose period end has
// passed without a renewal event. Expiry is the absence of renewal, so nothing
// else in the system flips that state.
type Sweeper struct {
	repo     repository.SubscriptionRepository
	manager  *Manager
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(repo repository.SubscriptionRepository, manager *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		repo:     repo,
		manager:  manager,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Infof("[Subscriptions] expiry sweeper running every %s", s.interval)
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.SweepOnce(context.Background())
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for the current pass to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// SweepOnce expires every due subscription in one pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	due, err := s.repo.ListDueForExpiry(time.Now().UTC(), sweepBatchSize)
	if err != nil {
		log.Errorf("[Subscriptions] expiry sweep query failed: %v", err)
		return
	}

	for _, sub := range due {
		if _, err := s.manager.MarkExpired(ctx, sub.ID); err != nil {
			log.Errorf("[Subscriptions] expiring subscription %d failed: %v", sub.ID, err)
		}
	}
	if len(due) > 0 {
		log.Infof("[Subscriptions] expiry sweep lapsed %d subscription(s)", len(due))
	}
}
