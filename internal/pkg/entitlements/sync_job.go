package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeidner/TalentFox/app/models"
	"github.com/LukasWeidner/TalentFox/internal/pkg/jobqueue"
)

// NewSyncJobProcessor returns the queue processor that re-derives a user's
// expiring entitlement from their current subscription row. Queued by the
// admin recompute workflow and safe to run repeatedly.
func NewSyncJobProcessor(db *gorm.DB) jobqueue.Processor {
	engine := NewEngineFromDB(db)

	return func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.EntitlementSyncJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode entitlement sync payload: %w", err)
		}

		var sub models.Subscription
		if err := db.WithContext(ctx).Where("user_id = ?", payload.UserID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Infof("[Entitlements] sync for user %d: no subscription, nothing to do", payload.UserID)
				return nil
			}
			return err
		}
		var plan models.Plan
		if err := db.WithContext(ctx).First(&plan, sub.PlanID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if sub.IsServing() && sub.EndsAt.After(now) {
			return engine.Repoint(ctx, sub.UserID, plan.EntitlementKey, sub.EndsAt)
		}
		return engine.Revoke(ctx, sub.UserID, plan.EntitlementKey, now)
	}
}
