package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/LukasWeidner/TalentFox/app/controllers"
	"github.com/LukasWeidner/TalentFox/app/repository"
	"github.com/LukasWeidner/TalentFox/internal/pkg/cache"
	"github.com/LukasWeidner/TalentFox/internal/pkg/constants"
	"github.com/LukasWeidner/TalentFox/internal/pkg/database"
	"github.com/LukasWeidner/TalentFox/internal/pkg/entitlements"
	"github.com/LukasWeidner/TalentFox/internal/pkg/env"
	"github.com/LukasWeidner/TalentFox/internal/pkg/events"
	"github.com/LukasWeidner/TalentFox/internal/pkg/invoicenum"
	"github.com/LukasWeidner/TalentFox/internal/pkg/jobqueue"
	"github.com/LukasWeidner/TalentFox/internal/pkg/notifications"
	"github.com/LukasWeidner/TalentFox/internal/pkg/router"
	"github.com/LukasWeidner/TalentFox/internal/pkg/subscriptions"
)

func main() {
	app, queue, sweeper := NewApplication()

	// Graceful shutdown: stop taking requests, then drain workers.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))

	sweeper.Stop()
	queue.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Queue, *subscriptions.Sweeper) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Crash recovery: number any invoice committed without one
	allocator := invoicenum.NewAllocatorFromDB(database.GetDB())
	if n, err := allocator.Backfill(context.Background(), repository.GetGlobalFactory().GetInvoiceRepository(), 100); err != nil {
		fiberlog.Errorf("[Billing] invoice number backfill failed: %v", err)
	} else if n > 0 {
		fiberlog.Infof("[Billing] backfilled %d invoice number(s)", n)
	}

	// Background workers for the best-effort tier
	workers, _ := strconv.Atoi(env.GetEnv("JOB_WORKERS", "2"))
	queue := jobqueue.NewQueue(workers)
	deliverer := notifications.NewDelivererFromEnv()
	queue.RegisterProcessor(jobqueue.JobTypeNotification, deliverer.ProcessNotificationJob)
	queue.RegisterProcessor(jobqueue.JobTypeEntitlementSync, entitlements.NewSyncJobProcessor(database.GetDB()))
	queue.Start()

	controllers.SetNotifier(notifications.NewQueueNotifier(queue))
	registerEventHandlers(controllers.EventBus())

	// Period-end sweep: expiry is the absence of renewal
	sweepMinutes, _ := strconv.Atoi(env.GetEnv("EXPIRY_SWEEP_MINUTES", "15"))
	engine := entitlements.NewEngineFromDB(database.GetDB())
	manager := subscriptions.NewManagerFromDB(database.GetDB(), controllers.EventBus(), engine)
	sweeper := subscriptions.NewSweeper(repository.GetGlobalFactory().GetSubscriptionRepository(), manager, time.Duration(sweepMinutes)*time.Minute)
	sweeper.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "talentfox-billing",
		BodyLimit: 1 << 20, // 1 MiB, JSON payloads only
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// health probe
	app.Get(constants.HealthRoute, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// ROUTER
	router.InstallRouter(app)

	return app, queue, sweeper
}

// registerEventHandlers wires the in-process billing event listeners. The
// catch-all log handler gives operators one grep-able line per transition.
func registerEventHandlers(bus *events.Bus) {
	bus.Register("", func(ctx context.Context, ev events.BillingEvent) error {
		fiberlog.Infof("[Billing] event %s", ev)
		return nil
	})
}
