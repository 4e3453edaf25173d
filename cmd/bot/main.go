package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"immunization_bot/internal/app"
	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/infra/config"
	idb "immunization_bot/internal/infra/database"
	"immunization_bot/internal/infra/logger"
	"immunization_bot/internal/infra/reftable"
	"immunization_bot/internal/infra/scheduler"
	"immunization_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Immunization Schedule Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Timezone: %s", cfg.LogLevel, cfg.Environment, cfg.Location)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Every "today" in the application is a calendar day in the configured zone.
	clock := app.Clock(func() time.Time { return time.Now().In(cfg.Location) })

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.Fatalf("FATAL: Could not apply database schema: %v", err)
	}

	// Initialize Repositories
	childRepo := idb.NewPostgresChildRepository(db)
	vaccinationRepo := idb.NewPostgresVaccinationRepository(db)
	mainLogger.Info("Repositories initialized.")

	// Reference table: loaded eagerly, an invalid table stops startup
	calculators, err := reftable.NewProvider(cfg.ReferenceTablePath, logger.Component("reftable"), immunization.WithClock(clock))
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not load reference table: %v", err)
	}
	watchDone := make(chan struct{})
	if cfg.WatchReferenceTable {
		go func() {
			defer close(watchDone)
			if err := calculators.Watch(ctx); err != nil {
				mainLogger.WithError(err).Error("Reference table watcher exited")
			}
		}()
	} else {
		close(watchDone)
	}

	// Initialize Services
	childService := app.NewChildService(childRepo, clock, logger.Component("child_service"))
	scheduleService := app.NewScheduleService(childRepo, vaccinationRepo, calculators, clock, logger.Component("schedule_service"))
	notificationService := app.NewNotificationServiceImpl(childRepo, vaccinationRepo, clock, logger.Component("notification_service"))
	mainLogger.Info("Services initialized.")

	// Initialize NotificationScheduler
	notifScheduler := scheduler.NewNotificationScheduler(
		notificationService,
		logger.Component("scheduler"),
		cfg.Location,
		cfg.CronSpecDueCheck,
	)
	if err := notifScheduler.Start(); err != nil {
		mainLogger.Fatalf("FATAL: Could not start scheduler: %v", err)
	}
	for _, next := range notifScheduler.Entries() {
		mainLogger.WithField("next_run", next.Format(time.RFC3339)).Info("Due check scheduled")
	}

	// Initialize Telegram Bot
	botLogger := logger.Component("telegram")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Register Handlers
	telegram.RegisterBotCommands(ctx, bot, childService, botLogger)
	telegram.RegisterChildHandlers(ctx, bot, childService, scheduleService, clock, botLogger)
	telegram.RegisterScheduleHandlers(ctx, bot, childService, scheduleService, cfg.UpcomingDaysAhead, clock, botLogger)
	telegram.RegisterNotificationHandlers(ctx, bot, notificationService, botLogger)
	mainLogger.Info("Command handlers registered.")

	mainLogger.Info("Application setup complete. Bot and Scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	notifScheduler.Stop()
	<-watchDone
	// db.Close() is handled by defer
	mainLogger.Info("Application shut down gracefully.")
}
