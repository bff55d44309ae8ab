package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/app"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/logger"
	"github.com/segyhp/loan-ledger/internal/service"
)

const jobTimeout = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateForServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.FromConfig(cfg.Logging))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()
	log = log.Named("scheduler")

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	// Initialize cron scheduler
	cronLog := cronLogger{log.Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.GetLocation()),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if err := setupCronJobs(c, cfg, a.Service, log); err != nil {
		log.Fatal("Failed to schedule jobs", zap.Error(err))
	}

	// Start the scheduler
	c.Start()
	log.Info("Scheduler started", zap.String("timezone", cfg.Scheduler.Timezone))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, svc *service.LedgerService, log *zap.Logger) error {
	// Overdue sweep, midnight in the business time zone by default
	if _, err := c.AddFunc(cfg.Scheduler.OverdueSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if _, err := svc.SweepOverdue(ctx); err != nil {
			log.Error("overdue sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", cfg.Scheduler.OverdueSpec, err)
	}

	if _, err := c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if _, err := svc.SendDueReminders(ctx); err != nil {
			log.Error("due reminders failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule due reminders %q: %w", cfg.Scheduler.ReminderSpec, err)
	}

	log.Info("Cron jobs scheduled",
		zap.String("overdue_spec", cfg.Scheduler.OverdueSpec),
		zap.String("reminder_spec", cfg.Scheduler.ReminderSpec),
	)
	return nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
