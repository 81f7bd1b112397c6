package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/calendar"
	"github.com/example/booking-reminder/internal/calsync"
	"github.com/example/booking-reminder/internal/config"
	httptransport "github.com/example/booking-reminder/internal/http"
	"github.com/example/booking-reminder/internal/logging"
	"github.com/example/booking-reminder/internal/push"
	"github.com/example/booking-reminder/internal/reminder"
	"github.com/example/booking-reminder/internal/secrets"
	"github.com/example/booking-reminder/internal/seed"
	"github.com/example/booking-reminder/internal/timeutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bookingd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	sealer, err := secrets.NewSealer(cfg.SecretPassphrase, cfg.SecretSalt)
	if err != nil {
		return err
	}

	ids := uuid.NewString
	now := time.Now

	tokens := push.NewTokenRegistry(store, now)
	dispatcher := push.NewDispatcher(tokens, senders(cfg, logger), cfg.ExternalTimeout, logger)
	evaluator := reminder.NewEvaluator(store, dispatcher, now, logger)

	var worker *calsync.Worker
	var syncNotifier httptransport.SyncNotifier
	if cfg.CalendarEnabled() {
		client := calendar.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret, logger, calendar.WithTimeout(cfg.ExternalTimeout))
		syncer := calsync.New(store, client, calsync.Options{
			Concurrency: cfg.SyncConcurrency,
			Opener:      sealer,
			Logger:      logger,
		})
		worker = calsync.NewWorker(syncer, logger)
		syncNotifier = worker
	} else {
		logger.WarnContext(ctx, "calendar sync disabled: google client credentials not configured")
	}

	activities := application.NewActivityService(store, ids, now, logger)
	templates := application.NewTemplateService(store, ids, now, logger)
	bookings := application.NewBookingService(store, ids, now, logger)
	reminders := application.NewReminderService(store, evaluator.Ledger(), ids, now, logger)
	notifications := application.NewNotificationService(store, tokens, now, logger)
	accounts := application.NewAccountService(store, sealer, now, logger)
	availability := application.NewAvailabilityService(store, logger)

	if cfg.SeedFile != "" {
		catalogue, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Import(ctx, catalogue, activities, templates, logger); err != nil {
			return err
		}
	}

	scheduler, err := newCron(ctx, cfg, evaluator, worker, logger)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Bookings:      httptransport.NewBookingHandler(bookings, logger),
		Reminders:     httptransport.NewReminderHandler(reminders, logger),
		Notifications: httptransport.NewNotificationHandler(notifications, logger),
		Catalogue:     httptransport.NewCatalogueHandler(activities, templates, availability, logger),
		Accounts:      httptransport.NewAccountHandler(accounts, logger),
		Ops:           httptransport.NewOpsHandler(evaluator, syncNotifier, store, logger),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}
	if store.listen != nil {
		g.Go(func() error {
			if err := store.listen(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("booking API listening", "addr", server.Addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		<-scheduler.Stop().Done()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		return nil
	})

	scheduler.Start()
	if worker != nil {
		worker.Notify()
	}
	return g.Wait()
}

func senders(cfg config.Config, logger *slog.Logger) map[push.Channel]push.Sender {
	out := map[push.Channel]push.Sender{
		push.ChannelExpo: push.NewExpoSender(&http.Client{Timeout: cfg.ExternalTimeout}, cfg.ExpoEndpoint, cfg.ExpoAccessToken),
	}
	if cfg.TelegramToken == "" {
		return out
	}
	telegram, err := push.NewTelegramSenderFromToken(cfg.TelegramToken)
	if err != nil {
		logger.Warn("telegram delivery disabled", "error", err)
		return out
	}
	out[push.ChannelTelegram] = telegram
	return out
}

// newCron registers the reminder tick, the periodic calendar reconcile and
// the daily ledger prune. Jobs that overlap a still running invocation are
// skipped.
func newCron(ctx context.Context, cfg config.Config, evaluator *reminder.Evaluator, worker *calsync.Worker, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(timeutil.OrgLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(cfg.ReminderSchedule, func() {
		if _, err := evaluator.Trigger(ctx); err != nil {
			logger.WarnContext(ctx, "reminder tick finished with errors", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	if worker != nil {
		if _, err := c.AddFunc(cfg.SyncSchedule, worker.Notify); err != nil {
			return nil, err
		}
	}

	if _, err := c.AddFunc("@daily", func() {
		cutoff := time.Now().Add(-cfg.LedgerRetention)
		pruned, err := evaluator.Ledger().Prune(ctx, cutoff)
		if err != nil {
			logger.WarnContext(ctx, "failed to prune fired occurrences", "error", err)
			return
		}
		logger.InfoContext(ctx, "fired occurrences pruned", "count", pruned)
	}); err != nil {
		return nil, err
	}
	return c, nil
}
