package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/config"
	"mcq-queue-service/internal/metrics"
	transport "mcq-queue-service/internal/transport/http"
	tgfrontend "mcq-queue-service/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand to start the service.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API, the scheduler and the Telegram front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cl closers
	defer cl.close()

	store, err := buildStore(ctx, cfg, logger, &cl)
	if err != nil {
		return err
	}

	var bot *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		bot.Debug = cfg.Telegram.Debug
		logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	}

	out, err := buildDelivery(cfg, bot, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	listeners := []app.DeliveryListener{m}
	eventListener, consumeEvents, err := buildEvents(cfg, logger, &cl)
	if err != nil {
		return err
	}
	if eventListener != nil {
		listeners = append(listeners, eventListener)
	}

	scheduler := app.NewScheduler(store, out.port, app.SchedulerConfig{
		Destination: cfg.Scheduler.Destination,
		Interval:    config.TTLDuration(cfg.Scheduler.Interval, app.DefaultInterval),
		MaxAttempts: cfg.Scheduler.MaxAttempts,
	}, app.WithSchedulerLogger(logger.Named("scheduler")), app.WithListeners(listeners...))
	m.WatchScheduler(scheduler)

	admission := app.NewAdmissionService(store, scheduler, logger.Named("admission"))
	if out.announcer != nil {
		admission.WithAnnouncer(out.announcer, cfg.Scheduler.Destination)
	}

	router := transport.NewRouter(transport.Deps{
		Admission:   admission,
		Importer:    app.NewImporter(admission, logger.Named("import")),
		Status:      scheduler,
		Hub:         out.hub,
		Metrics:     m,
		Logger:      logger.Named("http"),
		MaxUploadMB: cfg.Server.MaxUploadMB,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := scheduler.Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		logger.Info("starting mcq queue service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Telegram.Listen && bot != nil {
		frontend := tgfrontend.NewFrontend(bot, admission, scheduler, m, logger.Named("chat"))
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates := bot.GetUpdatesChan(u)
		g.Go(func() error {
			return frontend.Run(gctx, updates)
		})
		g.Go(func() error {
			<-gctx.Done()
			bot.StopReceivingUpdates()
			return nil
		})
	}

	if consumeEvents != nil {
		g.Go(func() error {
			return consumeEvents(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
		defer cancel()

		httpErr := server.Shutdown(shutdownCtx)
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler did not stop in time", zap.Error(err))
		}
		return httpErr
	})

	return g.Wait()
}
