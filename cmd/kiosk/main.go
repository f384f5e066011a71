package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ComputerScienceHouse/mineral/internal/config"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/handler"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/usecase"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/infrastructure"
	transport "github.com/ComputerScienceHouse/mineral/internal/modules/vending/interface"
	"github.com/ComputerScienceHouse/mineral/internal/platform/broker"
	"github.com/ComputerScienceHouse/mineral/internal/shared/auth"
	"github.com/ComputerScienceHouse/mineral/internal/shared/logging"
)

const orderEventBuffer = 16

func main() {
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logFile, logger, err := logging.Setup(cfg.Logging.Directory, logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(logger)
	slog.Info("logging initialized", slog.String("directory", cfg.Logging.Directory), slog.String("level", cfg.Logging.Level), slog.String("format", cfg.Logging.Format))
	slog.Info("kiosk config resolved",
		slog.String("drinkEndpoint", cfg.Drink.Endpoint),
		slog.Any("machines", cfg.Drink.Machines),
		slog.Bool("requireOnline", cfg.Drink.RequireOnline),
		slog.String("readerDevice", cfg.Reader.Device),
	)
	if cfg.Gatekeeper.BaseURL == "" {
		slog.Warn("GATEKEEPER_URL not set, tag lookups will fail")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{Timeout: cfg.Drink.Timeout}
	drink := infrastructure.NewDrinkHTTPClient(cfg.Drink.Endpoint, cfg.Drink.Secret, cfg.Drink.Timeout, httpClient)
	gatekeeper := infrastructure.NewGatekeeperHTTPClient(cfg.Gatekeeper.BaseURL, cfg.Gatekeeper.Token, cfg.Gatekeeper.Realm, cfg.Drink.Timeout, httpClient)
	sessions := infrastructure.NewExclusiveSessions(infrastructure.NewGatekeeperSessionFactory(cfg.Reader.Device, gatekeeper))

	catalog := make(chan domain.CatalogSnapshot)
	events := make(chan domain.OrderEvent, orderEventBuffer)

	workflowOpts := []usecase.OrderWorkflowOption{
		usecase.WithScanPeriod(cfg.Timing.ScanPeriod),
		usecase.WithHoldDuration(cfg.Timing.Hold),
	}
	publisher, closePublishers := buildOutcomePublisher(cfg)
	defer closePublishers()
	if publisher != nil {
		workflowOpts = append(workflowOpts, usecase.WithOutcomePublisher(publisher))
	}

	poller := usecase.NewMenuPoller(drink, catalog, usecase.WithPollInterval(cfg.Timing.PollInterval))
	workflow := usecase.NewOrderWorkflow(sessions, drink, events, workflowOpts...)
	hub := infrastructure.NewHub()
	session := usecase.NewKioskSession(
		domain.MenuFilter{Machines: cfg.Drink.Machines, RequireOnline: cfg.Drink.RequireOnline},
		workflow, poller, hub, catalog, events,
	)

	registry := infrastructure.NewHandlerRegistry()
	for _, topic := range cfg.Kafka.RefreshTopics {
		registry.Register(handler.NewRefreshTriggerHandler(topic, poller))
	}
	broker.StartKafkaConsumers(ctx, registry, cfg.Kafka.Brokers, cfg.Kafka.GroupID, registry.Topics())

	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("menu poller stopped", slog.Any("error", err))
		}
	}()
	go func() {
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("kiosk session stopped", slog.Any("error", err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())

	var validator auth.TokenValidator = auth.AllowAll{}
	if cfg.Security.DisplayJWTSecret != "" {
		validator = auth.NewJWTValidator(cfg.Security.DisplayJWTSecret)
	}
	transport.RegisterRoutes(e, hub, validator, session)

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", slog.Any("error", err))
	}
}

// buildOutcomePublisher connects the configured outcome sinks. The returned func closes them.
func buildOutcomePublisher(cfg *config.Config) (port.OutcomePublisher, func()) {
	var (
		publishers []port.OutcomePublisher
		closers    []func() error
	)
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.OutcomeTopic != "" {
		writer := broker.NewKafkaOutcomeWriter(cfg.Kafka.Brokers, cfg.Kafka.OutcomeTopic)
		publishers = append(publishers, writer)
		closers = append(closers, writer.Close)
		slog.Info("kafka outcome writer enabled", slog.String("topic", cfg.Kafka.OutcomeTopic))
	}
	if cfg.NATS.URL != "" {
		nats, err := broker.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.OutcomeSubject)
		if err != nil {
			slog.Warn("nats outcome publisher disabled", slog.Any("error", err))
		} else {
			publishers = append(publishers, nats)
			closers = append(closers, nats.Close)
			slog.Info("nats outcome publisher enabled", slog.String("subject", cfg.NATS.OutcomeSubject))
		}
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("outcome publisher close error", slog.Any("error", err))
			}
		}
	}
	fan := broker.NewFanOutPublisher(publishers...)
	if fan == nil {
		return nil, closeAll
	}
	return fan, closeAll
}
