package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/log"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/services"
	"github.com/dukex/nodeflow/pkg/step"
	"github.com/dukex/nodeflow/pkg/web"
	"github.com/dukex/nodeflow/pkg/worker"
	"github.com/dukex/nodeflow/pkg/workflow"
)

const (
	DefaultPort        = 9091
	DefaultHTTPTimeout = 30 * time.Second
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (postgres://... or a directory)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, memory)",
			Value:   "memory",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers, used when the event bus is kafka",
			Value:   []string{"localhost:9092"},
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP (configured with OTEL_EXPORTER_OTLP_* variables)",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

func workerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Maximum number of workflow runs handled at once",
			Value:   4,
			Sources: cli.EnvVars("WORKER_CONCURRENCY"),
		},
		&cli.StringFlag{
			Name:    "step-store-url",
			Usage:   "Where step results are recorded (empty for the database, memory, redis://...)",
			Sources: cli.EnvVars("STEP_STORE_URL"),
		},
		&cli.UintFlag{
			Name:    "step-max-attempts",
			Usage:   "Attempts per step for retriable errors",
			Value:   1,
			Sources: cli.EnvVars("STEP_MAX_ATTEMPTS"),
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout of outgoing HTTP calls made by nodes",
			Value:   DefaultHTTPTimeout,
			Sources: cli.EnvVars("HTTP_TIMEOUT"),
		},
	}
}

// runtime holds what every command opens at startup.
type runtime struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	shutdown    func(context.Context) error
}

func setup(ctx context.Context, command *cli.Command, service, consumerGroup string, concurrency int) (*runtime, error) {
	log.Setup(command.String("log-level"))

	logger := log.WithModule(service)

	p, err := NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, err
	}

	bus, err := NewEventBus(EventBusConfig{
		Provider:      command.String("event-bus"),
		Brokers:       command.StringSlice("kafka-brokers"),
		ConsumerGroup: consumerGroup,
		Concurrency:   concurrency,
	}, logger)
	if err != nil {
		_ = p.Close(ctx)

		return nil, err
	}

	tracer, shutdown, err := NewTracer(ctx, command.Bool("otel-enabled"), service)
	if err != nil {
		_ = bus.Close()
		_ = p.Close(ctx)

		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return &runtime{logger: logger, persistence: p, eventBus: bus, tracer: tracer, shutdown: shutdown}, nil
}

func (r *runtime) Close(ctx context.Context) {
	if err := r.eventBus.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := r.persistence.Close(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}

	if err := r.shutdown(context.WithoutCancel(ctx)); err != nil {
		r.logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
	}
}

func (r *runtime) newManager(command *cli.Command, reg *registry.Registry) (*worker.Manager, error) {
	stepStore, err := NewStepStore(command.String("step-store-url"), r.persistence)
	if err != nil {
		return nil, err
	}

	executor := workflow.NewExecutor(
		workflow.NewRepository(r.persistence),
		reg,
		r.logger,
		workflow.WithPublisher(realtime.NewBusPublisher(r.eventBus)),
		workflow.WithTracer(r.tracer),
		workflow.WithStepStore(stepStore),
		workflow.WithStepOptions(step.WithMaxAttempts(command.Uint("step-max-attempts"))),
	)

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	return worker.NewManager(workerID, executor, r.eventBus, r.logger), nil
}

// WorkerCommand runs workflow executions received from the event bus.
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   "Start a worker to execute workflows",
		Flags:   append(commonFlags(), workerFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := setup(ctx, command, "nodeflow-worker", "nodeflow-worker", command.Int("concurrency"))
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			rt.logger.InfoContext(ctx, "Initializing Nodeflow Worker")

			reg, err := NewRegistry(rt.logger, rt.persistence.CredentialRepository(), command.Duration("http-timeout"))
			if err != nil {
				return err
			}

			manager, err := rt.newManager(command, reg)
			if err != nil {
				return err
			}

			return manager.Start(ctx)
		},
	}
}

// APICommand serves the REST API and relays node status to subscribers. With
// --embedded-worker it also executes workflows in the same process.
func APICommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   DefaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "realtime-token-store-url",
			Usage:   "Where realtime tokens are kept (memory, redis://...)",
			Value:   "memory",
			Sources: cli.EnvVars("REALTIME_TOKEN_STORE_URL"),
		},
		&cli.DurationFlag{
			Name:    "realtime-token-ttl",
			Usage:   "Lifetime of realtime subscription tokens",
			Value:   realtime.DefaultTokenTTL,
			Sources: cli.EnvVars("REALTIME_TOKEN_TTL"),
		},
		&cli.BoolFlag{
			Name:    "embedded-worker",
			Usage:   "Also execute workflows in this process",
			Sources: cli.EnvVars("EMBEDDED_WORKER"),
		},
	)

	return &cli.Command{
		Name:    "api",
		Aliases: []string{"a"},
		Usage:   "Start the workflow API",
		Flags:   append(flags, workerFlags()...),
		Action:  runAPI,
	}
}

func runAPI(ctx context.Context, command *cli.Command) error {
	// Every API process relays every status event, so each one consumes
	// from its own group.
	consumerGroup := "nodeflow-api-" + uuid.New().String()[:8]

	rt, err := setup(ctx, command, "nodeflow-api", consumerGroup, command.Int("concurrency"))
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	rt.logger.InfoContext(ctx, "Initializing Nodeflow API")

	reg, err := NewRegistry(rt.logger, rt.persistence.CredentialRepository(), command.Duration("http-timeout"))
	if err != nil {
		return err
	}

	tokenStore, err := NewTokenStore(command.String("realtime-token-store-url"))
	if err != nil {
		return err
	}

	hub := realtime.NewHub(rt.logger, realtime.DefaultSubscriberBuffer)

	err = rt.eventBus.Handle(events.NodeStatusChangedEvent, realtime.RelayHandler(hub, rt.logger))
	if err != nil {
		return err
	}

	handlers := web.NewAPIHandlers(
		web.Services{
			Workflow:   services.NewWorkflow(rt.persistence),
			Credential: services.NewCredential(rt.persistence),
			Execution:  services.NewExecution(rt.persistence),
			Trigger:    services.NewTrigger(rt.persistence, rt.eventBus),
		},
		web.Realtime{
			Tokens: realtime.NewTokenIssuer(tokenStore, command.Duration("realtime-token-ttl")),
			Hub:    hub,
		},
		validator.New(validator.WithRequiredStructEnabled()),
		reg,
		rt.logger,
	)
	app := web.NewApp(handlers)

	group, ctx := errgroup.WithContext(ctx)

	if command.Bool("embedded-worker") {
		manager, err := rt.newManager(command, reg)
		if err != nil {
			return err
		}

		// Start registers the execution handler and subscribes to every
		// registered topic, including the status relay.
		group.Go(func() error { return manager.Start(ctx) })
	} else {
		err = rt.eventBus.Subscribe(ctx)
		if err != nil {
			return err
		}
	}

	group.Go(func() error {
		return app.Listen(":" + strconv.Itoa(command.Int("port")))
	})

	group.Go(func() error {
		<-ctx.Done()

		return app.Shutdown()
	})

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
