package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/dukex/nodeflow/pkg/channels/kafka"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/step"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"postgres://user@localhost/db":   "postgres",
		"postgresql://user@localhost/db": "postgresql",
		"file://./data":                  "file",
		"./data":                         "file",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	p, err := NewPersistence(t.Context(), slog.Default(), "file://"+t.TempDir())
	require.NoError(t, err)

	assert.IsType(t, &file.Persistence{}, p)
	require.NoError(t, p.HealthCheck(t.Context()))
}

func TestNewStepStore(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	store, err := NewStepStore("", p)
	require.NoError(t, err)
	assert.Equal(t, p.StepRepository(), store)

	store, err = NewStepStore("memory", p)
	require.NoError(t, err)
	assert.IsType(t, &step.MemoryStore{}, store)

	store, err = NewStepStore("redis://localhost:6379/0", p)
	require.NoError(t, err)
	assert.IsType(t, &step.RedisStore{}, store)

	_, err = NewStepStore("etcd://localhost", p)
	assert.Error(t, err)
}

func TestNewTokenStore(t *testing.T) {
	store, err := NewTokenStore("")
	require.NoError(t, err)
	assert.IsType(t, &realtime.MemoryTokenStore{}, store)

	store, err = NewTokenStore("redis://localhost:6379/1")
	require.NoError(t, err)
	assert.IsType(t, &realtime.RedisTokenStore{}, store)

	_, err = NewTokenStore("redis://%zz")
	assert.Error(t, err)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus(EventBusConfig{Provider: "memory", Concurrency: 2}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus(EventBusConfig{Provider: "kafka"}, slog.Default())
	require.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = NewEventBus(EventBusConfig{Provider: "rabbitmq"}, slog.Default())
	assert.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	reg, err := NewRegistry(slog.Default(), p.CredentialRepository(), 5*time.Second)
	require.NoError(t, err)

	assert.True(t, reg.Sealed())
	require.NoError(t, reg.HealthCheck())
	assert.Equal(t, models.NodeTypes, reg.Types())
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, shutdown, err := NewTracer(t.Context(), false, "nodeflow-test")
	require.NoError(t, err)

	assert.NotNil(t, tracer)
	assert.NoError(t, shutdown(t.Context()))
}

func flagNames(command *cli.Command) []string {
	var names []string
	for _, flag := range command.Flags {
		names = append(names, flag.Names()[0])
	}

	return names
}

func TestCommands_Flags(t *testing.T) {
	api := APICommand()
	assert.Equal(t, "api", api.Name)
	assert.Subset(t, flagNames(api), []string{
		"database-url", "event-bus", "kafka-brokers", "log-level", "otel-enabled",
		"port", "realtime-token-store-url", "realtime-token-ttl", "embedded-worker",
		"concurrency", "step-store-url", "http-timeout",
	})

	worker := WorkerCommand()
	assert.Equal(t, "worker", worker.Name)
	assert.Subset(t, flagNames(worker), []string{"database-url", "worker-id", "concurrency", "step-max-attempts"})
	assert.NotContains(t, flagNames(worker), "port")
}
