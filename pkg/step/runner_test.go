package step

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/nodeflow/pkg/protocol"
)

func newTestRunner(store Store, opts ...Option) *Runner {
	opts = append([]Option{WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })}, opts...)

	return NewRunner("event-1", store, slog.Default(), opts...)
}

func TestRunner_RecordsAndReplays(t *testing.T) {
	store := NewMemoryStore()
	calls := 0

	fn := func(context.Context) (map[string]any, error) {
		calls++

		return map[string]any{"status": 200}, nil
	}

	first, err := Do(t.Context(), newTestRunner(store), "http-request/n1", fn)
	require.NoError(t, err)

	replayed, err := Do(t.Context(), newTestRunner(store), "http-request/n1", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, replayed)
	assert.InDelta(t, 200, first["status"], 0, "results are decoded from their recorded JSON form")
	assert.Equal(t, []string{"http-request/n1"}, store.Steps("event-1"))
}

func TestRunner_StepsAreScopedByRun(t *testing.T) {
	store := NewMemoryStore()
	calls := 0

	fn := func(context.Context) (string, error) {
		calls++

		return "ok", nil
	}

	_, err := Do(t.Context(), NewRunner("event-1", store, slog.Default()), "s", fn)
	require.NoError(t, err)

	_, err = Do(t.Context(), NewRunner("event-2", store, slog.Default()), "s", fn)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestRunner_DefaultIsSingleAttempt(t *testing.T) {
	store := NewMemoryStore()
	calls := 0

	_, err := Do(t.Context(), newTestRunner(store), "flaky", func(context.Context) (string, error) {
		calls++

		return "", errors.New("connection reset")
	})

	require.EqualError(t, err, "connection reset")
	assert.Equal(t, 1, calls)
	assert.Empty(t, store.Steps("event-1"), "failed steps are not recorded")
}

func TestRunner_RetriesUpToMaxAttempts(t *testing.T) {
	store := NewMemoryStore()
	calls := 0

	result, err := Do(t.Context(), newTestRunner(store, WithMaxAttempts(3)), "flaky", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}

		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, calls)
}

func TestRunner_NonRetriableIsNotRetried(t *testing.T) {
	calls := 0

	_, err := Do(t.Context(), newTestRunner(NewMemoryStore(), WithMaxAttempts(5)), "bad", func(context.Context) (string, error) {
		calls++

		return "", protocol.NonRetriablef("bad config")
	})

	require.Error(t, err)
	assert.True(t, protocol.IsNonRetriable(err))
	assert.Equal(t, 1, calls)
}

func TestRunner_FailedStepRunsAgain(t *testing.T) {
	store := NewMemoryStore()
	calls := 0

	fn := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("first call fails")
		}

		return 7, nil
	}

	_, err := Do(t.Context(), newTestRunner(store), "s", fn)
	require.Error(t, err)

	result, err := Do(t.Context(), newTestRunner(store), "s", fn)
	require.NoError(t, err)
	assert.Equal(t, 7, result)
}

func TestRunner_EmptyName(t *testing.T) {
	_, err := newTestRunner(NewMemoryStore()).Run(t.Context(), "", func(context.Context) (any, error) {
		return nil, nil
	})

	require.ErrorIs(t, err, ErrEmptyStepName)
	assert.True(t, protocol.IsNonRetriable(err))
}

func TestRunner_UnserializableResult(t *testing.T) {
	_, err := newTestRunner(NewMemoryStore(), WithMaxAttempts(3)).Run(t.Context(), "chan", func(context.Context) (any, error) {
		return make(chan int), nil
	})

	require.Error(t, err)
	assert.True(t, protocol.IsNonRetriable(err))
}

func TestGenerate(t *testing.T) {
	store := NewMemoryStore()

	text, err := Generate(t.Context(), newTestRunner(store), "openai-generate-text/n1", func(context.Context) (string, error) {
		return "hello", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []string{"openai-generate-text/n1"}, store.Steps("event-1"))
}

func TestMemoryStore_KeepsFirstResult(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Save(t.Context(), "r", "s", []byte(`1`)))
	require.NoError(t, store.Save(t.Context(), "r", "s", []byte(`2`)))

	result, ok, err := store.Load(t.Context(), "r", "s")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `1`, string(result))

	_, ok, err = store.Load(t.Context(), "r", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
