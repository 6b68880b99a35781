package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEvent struct{ id int }

func (testEvent) Name() string { return "test.event" }

func TestBus_PublishCallsEveryListener(t *testing.T) {
	bus := New(zap.NewNop())
	var calls atomic.Int32
	var lastID atomic.Int32

	for i := 0; i < 3; i++ {
		bus.Subscribe("test.event", func(ctx context.Context, e Event) error {
			calls.Add(1)
			lastID.Store(int32(e.(testEvent).id))
			return nil
		})
	}
	bus.Subscribe("other.event", func(ctx context.Context, e Event) error {
		t.Error("слушатель другого события не должен вызываться")
		return nil
	})

	bus.Publish(context.Background(), testEvent{id: 5})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Wait(ctx))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(5), lastID.Load())
}

func TestBus_ListenerErrorsAndPanicsAreContained(t *testing.T) {
	bus := New(zap.NewNop())
	var ok atomic.Bool

	bus.Subscribe("test.event", func(ctx context.Context, e Event) error { return errors.New("boom") })
	bus.Subscribe("test.event", func(ctx context.Context, e Event) error { panic("oops") })
	bus.Subscribe("test.event", func(ctx context.Context, e Event) error { ok.Store(true); return nil })

	bus.Publish(context.Background(), testEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Wait(ctx))
	assert.True(t, ok.Load())
}

func TestBus_ListenerSurvivesCancelledRequestContext(t *testing.T) {
	bus := New(zap.NewNop())
	var ctxErr atomic.Value

	bus.Subscribe("test.event", func(ctx context.Context, e Event) error {
		ctxErr.Store(ctx.Err() == nil)
		return nil
	})

	reqCtx, cancelReq := context.WithCancel(context.Background())
	cancelReq()
	bus.Publish(reqCtx, testEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Wait(ctx))
	assert.Equal(t, true, ctxErr.Load())
}
