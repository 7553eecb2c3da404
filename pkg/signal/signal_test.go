package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForShutdownOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WaitForShutdown(ctx, time.Second, func(ctx context.Context) error {
		called = true
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWaitForShutdownPropagatesError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("close http server")
	err := WaitForShutdown(ctx, time.Second, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWaitForShutdownTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)
	err := WaitForShutdown(ctx, 20*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, ErrShutdownTimeout)
}

func TestWaitForShutdownNilFunc(t *testing.T) {
	assert.Error(t, WaitForShutdown(context.Background(), time.Second, nil))
}
