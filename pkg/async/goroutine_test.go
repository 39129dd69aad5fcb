package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoserve/confgen/pkg/observability"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	assert.NotPanics(t, func() {
		SafeGo(context.Background(), 0, "boom", observability.NopLogger(), func(ctx context.Context) error {
			defer close(done)
			panic("boom")
		})
		<-done
	})
}

func TestSafeGo_Timeout(t *testing.T) {
	var deadline atomic.Bool
	done := make(chan struct{})
	SafeGo(context.Background(), 10*time.Millisecond, "slow", observability.NopLogger(), func(ctx context.Context) error {
		defer close(done)
		_, ok := ctx.Deadline()
		deadline.Store(ok)
		return nil
	})
	<-done
	assert.True(t, deadline.Load())
}

func TestSafeGo_NoTimeoutKeepsParentContext(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), 0, "long", observability.NopLogger(), func(ctx context.Context) error {
		defer close(done)
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return nil
	})
	<-done
}

func TestRecovered(t *testing.T) {
	require.NoError(t, Recovered(func() error { return nil }))

	sentinel := errors.New("nope")
	assert.ErrorIs(t, Recovered(func() error { return sentinel }), sentinel)

	err := Recovered(func() error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
