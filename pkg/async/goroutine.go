package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/geoserve/confgen/pkg/observability"
)

// SafeGo executes a function in a goroutine with panic recovery and
// optional timeout enforcement. A timeout of zero leaves the parent
// context's deadline in charge, which is what long-running generation
// tasks want.
//
// Use this instead of bare `go func()` so a panicking task cannot crash
// the server.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx := parentCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", taskName).
					WithField("stack", string(debug.Stack())).
					Errorf("panic in background task: %v", r)
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithField("task", taskName).WithError(err).Error("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, logger, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Recovered runs fn synchronously and converts a panic into an error.
// Task pipelines use it so a panic marks the task failed instead of
// killing the process.
func Recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
