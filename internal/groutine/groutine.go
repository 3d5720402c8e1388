// Package groutine starts goroutines carrying a pprof "goroutine_name" label,
// so profiles and stack dumps of the peripheral show which loop is which.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go runs fn on a named goroutine and returns a channel closed when fn returns.
//
//	var runErr error
//	done := groutine.Go(ctx, "gatt-executor", func(ctx context.Context) {
//		runErr = srv.Run(ctx)
//	})
//	<-done
//
// If parent is nil, context.Background() is used.
func Go(parent context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parent == nil {
		parent = context.Background()
	}

	done := make(chan struct{})
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parent, labels, func(ctx context.Context) {
		defer close(done)
		fn(context.WithValue(ctx, goroutineNameKey, name))
	})
	return done
}

// Name retrieves the goroutine name from the context.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(goroutineNameKey).(string); ok {
		return s
	}
	return ""
}
