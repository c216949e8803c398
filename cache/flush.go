package cache

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/memokit/observe"
)

// Flusher is a cache holding state that must be persisted before exit.
// LazyPersistentCache and DiskBackedCache implement it.
type Flusher interface {
	Close(ctx context.Context) error
}

var notifyContext = signal.NotifyContext

// FlushAll closes every flusher and joins their errors.
func FlushAll(ctx context.Context, flushers ...Flusher) error {
	var errs []error
	for _, f := range flushers {
		if err := f.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FlushOnSignal flushes once, on SIGINT, SIGTERM or when parent is done,
// whichever happens first. The returned context is canceled at that point so
// the program can wind down. The returned stop func flushes if that has not
// happened yet and reports the flush error; call it before exiting.
//
//	ctx, stop := cache.FlushOnSignal(ctx, logger, rates, users)
//	defer stop()
func FlushOnSignal(parent context.Context, logger observe.Logger, flushers ...Flusher) (context.Context, func() error) {
	if logger == nil {
		logger = observe.NopLogger()
	}
	ctx, cancel := notifyContext(parent, os.Interrupt, syscall.SIGTERM)

	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		// Restore default signal handling so a second interrupt can end a
		// flush that hangs.
		cancel()
		err = FlushAll(context.WithoutCancel(ctx), flushers...)
		if err != nil {
			logger.Error(ctx, "flush at exit failed", observe.Field{Key: "error", Value: err.Error()})
			return
		}
		logger.Debug(ctx, "flushed at exit", observe.Field{Key: "caches", Value: len(flushers)})
	}()

	return ctx, func() error {
		cancel()
		<-done
		return err
	}
}
