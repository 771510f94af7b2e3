package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BackgroundConsumer runs its handler in separate goroutines, at most
// `workers` of them at a time. Handler errors are logged and the message is
// dropped; the consumer keeps running. Not retried: the fabric is
// at-least-once within the process lifetime only.
type BackgroundConsumer struct {
	*Consumer

	sem    *semaphore.Weighted
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewBackgroundConsumer creates a consumer with a worker pool of the given
// capacity. A capacity below 1 is treated as 1.
func NewBackgroundConsumer(workers int, handler Handler, logger *slog.Logger) *BackgroundConsumer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundConsumer{
		Consumer: NewConsumer(handler),
		sem:      semaphore.NewWeighted(int64(workers)),
		logger:   logger,
	}
}

// Run dequeues messages and dispatches each to a handler goroutine, blocking
// on the semaphore when the pool is saturated. Run returns once ctx is
// cancelled; in-flight handlers are waited for.
func (b *BackgroundConsumer) Run(ctx context.Context) error {
	defer b.Stop()

	for !b.isDone() {
		msg, err := b.next(ctx)
		if err != nil {
			return err
		}

		if err := b.sem.Acquire(ctx, 1); err != nil {
			return err
		}

		b.wg.Add(1)
		go func(msg int64) {
			defer b.wg.Done()
			defer b.sem.Release(1)

			if err := b.handler(ctx, msg); err != nil {
				b.logger.Error("background handler failed",
					"msg", msg, "error", err)
			}
		}(msg)
	}

	return nil
}

// Stop unsubscribes, waits for in-flight handlers and discards the queue.
func (b *BackgroundConsumer) Stop() {
	b.Consumer.Stop()
	b.wg.Wait()
}
