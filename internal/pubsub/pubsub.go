// Package pubsub is a minimal in-process publish/subscribe fabric.
//
// Channels are named broadcast endpoints held in a process-wide registry, so
// GetChannel("foo") called twice yields the same channel. Publishing never
// blocks: every subscribed consumer receives into its own unbounded FIFO
// queue. Nothing is persisted and nothing survives a restart; the fabric only
// coordinates goroutines inside one process.
package pubsub

import (
	"context"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Channel)
)

// GetChannel returns the channel with the given name, creating it on first
// use. Channels are never removed from the registry.
func GetChannel(name string) *Channel {
	registryMu.RLock()
	ch, ok := registry[name]
	registryMu.RUnlock()
	if ok {
		return ch
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if ch, ok = registry[name]; ok {
		return ch
	}
	ch = &Channel{name: name, consumers: make(map[*Consumer]struct{})}
	registry[name] = ch
	return ch
}

// Channel is a named broadcast endpoint. All methods are safe for concurrent
// use.
type Channel struct {
	name string

	mu        sync.Mutex
	consumers map[*Consumer]struct{}
}

// Name returns the registry name of the channel.
func (ch *Channel) Name() string { return ch.name }

// Publish delivers msg to every currently subscribed consumer. Delivery is
// non-blocking for the publisher; each consumer queues the message for its
// own run loop.
func (ch *Channel) Publish(msg int64) {
	ch.mu.Lock()
	subscribed := make([]*Consumer, 0, len(ch.consumers))
	for c := range ch.consumers {
		subscribed = append(subscribed, c)
	}
	ch.mu.Unlock()

	for _, c := range subscribed {
		c.receive(msg)
	}
}

func (ch *Channel) add(c *Consumer) {
	ch.mu.Lock()
	ch.consumers[c] = struct{}{}
	ch.mu.Unlock()
}

func (ch *Channel) remove(c *Consumer) {
	ch.mu.Lock()
	delete(ch.consumers, c)
	ch.mu.Unlock()
}

// Handler processes a single message taken off a consumer's queue.
type Handler func(ctx context.Context, msg int64) error

// Consumer owns an unbounded FIFO queue and a set of channel subscriptions.
// Run drains the queue serially; BackgroundConsumer layers bounded
// parallelism on top.
type Consumer struct {
	handler Handler

	mu       sync.Mutex
	queue    []int64
	channels map[*Channel]struct{}
	done     bool

	notify chan struct{}
}

// NewConsumer creates a consumer that invokes handler for each received
// message.
func NewConsumer(handler Handler) *Consumer {
	return &Consumer{
		handler:  handler,
		channels: make(map[*Channel]struct{}),
		notify:   make(chan struct{}, 1),
	}
}

// Subscribe registers the consumer on the given channels.
func (c *Consumer) Subscribe(channels ...*Channel) {
	for _, ch := range channels {
		ch.add(c)
		c.mu.Lock()
		c.channels[ch] = struct{}{}
		c.mu.Unlock()
	}
}

// Unsubscribe removes the consumer from the given channels, or from all of
// its subscriptions when called with no arguments.
func (c *Consumer) Unsubscribe(channels ...*Channel) {
	if len(channels) == 0 {
		c.mu.Lock()
		channels = make([]*Channel, 0, len(c.channels))
		for ch := range c.channels {
			channels = append(channels, ch)
		}
		c.mu.Unlock()
	}

	for _, ch := range channels {
		ch.remove(c)
		c.mu.Lock()
		delete(c.channels, ch)
		c.mu.Unlock()
	}
}

// MarkDone asks the run loop to stop once the current message has been
// handled. Intended to be called from inside the handler of one-shot
// consumers.
func (c *Consumer) MarkDone() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
}

func (c *Consumer) isDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// receive appends msg to the queue and nudges a blocked run loop.
func (c *Consumer) receive(msg int64) {
	c.mu.Lock()
	c.queue = append(c.queue, msg)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// next blocks until a message is available or ctx is cancelled.
func (c *Consumer) next(ctx context.Context) (int64, error) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			msg := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return msg, nil
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Run processes messages serially until MarkDone is called or ctx is
// cancelled. The consumer is unsubscribed from all channels before Run
// returns.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.Stop()

	for !c.isDone() {
		msg, err := c.next(ctx)
		if err != nil {
			return err
		}
		if err := c.handler(ctx, msg); err != nil {
			return err
		}
	}

	return nil
}

// Stop unsubscribes the consumer from every channel and discards anything
// still queued.
func (c *Consumer) Stop() {
	c.Unsubscribe()

	c.mu.Lock()
	c.queue = nil
	c.mu.Unlock()
}
