package worker

import (
	"context"
	"sync"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

// Channel is a FIFO queue whose two ends can be closed independently. Unlike
// a bare Go channel, a sender learns that the receiver has gone away (and
// vice versa) instead of blocking forever or panicking.
//
// A zero Channel is not usable; build one with Bounded or Unbounded.
type Channel[T any] struct {
	mu       sync.Mutex
	buf      []T
	capacity int // 0 means unbounded

	notEmpty chan struct{}
	notFull  chan struct{}

	sendGone chan struct{}
	recvGone chan struct{}
	sendOnce sync.Once
	recvOnce sync.Once
}

// Bounded returns a channel holding at most n items. Send blocks while it is
// full. n below 1 is treated as 1.
func Bounded[T any](n int) *Channel[T] {
	if n < 1 {
		n = 1
	}
	return newChannel[T](n)
}

// Unbounded returns a channel whose Send never blocks.
func Unbounded[T any]() *Channel[T] {
	return newChannel[T](0)
}

func newChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		sendGone: make(chan struct{}),
		recvGone: make(chan struct{}),
	}
}

// Cap returns the capacity, or 0 for an unbounded channel.
func (c *Channel[T]) Cap() int { return c.capacity }

// Len returns the number of queued items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// TrySend enqueues v without blocking. It fails with ErrQueueFull when the
// channel is at capacity and ErrSendDisconnected when either end is closed.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.Lock()
	if closed(c.recvGone) || closed(c.sendGone) {
		c.mu.Unlock()
		return domain.ErrSendDisconnected
	}
	if c.capacity > 0 && len(c.buf) >= c.capacity {
		c.mu.Unlock()
		return domain.ErrQueueFull
	}
	c.buf = append(c.buf, v)
	spare := c.capacity == 0 || len(c.buf) < c.capacity
	c.mu.Unlock()

	signal(c.notEmpty)
	if spare {
		signal(c.notFull)
	}
	return nil
}

// Send enqueues v, blocking while the channel is full. It returns
// ErrSendDisconnected if the receiver goes away first.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	for {
		err := c.TrySend(v)
		if err != domain.ErrQueueFull {
			return err
		}
		select {
		case <-c.notFull:
		case <-c.recvGone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryRecv dequeues one item without blocking. ok is false when nothing is
// queued; err is ErrRecvDisconnected once the sender is closed and the queue
// is drained.
func (c *Channel[T]) TryRecv() (v T, ok bool, err error) {
	c.mu.Lock()
	if closed(c.recvGone) {
		c.mu.Unlock()
		return v, false, domain.ErrRecvDisconnected
	}
	if len(c.buf) == 0 {
		gone := closed(c.sendGone)
		c.mu.Unlock()
		if gone {
			return v, false, domain.ErrRecvDisconnected
		}
		return v, false, nil
	}
	v = c.buf[0]
	var zero T
	c.buf[0] = zero
	c.buf = c.buf[1:]
	more := len(c.buf) > 0
	c.mu.Unlock()

	signal(c.notFull)
	if more {
		signal(c.notEmpty)
	}
	return v, true, nil
}

// Recv blocks until an item arrives, the sender is closed with nothing left
// queued, or ctx is done.
func (c *Channel[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, ok, err := c.TryRecv()
		if ok || err != nil {
			return v, err
		}
		select {
		case <-c.notEmpty:
		case <-c.sendGone:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Ready fires when an item may be available. Wake-ups can be spurious, so
// follow it with TryRecv.
func (c *Channel[T]) Ready() <-chan struct{} { return c.notEmpty }

// SenderGone is closed once CloseSender has been called.
func (c *Channel[T]) SenderGone() <-chan struct{} { return c.sendGone }

// ReceiverGone is closed once CloseReceiver has been called.
func (c *Channel[T]) ReceiverGone() <-chan struct{} { return c.recvGone }

// CloseSender marks the sending side as gone. Queued items stay receivable.
func (c *Channel[T]) CloseSender() {
	c.sendOnce.Do(func() {
		c.mu.Lock()
		close(c.sendGone)
		c.mu.Unlock()
	})
}

// CloseReceiver marks the receiving side as gone and returns whatever was
// still queued.
func (c *Channel[T]) CloseReceiver() []T {
	var left []T
	c.recvOnce.Do(func() {
		c.mu.Lock()
		close(c.recvGone)
		left = c.buf
		c.buf = nil
		c.mu.Unlock()
	})
	return left
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
