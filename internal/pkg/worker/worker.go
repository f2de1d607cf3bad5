// Package worker runs a stateful request handler on its own OS thread. The
// worker reads typed requests from a Channel, drains whatever is queued into
// one batch per wake-up, and stops through a ShutdownHandle that waits for
// the thread to acknowledge and exit.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/pkg/metrics"
)

// Handler processes one batch of requests. A returned error is fatal to the
// worker: it drains and exits.
type Handler[T any] interface {
	HandleRequests(ctx context.Context, batch []T) error
}

// PreStarter is implemented by handlers that need setup on the worker thread
// before the first batch. An error stops the worker.
type PreStarter interface {
	PreStart(ctx context.Context) error
}

// PreShutdowner is implemented by handlers that release resources, such as
// closing their response channel, when the worker stops.
type PreShutdowner interface {
	PreShutdown()
}

// ShutdownKind records why a worker stopped.
type ShutdownKind int

const (
	// ShutdownRequested: ShutdownHandle.Shutdown was called.
	ShutdownRequested ShutdownKind = iota
	// ShutdownRequestChannelDisconnected: the handle was released without
	// asking for a shutdown.
	ShutdownRequestChannelDisconnected
	// ChannelDisconnected: every request sender is gone.
	ChannelDisconnected
	// HandlerFailed: PreStart or HandleRequests returned an error.
	HandlerFailed
	// ContextDone: the worker context was canceled.
	ContextDone
)

func (k ShutdownKind) String() string {
	switch k {
	case ShutdownRequested:
		return "requested"
	case ShutdownRequestChannelDisconnected:
		return "shutdown request channel disconnected"
	case ChannelDisconnected:
		return "request channel disconnected"
	case HandlerFailed:
		return "handler failed"
	case ContextDone:
		return "context done"
	default:
		return "unknown"
	}
}

// ShutdownHandle is the only way to stop a worker and wait for it.
type ShutdownHandle struct {
	name     string
	reqs     *Channel[struct{}]
	acks     *Channel[struct{}]
	done     chan struct{}
	consumed atomic.Bool

	mu     sync.Mutex
	err    error
	reason ShutdownKind
}

func newShutdownHandle(name string) *ShutdownHandle {
	return &ShutdownHandle{
		name: name,
		reqs: Bounded[struct{}](1),
		acks: Bounded[struct{}](1),
		done: make(chan struct{}),
	}
}

// Name returns the worker name used in logs and metrics.
func (h *ShutdownHandle) Name() string { return h.name }

// Shutdown asks the worker to stop, waits for the acknowledgment, then waits
// for the thread to exit. The worker finishes its current batch first.
//
// Shutdown may be called once. Later calls, and calls after the worker has
// already exited on its own, return a disconnected error.
func (h *ShutdownHandle) Shutdown() error {
	if !h.consumed.CompareAndSwap(false, true) {
		return domain.ErrSendDisconnected
	}
	defer h.reqs.CloseSender()

	ctx := context.Background()
	if err := h.reqs.Send(ctx, struct{}{}); err != nil {
		<-h.done
		return err
	}
	if _, err := h.acks.Recv(ctx); err != nil {
		<-h.done
		return err
	}
	<-h.done
	return nil
}

// Release gives up the handle without waiting. The worker notices on its
// next iteration and stops.
func (h *ShutdownHandle) Release() {
	if h.consumed.CompareAndSwap(false, true) {
		h.reqs.CloseSender()
	}
}

// Done is closed once the worker thread has exited.
func (h *ShutdownHandle) Done() <-chan struct{} { return h.done }

// Err returns the error that stopped the worker, if PreStart or a batch
// failed. It is nil while the worker runs.
func (h *ShutdownHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Reason returns why the worker stopped. Only meaningful after Done.
func (h *ShutdownHandle) Reason() ShutdownKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

func (h *ShutdownHandle) finish(kind ShutdownKind, err error) {
	h.mu.Lock()
	h.reason = kind
	h.err = err
	h.mu.Unlock()
}

// Spawn starts a worker thread reading from inbox. The worker stops when the
// handle asks it to, when every inbox sender is gone, when the handler fails
// or when ctx is canceled.
func Spawn[T any](ctx context.Context, name string, inbox *Channel[T], h Handler[T]) *ShutdownHandle {
	handle := newShutdownHandle(name)
	w := &runner[T]{
		name:   name,
		inbox:  inbox,
		h:      h,
		handle: handle,
		log:    slog.With("worker", name),
	}
	go w.run(ctx)
	return handle
}

type runner[T any] struct {
	name   string
	inbox  *Channel[T]
	h      Handler[T]
	handle *ShutdownHandle
	log    *slog.Logger
}

func (w *runner[T]) run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.handle.done)

	w.log.Debug("starting worker")

	var (
		kind ShutdownKind
		err  error
	)
	if ps, ok := w.h.(PreStarter); ok {
		if err = ps.PreStart(ctx); err != nil {
			err = domain.NewError(domain.KindHandler, fmt.Sprintf("%s: pre-start", w.name), err)
			kind = HandlerFailed
		}
	}
	if err == nil {
		kind, err = w.loop(ctx)
	}
	if err != nil {
		w.log.Error("worker failed", "error", err)
	}

	w.drain(kind, err)
}

func (w *runner[T]) loop(ctx context.Context) (ShutdownKind, error) {
	reqs := w.handle.reqs
	for {
		// A pending shutdown wins over queued work.
		if kind, stop := w.checkShutdown(); stop {
			return kind, nil
		}

		select {
		case <-ctx.Done():
			return ContextDone, nil
		case <-reqs.Ready():
			if kind, stop := w.checkShutdown(); stop {
				return kind, nil
			}
		case <-reqs.SenderGone():
			if kind, stop := w.checkShutdown(); stop {
				return kind, nil
			}
		case <-w.inbox.Ready():
			if err := w.handleBatch(ctx); err != nil {
				return HandlerFailed, err
			}
		case <-w.inbox.SenderGone():
			if err := w.handleBatch(ctx); err != nil {
				return HandlerFailed, err
			}
			if _, _, err := w.inbox.TryRecv(); err != nil {
				return ChannelDisconnected, nil
			}
		}
	}
}

func (w *runner[T]) checkShutdown() (ShutdownKind, bool) {
	_, ok, err := w.handle.reqs.TryRecv()
	switch {
	case ok:
		return ShutdownRequested, true
	case err != nil:
		return ShutdownRequestChannelDisconnected, true
	}
	return 0, false
}

// handleBatch drains every queued request and hands them to the handler in
// one call.
func (w *runner[T]) handleBatch(ctx context.Context) error {
	var batch []T
	for {
		v, ok, _ := w.inbox.TryRecv()
		if !ok {
			break
		}
		batch = append(batch, v)
	}
	if len(batch) == 0 {
		return nil
	}

	metrics.WorkerBatches.WithLabelValues(w.name).Inc()
	metrics.WorkerBatchSize.WithLabelValues(w.name).Observe(float64(len(batch)))

	if err := w.h.HandleRequests(ctx, batch); err != nil {
		return domain.NewError(domain.KindHandler, fmt.Sprintf("%s: handle requests", w.name), err)
	}
	return nil
}

func (w *runner[T]) drain(kind ShutdownKind, err error) {
	w.log.Debug("shutting down worker", "reason", kind.String())

	if left := w.inbox.CloseReceiver(); len(left) > 0 {
		w.log.Warn("discarding queued requests", "count", len(left))
	}
	if ps, ok := w.h.(PreShutdowner); ok {
		ps.PreShutdown()
	}

	w.handle.finish(kind, err)
	w.handle.reqs.CloseReceiver()
	if kind == ShutdownRequested {
		_ = w.handle.acks.TrySend(struct{}{})
	}
	w.handle.acks.CloseSender()

	metrics.WorkerShutdowns.WithLabelValues(w.name, kind.String()).Inc()
}
