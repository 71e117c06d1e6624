package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// slowOperation is the duration above which a completed call is logged as slow
const slowOperation = time.Second

// Dispatcher makes every adapter call deadline-bound and maps failures into the domain taxonomy.
//
// The adapter is shared, never locked: callers run concurrently and the adapter serializes
// whatever native sequencing it needs. When the deadline passes, only the wait is abandoned;
// the native call keeps running in its goroutine until it returns on its own.
type Dispatcher struct {
	logger  *zap.Logger
	backend domain.Backend
	timeout time.Duration

	mu sync.RWMutex
	// Performance tracking
	lastOperationDuration time.Duration
	maxOperationDuration  time.Duration
}

// New creates a dispatcher using timeout as the default deadline
func New(logger *zap.Logger, backend domain.Backend, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		logger:  logger.Named("dispatch"),
		backend: backend,
		timeout: timeout,
	}
}

// Timeout returns the default per-call deadline
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Backend returns the shared adapter
func (d *Dispatcher) Backend() domain.Backend {
	return d.backend
}

// Do runs op within the default deadline
func (d *Dispatcher) Do(ctx context.Context, name string, op func(context.Context, domain.Backend) error) error {
	return d.DoTimeout(ctx, name, d.timeout, op)
}

// DoTimeout runs op within the given deadline
func (d *Dispatcher) DoTimeout(ctx context.Context, name string, timeout time.Duration, op func(context.Context, domain.Backend) error) error {
	_, err := Call(ctx, d, name, timeout, func(ctx context.Context, b domain.Backend) (struct{}, error) {
		return struct{}{}, op(ctx, b)
	})
	return err
}

// Query runs a value-returning op within the default deadline
func Query[T any](ctx context.Context, d *Dispatcher, name string, op func(context.Context, domain.Backend) (T, error)) (T, error) {
	return Call(ctx, d, name, d.timeout, op)
}

type result[T any] struct {
	val T
	err error
}

// Call runs op in its own goroutine and waits at most timeout for it.
// A missed deadline yields a Timeout error carrying timeout; cancellation of ctx by the
// caller is returned as ctx.Err().
func Call[T any](ctx context.Context, d *Dispatcher, name string, timeout time.Duration, op func(context.Context, domain.Backend) (T, error)) (T, error) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned op can still complete and exit
	done := make(chan result[T], 1)
	start := time.Now()

	go func() {
		v, err := op(opCtx, d.backend)
		d.record(name, time.Since(start))
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return zero, d.translate(ctx, timeout, r.err)
		}
		return r.val, nil
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		d.logger.Warn("Operation deadline exceeded, abandoning wait",
			zap.String("op", name),
			zap.Duration("timeout", timeout))
		return zero, domain.Timeout(timeout)
	}
}

// translate maps op errors into the taxonomy; domain errors pass through untouched
func (d *Dispatcher) translate(ctx context.Context, timeout time.Duration, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return domain.Timeout(timeout)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return &domain.Error{
		Kind:     domain.KindBackend,
		Platform: d.backend.Platform(),
		Message:  err.Error(),
		Err:      err,
	}
}

func (d *Dispatcher) record(name string, duration time.Duration) {
	d.mu.Lock()
	d.lastOperationDuration = duration
	if duration > d.maxOperationDuration {
		d.maxOperationDuration = duration
	}
	d.mu.Unlock()

	if duration > slowOperation {
		d.logger.Warn("Slow backend operation", zap.String("op", name), zap.Duration("took", duration))
	}
}

// Stats returns the duration of the last completed operation and the slowest one seen
func (d *Dispatcher) Stats() (lastDuration, maxDuration time.Duration) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastOperationDuration, d.maxOperationDuration
}
