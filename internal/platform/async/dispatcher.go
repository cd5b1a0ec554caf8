package async

import (
	"context"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"

	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

var ErrClosed = crerr.New("dispatcher is closed")

// Task is one best-effort unit of work. Its error is logged, never retried.
type Task func(ctx context.Context) error

type Config struct {
	Workers int
	Timeout time.Duration
}

// Dispatcher runs fire-and-forget tasks on a bounded ants pool. Tasks outlive the request
// that submitted them but are bounded by Config.Timeout.
type Dispatcher struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  *logging.Logger

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

func NewDispatcher(cfg Config, logger *logging.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, crerr.Wrap(err, "create dispatcher pool")
	}

	return &Dispatcher{
		pool:    pool,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Dispatch schedules task and returns immediately. A saturated or closed dispatcher drops
// the task; the returned error is informational for the caller's logs.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, task Task, fields ...any) error {
	if task == nil {
		return crerr.Newf("task %q is nil", name)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WarnContext(ctx, "async task dropped", append([]any{"task", name, "reason", "closed"}, fields...)...)
		return ErrClosed
	}

	detached := context.WithoutCancel(ctx)
	d.inflight.Add(1)
	err := d.pool.Submit(func() {
		defer d.inflight.Done()
		d.run(detached, name, task, fields)
	})
	if err != nil {
		d.inflight.Done()
		d.logger.ErrorContext(ctx, "async task dropped", append([]any{"task", name, "error", err}, fields...)...)
		return crerr.Wrapf(err, "submit task %s", name)
	}

	return nil
}

func (d *Dispatcher) run(ctx context.Context, name string, task Task, fields []any) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := time.Now()
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = task(ctx)
	})

	if rec := catcher.Recovered(); rec != nil {
		d.logger.ErrorContext(ctx, "async task panicked", append([]any{"task", name, "panic", rec.Value, "stack", string(rec.Stack)}, fields...)...)
		return
	}
	if err != nil {
		d.logger.ErrorContext(ctx, "async task failed", append([]any{"task", name, "duration_ms", time.Since(started).Milliseconds(), "error", err}, fields...)...)
		return
	}
	d.logger.DebugContext(ctx, "async task done", append([]any{"task", name, "duration_ms", time.Since(started).Milliseconds()}, fields...)...)
}

// Close stops accepting tasks and waits for in-flight ones until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = crerr.Wrap(ctx.Err(), "wait for in-flight tasks")
	}

	if err := d.pool.ReleaseTimeout(time.Second); err != nil && waitErr == nil {
		return crerr.Wrap(err, "release dispatcher pool")
	}
	return waitErr
}
