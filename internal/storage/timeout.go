package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/metrics"
	"go.uber.org/zap"
)

// Timed bounds every call on the wrapped store by a fixed timeout and records
// its latency. A call that runs past the deadline returns ErrTimeout.
type Timed struct {
	inner   BlobStore
	timeout time.Duration
	log     *zap.Logger
}

func NewTimed(inner BlobStore, timeout time.Duration, log *zap.Logger) *Timed {
	if log == nil {
		log = zap.NewNop()
	}
	return &Timed{inner: inner, timeout: timeout, log: log}
}

// WithTimeout creates a context with timeout whose cancel func logs a warning
// if the deadline was hit.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}

func (t *Timed) run(parent context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := WithTimeout(parent, t.timeout, t.log, "blob "+op)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	metrics.BlobDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func (t *Timed) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return t.run(ctx, "put", func(ctx context.Context) error {
		return t.inner.Put(ctx, key, data, contentType)
	})
}

func (t *Timed) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := t.run(ctx, "get", func(ctx context.Context) error {
		var err error
		out, err = t.inner.Get(ctx, key)
		return err
	})
	return out, err
}

func (t *Timed) Stat(ctx context.Context, key string) (int64, error) {
	var size int64
	err := t.run(ctx, "stat", func(ctx context.Context) error {
		var err error
		size, err = t.inner.Stat(ctx, key)
		return err
	})
	return size, err
}

func (t *Timed) Delete(ctx context.Context, key string) error {
	return t.run(ctx, "delete", func(ctx context.Context) error {
		return t.inner.Delete(ctx, key)
	})
}

func (t *Timed) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	var out string
	err := t.run(ctx, "presign", func(ctx context.Context) error {
		var err error
		out, err = t.inner.PresignedURL(ctx, key, expires)
		return err
	})
	return out, err
}
