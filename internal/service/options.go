package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"grapevpn/keyhub/internal/keygen"
	"grapevpn/keyhub/internal/metrics"
)

// KeyGenerator provisions client keypairs. It never fails; the returned
// Keypair records which path produced it.
type KeyGenerator interface {
	Generate(ctx context.Context) keygen.Keypair
}

type options struct {
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*options)

// WithClock overrides the time source. Times are normalized to UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clock() time.Time {
	return o.now().UTC()
}
