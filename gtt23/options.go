package gtt23

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBatchSize is the number of records decoded per bulk read while
// iterating.
const DefaultBatchSize = 256

// Option configures Open.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	batchSize  int
	strict     bool
}

func defaultOptions() *options {
	return &options{
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
	}
}

// WithLogger sets the logger used for open, index and per-record events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer registers the dataset metrics with reg. Without it the
// metrics are still collected but not registered anywhere.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithBatchSize sets how many records iterators decode per bulk read.
// Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithStrictTimestamps makes decreasing timestamps a CorruptRecordError
// instead of a logged and counted anomaly.
func WithStrictTimestamps() Option {
	return func(o *options) {
		o.strict = true
	}
}
