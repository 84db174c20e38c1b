package gtt23

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the decode and index counters of one Dataset.
type metrics struct {
	decoded      prometheus.Counter
	corrupt      prometheus.Counter
	nonMonotonic prometheus.Counter
	indexBuilds  *prometheus.CounterVec
}

// newMetrics creates the counters and registers them with reg when it is
// not nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		decoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gtt23",
			Subsystem: "records",
			Name:      "decoded_total",
			Help:      "Total number of trace records decoded successfully.",
		}),
		corrupt: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gtt23",
			Subsystem: "records",
			Name:      "corrupt_total",
			Help:      "Total number of trace records that failed validation.",
		}),
		nonMonotonic: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gtt23",
			Subsystem: "records",
			Name:      "nonmonotonic_total",
			Help:      "Total number of decoded records with decreasing timestamps.",
		}),
		indexBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gtt23",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total number of field indexes built, by field.",
		}, []string{"field"}),
	}
}
