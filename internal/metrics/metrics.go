// Package metrics counts bus traffic and exports it as a node_exporter
// textfile.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
)

// Collector holds the tool's metrics on a private registry, so several
// instances can coexist in one process.
type Collector struct {
	Registry *prometheus.Registry

	TransfersTotal prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
	Duration       prometheus.Histogram
}

func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		TransfersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pi7c9xg404_i2c_transfers_total",
				Help: "Number of combined I2C transfers issued to the switch",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pi7c9xg404_i2c_transfer_errors_total",
				Help: "Number of failed I2C transfers by cause",
			},
			[]string{"cause"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pi7c9xg404_i2c_transfer_duration_seconds",
				Help:    "Latency of combined I2C transfers",
				Buckets: prometheus.ExponentialBuckets(50e-6, 2, 12),
			},
		),
	}
	c.Registry.MustRegister(c.TransfersTotal)
	c.Registry.MustRegister(c.ErrorsTotal)
	c.Registry.MustRegister(c.Duration)
	return c
}

// Instrument wraps bus so every transfer is counted and timed.
func (c *Collector) Instrument(bus i2c.Bus) i2c.Bus {
	return &instrumentedBus{Bus: bus, c: c}
}

// WriteTextfile writes every gathered metric to path in the text exposition
// format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.Registry)
}

type instrumentedBus struct {
	i2c.Bus
	c *Collector
}

func (b *instrumentedBus) Transfer(msgs ...i2c.Message) error {
	start := time.Now()
	err := b.Bus.Transfer(msgs...)
	b.c.Duration.Observe(time.Since(start).Seconds())
	b.c.TransfersTotal.Inc()
	if err != nil {
		b.c.ErrorsTotal.WithLabelValues(cause(err)).Inc()
	}
	return err
}

func cause(err error) string {
	switch {
	case errors.Is(err, i2c.ErrNACK):
		return "nack"
	case errors.Is(err, i2c.ErrTimeout):
		return "timeout"
	case errors.Is(err, i2c.ErrClosed):
		return "closed"
	}
	return "other"
}
