package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the prometheus namespace of every hyperband metric.
const Namespace = "hyperband"

// Time observes the seconds elapsed since it was called. Use it with defer.
func Time(o prometheus.Observer) func() {
	start := time.Now()
	return func() {
		o.Observe(time.Since(start).Seconds())
	}
}

// ErrCount increments c if *err is non-nil when the returned func runs. Use it with defer.
func ErrCount(c prometheus.Counter, err *error) func() {
	return func() {
		if *err != nil {
			c.Inc()
		}
	}
}
