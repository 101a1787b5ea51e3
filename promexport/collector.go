// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package promexport exports the counts of an event set as Prometheus
// metrics.
//
// Event sets are bound to the thread that opened them, so a Collector does
// not read counters when scraped. Instead, the goroutine that owns the event
// set calls [Collector.Update] periodically and scrapes see the latest
// values.
package promexport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Source is a set of running counters. [*papi.EventSet] is a Source.
type Source interface {
	Names() []string
	Read(values []int64) error
}

// Collector is a prometheus.Collector for the counts of a Source.
type Collector struct {
	src    Source
	names  []string
	values []int64

	mu     sync.Mutex
	counts *prometheus.GaugeVec
	errors prometheus.Counter
}

type options struct {
	namespace   string
	constLabels prometheus.Labels
}

// An Option configures a Collector.
type Option func(*options)

// WithNamespace sets the metric namespace. The default is "papi".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithConstLabels adds labels to every exported metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) { o.constLabels = labels }
}

// NewCollector returns a Collector for src. Metrics are zero until the first
// call to Update.
func NewCollector(src Source, opts ...Option) *Collector {
	o := options{namespace: "papi"}
	for _, opt := range opts {
		opt(&o)
	}

	names := src.Names()
	c := &Collector{
		src:    src,
		names:  names,
		values: make([]int64, len(names)),
		counts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   o.namespace,
			Name:        "event_count",
			Help:        "Current count of a performance event.",
			ConstLabels: o.constLabels,
		}, []string{"event"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "read_errors_total",
			Help:        "Number of failed counter reads.",
			ConstLabels: o.constLabels,
		}),
	}
	for _, name := range names {
		c.counts.WithLabelValues(name)
	}
	return c
}

// Update reads the source and records its counts. It must be called from
// the goroutine that owns the source.
func (c *Collector) Update() error {
	if err := c.src.Read(c.values); err != nil {
		c.errors.Inc()
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, name := range c.names {
		c.counts.WithLabelValues(name).Set(float64(c.values[i]))
	}
	return nil
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.counts.Describe(ch)
	c.errors.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts.Collect(ch)
	c.errors.Collect(ch)
}
