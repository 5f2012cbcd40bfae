// Package metrics exports cache counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"sampledlru/internal/cache"
)

const (
	metricsNamespace = "sampledlru"
	cacheSubsystem   = "cache"
)

// Source is anything that can report cache counters. Stats, Len and Cap are
// called from the scrape goroutine, so they must be safe for concurrent use.
// cache.Locked qualifies; a bare cache.Cache does not.
type Source interface {
	Stats() cache.Stats
	Len() int
	Cap() int
}

// Collector reads a Source on every scrape. Counters come straight from the
// cache, so no state is duplicated here.
type Collector struct {
	src Source

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	inserts   *prometheus.Desc
	evictions *prometheus.Desc
	entries   *prometheus.Desc
	capacity  *prometheus.Desc
}

// NewCollector returns a collector whose series carry policy as a constant
// label, so several caches can share one registry.
func NewCollector(policy string, src Source) *Collector {
	labels := prometheus.Labels{"policy": policy}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, cacheSubsystem, name),
			help, nil, labels,
		)
	}
	return &Collector{
		src:       src,
		hits:      desc("hits_total", "Lookups that found a resident entry"),
		misses:    desc("misses_total", "Lookups that found nothing"),
		inserts:   desc("inserts_total", "Payloads newly added to the cache"),
		evictions: desc("evictions_total", "Entries dropped to stay within capacity"),
		entries:   desc("entries", "Resident entries"),
		capacity:  desc("capacity", "Maximum resident entries"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.inserts
	ch <- c.evictions
	ch <- c.entries
	ch <- c.capacity
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.inserts, prometheus.CounterValue, float64(s.Inserts))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(c.src.Len()))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(c.src.Cap()))
}

var _ prometheus.Collector = (*Collector)(nil)

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func HitRatio(s cache.Stats) float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
