// Package metrics exposes cache statistics in the Prometheus format.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/rshade/scancache/internal/engine/cache"
)

const (
	namespace = "scancache"
	subsystem = "cache"
)

// StatsSource is satisfied by *cache.Store.
type StatsSource interface {
	Stats() cache.Stats
	Size() cache.Size
}

// CacheCollector reads a StatsSource on every scrape. It holds no state of
// its own, so values always match the source at collection time.
type CacheCollector struct {
	source StatsSource

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	writes     *prometheus.Desc
	evictions  *prometheus.Desc
	hitRate    *prometheus.Desc
	avgLatency *prometheus.Desc
	entries    *prometheus.Desc
	files      *prometheus.Desc
	diskBytes  *prometheus.Desc
}

var _ prometheus.Collector = (*CacheCollector)(nil)

// NewCacheCollector returns a collector for source.
func NewCacheCollector(source StatsSource) *CacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &CacheCollector{
		source:     source,
		hits:       desc("hits_total", "Cache lookups that returned a fresh entry."),
		misses:     desc("misses_total", "Cache lookups that found no fresh entry."),
		writes:     desc("writes_total", "Entries written to the cache."),
		evictions:  desc("evictions_total", "Entries evicted to respect the size cap."),
		hitRate:    desc("hit_rate_percent", "Rounded percentage of lookups that hit."),
		avgLatency: desc("avg_retrieval_ms", "Mean lookup latency in milliseconds."),
		entries:    desc("entries", "Entries held in memory."),
		files:      desc("files", "Entry files persisted on disk."),
		diskBytes:  desc("disk_bytes", "Total size of persisted entry files."),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.writes
	ch <- c.evictions
	ch <- c.hitRate
	ch <- c.avgLatency
	ch <- c.entries
	ch <- c.files
	ch <- c.diskBytes
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	size := c.source.Size()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.writes, prometheus.CounterValue, float64(stats.Writes))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(stats.Evictions))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, float64(stats.HitRate))
	ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, stats.AvgRetrievalTime)
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(size.Memory))
	ch <- prometheus.MustNewConstMetric(c.files, prometheus.GaugeValue, float64(size.Files))
	ch <- prometheus.MustNewConstMetric(c.diskBytes, prometheus.GaugeValue, float64(size.Disk))
}

// NewRegistry returns a registry holding only collectors, without the Go
// runtime and process collectors of the default registry.
func NewRegistry(collectors ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return reg, nil
}

// WriteText gathers g and writes it in the Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
