package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/abcache/internal/types"
)

type statsCollector struct {
	stats    func() types.CacheStats
	size     *prometheus.Desc
	capacity *prometheus.Desc
	enabled  *prometheus.Desc
}

var _ prometheus.Collector = &statsCollector{}

// NewStatsCollector exposes cache occupancy read from stats at scrape time.
func NewStatsCollector(namespace string, stats func() types.CacheStats) prometheus.Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, subsystem, n)
	}
	return &statsCollector{
		stats:    stats,
		size:     prometheus.NewDesc(name("size"), "Number of experiment sets resident in the cache.", nil, nil),
		capacity: prometheus.NewDesc(name("capacity"), "Maximum number of resident experiment sets.", nil, nil),
		enabled:  prometheus.NewDesc(name("enabled"), "1 when the cached path is active, 0 on the direct path.", nil, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.capacity
	ch <- c.enabled
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	enabled := 0.0
	if s.Enabled {
		enabled = 1
	}
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.Size))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, enabled)
}
