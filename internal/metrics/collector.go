package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netresearch/dbpool/internal/pool"
)

// PoolCollector implements prometheus.Collector over a pool.Pool's
// Statistics snapshot, taken fresh on every scrape. Stats that are absent
// because a feature is disabled (expiration, retirement) are simply not
// emitted for that scrape rather than reported as zero.
type PoolCollector struct {
	pool *pool.Pool

	currentSize   *prometheus.Desc
	available     *prometheus.Desc
	outstanding   *prometheus.Desc
	minSize       *prometheus.Desc
	maxSize       *prometheus.Desc
	peakSize      *prometheus.Desc
	peakLeased    *prometheus.Desc
	avgLeased     *prometheus.Desc
	lifetimeLease *prometheus.Desc
	idleSeconds   *prometheus.Desc
	expired       *prometheus.Desc
	retired       *prometheus.Desc
	avgAcquire    *prometheus.Desc
	maxAcquire    *prometheus.Desc
	avgLease      *prometheus.Desc
	maxLease      *prometheus.Desc
}

// NewPoolCollector wraps p for Prometheus registration under the given
// namespace, e.g. "dbpool".
func NewPoolCollector(namespace string, p *pool.Pool) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}

	return &PoolCollector{
		pool:          p,
		currentSize:   desc("pool_size", "Number of sessions currently held, idle or leased."),
		available:     desc("available_connections", "Number of idle sessions ready to be leased."),
		outstanding:   desc("outstanding_leases", "Number of sessions currently leased out."),
		minSize:       desc("min_size", "Configured minimum pool size."),
		maxSize:       desc("max_size", "Configured maximum pool size."),
		peakSize:      desc("peak_pool_size", "Largest the pool has ever grown."),
		peakLeased:    desc("peak_leased_count", "Largest number of concurrently outstanding leases observed."),
		avgLeased:     desc("average_leased_count", "Average number of concurrently outstanding leases."),
		lifetimeLease: desc("lifetime_lease_count", "Total number of leases handed out since construction."),
		idleSeconds:   desc("idle_seconds", "Seconds since the last successful acquisition."),
		expired:       desc("expired_connections_total", "Sessions closed for aging out. Absent when age-based expiration is disabled."),
		retired:       desc("retired_connections_total", "Sessions closed for exceeding the retirement lease count. Absent when use-count retirement is disabled."),
		avgAcquire:    desc("average_acquire_seconds", "Average time spent waiting to acquire a session."),
		maxAcquire:    desc("greatest_acquire_seconds", "Greatest time spent waiting to acquire a session."),
		avgLease:      desc("average_lease_seconds", "Average duration of a completed lease."),
		maxLease:      desc("greatest_lease_seconds", "Greatest duration of a completed lease."),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.currentSize, c.available, c.outstanding, c.minSize, c.maxSize,
		c.peakSize, c.peakLeased, c.avgLeased, c.lifetimeLease, c.idleSeconds,
		c.expired, c.retired, c.avgAcquire, c.maxAcquire, c.avgLease, c.maxLease,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Statistics()

	ch <- prometheus.MustNewConstMetric(c.currentSize, prometheus.GaugeValue, float64(stats.CurrentPoolSize))
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(stats.AvailableConnections))
	ch <- prometheus.MustNewConstMetric(c.outstanding, prometheus.GaugeValue, float64(stats.OutstandingLeases))
	ch <- prometheus.MustNewConstMetric(c.minSize, prometheus.GaugeValue, float64(stats.MinimumSize))
	ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(stats.MaximumSize))
	ch <- prometheus.MustNewConstMetric(c.peakSize, prometheus.GaugeValue, float64(stats.GreatestPoolSize))
	ch <- prometheus.MustNewConstMetric(c.peakLeased, prometheus.GaugeValue, float64(stats.GreatestLeasedCount))
	ch <- prometheus.MustNewConstMetric(c.avgLeased, prometheus.GaugeValue, stats.AverageLeasedCount)
	ch <- prometheus.MustNewConstMetric(c.lifetimeLease, prometheus.CounterValue, float64(stats.LifetimeLeaseCount))
	ch <- prometheus.MustNewConstMetric(c.idleSeconds, prometheus.GaugeValue, stats.IdleTime.Seconds())

	if stats.ExpiredConnections != nil {
		ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(*stats.ExpiredConnections))
	}
	if stats.RetiredConnections != nil {
		ch <- prometheus.MustNewConstMetric(c.retired, prometheus.CounterValue, float64(*stats.RetiredConnections))
	}
	if stats.AverageAcquireTime != nil {
		ch <- prometheus.MustNewConstMetric(c.avgAcquire, prometheus.GaugeValue, stats.AverageAcquireTime.Seconds())
	}
	if stats.GreatestAcquireTime != nil {
		ch <- prometheus.MustNewConstMetric(c.maxAcquire, prometheus.GaugeValue, stats.GreatestAcquireTime.Seconds())
	}
	if stats.AverageLeaseTime != nil {
		ch <- prometheus.MustNewConstMetric(c.avgLease, prometheus.GaugeValue, stats.AverageLeaseTime.Seconds())
	}
	if stats.GreatestLeaseTime != nil {
		ch <- prometheus.MustNewConstMetric(c.maxLease, prometheus.GaugeValue, stats.GreatestLeaseTime.Seconds())
	}
}
