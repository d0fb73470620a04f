package pool

import "time"

// Statistics is an immutable, point-in-time projection of a Pool's
// counters. Every field that only makes sense when a corresponding feature
// is enabled (age-based expiration, use-count retirement, or at least one
// completed lease) is a pointer, nil when the feature is off or the event
// has never happened. A disabled feature reports absent, never zero.
type Statistics struct {
	CurrentPoolSize      int
	AvailableConnections int
	OutstandingLeases    int
	MinimumSize          int
	MaximumSize          int
	GreatestPoolSize     int
	GreatestLeasedCount  int
	AverageLeasedCount   float64
	LifetimeLeaseCount   uint64
	IdleTime             time.Duration

	ExpireTime           *time.Duration
	ExpiredConnections   *uint64
	RetireLimit          *int
	RetiredConnections   *uint64

	AverageAcquireTime           *time.Duration
	GreatestAcquireTime          *time.Duration
	AverageLeaseTime             *time.Duration
	GreatestLeaseTime            *time.Duration
	AverageOutstandingLeaseTime  *time.Duration
	GreatestOutstandingLeaseTime *time.Duration
}

// Statistics returns a snapshot of the pool's current counters, taken
// under the monitor.
func (p *Pool) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pool) snapshotLocked() Statistics {
	s := Statistics{
		CurrentPoolSize:      len(p.all),
		AvailableConnections: len(p.available),
		OutstandingLeases:    len(p.leased),
		MinimumSize:          p.minSize,
		MaximumSize:          p.maxSize,
		GreatestPoolSize:     p.peakPoolSize,
		GreatestLeasedCount:  p.peakLeased,
		LifetimeLeaseCount:   p.totalLeases,
		IdleTime:             time.Since(p.lastAcquireAt),
	}

	if p.leasedSamples > 0 {
		s.AverageLeasedCount = float64(p.leasedSampleSum) / float64(p.leasedSamples)
	}

	if p.expireAfter > 0 {
		d := p.expireAfter
		s.ExpireTime = &d
		e := p.expiredCount
		s.ExpiredConnections = &e
	}
	if p.retireAfter > 0 {
		lim := p.retireAfter
		s.RetireLimit = &lim
		r := p.retiredCount
		s.RetiredConnections = &r
	}

	if p.acquireSamples > 0 {
		avg := time.Duration(p.cumulativeAcquireNanos / int64(p.acquireSamples))
		s.AverageAcquireTime = &avg
		g := time.Duration(p.greatestAcquireNanos)
		s.GreatestAcquireTime = &g
	}

	if p.completedLeases > 0 {
		avg := time.Duration(p.cumulativeLeaseNanos / int64(p.completedLeases))
		s.AverageLeaseTime = &avg
		g := time.Duration(p.greatestLeaseNanos)
		s.GreatestLeaseTime = &g
	}

	if len(p.leased) > 0 {
		now := time.Now()
		var sum, greatest time.Duration
		for h := range p.leased {
			d := now.Sub(h.createdAt)
			sum += d
			if d > greatest {
				greatest = d
			}
		}
		avg := sum / time.Duration(len(p.leased))
		s.AverageOutstandingLeaseTime = &avg
		s.GreatestOutstandingLeaseTime = &greatest
	}

	return s
}

// CurrentPoolSize returns the number of sessions currently open, idle or
// leased.
func (p *Pool) CurrentPoolSize() int { return p.Statistics().CurrentPoolSize }

// AvailableConnections returns the number of idle sessions ready to be
// leased.
func (p *Pool) AvailableConnections() int { return p.Statistics().AvailableConnections }

// OutstandingLeases returns the number of sessions currently leased out.
func (p *Pool) OutstandingLeases() int { return p.Statistics().OutstandingLeases }

// MinimumSize returns the configured minimum pool size.
func (p *Pool) MinimumSize() int { return p.Statistics().MinimumSize }

// MaximumSize returns the configured maximum pool size.
func (p *Pool) MaximumSize() int { return p.Statistics().MaximumSize }

// GreatestPoolSize returns the largest the pool has ever grown to.
func (p *Pool) GreatestPoolSize() int { return p.Statistics().GreatestPoolSize }

// GreatestLeasedCount returns the largest number of concurrently
// outstanding leases ever observed.
func (p *Pool) GreatestLeasedCount() int { return p.Statistics().GreatestLeasedCount }

// AverageLeasedCount returns the average number of concurrently
// outstanding leases, sampled at each acquire and release.
func (p *Pool) AverageLeasedCount() float64 { return p.Statistics().AverageLeasedCount }

// LifetimeLeaseCount returns the total number of leases handed out since
// construction.
func (p *Pool) LifetimeLeaseCount() uint64 { return p.Statistics().LifetimeLeaseCount }

// IdleTime returns how long it has been since the last successful
// acquisition.
func (p *Pool) IdleTime() time.Duration { return p.Statistics().IdleTime }

// ExpireTime returns the configured ExpireAfter duration, or nil if
// age-based expiration is disabled.
func (p *Pool) ExpireTime() *time.Duration { return p.Statistics().ExpireTime }

// RetireLimit returns the configured RetireAfter lease count, or nil if
// use-count retirement is disabled.
func (p *Pool) RetireLimit() *int { return p.Statistics().RetireLimit }

// ExpiredConnections returns how many sessions have been closed for aging
// out, or nil if age-based expiration is disabled.
func (p *Pool) ExpiredConnections() *uint64 { return p.Statistics().ExpiredConnections }

// RetiredConnections returns how many sessions have been closed for
// exceeding RetireAfter leases, or nil if use-count retirement is disabled.
func (p *Pool) RetiredConnections() *uint64 { return p.Statistics().RetiredConnections }

// AverageAcquireTime returns the average time spent waiting to acquire a
// session, or nil if no session has ever been acquired.
func (p *Pool) AverageAcquireTime() *time.Duration { return p.Statistics().AverageAcquireTime }

// GreatestAcquireTime returns the greatest time spent waiting to acquire a
// session, or nil if no session has ever been acquired.
func (p *Pool) GreatestAcquireTime() *time.Duration { return p.Statistics().GreatestAcquireTime }

// AverageLeaseTime returns the average duration of a completed lease, or
// nil if no lease has ever been released.
func (p *Pool) AverageLeaseTime() *time.Duration { return p.Statistics().AverageLeaseTime }

// GreatestLeaseTime returns the greatest duration of a completed lease, or
// nil if no lease has ever been released.
func (p *Pool) GreatestLeaseTime() *time.Duration { return p.Statistics().GreatestLeaseTime }

// AverageOutstandingLeaseTime returns the average duration of currently
// outstanding leases, or nil if none are outstanding.
func (p *Pool) AverageOutstandingLeaseTime() *time.Duration {
	return p.Statistics().AverageOutstandingLeaseTime
}

// GreatestOutstandingLeaseTime returns the greatest duration among
// currently outstanding leases, or nil if none are outstanding.
func (p *Pool) GreatestOutstandingLeaseTime() *time.Duration {
	return p.Statistics().GreatestOutstandingLeaseTime
}
