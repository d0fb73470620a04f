package pool

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// waitChunk bounds how long a blocked acquirer sleeps between rechecks of
// pool state. It exists purely so a missed or coalesced broadcast cannot
// wedge a waiter forever; the loop in Acquire re-evaluates every exit
// condition (shutdown, a freed slot, the caller's own deadline) on every
// wake regardless of what caused it.
const waitChunk = 250 * time.Millisecond

// pooledSession is a single session under pool management, plus the
// bookkeeping the pool needs to expire or retire it.
type pooledSession struct {
	id         uint64
	session    Session
	createdAt  time.Time
	leaseCount uint64
}

// Config describes how to construct a Pool.
type Config struct {
	// Connector opens new backing sessions. Required.
	Connector Connector

	// IsolationPolicy, if set, is applied to every session before handout.
	IsolationPolicy IsolationPolicy

	// MinSize is the number of sessions the pool keeps warm. May be zero.
	MinSize int

	// MaxSize is the most sessions the pool will ever hold open at once.
	// Must be at least 1 and at least MinSize.
	MaxSize int

	// ExpireAfter closes an idle session once this long has passed since it
	// was opened. Zero disables age-based expiration.
	ExpireAfter time.Duration

	// RetireAfter closes a session on release once it has been leased more
	// than this many times. Zero disables use-count retirement.
	RetireAfter int

	// Logger receives structured diagnostics. Defaults to the global
	// zerolog logger.
	Logger *zerolog.Logger
}

// Pool is a bounded, thread-safe cache of long-lived sessions. All mutable
// state is guarded by mu; cond is the single condition variable acquirers
// wait on.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	connector   Connector
	isolation   IsolationPolicy
	minSize     int
	maxSize     int
	expireAfter time.Duration
	retireAfter int
	logger      zerolog.Logger

	all       map[uint64]*pooledSession
	available []*pooledSession
	leased    map[*LeaseHandle]*pooledSession
	shutdown  bool
	nextID    uint64

	// Statistics accumulators. See stats.go for how these are projected
	// into a Statistics snapshot.
	totalLeases            uint64
	completedLeases        uint64
	expiredCount           uint64
	retiredCount           uint64
	peakLeased             int
	peakPoolSize           int
	leasedSampleSum        uint64
	leasedSamples          uint64
	cumulativeAcquireNanos int64
	greatestAcquireNanos   int64
	acquireSamples         uint64
	cumulativeLeaseNanos   int64
	greatestLeaseNanos     int64
	lastAcquireAt          time.Time

	sweeperStop    chan struct{}
	sweeperDone    chan struct{}
	sweeperStarted bool
}

// New constructs a Pool and warms it up to MinSize sessions. Construction
// parameters are validated synchronously; a failure here never leaves a
// background goroutine running.
func New(cfg Config) (*Pool, error) {
	if cfg.Connector == nil {
		return nil, &ArgumentError{Field: "Connector", Value: nil, Message: "must not be nil"}
	}
	if cfg.MinSize < 0 {
		return nil, &ArgumentError{Field: "MinSize", Value: cfg.MinSize, Message: "must not be negative"}
	}
	if cfg.MaxSize < 1 {
		return nil, &ArgumentError{Field: "MaxSize", Value: cfg.MaxSize, Message: "must be at least 1"}
	}
	if cfg.MinSize > cfg.MaxSize {
		return nil, &ArgumentError{Field: "MinSize", Value: cfg.MinSize, Message: "must not exceed MaxSize"}
	}
	if cfg.ExpireAfter < 0 {
		return nil, &ArgumentError{Field: "ExpireAfter", Value: cfg.ExpireAfter, Message: "must not be negative"}
	}
	if cfg.RetireAfter < 0 {
		return nil, &ArgumentError{Field: "RetireAfter", Value: cfg.RetireAfter, Message: "must not be negative"}
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	p := &Pool{
		connector:     cfg.Connector,
		isolation:     cfg.IsolationPolicy,
		minSize:       cfg.MinSize,
		maxSize:       cfg.MaxSize,
		expireAfter:   cfg.ExpireAfter,
		retireAfter:   cfg.RetireAfter,
		logger:        logger,
		all:           make(map[uint64]*pooledSession),
		leased:        make(map[*LeaseHandle]*pooledSession),
		lastAcquireAt: time.Now(),
	}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	for i := 0; i < p.minSize; i++ {
		ps, err := p.openLocked(context.Background())
		if err != nil {
			p.logger.Warn().Err(err).Msg("pool: failed to warm up to minimum size")
			break
		}
		p.available = append(p.available, ps)
	}
	p.mu.Unlock()

	if p.expireAfter > 0 {
		p.sweeperStop = make(chan struct{})
		p.sweeperDone = make(chan struct{})
		p.sweeperStarted = true
		go p.runSweeper()
	}

	p.logger.Info().
		Int("min_size", p.minSize).
		Int("max_size", p.maxSize).
		Dur("expire_after", p.expireAfter).
		Int("retire_after", p.retireAfter).
		Msg("pool: initialized")

	return p, nil
}

// Acquire borrows a session from the pool, growing it if below MaxSize or
// waiting for a release otherwise.
//
// maxWait < 0 waits indefinitely. maxWait == 0 makes a single attempt and
// returns (nil, nil) immediately if no session is available. maxWait > 0
// waits up to that long and returns (nil, nil) on timeout; a timeout is
// not an error.
func (p *Pool) Acquire(maxWait time.Duration) (*LeaseHandle, error) {
	start := time.Now()
	hasDeadline := maxWait > 0
	var deadline time.Time
	if hasDeadline {
		deadline = start.Add(maxWait)
	}

	p.mu.Lock()
	for {
		if p.shutdown {
			p.mu.Unlock()
			return nil, ErrPoolShutdown
		}

		if p.expireAfter > 0 {
			if err := p.expireLocked(context.Background()); err != nil {
				p.mu.Unlock()
				return nil, err
			}
		}

		ps, err := p.claimLocked(deadlineContext(maxWait, deadline))
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}

		if ps != nil {
			handle := p.registerLeaseLocked(ps, start)
			p.mu.Unlock()

			if err := p.finalizeHandout(handle); err != nil {
				// Handout could not be completed (auto-commit assertion or
				// isolation policy failed). The session is unusable for
				// this lease; return it to the pool rather than handing a
				// half-initialized handle to the caller.
				_ = p.Release(handle)
				return nil, err
			}
			return handle, nil
		}

		if maxWait == 0 {
			p.mu.Unlock()
			return nil, nil
		}
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				p.mu.Unlock()
				return nil, nil
			}
			if remaining > waitChunk {
				remaining = waitChunk
			}
			p.waitChunkLocked(remaining)
		} else {
			p.waitChunkLocked(waitChunk)
		}
	}
}

// claimLocked returns an idle session or grows the pool by one, or returns
// (nil, nil) if the pool is at capacity and nothing is idle.
func (p *Pool) claimLocked(ctx context.Context) (*pooledSession, error) {
	if len(p.available) == 0 {
		if len(p.all) >= p.maxSize {
			return nil, nil
		}
		return p.openLocked(ctx)
	}

	ps := p.available[0]
	p.available = p.available[1:]
	return ps, nil
}

func deadlineContext(maxWait time.Duration, deadline time.Time) context.Context {
	if maxWait > 0 {
		ctx, _ := context.WithDeadline(context.Background(), deadline)
		return ctx
	}
	return context.Background()
}

func (p *Pool) registerLeaseLocked(ps *pooledSession, acquireStart time.Time) *LeaseHandle {
	ps.leaseCount++
	handle := newLeaseHandle(p, ps, time.Now())
	p.leased[handle] = ps

	p.totalLeases++
	p.lastAcquireAt = time.Now()
	if len(p.leased) > p.peakLeased {
		p.peakLeased = len(p.leased)
	}
	if len(p.all) > p.peakPoolSize {
		p.peakPoolSize = len(p.all)
	}
	p.leasedSampleSum += uint64(len(p.leased))
	p.leasedSamples++

	elapsed := time.Since(acquireStart).Nanoseconds()
	p.cumulativeAcquireNanos += elapsed
	p.acquireSamples++
	if elapsed > p.greatestAcquireNanos {
		p.greatestAcquireNanos = elapsed
	}

	return handle
}

// finalizeHandout runs outside the pool's monitor: it asserts auto-commit
// is disabled and applies the isolation policy, if any, to the session
// just handed out.
func (p *Pool) finalizeHandout(h *LeaseHandle) error {
	ctx := context.Background()
	session := h.ps.session

	if session.InAutoCommit() {
		if err := session.SetAutoCommit(ctx, false); err != nil {
			return err
		}
	}

	if p.isolation != nil {
		if err := p.isolation.Apply(ctx, session); err != nil {
			return err
		}
	}

	return nil
}

// Release returns a leased session to the pool. It is idempotent: releasing
// an already-released handle is a no-op (logged, not erred). Releasing a
// handle that belongs to a different pool returns ErrForeignHandle.
func (p *Pool) Release(h *LeaseHandle) error {
	if h == nil {
		return nil
	}
	if h.pool != p {
		return ErrForeignHandle
	}

	p.mu.Lock()

	ps, ok := p.leased[h]
	if !ok {
		p.mu.Unlock()
		p.logger.Warn().
			Str("acquired_at", h.createdAt.String()).
			Str("acquired_stack", h.stack).
			Msg("pool: duplicate release of lease handle")
		return nil
	}
	delete(p.leased, h)

	ctx := context.Background()
	if !ps.session.InAutoCommit() {
		if err := ps.session.Rollback(ctx); err != nil {
			p.logger.Warn().Err(err).Uint64("session_id", ps.id).Msg("pool: rollback on release failed")
		}
		if err := ps.session.SetAutoCommit(ctx, false); err != nil {
			p.logger.Warn().Err(err).Uint64("session_id", ps.id).Msg("pool: could not reassert auto-commit on release")
		}
	}

	now := time.Now()
	h.state.markClosed(now)

	leaseDuration := now.Sub(h.createdAt).Nanoseconds()
	p.cumulativeLeaseNanos += leaseDuration
	p.completedLeases++
	if leaseDuration > p.greatestLeaseNanos {
		p.greatestLeaseNanos = leaseDuration
	}
	p.leasedSampleSum += uint64(len(p.leased))
	p.leasedSamples++

	if p.retireAfter > 0 && ps.leaseCount > uint64(p.retireAfter) {
		delete(p.all, ps.id)
		p.closeSessionLocked(ps)
		p.retiredCount++

		if len(p.all) < p.minSize {
			if fresh, err := p.openLocked(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("pool: refill after retirement failed")
			} else {
				p.available = append(p.available, fresh)
			}
		}
	} else {
		p.available = append(p.available, ps)
	}

	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// Shutdown closes every session managed by the pool and stops the
// expiration sweeper, if running. It waits for all outstanding leases to be
// released before closing anything. Calling Shutdown more than once is a
// no-op.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	p.cond.Broadcast()

	for len(p.leased) > 0 {
		p.waitChunkLocked(waitChunk)
	}

	for _, ps := range p.all {
		p.closeSessionLocked(ps)
	}
	p.all = make(map[uint64]*pooledSession)
	p.available = nil
	p.mu.Unlock()

	if p.sweeperStarted {
		close(p.sweeperStop)
		<-p.sweeperDone
	}

	p.logger.Info().Msg("pool: shut down")
	return nil
}

// IsShutdown reports whether Shutdown has been called. It is already true
// while Shutdown is still waiting for outstanding leases.
func (p *Pool) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

// waitChunkLocked blocks on the condition variable for at most d, then
// returns with p.mu held again. Callers must re-check whatever condition
// they were waiting for; a return does not imply it changed.
func (p *Pool) waitChunkLocked(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	p.cond.Wait()
	timer.Stop()
}

func (p *Pool) openLocked(ctx context.Context) (*pooledSession, error) {
	session, err := p.connector.Open(ctx)
	if err != nil {
		return nil, &ConnectorError{Err: err}
	}

	p.nextID++
	ps := &pooledSession{id: p.nextID, session: session, createdAt: time.Now()}
	p.all[ps.id] = ps
	if len(p.all) > p.peakPoolSize {
		p.peakPoolSize = len(p.all)
	}
	return ps, nil
}

func (p *Pool) closeSessionLocked(ps *pooledSession) {
	if err := ps.session.Close(); err != nil {
		p.logger.Warn().Err(err).Uint64("session_id", ps.id).Msg("pool: error closing session")
	}
}

// expireLocked closes idle sessions older than ExpireAfter and refills down
// to MinSize. Called both inline from Acquire and from the sweeper.
func (p *Pool) expireLocked(ctx context.Context) error {
	if p.expireAfter <= 0 {
		return nil
	}

	now := time.Now()
	kept := p.available[:0]
	for _, ps := range p.available {
		if now.Sub(ps.createdAt) > p.expireAfter {
			delete(p.all, ps.id)
			p.closeSessionLocked(ps)
			p.expiredCount++
		} else {
			kept = append(kept, ps)
		}
	}
	p.available = kept

	for len(p.all) < p.minSize {
		ps, err := p.openLocked(ctx)
		if err != nil {
			return err
		}
		p.available = append(p.available, ps)
	}
	return nil
}
