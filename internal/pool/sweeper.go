package pool

import (
	"context"
	"time"
)

// runSweeper periodically expires idle sessions even when nothing is
// calling Acquire to trigger an inline pass. It wakes every ExpireAfter/2,
// and only runs its pass if the pool has seen no acquisition in that same
// interval — an actively used pool relies on the inline pass in Acquire
// instead.
func (p *Pool) runSweeper() {
	defer close(p.sweeperDone)

	interval := p.expireAfter / 2
	if interval <= 0 {
		interval = p.expireAfter
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-p.sweeperStop:
			return
		case <-timer.C:
		}

		p.mu.Lock()
		if p.shutdown {
			p.mu.Unlock()
			return
		}
		if time.Since(p.lastAcquireAt) >= interval {
			if err := p.expireLocked(context.Background()); err != nil {
				p.logger.Warn().Err(err).Msg("pool: sweeper refill failed")
			}
		}
		p.mu.Unlock()

		timer.Reset(interval)
	}
}
