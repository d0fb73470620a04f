package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentAcquireReleaseNeverExceedsMaxSize hammers a small pool from
// many goroutines and asserts the pool never grows past MaxSize and every
// handle is eventually returned cleanly.
func TestConcurrentAcquireReleaseNeverExceedsMaxSize(t *testing.T) {
	const maxSize = 4
	const workers = 32
	const rounds = 25

	p, conn := newTestPool(t, Config{MinSize: 1, MaxSize: maxSize})

	var wg sync.WaitGroup
	var peakObserved int
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				h, err := p.Acquire(2 * time.Second)
				if err != nil || h == nil {
					continue
				}

				mu.Lock()
				if n := p.OutstandingLeases(); n > peakObserved {
					peakObserved = n
				}
				mu.Unlock()

				require.NoError(t, h.Close())
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peakObserved, maxSize)
	assert.LessOrEqual(t, int(conn.opened), maxSize)
	assert.Equal(t, 0, p.OutstandingLeases())
}
