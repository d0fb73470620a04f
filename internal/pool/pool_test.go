package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestPool(t *testing.T, cfg Config) (*Pool, *fakeConnector) {
	t.Helper()
	conn := &fakeConnector{}
	cfg.Connector = conn
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown() })
	return p, conn
}

func TestNewValidatesConstructionParameters(t *testing.T) {
	conn := &fakeConnector{}

	_, err := New(Config{Connector: nil, MaxSize: 1})
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "Connector", argErr.Field)

	_, err = New(Config{Connector: conn, MinSize: -1, MaxSize: 1})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "MinSize", argErr.Field)

	_, err = New(Config{Connector: conn, MaxSize: 0})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "MaxSize", argErr.Field)

	_, err = New(Config{Connector: conn, MinSize: 5, MaxSize: 2})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "MinSize", argErr.Field)

	_, err = New(Config{Connector: conn, MaxSize: 2, ExpireAfter: -time.Second})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "ExpireAfter", argErr.Field)

	_, err = New(Config{Connector: conn, MaxSize: 2, RetireAfter: -1})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "RetireAfter", argErr.Field)
}

func TestNewWarmsUpToMinSize(t *testing.T) {
	p, conn := newTestPool(t, Config{MinSize: 3, MaxSize: 5})
	assert.Equal(t, int32(3), conn.opened)
	assert.Equal(t, 3, p.CurrentPoolSize())
	assert.Equal(t, 3, p.AvailableConnections())
}

func TestAcquireReturnsAutoCommitDisabledSession(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 2})

	h, err := p.Acquire(-1)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.False(t, h.ps.session.InAutoCommit())

	require.NoError(t, h.Close())
}

func TestAcquireGrowsUpToMaxSize(t *testing.T) {
	p, conn := newTestPool(t, Config{MinSize: 0, MaxSize: 2})

	h1, err := p.Acquire(0)
	require.NoError(t, err)
	require.NotNil(t, h1)

	h2, err := p.Acquire(0)
	require.NoError(t, err)
	require.NotNil(t, h2)

	assert.Equal(t, int32(2), conn.opened)
	assert.Equal(t, 2, p.OutstandingLeases())

	h3, err := p.Acquire(0)
	require.NoError(t, err)
	assert.Nil(t, h3, "pool at capacity with no timeout returns nil, not an error")

	require.NoError(t, h1.Close())
	require.NoError(t, h2.Close())
}

func TestAcquireWaitsForRelease(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})

	h1, err := p.Acquire(-1)
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = h1.Close()
		close(released)
	}()

	start := time.Now()
	h2, err := p.Acquire(time.Second)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.NotNil(t, h2)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)

	<-released
	require.NoError(t, h2.Close())
}

func TestAcquireTimesOutWithoutError(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})

	h1, err := p.Acquire(-1)
	require.NoError(t, err)
	defer h1.Close()

	start := time.Now()
	h2, err := p.Acquire(100 * time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Nil(t, h2)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestAcquireAfterShutdownFails(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})
	require.NoError(t, p.Shutdown())

	_, err := p.Acquire(-1)
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestReleaseRejectsForeignHandle(t *testing.T) {
	p1, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})
	p2, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})

	h, err := p1.Acquire(-1)
	require.NoError(t, err)

	err = p2.Release(h)
	assert.ErrorIs(t, err, ErrForeignHandle)

	require.NoError(t, h.Close())
}

func TestDoubleReleaseIsIdempotent(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})

	h, err := p.Acquire(-1)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.True(t, h.IsClosed())
}

func TestClosedHandleRejectsOperations(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})

	h, err := p.Acquire(-1)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.Exec(context.Background(), "select 1")
	assert.ErrorIs(t, err, ErrHandleClosed)
}

func TestRetireAfterClosesSessionAfterNthLease(t *testing.T) {
	p, conn := newTestPool(t, Config{MinSize: 1, MaxSize: 1, RetireAfter: 2})

	for i := 0; i < 2; i++ {
		h, err := p.Acquire(-1)
		require.NoError(t, err)
		require.NoError(t, h.Close())
	}
	assert.Equal(t, int32(1), conn.opened, "first two leases reuse the warmed-up session")

	retired := p.RetiredConnections()
	require.NotNil(t, retired, "retirement is enabled, so the count is reported")
	assert.Equal(t, uint64(0), *retired, "no retirement should have happened yet")

	h, err := p.Acquire(-1)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	retired = p.RetiredConnections()
	require.NotNil(t, retired)
	assert.Equal(t, uint64(1), *retired)
	assert.Equal(t, int32(2), conn.opened, "retirement opens a replacement to refill minSize")
}

func TestExpireAfterClosesIdleSessions(t *testing.T) {
	p, conn := newTestPool(t, Config{MinSize: 1, MaxSize: 1, ExpireAfter: 20 * time.Millisecond})

	time.Sleep(60 * time.Millisecond)

	h, err := p.Acquire(time.Second)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.NoError(t, h.Close())

	expired := p.ExpiredConnections()
	require.NotNil(t, expired)
	assert.GreaterOrEqual(t, *expired, uint64(1))
	assert.GreaterOrEqual(t, conn.opened, int32(2))
}

func TestStatisticsDisabledFeaturesReportAbsent(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})

	stats := p.Statistics()
	assert.Nil(t, stats.ExpiredConnections)
	assert.Nil(t, stats.RetiredConnections)
	assert.Nil(t, stats.ExpireTime)
	assert.Nil(t, stats.RetireLimit)
}

func TestShutdownWaitsForOutstandingLeases(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})

	h, err := p.Acquire(-1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = p.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned before outstanding lease was released")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, h.Close())
	<-done
	assert.True(t, p.IsShutdown())
}

func TestShutdownIsIdempotent(t *testing.T) {
	p, _ := newTestPool(t, Config{MinSize: 0, MaxSize: 1})
	require.NoError(t, p.Shutdown())
	require.NoError(t, p.Shutdown())
}

func TestConnectorFailurePropagatesFromAcquire(t *testing.T) {
	conn := &fakeConnector{failNext: 1}
	p, err := New(Config{Connector: conn, MinSize: 0, MaxSize: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown() })

	_, err = p.Acquire(0)
	var connErr *ConnectorError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, errors.Is(err, connErr.Err) || connErr.Err != nil)
}
