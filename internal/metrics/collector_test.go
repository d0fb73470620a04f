package metrics_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/dbpool/internal/metrics"
	"github.com/netresearch/dbpool/internal/pool"
)

// fakeMetricsSession is the minimal pool.Session needed to exercise a Pool
// end to end for collector assertions; none of its query methods are
// actually called in these tests.
type fakeMetricsSession struct {
	autoCommit bool
	isolation  pool.IsolationLevel
}

func (s *fakeMetricsSession) Close() error         { return nil }
func (s *fakeMetricsSession) InAutoCommit() bool   { return s.autoCommit }
func (s *fakeMetricsSession) SetAutoCommit(_ context.Context, enabled bool) error {
	s.autoCommit = enabled
	return nil
}
func (s *fakeMetricsSession) Rollback(_ context.Context) error { return nil }
func (s *fakeMetricsSession) IsolationLevel(_ context.Context) (pool.IsolationLevel, error) {
	return s.isolation, nil
}
func (s *fakeMetricsSession) SetIsolationLevel(_ context.Context, level pool.IsolationLevel) error {
	s.isolation = level
	return nil
}
func (s *fakeMetricsSession) Exec(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	return nil, nil
}
func (s *fakeMetricsSession) Query(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	return nil, nil
}
func (s *fakeMetricsSession) Prepare(_ context.Context, _ string) (pool.Statement, error) {
	return nil, nil
}

func newTestPoolForMetrics(t *testing.T) *pool.Pool {
	t.Helper()

	connector := pool.ConnectorFunc(func(_ context.Context) (pool.Session, error) {
		return &fakeMetricsSession{autoCommit: true}, nil
	})

	p, err := pool.New(pool.Config{Connector: connector, MinSize: 0, MaxSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown() })
	return p
}

func TestPoolCollectorRegistersWithoutDuplicateDescriptors(t *testing.T) {
	p := newTestPoolForMetrics(t)
	collector := metrics.NewPoolCollector("dbpool_test", p)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["dbpool_test_pool_size"])
	require.False(t, names["dbpool_test_expired_connections_total"], "disabled feature must not be emitted")
}
