package metrics_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/cacheio"
	"github.com/sharedcode/grid/exchange"
	"github.com/sharedcode/grid/metrics"
	"github.com/sharedcode/grid/mvcc"
	"github.com/sharedcode/grid/txn"
)

func newShared(t *testing.T) *grid.SharedContext {
	t.Helper()
	id, _ := grid.ParseUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	sc, err := grid.NewSharedContext(grid.SharedContextOptions{
		NodeID: id,
		Managers: grid.Managers{
			Mvcc:     mvcc.NewManager(mvcc.NewInMemoryLocker(), time.Minute),
			Tx:       txn.NewManager(0),
			Exchange: exchange.NewManager(time.Second),
			Io:       cacheio.NewManager(nil),
		},
		NewExchangeManager: func() grid.ExchangeManager { return exchange.NewManager(time.Second) },
	})
	if err != nil {
		t.Fatalf("NewSharedContext: %v", err)
	}
	if err := sc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return sc
}

func TestCollector(t *testing.T) {
	sc := newShared(t)
	c := metrics.NewCollector(sc)

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if n := testutil.CollectAndCount(c); n != 4 {
		t.Fatalf("got %d metrics, want 4", n)
	}

	sc.TxMetrics().OnTxCommit()
	sc.TxMetrics().OnTxCommit()
	sc.TxMetrics().OnTxRollback()
	if err := sc.AddCacheContext(&grid.CacheContext{ID: 1, Name: "a"}); err != nil {
		t.Fatalf("add cache: %v", err)
	}

	expected := `
# HELP grid_tx_commits_total Transactions committed on this node.
# TYPE grid_tx_commits_total counter
grid_tx_commits_total{node="6ba7b810-9dad-11d1-80b4-00c04fd430c8"} 2
# HELP grid_caches Caches started on this node.
# TYPE grid_caches gauge
grid_caches{node="6ba7b810-9dad-11d1-80b4-00c04fd430c8"} 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "grid_tx_commits_total", "grid_caches"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}

	// A reset is picked up on the next scrape.
	sc.ResetTxMetrics()
	expected = `
# HELP grid_tx_commits_total Transactions committed on this node.
# TYPE grid_tx_commits_total counter
grid_tx_commits_total{node="6ba7b810-9dad-11d1-80b4-00c04fd430c8"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "grid_tx_commits_total"); err != nil {
		t.Fatalf("unexpected metrics after reset: %v", err)
	}
}
