package grid

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestNewSharedContext_RequiresManagers(t *testing.T) {
	if _, err := NewSharedContext(SharedContextOptions{}); err == nil {
		t.Fatalf("expected error for empty managers")
	}
	f := newFixture()
	if f.sc.NodeID().IsNil() {
		t.Fatalf("expected generated node id")
	}
}

func TestManagers_StartOrder(t *testing.T) {
	f := newFixture()
	var names []string
	for _, m := range f.sc.Managers() {
		names = append(names, m.Name())
	}
	want := []string{"mvcc", "versions", "tx", "jta", "deployment", "exchange", "affinity", "io"}
	if !slices.Equal(names, want) {
		t.Fatalf("got %v want %v", names, want)
	}
}

func TestManagers_SkipsNil(t *testing.T) {
	l := &callLog{}
	sc, err := NewSharedContext(SharedContextOptions{
		Managers: Managers{
			Mvcc:     &fakeMvcc{fakeManager: newFakeManager("mvcc", l)},
			Tx:       &fakeTxManager{fakeManager: newFakeManager("tx", l)},
			Exchange: newFakeExchange(l),
			Io:       &fakeIo{fakeManager: newFakeManager("io", l)},
		},
		NewExchangeManager: func() ExchangeManager { return newFakeExchange(l) },
	})
	if err != nil {
		t.Fatalf("NewSharedContext failed: %v", err)
	}
	if got := len(sc.Managers()); got != 4 {
		t.Fatalf("got %d managers, want 4", got)
	}
	if sc.Jta() != nil || sc.Deployment() != nil {
		t.Fatalf("expected absent optional managers")
	}
	if sc.DeploymentEnabled() {
		t.Fatalf("deployment cannot be enabled without a manager")
	}
}

func TestStartStop_Order(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	if err := f.sc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.sc.OnNodeStart(ctx, false); err != nil {
		t.Fatalf("OnNodeStart failed: %v", err)
	}
	if err := f.sc.OnNodeStop(ctx, false); err != nil {
		t.Fatalf("OnNodeStop failed: %v", err)
	}
	if err := f.sc.Stop(ctx, false); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	want := []string{
		"start:mvcc", "start:versions", "start:tx", "start:jta", "start:deployment", "start:exchange", "start:affinity", "start:io",
		"nodestart:mvcc:false", "nodestart:versions:false", "nodestart:tx:false", "nodestart:jta:false",
		"nodestart:deployment:false", "nodestart:exchange:false", "nodestart:affinity:false", "nodestart:io:false",
		"nodestop:io", "nodestop:affinity", "nodestop:exchange", "nodestop:deployment", "nodestop:jta", "nodestop:tx", "nodestop:versions", "nodestop:mvcc",
		"stop:io", "stop:affinity", "stop:exchange", "stop:deployment", "stop:jta", "stop:tx", "stop:versions", "stop:mvcc",
	}
	if got := f.calls.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}
	if f.mvcc.Shared() != f.sc {
		t.Fatalf("expected manager to be bound to its shared context")
	}
}

func TestStart_FailureAborts(t *testing.T) {
	f := newFixture()
	boom := errors.New("boom")
	f.tx.startErr = boom

	err := f.sc.Start(context.Background())
	if err == nil {
		t.Fatalf("expected start failure")
	}
	if !IsCode(err, LifecycleFailure) {
		t.Fatalf("expected LifecycleFailure, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	want := []string{"start:mvcc", "start:versions", "start:tx"}
	if got := f.calls.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestOnDisconnected_StopsOnlyRestartables(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	if err := f.sc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.calls.reset()

	if err := f.sc.OnDisconnected(ctx, nil); err != nil {
		t.Fatalf("OnDisconnected failed: %v", err)
	}
	want := []string{
		"disconnected:io", "disconnected:affinity",
		"disconnected:exchange", "nodestop:exchange",
		"disconnected:deployment", "nodestop:deployment",
		"disconnected:jta", "disconnected:tx", "disconnected:versions", "disconnected:mvcc",
		"stop:exchange", "stop:deployment",
	}
	if got := f.calls.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}
}

func TestOnReconnected_InstallsFreshRestartables(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	if err := f.sc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.sc.OnDisconnected(ctx, nil); err != nil {
		t.Fatalf("OnDisconnected failed: %v", err)
	}
	f.calls.reset()

	if err := f.sc.OnReconnected(ctx); err != nil {
		t.Fatalf("OnReconnected failed: %v", err)
	}

	if len(f.exchanges) != 1 || len(f.deploys) != 1 {
		t.Fatalf("expected one fresh exchange and deployment manager, got %d and %d", len(f.exchanges), len(f.deploys))
	}
	if f.sc.Exchange() != ExchangeManager(f.exchanges[0]) {
		t.Fatalf("exchange manager was not replaced")
	}
	if f.sc.Deployment() != DeploymentManager(f.deploys[0]) {
		t.Fatalf("deployment manager was not replaced")
	}
	if f.sc.Mvcc() != MvccManager(f.mvcc) || f.sc.Tx() != TxManager(f.tx) || f.sc.Io() != IoManager(f.io) ||
		f.sc.Versions() != VersionManager(f.versions) || f.sc.Affinity() != AffinityManager(f.affinity) ||
		f.sc.Jta() != JtaManager(f.jta) {
		t.Fatalf("retained managers lost their identity")
	}
	mgrs := f.sc.Managers()
	if mgrs[4] != Manager(f.deploys[0]) || mgrs[5] != Manager(f.exchanges[0]) {
		t.Fatalf("fresh managers are not in their original positions")
	}

	want := []string{
		"reconnected:mvcc", "reconnected:versions", "reconnected:tx", "reconnected:jta",
		"start:deployment", "start:exchange",
		"reconnected:affinity", "reconnected:io",
		"nodestart:mvcc:true", "nodestart:versions:true", "nodestart:tx:true", "nodestart:jta:true",
		"nodestart:deployment:true", "nodestart:exchange:true", "nodestart:affinity:true", "nodestart:io:true",
	}
	if got := f.calls.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}
	if f.exchanges[0].Shared() != f.sc {
		t.Fatalf("fresh exchange manager was not started against the shared context")
	}
}

func TestCleanup_DropsManagerList(t *testing.T) {
	f := newFixture()
	f.sc.Cleanup()
	if len(f.sc.Managers()) != 0 {
		t.Fatalf("expected empty manager list")
	}
	if f.sc.Mvcc() != nil {
		t.Fatalf("expected mvcc reference to be released")
	}
}
