package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/pointer"
	"cogscreen-go/internal/results"
	"cogscreen-go/internal/timer"
	"cogscreen-go/internal/tmt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func lineCatalog() tmt.Catalog {
	labels := []layout.Label{layout.Num(1), layout.Num(2), layout.Num(3)}
	points := make([]layout.Point, len(labels))
	for i := range labels {
		points[i] = layout.Point{X: 50 + float64(i)*100, Y: 50}
	}
	v := tmt.Variant{
		ID:          "A",
		StorageKey:  results.KeyTrailA,
		Sequence:    labels,
		Mode:        layout.ModeFixed,
		Radius:      20,
		Canvas:      layout.Canvas{Width: 300, Height: 100},
		FixedPoints: points,
		TimerPolicy: tmt.ExplicitStart,
	}
	return tmt.Catalog{v.ID: v}
}

func newRegistry(t *testing.T, cfg SessionConfig) (*SessionRegistry, *results.BoltStore, *timer.Manual) {
	t.Helper()
	store, err := results.OpenBolt(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	clock := timer.NewManual(epoch)
	cfg.Clock = clock
	return NewSessionRegistry(zap.NewNop(), lineCatalog(), store, cfg), store, clock
}

func mouse(phase tmt.Phase, x, y float64) PointerEvent {
	return PointerEvent{
		Phase:  phase,
		Event:  pointer.RawEvent{Kind: pointer.Mouse, ClientX: x + 10, ClientY: y + 20},
		Origin: layout.Point{X: 10, Y: 20},
	}
}

func fullRun() []PointerEvent {
	return []PointerEvent{
		mouse(tmt.PhaseDown, 50, 50), mouse(tmt.PhaseUp, 150, 50),
		mouse(tmt.PhaseDown, 150, 50), mouse(tmt.PhaseUp, 50, 50),
		mouse(tmt.PhaseDown, 150, 50), mouse(tmt.PhaseUp, 250, 50),
	}
}

func TestDispatchCompletesRunAndStoresResult(t *testing.T) {
	reg, store, clock := newRegistry(t, SessionConfig{})
	snap, err := reg.Start(context.Background(), "user-1", "a")
	require.NoError(t, err)
	assert.Equal(t, tmt.Armed, snap.State)

	clock.Advance(12 * time.Second)
	outcomes, snap, err := reg.Dispatch("user-1", "A", fullRun())
	require.NoError(t, err)
	require.Len(t, outcomes, 6)
	assert.Equal(t, tmt.Connected, outcomes[1].Kind)
	assert.Equal(t, tmt.Rejected, outcomes[3].Kind)
	assert.Equal(t, tmt.Completed, outcomes[5].Kind)
	assert.Equal(t, tmt.Complete, snap.State)
	assert.True(t, snap.CanProceed)

	stored, ok, err := results.NewSlot[tmt.Result](store, "user-1", results.KeyTrailA).Read(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, stored.Errors)
	assert.InDelta(t, 12.0, stored.Duration, 0.001)

	latest, ok, err := reg.LatestResult(context.Background(), "user-1", "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, stored, latest)
}

func TestSessionsAreScopedByOwner(t *testing.T) {
	reg, _, _ := newRegistry(t, SessionConfig{})
	_, err := reg.Start(context.Background(), "user-1", "A")
	require.NoError(t, err)

	other, err := reg.Snapshot("guest-2", "A")
	require.NoError(t, err)
	assert.Equal(t, tmt.Idle, other.State)
	assert.Equal(t, 2, reg.Len())

	reg.Remove("user-1")
	assert.Equal(t, 1, reg.Len())
}

func TestUnknownVariant(t *testing.T) {
	reg, _, _ := newRegistry(t, SessionConfig{})
	_, err := reg.Start(context.Background(), "user-1", "Z")
	assert.ErrorIs(t, err, tmt.ErrUnknownVariant)
}

func TestDispatchIsRateLimited(t *testing.T) {
	reg, _, clock := newRegistry(t, SessionConfig{EventRate: 1, EventBurst: 4})
	_, err := reg.Start(context.Background(), "user-1", "A")
	require.NoError(t, err)
	run := fullRun()

	_, _, err = reg.Dispatch("user-1", "A", run[:4])
	require.NoError(t, err)

	_, snap, err := reg.Dispatch("user-1", "A", run[4:])
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, tmt.Armed, snap.State, "rejected batch is not applied")

	clock.Advance(2 * time.Second)
	_, snap, err = reg.Dispatch("user-1", "A", run[4:])
	require.NoError(t, err)
	assert.Equal(t, tmt.Complete, snap.State)
}

func TestOversizedBatchIsRefusedWithItsLimit(t *testing.T) {
	reg, _, clock := newRegistry(t, SessionConfig{EventRate: 1, EventBurst: 4})
	assert.Equal(t, 4, reg.MaxBatch())
	_, err := reg.Start(context.Background(), "user-1", "A")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _, err = reg.Dispatch("user-1", "A", fullRun())
		require.ErrorIs(t, err, ErrBatchTooLarge)
		assert.NotErrorIs(t, err, ErrRateLimited)
		assert.Contains(t, err.Error(), "at most 4")
		clock.Advance(time.Hour)
	}

	snap, err := reg.Snapshot("user-1", "A")
	require.NoError(t, err)
	assert.Equal(t, tmt.Armed, snap.State)
	assert.Empty(t, snap.Connections)
}

func TestUnlimitedRegistryHasNoBatchCap(t *testing.T) {
	reg, _, _ := newRegistry(t, SessionConfig{})
	assert.Zero(t, reg.MaxBatch())
}

func TestStartClearsStoredResult(t *testing.T) {
	reg, _, _ := newRegistry(t, SessionConfig{})
	ctx := context.Background()
	require.NoError(t, reg.RecordResult(ctx, "user-1", "A", tmt.Result{Duration: 40.2, Errors: 3}))

	_, err := reg.Start(ctx, "user-1", "A")
	require.NoError(t, err)
	_, ok, err := reg.LatestResult(ctx, "user-1", "A")
	require.NoError(t, err)
	assert.False(t, ok, "a run in progress has no result")

	_, _, err = reg.Dispatch("user-1", "A", fullRun())
	require.NoError(t, err)
	_, ok, err = reg.LatestResult(ctx, "user-1", "A")
	require.NoError(t, err)
	assert.True(t, ok)
}

// gatedStore holds writes until the gate closes.
type gatedStore struct {
	results.Store
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedStore) Write(ctx context.Context, owner, key string, value []byte) error {
	close(g.entered)
	<-g.gate
	return g.Store.Write(ctx, owner, key, value)
}

func TestSlowCompletionDoesNotBlockOtherParticipants(t *testing.T) {
	bolt, err := results.OpenBolt(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	store := &gatedStore{Store: bolt, entered: make(chan struct{}), gate: make(chan struct{})}
	reg := NewSessionRegistry(zap.NewNop(), lineCatalog(), store, SessionConfig{Clock: timer.NewManual(epoch)})

	_, err = reg.Start(context.Background(), "user-1", "A")
	require.NoError(t, err)
	_, err = reg.Snapshot("user-2", "A")
	require.NoError(t, err)

	dispatched := make(chan error, 1)
	go func() {
		_, _, err := reg.Dispatch("user-1", "A", fullRun())
		dispatched <- err
	}()
	<-store.entered

	ownPoll := make(chan struct{})
	go func() {
		_, _ = reg.Snapshot("user-1", "A")
		close(ownPoll)
	}()
	time.Sleep(20 * time.Millisecond)

	otherPoll := make(chan error, 1)
	go func() {
		_, err := reg.Snapshot("user-2", "A")
		otherPoll <- err
	}()
	select {
	case err := <-otherPoll:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("another participant waited on a completion in progress")
	}
	assert.Equal(t, 2, reg.Len())

	close(store.gate)
	require.NoError(t, <-dispatched)
	<-ownPoll
}

func TestRecordResultOverwrites(t *testing.T) {
	reg, _, _ := newRegistry(t, SessionConfig{})
	ctx := context.Background()
	require.NoError(t, reg.RecordResult(ctx, "guest-1", "A", tmt.Result{Duration: 40.2, Errors: 3}))
	require.NoError(t, reg.RecordResult(ctx, "guest-1", "A", tmt.Result{Duration: 35.0, Errors: 1}))

	got, ok, err := reg.LatestResult(ctx, "guest-1", "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tmt.Result{Duration: 35.0, Errors: 1}, got)
}

func TestJanitorEvictsIdleSessions(t *testing.T) {
	reg, _, clock := newRegistry(t, SessionConfig{})
	_, err := reg.Start(context.Background(), "user-1", "A")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	_, err = reg.Snapshot("user-2", "A")
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)

	j := NewJanitor(zap.NewNop(), reg, 30*time.Minute)
	assert.Equal(t, 1, j.sweep())
	assert.Equal(t, 1, reg.Len())
	assert.Zero(t, j.sweep())
}
