package tmt

import (
	"errors"
	"testing"
	"time"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/timer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type recordingSink struct {
	calls []Completion
	err   error
}

func (s *recordingSink) Complete(c Completion) error {
	s.calls = append(s.calls, c)
	return s.err
}

func lineVariant(policy TimerPolicy, labels ...layout.Label) Variant {
	points := make([]layout.Point, len(labels))
	for i := range labels {
		points[i] = layout.Point{X: 50 + float64(i)*100, Y: 50}
	}
	return Variant{
		ID:          "T",
		StorageKey:  "trailMakingTestTResult",
		Sequence:    labels,
		Mode:        layout.ModeFixed,
		Radius:      20,
		Canvas:      layout.Canvas{Width: float64(len(labels)) * 100, Height: 100},
		FixedPoints: points,
		TimerPolicy: policy,
	}
}

type harness struct {
	t      *testing.T
	engine *Engine
	clock  *timer.Manual
	sink   *recordingSink
}

func newHarness(t *testing.T, v Variant) *harness {
	t.Helper()
	clock := timer.NewManual(epoch)
	sink := &recordingSink{}
	e, err := New(nil, v, Options{Clock: clock, Sink: sink, Seed: 1})
	require.NoError(t, err)
	return &harness{t: t, engine: e, clock: clock, sink: sink}
}

func (h *harness) at(l layout.Label) layout.Point {
	h.t.Helper()
	for _, n := range h.engine.Nodes() {
		if n.Label == l {
			return layout.Point{X: n.X, Y: n.Y}
		}
	}
	h.t.Fatalf("no node labelled %s", l)
	return layout.Point{}
}

func (h *harness) drag(from, to layout.Label) Outcome {
	h.t.Helper()
	down := h.engine.PointerDown(1, h.at(from))
	require.Equal(h.t, Pressed, down.Kind, "press on %s", from)
	out, err := h.engine.PointerUp(1, h.at(to))
	require.NoError(h.t, err)
	return out
}

func labels(cs []Connection) [][2]string {
	out := make([][2]string, len(cs))
	for i, c := range cs {
		out[i] = [2]string{c.From.Label.Text, c.To.Label.Text}
	}
	return out
}

func TestThreeNodeScenario(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())

	assert.Equal(t, Connected, h.drag(layout.Num(1), layout.Num(2)).Kind)
	assert.Len(t, h.engine.Connections(), 1)

	out := h.drag(layout.Num(2), layout.Num(1))
	assert.Equal(t, Rejected, out.Kind)
	assert.NotEmpty(t, out.Message)
	assert.Equal(t, 1, h.engine.ErrorCount())
	assert.Len(t, h.engine.Connections(), 1)
	assert.Equal(t, Armed, h.engine.State())

	h.clock.Advance(4500 * time.Millisecond)
	out = h.drag(layout.Num(2), layout.Num(3))
	assert.Equal(t, Completed, out.Kind)
	require.NotNil(t, out.Result)
	assert.Equal(t, Result{Duration: 4.5, Errors: 1}, *out.Result)
	assert.Equal(t, [][2]string{{"1", "2"}, {"2", "3"}}, labels(h.engine.Connections()))
	assert.Equal(t, Complete, h.engine.State())
	assert.False(t, h.engine.timer.Running())

	require.Len(t, h.sink.calls, 1)
	assert.Equal(t, "T", h.sink.calls[0].Variant)
	assert.Len(t, h.sink.calls[0].Attempts, 3)
}

func TestCancelDropsAnchorButKeepsProgress(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())
	h.drag(layout.Num(1), layout.Num(2))

	require.Equal(t, Pressed, h.engine.PointerDown(7, h.at(layout.Num(2))).Kind)
	assert.Equal(t, Ignored, h.engine.PointerCancel(8).Kind, "cancel from another pointer is dropped")
	assert.Equal(t, Cancelled, h.engine.PointerCancel(7).Kind)

	assert.Equal(t, [][2]string{{"1", "2"}}, labels(h.engine.Connections()))
	assert.Zero(t, h.engine.ErrorCount())
	assert.Nil(t, h.engine.Snapshot().Anchor)

	assert.Equal(t, Ignored, h.engine.PointerDown(7, h.at(layout.Num(3))).Kind)
	assert.Equal(t, Pressed, h.engine.PointerDown(7, h.at(layout.Num(2))).Kind)
}

func TestReleaseOnAnchorOrEmptySpaceIsNoop(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())

	assert.Equal(t, Released, h.drag(layout.Num(1), layout.Num(1)).Kind)

	require.Equal(t, Pressed, h.engine.PointerDown(1, h.at(layout.Num(1))).Kind)
	out, err := h.engine.PointerUp(1, layout.Point{X: 100, Y: 95})
	require.NoError(t, err)
	assert.Equal(t, Released, out.Kind)

	assert.Zero(t, h.engine.ErrorCount())
	assert.Empty(t, h.engine.Connections())
	assert.Equal(t, Armed, h.engine.State())
	_, tracking := h.engine.ActivePointer()
	assert.False(t, tracking)
}

func TestWrongNodeOnReleaseSkippingAheadIsAnError(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())

	assert.Equal(t, Rejected, h.drag(layout.Num(1), layout.Num(3)).Kind)
	assert.Equal(t, 1, h.engine.ErrorCount())
}

func TestPressRules(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))

	assert.Equal(t, Ignored, h.engine.PointerDown(1, h.at(layout.Num(1))).Kind, "idle engine ignores input")

	require.NoError(t, h.engine.Start())
	assert.Equal(t, Ignored, h.engine.PointerDown(1, h.at(layout.Num(2))).Kind, "press must start on the anchor")
	assert.Equal(t, Ignored, h.engine.PointerDown(1, layout.Point{X: 100, Y: 95}).Kind)

	require.Equal(t, Pressed, h.engine.PointerDown(1, h.at(layout.Num(1))).Kind)
	assert.Equal(t, Ignored, h.engine.PointerDown(2, h.at(layout.Num(1))).Kind, "second pointer while dragging")
	id, ok := h.engine.ActivePointer()
	require.True(t, ok)
	assert.Equal(t, 1, id)

	assert.Equal(t, Ignored, h.engine.PointerMove(2, layout.Point{X: 1, Y: 1}).Kind)
	assert.Equal(t, Moved, h.engine.PointerMove(1, layout.Point{X: 80, Y: 60}).Kind)
	assert.Equal(t, &layout.Point{X: 80, Y: 60}, h.engine.Snapshot().Candidate)

	out, err := h.engine.PointerUp(2, h.at(layout.Num(2)))
	require.NoError(t, err)
	assert.Equal(t, Ignored, out.Kind, "release from untracked pointer")
	assert.Equal(t, Dragging, h.engine.State())
}

func TestResetIsIdempotent(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())
	h.drag(layout.Num(1), layout.Num(2))
	h.drag(layout.Num(2), layout.Num(1))
	h.engine.PointerDown(1, h.at(layout.Num(2)))
	h.clock.Advance(time.Second)

	for i := 0; i < 2; i++ {
		require.NoError(t, h.engine.Reset())
		assert.Zero(t, h.engine.ErrorCount())
		assert.Empty(t, h.engine.Connections())
		assert.False(t, h.engine.timer.Running())
		assert.Zero(t, h.engine.Elapsed())
		assert.Equal(t, Idle, h.engine.State())
		assert.Len(t, h.engine.Nodes(), 3)
	}
}

func TestCompletionPersistsOncePerRun(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2)))
	require.NoError(t, h.engine.Start())
	assert.Equal(t, Completed, h.drag(layout.Num(1), layout.Num(2)).Kind)

	assert.Equal(t, Ignored, h.engine.PointerDown(1, h.at(layout.Num(2))).Kind)
	out, err := h.engine.PointerUp(1, h.at(layout.Num(2)))
	require.NoError(t, err)
	assert.Equal(t, Ignored, out.Kind)
	_, err = h.engine.complete(Connection{})
	require.NoError(t, err)
	assert.Len(t, h.sink.calls, 1)

	require.NoError(t, h.engine.Start())
	h.drag(layout.Num(1), layout.Num(2))
	assert.Len(t, h.sink.calls, 2, "a new run persists again")
}

func TestSinkErrorIsReturned(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2)))
	h.sink.err = errors.New("disk full")
	require.NoError(t, h.engine.Start())

	require.Equal(t, Pressed, h.engine.PointerDown(1, h.at(layout.Num(1))).Kind)
	out, err := h.engine.PointerUp(1, h.at(layout.Num(2)))
	require.Error(t, err)
	assert.Equal(t, Completed, out.Kind)
	assert.Equal(t, Complete, h.engine.State())
}

func TestFirstPressTimerPolicy(t *testing.T) {
	h := newHarness(t, lineVariant(FirstPress, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())
	h.clock.Advance(10 * time.Second)
	assert.False(t, h.engine.timer.Running())
	assert.Zero(t, h.engine.Elapsed())

	require.Equal(t, Pressed, h.engine.PointerDown(1, h.at(layout.Num(1))).Kind)
	assert.True(t, h.engine.timer.Running())
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, 2*time.Second, h.engine.Elapsed())
}

func TestVariantAOrderInvariant(t *testing.T) {
	v, err := DefaultCatalog().Get("a")
	require.NoError(t, err)
	h := newHarness(t, v)
	require.NoError(t, h.engine.Start())

	for i := 0; i < len(v.Sequence)-1; i++ {
		out := h.drag(v.Sequence[i], v.Sequence[i+1])
		if i == len(v.Sequence)-2 {
			assert.Equal(t, Completed, out.Kind)
		} else {
			assert.Equal(t, Connected, out.Kind)
		}
	}

	conns := h.engine.Connections()
	require.Len(t, conns, len(v.Sequence)-1)
	for i, c := range conns {
		assert.Equal(t, v.Sequence[i], c.From.Label)
		assert.Equal(t, v.Sequence[i+1], c.To.Label)
	}
	assert.True(t, h.engine.Snapshot().CanProceed)
}

func TestVariantBInterleavesNumbersAndLetters(t *testing.T) {
	v, err := DefaultCatalog().Get("B")
	require.NoError(t, err)
	require.Len(t, v.Sequence, 25)
	assert.Equal(t, layout.Num(1), v.Sequence[0])
	assert.Equal(t, layout.Sym("A"), v.Sequence[1])
	assert.Equal(t, layout.Sym("L"), v.Sequence[23])
	assert.Equal(t, layout.Num(13), v.Sequence[24])
	assert.True(t, v.Sequence.Less(layout.Sym("A"), layout.Num(2)))
	assert.False(t, v.Sequence.Less(layout.Sym("Z"), layout.Num(1)))
	require.NoError(t, v.Validate())

	h := newHarness(t, v)
	require.NoError(t, h.engine.Start())
	assert.Len(t, h.engine.Nodes(), 25)
	assert.Equal(t, Connected, h.drag(layout.Num(1), layout.Sym("A")).Kind)
	out := h.drag(layout.Sym("A"), layout.Num(3))
	assert.Equal(t, Rejected, out.Kind)
	assert.Contains(t, out.Message, "number")
}

func TestUnknownVariant(t *testing.T) {
	_, err := DefaultCatalog().Get("C")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestAttemptPathLength(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())

	start := h.at(layout.Num(1))
	require.Equal(t, Pressed, h.engine.PointerDown(1, start).Kind)
	h.engine.PointerMove(1, layout.Point{X: start.X, Y: start.Y + 30})
	h.engine.PointerMove(1, layout.Point{X: start.X + 40, Y: start.Y + 30})
	end := layout.Point{X: start.X + 40, Y: start.Y}
	_, err := h.engine.PointerUp(1, end)
	require.NoError(t, err)

	attempts := h.engine.Attempts()
	require.Len(t, attempts, 1)
	assert.InDelta(t, 100, attempts[0].Path, 1e-9)
	assert.False(t, attempts[0].Valid, "released over empty space")
}
