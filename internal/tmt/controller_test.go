package tmt

import (
	"testing"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/pointer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gesture struct {
	phase Phase
	at    layout.Point
}

var origin = layout.Point{X: 40, Y: 120}

func mouseRaw(p layout.Point) pointer.RawEvent {
	return pointer.RawEvent{Kind: pointer.Mouse, ClientX: p.X + origin.X, ClientY: p.Y + origin.Y}
}

func touchRaw(id int, p layout.Point, prevented *int) pointer.RawEvent {
	tp := pointer.TouchPoint{Identifier: id, ClientX: p.X + origin.X, ClientY: p.Y + origin.Y}
	return pointer.RawEvent{
		Kind:           pointer.Touch,
		ChangedTouches: []pointer.TouchPoint{tp},
		Touches:        []pointer.TouchPoint{tp},
		PreventDefault: func() { *prevented++ },
	}
}

func script(h *harness) []gesture {
	one, two, three := h.at(layout.Num(1)), h.at(layout.Num(2)), h.at(layout.Num(3))
	return []gesture{
		{PhaseDown, one}, {PhaseMove, layout.Point{X: 90, Y: 50}}, {PhaseUp, two},
		{PhaseDown, two}, {PhaseUp, one},
		{PhaseDown, two}, {PhaseCancel, two},
		{PhaseDown, two}, {PhaseUp, layout.Point{X: 200, Y: 95}},
		{PhaseDown, two}, {PhaseMove, layout.Point{X: 200, Y: 50}}, {PhaseUp, three},
	}
}

func TestMouseAndTouchProduceSameRun(t *testing.T) {
	v := lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3))

	mouse := newHarness(t, v)
	require.NoError(t, mouse.engine.Start())
	mc := NewController(mouse.engine)
	for _, g := range script(mouse) {
		_, err := mc.Handle(g.phase, mouseRaw(g.at), origin)
		require.NoError(t, err)
	}

	touch := newHarness(t, v)
	require.NoError(t, touch.engine.Start())
	tc := NewController(touch.engine)
	prevented := 0
	for _, g := range script(touch) {
		_, err := tc.Handle(g.phase, touchRaw(5, g.at, &prevented), origin)
		require.NoError(t, err)
	}

	assert.Equal(t, labels(mouse.engine.Connections()), labels(touch.engine.Connections()))
	assert.Equal(t, mouse.engine.ErrorCount(), touch.engine.ErrorCount())
	assert.Equal(t, 1, touch.engine.ErrorCount())
	assert.Equal(t, Complete, mouse.engine.State())
	assert.Equal(t, Complete, touch.engine.State())
	assert.Positive(t, prevented)
}

func TestStrayTouchIsDropped(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2), layout.Num(3)))
	require.NoError(t, h.engine.Start())
	c := NewController(h.engine)
	prevented := 0

	out, err := c.Handle(PhaseDown, touchRaw(3, h.at(layout.Num(1)), &prevented), origin)
	require.NoError(t, err)
	require.Equal(t, Pressed, out.Kind)

	out, err = c.Handle(PhaseUp, touchRaw(9, h.at(layout.Num(2)), &prevented), origin)
	require.NoError(t, err)
	assert.Equal(t, Ignored, out.Kind)

	out, err = c.Handle(PhaseCancel, touchRaw(9, h.at(layout.Num(2)), &prevented), origin)
	require.NoError(t, err)
	assert.Equal(t, Ignored, out.Kind)
	assert.Equal(t, Dragging, h.engine.State())

	out, err = c.Handle(PhaseUp, touchRaw(3, h.at(layout.Num(2)), &prevented), origin)
	require.NoError(t, err)
	assert.Equal(t, Connected, out.Kind)
}

func TestUnknownPhase(t *testing.T) {
	h := newHarness(t, lineVariant(ExplicitStart, layout.Num(1), layout.Num(2)))
	require.NoError(t, h.engine.Start())
	c := NewController(h.engine)
	c.Handle(PhaseDown, mouseRaw(h.at(layout.Num(1))), origin)

	_, err := c.Handle(Phase("hover"), mouseRaw(layout.Point{}), origin)
	assert.Error(t, err)
}
