package pointer

import (
	"testing"

	"cogscreen-go/internal/layout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMouseStartUsesSentinelIdentifier(t *testing.T) {
	var n Normalizer
	ev := n.Start(RawEvent{Kind: Mouse, ClientX: 10, ClientY: 20, PageX: 11, PageY: 21})
	require.NotNil(t, ev)
	assert.Equal(t, MouseIdentifier, ev.Identifier)
	assert.Equal(t, 10.0, ev.ClientX)
	assert.Equal(t, 21.0, ev.PageY)
}

func TestMouseMoveRejectsTouchIdentifier(t *testing.T) {
	var n Normalizer
	assert.Nil(t, n.Move(RawEvent{Kind: Mouse}, 3))
	assert.NotNil(t, n.End(RawEvent{Kind: Mouse}, MouseIdentifier))
}

func TestTouchStartTakesFirstChangedTouch(t *testing.T) {
	prevented := 0
	var n Normalizer
	ev := n.Start(RawEvent{
		Kind:           Touch,
		ChangedTouches: []TouchPoint{{Identifier: 4, ClientX: 1}, {Identifier: 5, ClientX: 2}},
		PreventDefault: func() { prevented++ },
	})
	require.NotNil(t, ev)
	assert.Equal(t, 4, ev.Identifier)
	assert.Equal(t, 1, prevented)
}

func TestTouchMoveSearchesChangedThenActive(t *testing.T) {
	var n Normalizer
	raw := RawEvent{
		Kind:           Touch,
		ChangedTouches: []TouchPoint{{Identifier: 1, ClientX: 100}},
		Touches:        []TouchPoint{{Identifier: 1, ClientX: 999}, {Identifier: 2, ClientX: 200}},
	}

	ev := n.Move(raw, 1)
	require.NotNil(t, ev)
	assert.Equal(t, 100.0, ev.ClientX, "changed touches take precedence")

	ev = n.Move(raw, 2)
	require.NotNil(t, ev)
	assert.Equal(t, 200.0, ev.ClientX)

	assert.Nil(t, n.End(raw, 7), "untracked pointer is dropped")
}

func TestTouchWithoutChangedContactsIsDropped(t *testing.T) {
	prevented := 0
	var n Normalizer
	raw := RawEvent{
		Kind:           Touch,
		Touches:        []TouchPoint{{Identifier: 3, ClientX: 50}},
		PreventDefault: func() { prevented++ },
	}

	assert.Nil(t, n.Start(raw))
	assert.Nil(t, n.Move(raw, 3))
	assert.Nil(t, n.End(raw, 3))
	assert.Zero(t, prevented, "default is kept when no contact matched")
}

func TestUnmatchedTouchKeepsDefault(t *testing.T) {
	prevented := 0
	var n Normalizer
	raw := RawEvent{
		Kind:           Touch,
		ChangedTouches: []TouchPoint{{Identifier: 8}},
		PreventDefault: func() { prevented++ },
	}

	assert.Nil(t, n.Move(raw, 2))
	assert.Zero(t, prevented)
	require.NotNil(t, n.End(raw, 8))
	assert.Equal(t, 1, prevented)
}

func TestToCanvas(t *testing.T) {
	p := ToCanvas(&Event{ClientX: 130, ClientY: 90}, layout.Point{X: 30, Y: 40})
	assert.Equal(t, layout.Point{X: 100, Y: 50}, p)
}
