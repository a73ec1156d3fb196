// Package pointer folds mouse and touch input into one event shape with a
// stable identifier, so a single gesture can be followed across start, move
// and end while stray touches are dropped.
package pointer

import "cogscreen-go/internal/layout"

// MouseIdentifier is the reserved identifier of the single mouse pointer.
// Touch identifiers reported by browsers are never negative.
const MouseIdentifier = -1

// Kind of raw input.
type Kind string

const (
	Mouse Kind = "mouse"
	Touch Kind = "touch"
)

// TouchPoint is one contact of a touch event.
type TouchPoint struct {
	Identifier int     `json:"identifier"`
	ClientX    float64 `json:"clientX"`
	ClientY    float64 `json:"clientY"`
	PageX      float64 `json:"pageX"`
	PageY      float64 `json:"pageY"`
}

// RawEvent is the wire form of a browser pointer event.
type RawEvent struct {
	Kind           Kind         `json:"kind"`
	ClientX        float64      `json:"clientX"`
	ClientY        float64      `json:"clientY"`
	PageX          float64      `json:"pageX"`
	PageY          float64      `json:"pageY"`
	Touches        []TouchPoint `json:"touches,omitempty"`
	ChangedTouches []TouchPoint `json:"changedTouches,omitempty"`

	// PreventDefault suppresses scrolling and zooming in the host. Nil when
	// the event did not come from a live browser context.
	PreventDefault func() `json:"-"`
}

// Event is a normalised pointer event.
type Event struct {
	ClientX    float64 `json:"clientX"`
	ClientY    float64 `json:"clientY"`
	PageX      float64 `json:"pageX"`
	PageY      float64 `json:"pageY"`
	Identifier int     `json:"identifier"`
}

// Normalizer converts raw events. It is stateless; the identifier to follow
// is owned by the caller.
type Normalizer struct{}

// Start normalises the first changed contact of a gesture. No identifier
// filter is applied.
func (Normalizer) Start(raw RawEvent) *Event {
	if raw.Kind != Touch {
		return mouseEvent(raw)
	}
	if len(raw.ChangedTouches) == 0 {
		return nil
	}
	return accept(raw, raw.ChangedTouches[0])
}

// Move normalises a move for the tracked identifier, or returns nil when the
// event belongs to another pointer.
func (n Normalizer) Move(raw RawEvent, id int) *Event {
	return n.find(raw, id)
}

// End normalises a release for the tracked identifier, or returns nil when
// the event belongs to another pointer.
func (n Normalizer) End(raw RawEvent, id int) *Event {
	return n.find(raw, id)
}

// find looks the identifier up in the changed contacts, then the active
// ones. A touch event that changed no contact matches nothing.
func (Normalizer) find(raw RawEvent, id int) *Event {
	if raw.Kind != Touch {
		if id != MouseIdentifier {
			return nil
		}
		return mouseEvent(raw)
	}
	if len(raw.ChangedTouches) == 0 {
		return nil
	}
	for _, list := range [][]TouchPoint{raw.ChangedTouches, raw.Touches} {
		for _, t := range list {
			if t.Identifier == id {
				return accept(raw, t)
			}
		}
	}
	return nil
}

// ToCanvas maps client coordinates onto a canvas whose bounding rectangle
// starts at origin.
func ToCanvas(ev *Event, origin layout.Point) layout.Point {
	return layout.Point{X: ev.ClientX - origin.X, Y: ev.ClientY - origin.Y}
}

func mouseEvent(raw RawEvent) *Event {
	return &Event{
		ClientX:    raw.ClientX,
		ClientY:    raw.ClientY,
		PageX:      raw.PageX,
		PageY:      raw.PageY,
		Identifier: MouseIdentifier,
	}
}

func touchEvent(t TouchPoint) *Event {
	return &Event{
		ClientX:    t.ClientX,
		ClientY:    t.ClientY,
		PageX:      t.PageX,
		PageY:      t.PageY,
		Identifier: t.Identifier,
	}
}

// accept claims a matched contact, suppressing the host's default gesture.
func accept(raw RawEvent, t TouchPoint) *Event {
	if raw.PreventDefault != nil {
		raw.PreventDefault()
	}
	return touchEvent(t)
}
