package tmt

import (
	"fmt"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/pointer"
)

// Phase of a raw pointer event.
type Phase string

const (
	PhaseDown   Phase = "down"
	PhaseMove   Phase = "move"
	PhaseUp     Phase = "up"
	PhaseCancel Phase = "cancel"
)

// Controller feeds raw browser events through the pointer normaliser into
// an engine. Events from a pointer other than the tracked one are dropped
// before they reach the engine.
type Controller struct {
	Engine     *Engine
	normalizer pointer.Normalizer
}

// NewController wraps an engine.
func NewController(e *Engine) *Controller {
	return &Controller{Engine: e}
}

// Handle dispatches one raw event. origin is the top-left corner of the
// canvas in client coordinates.
func (c *Controller) Handle(phase Phase, raw pointer.RawEvent, origin layout.Point) (Outcome, error) {
	if phase == PhaseDown {
		ev := c.normalizer.Start(raw)
		if ev == nil {
			return Outcome{Kind: Ignored}, nil
		}
		return c.Engine.PointerDown(ev.Identifier, pointer.ToCanvas(ev, origin)), nil
	}

	id, ok := c.Engine.ActivePointer()
	if !ok {
		return Outcome{Kind: Ignored}, nil
	}

	switch phase {
	case PhaseMove:
		ev := c.normalizer.Move(raw, id)
		if ev == nil {
			return Outcome{Kind: Ignored}, nil
		}
		return c.Engine.PointerMove(id, pointer.ToCanvas(ev, origin)), nil
	case PhaseUp:
		ev := c.normalizer.End(raw, id)
		if ev == nil {
			return Outcome{Kind: Ignored}, nil
		}
		return c.Engine.PointerUp(id, pointer.ToCanvas(ev, origin))
	case PhaseCancel:
		if c.normalizer.End(raw, id) == nil {
			return Outcome{Kind: Ignored}, nil
		}
		return c.Engine.PointerCancel(id), nil
	default:
		return Outcome{Kind: Ignored}, fmt.Errorf("unknown pointer phase %q", phase)
	}
}
