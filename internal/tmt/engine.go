// Package tmt runs a trail making test session: it validates drag gestures
// between nodes against the variant's sequence, counts errors, times the
// run and hands the result to a sink exactly once.
package tmt

import (
	"fmt"
	"time"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/timer"

	"go.uber.org/zap"
)

// State of an engine.
type State int

const (
	Idle State = iota
	Armed
	Dragging
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Dragging:
		return "dragging"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := Idle; st <= Complete; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// OutcomeKind classifies what a pointer event did.
type OutcomeKind int

const (
	Ignored   OutcomeKind = iota
	Pressed               // press accepted on the anchor
	Moved                 // drag feedback updated
	Connected             // valid edge appended
	Rejected              // wrong node, error counted
	Released              // release over empty space or the anchor
	Cancelled             // drag aborted, anchor dropped
	Completed             // final edge appended
)

func (k OutcomeKind) String() string {
	return [...]string{"ignored", "pressed", "moved", "connected", "rejected", "released", "cancelled", "completed"}[k]
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for kind := Ignored; kind <= Completed; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Connection is one valid edge.
type Connection struct {
	From layout.Node `json:"from"`
	To   layout.Node `json:"to"`
}

// Attempt records one release. Path is the distance the pointer travelled
// since the press.
type Attempt struct {
	From    layout.Label  `json:"from"`
	To      *layout.Label `json:"to,omitempty"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Path    float64       `json:"path"`
	Elapsed float64       `json:"elapsed"`
	Valid   bool          `json:"valid"`
}

// Result is the persisted outcome of a completed run.
type Result struct {
	Duration float64 `json:"duration"`
	Errors   int     `json:"errors"`
}

// Completion is everything known about a finished run.
type Completion struct {
	Variant     string
	Radius      float64
	Result      Result
	Nodes       []layout.Node
	Connections []Connection
	Attempts    []Attempt
	StartedAt   time.Time
	CompletedAt time.Time
}

// Sink receives completed runs.
type Sink interface {
	Complete(c Completion) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Completion) error

func (f SinkFunc) Complete(c Completion) error { return f(c) }

// Outcome reports the effect of one pointer event.
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Message    string      `json:"message,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
	Result     *Result     `json:"result,omitempty"`
}

// Options configure an engine. Zero values pick the wall clock, the default
// tick cadence and a crypto-seeded layout.
type Options struct {
	Clock    timer.Clock
	Interval time.Duration
	Observer timer.Observer
	Sink     Sink
	Seed     int64
}

// Engine is the state of one trail making test session. It is not safe for
// concurrent use; callers serialise events per session.
type Engine struct {
	log      *zap.Logger
	variant  Variant
	provider *layout.Provider
	clock    timer.Clock
	timer    *timer.SessionTimer
	sink     Sink

	state         State
	nodes         []layout.Node
	connections   []Connection
	anchor        *layout.Node
	candidate     *layout.Point
	dragPath      float64
	activePointer *int
	errors        int
	attempts      []Attempt
	timerStarted  bool
	persisted     bool
	result        *Result
	startedAt     time.Time
	message       string
}

// New builds an idle engine with a fresh layout.
func New(log *zap.Logger, v Variant, opts Options) (*Engine, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timer.Real{}
	}

	labels := []layout.Label(v.Sequence)
	var provider *layout.Provider
	if opts.Seed != 0 {
		provider = layout.NewSeededProvider(v.Mode, labels, v.LayoutConfig(), v.FixedPoints, opts.Seed)
	} else {
		var err error
		provider, err = layout.NewProvider(v.Mode, labels, v.LayoutConfig(), v.FixedPoints)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		log:      log.With(zap.String("variant", v.ID)),
		variant:  v,
		provider: provider,
		clock:    clock,
		timer:    timer.NewSession(clock, opts.Interval, opts.Observer),
		sink:     opts.Sink,
	}
	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset stops the timer, discards progress and lays out new nodes. The
// engine is left Idle.
func (e *Engine) Reset() error {
	e.timer.Reset()
	e.state = Idle
	e.connections = nil
	e.anchor = nil
	e.errors = 0
	e.attempts = nil
	e.timerStarted = false
	e.persisted = false
	e.result = nil
	e.startedAt = time.Time{}
	e.message = ""
	e.clearDrag()

	nodes, err := e.provider.Generate()
	if err != nil {
		e.nodes = nil
		return fmt.Errorf("generate %s layout: %w", e.variant.ID, err)
	}
	if len(nodes) != len(e.variant.Sequence) {
		e.nodes = nil
		return fmt.Errorf("generate %s layout: placed %d of %d nodes: %w", e.variant.ID, len(nodes), len(e.variant.Sequence), layout.ErrLayoutExhausted)
	}
	e.nodes = nodes
	return nil
}

// Start resets the session and arms it. Under ExplicitStart the timer
// begins now.
func (e *Engine) Start() error {
	if err := e.Reset(); err != nil {
		return err
	}
	e.state = Armed
	if e.variant.TimerPolicy == ExplicitStart {
		e.startTimer()
	}
	e.log.Debug("Trail making test started")
	return nil
}

func (e *Engine) startTimer() {
	e.timer.Start()
	e.timerStarted = true
	e.startedAt = e.clock.Now()
}

// PointerDown handles a press at p. Only the current anchor, the
// sequence element at len(connections), is accepted. A press while a drag
// is in progress is ignored.
func (e *Engine) PointerDown(id int, p layout.Point) Outcome {
	if e.state != Armed {
		return Outcome{Kind: Ignored}
	}
	node, ok := layout.HitTest(e.nodes, p, e.variant.Radius)
	if !ok {
		return Outcome{Kind: Ignored}
	}
	expected, _ := e.variant.Sequence.At(len(e.connections))
	if node.Label != expected {
		return Outcome{Kind: Ignored}
	}

	if !e.timerStarted {
		e.startTimer()
	}
	e.anchor = &node
	e.activePointer = &id
	e.candidate = &p
	e.dragPath = 0
	e.state = Dragging
	e.message = ""
	return Outcome{Kind: Pressed}
}

// PointerMove updates drag feedback for the active pointer.
func (e *Engine) PointerMove(id int, p layout.Point) Outcome {
	if !e.tracking(id) {
		return Outcome{Kind: Ignored}
	}
	e.dragPath += e.candidate.Distance(p)
	e.candidate = &p
	return Outcome{Kind: Moved}
}

// PointerUp resolves a release at p. The release is accepted only on the
// sequence element at len(connections)+1, and never on the anchor itself.
// Any other node counts as an error; empty space and the anchor are no-ops.
// The returned error comes from the sink and leaves the run complete.
func (e *Engine) PointerUp(id int, p layout.Point) (Outcome, error) {
	if !e.tracking(id) || e.anchor == nil {
		return Outcome{Kind: Ignored}, nil
	}
	anchor := *e.anchor
	path := e.dragPath + e.candidate.Distance(p)
	e.clearDrag()
	e.state = Armed

	attempt := Attempt{From: anchor.Label, X: p.X, Y: p.Y, Path: path, Elapsed: e.timer.Elapsed().Seconds()}
	node, ok := layout.HitTest(e.nodes, p, e.variant.Radius)
	if !ok {
		e.attempts = append(e.attempts, attempt)
		return Outcome{Kind: Released}, nil
	}
	label := node.Label
	attempt.To = &label

	expected, hasNext := e.variant.Sequence.At(len(e.connections) + 1)
	switch {
	case hasNext && node.Label == expected && node.ID != anchor.ID:
		attempt.Valid = true
		e.attempts = append(e.attempts, attempt)
		conn := Connection{From: anchor, To: node}
		e.connections = append(e.connections, conn)
		e.anchor = &node
		e.message = ""
		if len(e.connections) == len(e.variant.Sequence)-1 {
			return e.complete(conn)
		}
		return Outcome{Kind: Connected, Connection: &conn}, nil

	case node.ID != anchor.ID:
		e.attempts = append(e.attempts, attempt)
		e.errors++
		e.message = e.wrongNodeMessage(anchor)
		e.log.Debug("Wrong node connected",
			zap.String("from", anchor.Label.String()),
			zap.String("to", node.Label.String()),
			zap.Int("errors", e.errors),
		)
		return Outcome{Kind: Rejected, Message: e.message}, nil

	default:
		e.attempts = append(e.attempts, attempt)
		return Outcome{Kind: Released}, nil
	}
}

// PointerCancel aborts the active drag and drops the anchor. Connections
// and the error count are untouched.
func (e *Engine) PointerCancel(id int) Outcome {
	if !e.tracking(id) {
		return Outcome{Kind: Ignored}
	}
	e.clearDrag()
	e.anchor = nil
	e.state = Armed
	return Outcome{Kind: Cancelled}
}

func (e *Engine) tracking(id int) bool {
	return e.state == Dragging && e.activePointer != nil && *e.activePointer == id
}

func (e *Engine) clearDrag() {
	e.activePointer = nil
	e.candidate = nil
	e.dragPath = 0
}

func (e *Engine) complete(last Connection) (Outcome, error) {
	elapsed := e.timer.Stop()
	e.state = Complete
	result := Result{Duration: elapsed.Seconds(), Errors: e.errors}
	e.result = &result
	out := Outcome{Kind: Completed, Connection: &last, Result: &result}

	if e.persisted || e.sink == nil {
		return out, nil
	}
	e.persisted = true
	e.log.Info("Trail making test completed",
		zap.Float64("duration", result.Duration),
		zap.Int("errors", result.Errors),
	)
	err := e.sink.Complete(Completion{
		Variant:     e.variant.ID,
		Radius:      e.variant.Radius,
		Result:      result,
		Nodes:       append([]layout.Node(nil), e.nodes...),
		Connections: append([]Connection(nil), e.connections...),
		Attempts:    append([]Attempt(nil), e.attempts...),
		StartedAt:   e.startedAt,
		CompletedAt: e.clock.Now(),
	})
	if err != nil {
		return out, fmt.Errorf("persist %s result: %w", e.variant.ID, err)
	}
	return out, nil
}

func (e *Engine) wrongNodeMessage(anchor layout.Node) string {
	kind := "number"
	if expected, ok := e.variant.Sequence.At(len(e.connections) + 1); ok && expected.Category == layout.Symbol {
		kind = "letter"
	}
	return fmt.Sprintf("You just connected %s. Which %s comes next?", anchor.Label, kind)
}

// Close stops the timer. The engine must not be used afterwards.
func (e *Engine) Close() { e.timer.Stop() }

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Variant returns the variant being played.
func (e *Engine) Variant() Variant { return e.variant }

// ActivePointer returns the identifier of the pointer being tracked.
func (e *Engine) ActivePointer() (int, bool) {
	if e.activePointer == nil {
		return 0, false
	}
	return *e.activePointer, true
}

// Connections returns a copy of the committed edges.
func (e *Engine) Connections() []Connection {
	return append([]Connection(nil), e.connections...)
}

// ErrorCount returns the number of wrong-node releases.
func (e *Engine) ErrorCount() int { return e.errors }

// Attempts returns a copy of the release log.
func (e *Engine) Attempts() []Attempt {
	return append([]Attempt(nil), e.attempts...)
}

// Nodes returns a copy of the current layout.
func (e *Engine) Nodes() []layout.Node {
	return append([]layout.Node(nil), e.nodes...)
}

// Elapsed returns the timer reading.
func (e *Engine) Elapsed() time.Duration { return e.timer.Elapsed() }

// Result returns the result of a completed run.
func (e *Engine) Result() (Result, bool) {
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

// Snapshot is the renderable view of a session.
type Snapshot struct {
	Variant     string        `json:"variant"`
	State       State         `json:"state"`
	Canvas      layout.Canvas `json:"canvas"`
	Radius      float64       `json:"radius"`
	Nodes       []layout.Node `json:"nodes"`
	Connections []Connection  `json:"connections"`
	Anchor      *layout.Node  `json:"anchor,omitempty"`
	Candidate   *layout.Point `json:"candidate,omitempty"`
	Errors      int           `json:"errors"`
	Timer       string        `json:"timer"`
	Message     string        `json:"message,omitempty"`
	Result      *Result       `json:"result,omitempty"`
	CanProceed  bool          `json:"canProceed"`
}

// Snapshot captures the current view.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Variant:     e.variant.ID,
		State:       e.state,
		Canvas:      e.variant.Canvas,
		Radius:      e.variant.Radius,
		Nodes:       e.Nodes(),
		Connections: e.Connections(),
		Errors:      e.errors,
		Timer:       timer.Display(e.timer.Elapsed()),
		Message:     e.message,
		CanProceed:  e.result != nil,
	}
	if s.Connections == nil {
		s.Connections = []Connection{}
	}
	if e.anchor != nil {
		a := *e.anchor
		s.Anchor = &a
	}
	if e.candidate != nil {
		c := *e.candidate
		s.Candidate = &c
	}
	if e.result != nil {
		r := *e.result
		s.Result = &r
	}
	return s
}
