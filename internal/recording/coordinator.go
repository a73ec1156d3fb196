package recording

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cogscreen-go/internal/timer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of a recording session.
type State int32

const (
	Idle State = iota
	Capturing
	Draining
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Draining:
		return "draining"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Coordinator runs at most one recording session at a time.
type Coordinator struct {
	log       *zap.Logger
	cfg       Config
	clock     timer.Clock
	capturer  Capturer
	uploader  Uploader
	finalizer Finalizer

	mu     sync.Mutex
	active *Session
}

// NewCoordinator wires a coordinator. A nil clock means the wall clock.
func NewCoordinator(log *zap.Logger, cfg Config, clock timer.Clock, capturer Capturer, uploader Uploader, finalizer Finalizer) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = timer.Real{}
	}
	def := DefaultConfig()
	if cfg.SegmentLength <= 0 {
		cfg.SegmentLength = def.SegmentLength
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = def.Countdown
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = def.Encodings
	}
	return &Coordinator{
		log:       log,
		cfg:       cfg,
		clock:     clock,
		capturer:  capturer,
		uploader:  uploader,
		finalizer: finalizer,
	}
}

// Session is one recording run.
type Session struct {
	ID       string
	Category Category
	MIMEType string

	clock    timer.Clock
	deadline time.Time
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	pending   atomic.Int64
	segments  atomic.Int64
	finalized atomic.Bool
	state     atomic.Int32

	mu        sync.Mutex
	remaining time.Duration
	analysis  *Analysis
	err       error
}

// Stop ends capture. The segment in progress is cut and uploaded, then the
// session drains and finalizes.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once the session has finalized or failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is over and returns the analysis.
func (s *Session) Wait(ctx context.Context) (*Analysis, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis, s.err
}

// State returns the lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Pending is the number of uploads in flight.
func (s *Session) Pending() int64 { return s.pending.Load() }

// Segments is the number of non-empty segments handed to the uploader.
func (s *Session) Segments() int { return int(s.segments.Load()) }

// Remaining is the time left on the countdown. It freezes when capture ends.
func (s *Session) Remaining() time.Duration {
	if s.State() != Capturing {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.remaining
	}
	left := s.deadline.Sub(s.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Start opens the capture device and begins recording. It fails with
// ErrAlreadyRecording while another session is still running. Cancelling
// ctx ends capture like Stop; uploads and finalize still run to completion.
func (c *Coordinator) Start(ctx context.Context, category Category) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, ErrAlreadyRecording
	}

	stream, err := c.capturer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}

	s := &Session{
		ID:       uuid.NewString(),
		Category: category,
		MIMEType: c.pickEncoding(),
		clock:    c.clock,
		deadline: c.clock.Now().Add(c.cfg.Countdown),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.remaining = c.cfg.Countdown
	s.setState(Capturing)
	c.active = s

	c.log.Info("Recording started",
		zap.String("recording_id", s.ID),
		zap.String("category", string(category)),
		zap.String("mime", s.MIMEType),
	)
	go c.run(ctx, s, stream)
	return s, nil
}

// Active returns the running session, if any.
func (c *Coordinator) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Coordinator) pickEncoding() string {
	for _, mime := range c.cfg.Encodings {
		if c.capturer.Supports(mime) {
			return mime
		}
	}
	return ""
}

func (c *Coordinator) run(ctx context.Context, s *Session, stream Stream) {
	defer func() {
		c.mu.Lock()
		if c.active == s {
			c.active = nil
		}
		c.mu.Unlock()
		close(s.done)
	}()

	background := context.WithoutCancel(ctx)
	log := c.log.With(zap.String("recording_id", s.ID))

	c.capture(ctx, background, s, stream, log)

	s.mu.Lock()
	s.remaining = max(s.deadline.Sub(c.clock.Now()), 0)
	s.mu.Unlock()
	s.setState(Draining)
	c.drain(s)

	if err := stream.Close(); err != nil {
		log.Warn("Failed to release capture device", zap.Error(err))
	}

	if !s.finalized.CompareAndSwap(false, true) {
		return
	}
	s.setState(Finalizing)
	analysis, err := c.finalizer.Finalize(background, s.ID, s.Category)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrFinalize, err)
		s.setState(Failed)
		log.Error("Speech analysis failed", zap.Error(err))
		return
	}
	s.analysis = analysis
	s.setState(Done)
	log.Info("Recording finalized", zap.Int("segments", s.Segments()))
}

// capture cuts segments until the countdown ends, Stop is called or ctx is
// cancelled.
func (c *Coordinator) capture(ctx, background context.Context, s *Session, stream Stream, log *zap.Logger) {
	countdown := c.clock.NewTimer(c.cfg.Countdown)
	defer countdown.Stop()

	for index := 0; ; {
		rec, err := stream.Record(s.MIMEType)
		if err != nil {
			log.Error("Failed to start segment recorder", zap.Int("chunk_index", index), zap.Error(err))
			return
		}

		segment := c.clock.NewTimer(c.cfg.SegmentLength)
		active := true
		select {
		case <-segment.C():
			active = c.clock.Now().Before(s.deadline) && !stopped(s)
		case <-countdown.C():
			active = false
		case <-s.stop:
			active = false
		case <-ctx.Done():
			active = false
		}
		segment.Stop()

		data, err := rec.Stop()
		switch {
		case err != nil:
			log.Warn("Segment recorder failed", zap.Int("chunk_index", index), zap.Error(err))
		case len(data) > 0:
			c.upload(background, s, Segment{
				RecordingID: s.ID,
				Index:       index,
				Category:    s.Category,
				MIMEType:    s.MIMEType,
				Data:        data,
			}, log)
			index++
		}

		if !active {
			return
		}
	}
}

func stopped(s *Session) bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// upload sends a segment in the background. The pending counter goes up
// before the upload starts and down when it returns, whatever the outcome.
func (c *Coordinator) upload(ctx context.Context, s *Session, seg Segment, log *zap.Logger) {
	s.pending.Add(1)
	s.segments.Add(1)
	go func() {
		defer s.pending.Add(-1)
		if err := c.uploader.UploadSegment(ctx, seg); err != nil {
			log.Warn("Failed to upload speech segment", zap.Int("chunk_index", seg.Index), zap.Error(err))
		}
	}()
}

// drain waits for every upload to settle.
func (c *Coordinator) drain(s *Session) {
	if s.pending.Load() == 0 {
		return
	}
	ticker := c.clock.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()
	for s.pending.Load() > 0 {
		<-ticker.C()
	}
}
