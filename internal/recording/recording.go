// Package recording captures a verbal fluency answer as a series of
// fixed-length audio segments, uploads each one as soon as it is cut, and
// asks the speech backend to analyse the whole recording once every upload
// has settled.
package recording

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	ErrAlreadyRecording = errors.New("recording: a session is already in progress")
	ErrFinalize         = errors.New("recording: finalize failed")
	ErrUnknownCategory  = errors.New("recording: unknown category")
)

// Category is the word category the participant names.
type Category string

const (
	Animals    Category = "animals"
	Vegetables Category = "vegetables"
)

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Animals, Vegetables:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// DefaultEncodings in order of preference.
var DefaultEncodings = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
}

// Extension maps a MIME type to the file extension used for uploads.
func Extension(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/webm"):
		return "webm"
	case strings.HasPrefix(mime, "audio/ogg"):
		return "ogg"
	default:
		return "webm"
	}
}

// MIMEFromFilename guesses the audio type of an uploaded file from its
// extension, or returns "" for unknown extensions.
func MIMEFromFilename(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".opus":
		return "audio/ogg"
	default:
		return ""
	}
}

// Config holds coordinator timings.
type Config struct {
	SegmentLength time.Duration `mapstructure:"segment_length"`
	Countdown     time.Duration `mapstructure:"countdown"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
	Encodings     []string      `mapstructure:"encodings"`
}

// DefaultConfig is a 60 second session cut into 20 second segments.
func DefaultConfig() Config {
	return Config{
		SegmentLength: 20 * time.Second,
		Countdown:     60 * time.Second,
		DrainInterval: 50 * time.Millisecond,
		Encodings:     DefaultEncodings,
	}
}

// Capturer gives access to the audio input device.
type Capturer interface {
	Open(ctx context.Context) (Stream, error)
	Supports(mime string) bool
}

// Stream is an open capture device. Close stops every track.
type Stream interface {
	Record(mime string) (Recorder, error)
	Close() error
}

// Recorder captures one segment. Each segment gets a new recorder so that
// Stop yields a self-contained blob.
type Recorder interface {
	Stop() ([]byte, error)
}

// Segment is one uploaded slice of a recording.
type Segment struct {
	RecordingID string
	Index       int
	Category    Category
	MIMEType    string
	Data        []byte
}

// Filename is the multipart file name of the segment.
func (s Segment) Filename() string {
	return fmt.Sprintf("c%d.%s", s.Index, Extension(s.MIMEType))
}

// Analysis is the speech backend's verdict on a whole recording.
type Analysis struct {
	Total int             `json:"total"`
	Raw   json.RawMessage `json:"-"`
}

// MarshalJSON returns the backend payload unchanged when available.
func (a Analysis) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return json.Marshal(struct {
		Total int `json:"total"`
	}{a.Total})
}

// UnmarshalJSON keeps the full payload alongside the total.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var head struct {
		Total float64 `json:"total"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	a.Total = int(head.Total)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Uploader delivers segments.
type Uploader interface {
	UploadSegment(ctx context.Context, seg Segment) error
}

// Finalizer closes a recording on the backend.
type Finalizer interface {
	Finalize(ctx context.Context, recordingID string, category Category) (*Analysis, error)
}
