// Package speech talks to the speech analysis backend that receives
// verbal fluency segments and scores the finished recording.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cogscreen-go/internal/recording"
)

const (
	uploadPath   = "/speech_upload_chunk"
	finalizePath = "/speech_test_finalize"
)

// Client implements recording.Uploader and recording.Finalizer over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL. token, when set, is sent as a bearer
// token on every request.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of the client that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// UploadSegment posts one segment. Only transport and status failures are
// reported; the response body is ignored.
func (c *Client) UploadSegment(ctx context.Context, seg recording.Segment) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio_chunk", seg.Filename())
	if err != nil {
		return err
	}
	if _, err := part.Write(seg.Data); err != nil {
		return err
	}
	fields := [][2]string{
		{"chunk_index", strconv.Itoa(seg.Index)},
		{"recording_id", seg.RecordingID},
		{"type", string(seg.Category)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := c.post(ctx, uploadPath, w.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("upload segment %d: %w", seg.Index, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload segment %d: status %d", seg.Index, resp.StatusCode)
	}
	return nil
}

// Finalize asks the backend to analyse the recording. A payload carrying an
// error field is a failure even with a 2xx status.
func (c *Client) Finalize(ctx context.Context, recordingID string, category recording.Category) (*recording.Analysis, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("recording_id", recordingID); err != nil {
		return nil, err
	}
	if err := w.WriteField("type", string(category)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, finalizePath, w.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("finalize recording: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read finalize response: %w", err)
	}
	if msg := errorField(payload); msg != "" {
		return nil, errors.New(msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("finalize recording: status %d", resp.StatusCode)
	}

	var analysis recording.Analysis
	if err := json.Unmarshal(payload, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &analysis, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// errorField returns the backend error message, treating falsy values as
// absent.
func errorField(payload []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(payload, &envelope) != nil {
		return ""
	}
	switch raw := string(envelope.Error); raw {
	case "", "null", "false", "0", `""`:
		return ""
	default:
		var msg string
		if json.Unmarshal(envelope.Error, &msg) == nil {
			return msg
		}
		return raw
	}
}
