package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cogscreen-go/internal/recording"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, uploadPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "2", r.FormValue("chunk_index"))
		assert.Equal(t, "rec-1", r.FormValue("recording_id"))
		assert.Equal(t, "vegetables", r.FormValue("type"))

		file, header, err := r.FormFile("audio_chunk")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "c2.ogg", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "opus-bytes", string(data))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok", 0)
	err := c.UploadSegment(context.Background(), recording.Segment{
		RecordingID: "rec-1",
		Index:       2,
		Category:    recording.Vegetables,
		MIMEType:    "audio/ogg;codecs=opus",
		Data:        []byte("opus-bytes"),
	})
	require.NoError(t, err)
}

func TestUploadSegmentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, "", 0).UploadSegment(context.Background(), recording.Segment{Data: []byte("x")})
	assert.ErrorContains(t, err, "status 502")
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		total   int
		wantErr string
	}{
		{name: "analysis", status: http.StatusOK, body: `{"total":17,"words":["cat","dog"]}`, total: 17},
		{name: "error payload", status: http.StatusOK, body: `{"error":"no speech detected"}`, wantErr: "no speech detected"},
		{name: "error with status", status: http.StatusInternalServerError, body: `{"error":"model offline"}`, wantErr: "model offline"},
		{name: "empty error is ignored", status: http.StatusOK, body: `{"error":"","total":3}`, total: 3},
		{name: "bad status", status: http.StatusServiceUnavailable, body: `oops`, wantErr: "status 503"},
		{name: "bad json", status: http.StatusOK, body: `not json`, wantErr: "decode analysis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, finalizePath, r.URL.Path)
				assert.NoError(t, r.ParseMultipartForm(1<<20))
				assert.Equal(t, "rec-9", r.FormValue("recording_id"))
				assert.Equal(t, "animals", r.FormValue("type"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			analysis, err := New(srv.URL, "", 0).Finalize(context.Background(), "rec-9", recording.Animals)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, analysis)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, analysis.Total)
			assert.JSONEq(t, tt.body, string(analysis.Raw))
		})
	}
}

func TestWithToken(t *testing.T) {
	base := New("http://speech", "", 0)
	scoped := base.WithToken("abc")
	assert.Empty(t, base.token)
	assert.Equal(t, "abc", scoped.token)
}
