package archive

import (
	"context"

	"cogscreen-go/internal/recording"

	"go.uber.org/zap"
)

// Uploader copies every segment into a Store before handing it to the next
// uploader. Archive failures are logged and never block the upload.
type Uploader struct {
	store Store
	next  recording.Uploader
	log   *zap.Logger
}

// NewUploader wraps next. A nil next archives only.
func NewUploader(log *zap.Logger, store Store, next recording.Uploader) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{store: store, next: next, log: log}
}

func (u *Uploader) UploadSegment(ctx context.Context, seg recording.Segment) error {
	key := SegmentKey(seg.RecordingID, seg.Filename())
	contentType := seg.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := u.store.Put(ctx, key, contentType, seg.Data); err != nil {
		u.log.Warn("Failed to archive speech segment",
			zap.String("recording_id", seg.RecordingID),
			zap.String("key", key),
			zap.Error(err),
		)
		if u.next == nil {
			return err
		}
	}
	if u.next == nil {
		return nil
	}
	return u.next.UploadSegment(ctx, seg)
}
