// Package ingest is the frame upload pipeline: validate, store bytes,
// record metadata, then fan out to live subscribers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"time"

	"github.com/technosupport/ts-camstream/internal/data"
	"github.com/technosupport/ts-camstream/internal/metrics"
)

var (
	ErrRejectedFormat     = errors.New("not allowed file")
	ErrStorageUnavailable = errors.New("blob store unavailable")
)

type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType, filename string) (string, error)
}

type FrameRecorder interface {
	Create(ctx context.Context, f *data.Frame) error
}

type Publisher interface {
	Publish(ctx context.Context, cameraID, frameRef string) error
}

// Notifier receives the new-frame side effect; implementations must not
// block and their failures never reach the uploader.
type Notifier interface {
	NewFrame(cam *data.Camera, publicURL string)
}

type Service struct {
	blobs     BlobStore
	frames    FrameRecorder
	publisher Publisher
	notifier  Notifier
	validator *Validator

	// publicBase is the externally reachable prefix for blob URLs
	// handed to the notification sink.
	publicBase string
}

func NewService(blobs BlobStore, frames FrameRecorder, pub Publisher, n Notifier, v *Validator, publicBase string) *Service {
	return &Service{
		blobs:      blobs,
		frames:     frames,
		publisher:  pub,
		notifier:   n,
		validator:  v,
		publicBase: publicBase,
	}
}

// Result is what a successful ingestion reports back to the device.
type Result struct {
	BlobRef      string
	CameraActive bool
}

// Ingest runs the pipeline for one authenticated upload. The frame
// record is durable before the publish happens, so a subscriber that
// looks up metadata for a delivered ref will find it. A publish failure
// is absorbed: the frame is stored, it just isn't live-forwarded.
func (s *Service) Ingest(ctx context.Context, cam *data.Camera, frameBytes []byte, contentType, filename string, capturedAt *time.Time) (*Result, error) {
	if len(frameBytes) == 0 {
		metrics.IngestRejected.WithLabelValues("empty").Inc()
		return nil, ErrRejectedFormat
	}
	if !s.validator.Allowed(filename) {
		metrics.IngestRejected.WithLabelValues("format").Inc()
		return nil, ErrRejectedFormat
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}

	ref, err := s.blobs.Put(ctx, frameBytes, contentType, filename)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	frame := &data.Frame{
		BlobRef:    ref,
		CameraName: cam.Name,
		CapturedAt: time.Now(),
	}
	if capturedAt != nil {
		frame.CapturedAt = *capturedAt
	}
	if err := s.frames.Create(ctx, frame); err != nil {
		return nil, fmt.Errorf("frame record: %w", err)
	}

	// Durable metadata exists from here on; everything below is
	// best-effort fan-out.
	if err := s.publisher.Publish(ctx, cam.ID.String(), ref); err != nil {
		metrics.PublishFailures.Inc()
		log.Printf("ingest: publish failed for camera %s ref %s: %v", cam.ID, ref, err)
	}

	go s.notifier.NewFrame(cam, s.publicBase+"/"+ref)

	metrics.FramesIngested.WithLabelValues(cam.Name).Inc()
	return &Result{BlobRef: ref, CameraActive: cam.IsActive}, nil
}
