// Package stream serves live multipart frame streams. One viewer
// connection is one subscription and one handler goroutine, blocking on
// the subscription until the viewer goes away.
package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/technosupport/ts-camstream/internal/bus"
	"github.com/technosupport/ts-camstream/internal/data"
	"github.com/technosupport/ts-camstream/internal/metrics"
)

// ContentType is the response MIME type for live streams.
const ContentType = "multipart/x-mixed-replace; boundary=frame"

// Segment framing. The layout is a wire contract shared with every
// deployed viewer: boundary, one header line, blank line, payload, CRLF.
const (
	segmentHeader  = "--frame\r\nContent-Type: image/jpeg\r\n\r\n"
	segmentTrailer = "\r\n"
)

const blobCacheSize = 64

type CameraResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error)
}

type FrameSource interface {
	Subscribe(ctx context.Context, cameraID string) (*bus.Subscription, error)
}

type BlobResolver interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

type Server struct {
	cams  CameraResolver
	bus   FrameSource
	blobs BlobResolver

	// cache absorbs repeated resolutions when many viewers watch the
	// same camera; refs are content addresses so entries never go stale.
	cache *lru.Cache[string, []byte]
}

func NewServer(cams CameraResolver, source FrameSource, blobs BlobResolver) *Server {
	cache, _ := lru.New[string, []byte](blobCacheSize)
	return &Server{cams: cams, bus: source, blobs: blobs, cache: cache}
}

// Serve streams frames for one camera to one viewer until the viewer
// disconnects. It never ends on its own while the connection is open.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, cameraID uuid.UUID) {
	ctx := r.Context()

	if _, err := s.cams.GetByID(ctx, cameraID); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Printf("stream: camera lookup failed for %s: %v", cameraID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	sub, err := s.bus.Subscribe(ctx, cameraID.String())
	if err != nil {
		// Degraded: announce with a single empty segment and end,
		// rather than breaking the already-committed response.
		log.Printf("stream: subscribe failed for camera %s: %v", cameraID, err)
		writeSegment(w, nil)
		return
	}
	defer sub.Close()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	for {
		select {
		case <-ctx.Done():
			return
		case ref, ok := <-sub.Frames():
			if !ok {
				return
			}
			payload, err := s.resolve(ctx, ref)
			if err != nil {
				// A bad ref costs one segment, never the stream.
				metrics.SegmentsSkipped.Inc()
				log.Printf("stream: skipping unresolvable ref %s: %v", ref, err)
				continue
			}
			if err := writeSegment(w, payload); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
			metrics.FramesStreamed.Inc()
		}
	}
}

func (s *Server) resolve(ctx context.Context, ref string) ([]byte, error) {
	if payload, ok := s.cache.Get(ref); ok {
		return payload, nil
	}
	payload, err := s.blobs.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	s.cache.Add(ref, payload)
	return payload, nil
}

func writeSegment(w io.Writer, payload []byte) error {
	if _, err := io.WriteString(w, segmentHeader); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, segmentTrailer)
	return err
}

// Segment renders one multipart segment as it appears on the wire.
// Exposed for tests and tooling that assert exact framing.
func Segment(payload []byte) []byte {
	out := make([]byte, 0, len(segmentHeader)+len(payload)+len(segmentTrailer))
	out = append(out, segmentHeader...)
	out = append(out, payload...)
	out = append(out, segmentTrailer...)
	return out
}
