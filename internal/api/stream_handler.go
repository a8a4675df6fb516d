package api

import (
	"net/http"

	"github.com/technosupport/ts-camstream/internal/stream"
)

type StreamHandler struct {
	Streams *stream.Server
}

func NewStreamHandler(s *stream.Server) *StreamHandler {
	return &StreamHandler{Streams: s}
}

// GET /api/v1/cameras/{id}/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := cameraID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.Streams.Serve(w, r, id)
}
