package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/technosupport/ts-camstream/internal/ingest"
	"github.com/technosupport/ts-camstream/internal/middleware"
)

type UploadHandler struct {
	Ingest *ingest.Service
}

func NewUploadHandler(svc *ingest.Service) *UploadHandler {
	return &UploadHandler{Ingest: svc}
}

// POST /api/v1/frames
//
// Multipart form from a device: file plus the api_key the auth
// middleware already consumed, and an optional RFC 3339 capture date.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	cam, ok := middleware.GetCamera(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"status": "NOK", "error": "unauthorized"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"status": "NOK", "error": "file field required"})
		return
	}
	defer file.Close()

	frameBytes, err := io.ReadAll(file)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"status": "NOK", "error": "unreadable upload"})
		return
	}

	// A malformed device clock string is not worth failing the frame.
	var capturedAt *time.Time
	if raw := r.FormValue("date"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			capturedAt = &t
		} else {
			log.Printf("upload: ignoring unparseable date %q from camera %s", raw, cam.Name)
		}
	}

	result, err := h.Ingest.Ingest(r.Context(), cam, frameBytes, header.Header.Get("Content-Type"), header.Filename, capturedAt)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrRejectedFormat):
			respondJSON(w, http.StatusBadRequest, map[string]string{"status": "NOK", "error": "not allowed file"})
		case errors.Is(err, ingest.ErrStorageUnavailable):
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "NOK", "error": "storage unavailable"})
		default:
			respondJSON(w, http.StatusInternalServerError, map[string]string{"status": "NOK", "error": "upload failed"})
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "OK",
		"ref":          result.BlobRef,
		"camera_state": result.CameraActive,
	})
}

// GET /api/v1/camera-state
//
// Lets a device poll whether it should keep capturing without paying
// for an upload.
func (h *UploadHandler) CameraState(w http.ResponseWriter, r *http.Request) {
	cam, ok := middleware.GetCamera(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"result": "NOK", "error": "unauthorized"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"result":       "OK",
		"camera_state": cam.IsActive,
	})
}
