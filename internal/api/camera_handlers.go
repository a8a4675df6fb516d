package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/technosupport/ts-camstream/internal/audit"
	"github.com/technosupport/ts-camstream/internal/cameras"
	"github.com/technosupport/ts-camstream/internal/data"
	"github.com/technosupport/ts-camstream/internal/middleware"
)

const (
	historyPageLimit = 100
	framesPageLimit  = 50
)

// FrameLister reads recent frame metadata for the admin listing.
type FrameLister interface {
	ListForCamera(ctx context.Context, cameraName string, limit int) ([]*data.Frame, error)
}

type CameraHandler struct {
	Service *cameras.Service
	Auditor cameras.Auditor
	Frames  FrameLister
}

func NewCameraHandler(svc *cameras.Service, aud cameras.Auditor, frames FrameLister) *CameraHandler {
	return &CameraHandler{Service: svc, Auditor: aud, Frames: frames}
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondNOK(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"result": "NOK", "error": message})
}

func actorFrom(r *http.Request) (string, bool) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		return "", false
	}
	return ac.Actor, true
}

func cameraID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// GET /api/v1/cameras
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Service.Overview(r.Context())
	if err != nil {
		respondNOK(w, http.StatusInternalServerError, "listing failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": "OK", "cameras": overview})
}

// PUT /api/v1/cameras
func (h *CameraHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondNOK(w, http.StatusForbidden, "forbidden")
		return
	}

	var req struct {
		Name string `json:"cam_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondNOK(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	cam, err := h.Service.Register(r.Context(), req.Name, actor)
	if err != nil {
		switch {
		case errors.Is(err, cameras.ErrEmptyName):
			respondNOK(w, http.StatusBadRequest, "camera name required")
		case errors.Is(err, cameras.ErrDuplicateName):
			respondNOK(w, http.StatusBadRequest, "there is already a camera with this name")
		default:
			respondNOK(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	// The minted key is only ever returned here.
	respondJSON(w, http.StatusCreated, map[string]any{
		"result":   "OK",
		"id":       cam.ID,
		"cam_name": cam.Name,
		"api_key":  cam.APIKey,
	})
}

// GET /api/v1/streams
func (h *CameraHandler) Streams(w http.ResponseWriter, r *http.Request) {
	cams, err := h.Service.List(r.Context())
	if err != nil {
		respondNOK(w, http.StatusInternalServerError, "listing failed")
		return
	}

	type streamRow struct {
		ID     uuid.UUID `json:"id"`
		Name   string    `json:"name"`
		Active bool      `json:"active"`
	}
	rows := make([]streamRow, 0, len(cams))
	for _, c := range cams {
		rows = append(rows, streamRow{ID: c.ID, Name: c.Name, Active: c.IsActive})
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": "OK", "streams": rows})
}

// POST /api/v1/cameras/{id}/state
func (h *CameraHandler) ToggleState(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondNOK(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := cameraID(r)
	if err != nil {
		respondNOK(w, http.StatusNotFound, "camera not found")
		return
	}

	cam, err := h.Service.Toggle(r.Context(), id, actor)
	if err != nil {
		if errors.Is(err, cameras.ErrNotFound) {
			respondNOK(w, http.StatusNotFound, "camera not found")
			return
		}
		respondNOK(w, http.StatusInternalServerError, "state change failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"result":    "OK",
		"new_state": cam.IsActive,
		"id":        cam.ID,
	})
}

// DELETE /api/v1/cameras/{id}
//
// Always answers OK, even for an id that was never registered or is
// already gone. Device deprovisioning scripts retry deletes and depend
// on the idempotent shape.
func (h *CameraHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		respondNOK(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := cameraID(r)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]string{"result": "OK"})
		return
	}

	if err := h.Service.Remove(r.Context(), id, actor); err != nil && !errors.Is(err, cameras.ErrNotFound) {
		respondNOK(w, http.StatusInternalServerError, "removal failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"result": "OK"})
}

// GET /api/v1/cameras/{id}/history
func (h *CameraHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := cameraID(r)
	if err != nil {
		respondNOK(w, http.StatusNotFound, "camera not found")
		return
	}

	cam, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, cameras.ErrNotFound) {
			respondNOK(w, http.StatusNotFound, "camera not found")
			return
		}
		respondNOK(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	entries, err := h.Auditor.ListForCamera(r.Context(), cam.Name, historyPageLimit)
	if err != nil {
		respondNOK(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"result": "OK", "history": entries})
}

// GET /api/v1/cameras/{id}/frames
func (h *CameraHandler) RecentFrames(w http.ResponseWriter, r *http.Request) {
	id, err := cameraID(r)
	if err != nil {
		respondNOK(w, http.StatusNotFound, "camera not found")
		return
	}

	cam, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, cameras.ErrNotFound) {
			respondNOK(w, http.StatusNotFound, "camera not found")
			return
		}
		respondNOK(w, http.StatusInternalServerError, "frame lookup failed")
		return
	}

	frames, err := h.Frames.ListForCamera(r.Context(), cam.Name, framesPageLimit)
	if err != nil {
		respondNOK(w, http.StatusInternalServerError, "frame lookup failed")
		return
	}
	if frames == nil {
		frames = []*data.Frame{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"result": "OK", "frames": frames})
}
