package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/technosupport/ts-camstream/internal/cameras"
	"github.com/technosupport/ts-camstream/internal/data"
)

// maxUploadBytes bounds multipart parsing memory; larger frames spill to disk.
const maxUploadBytes = 32 << 20

type DeviceAuthenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*data.Camera, error)
}

type APIKeyAuth struct {
	cameras DeviceAuthenticator
}

func NewAPIKeyAuth(c DeviceAuthenticator) *APIKeyAuth {
	return &APIKeyAuth{cameras: c}
}

// Middleware authenticates a device by the api_key form or query field and
// injects its camera record. Devices get the legacy NOK body rather than a
// plain 401 so old firmware keeps parsing responses.
func (m *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// FormValue covers query, urlencoded and multipart bodies.
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeDeviceError(w, http.StatusBadRequest, "invalid form")
			return
		}

		key := r.FormValue("api_key")
		if key == "" {
			writeDeviceError(w, http.StatusUnauthorized, "missing api_key")
			return
		}

		cam, err := m.cameras.Authenticate(r.Context(), key)
		if err != nil {
			if errors.Is(err, cameras.ErrUnauthorized) {
				writeDeviceError(w, http.StatusUnauthorized, "invalid api_key")
				return
			}
			writeDeviceError(w, http.StatusInternalServerError, "authentication failed")
			return
		}

		ctx := WithCamera(r.Context(), cam)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeDeviceError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"result": "NOK", "error": msg})
}
