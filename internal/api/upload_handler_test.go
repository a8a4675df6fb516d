package api_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/technosupport/ts-camstream/internal/api"
	"github.com/technosupport/ts-camstream/internal/data"
	"github.com/technosupport/ts-camstream/internal/ingest"
	"github.com/technosupport/ts-camstream/internal/middleware"
)

type UMockBlobs struct {
	puts int
}

func (m *UMockBlobs) Put(ctx context.Context, b []byte, contentType, filename string) (string, error) {
	m.puts++
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type UMockFrames struct {
	created []*data.Frame
}

func (m *UMockFrames) Create(ctx context.Context, f *data.Frame) error {
	m.created = append(m.created, f)
	return nil
}

type UMockPublisher struct {
	published []string
}

func (m *UMockPublisher) Publish(ctx context.Context, cameraID, ref string) error {
	m.published = append(m.published, cameraID+"/"+ref)
	return nil
}

type UMockNotifier struct{}

func (m UMockNotifier) NewFrame(cam *data.Camera, publicURL string) {}

func newUploadHandler() (*api.UploadHandler, *UMockBlobs, *UMockFrames, *UMockPublisher) {
	blobs := &UMockBlobs{}
	frames := &UMockFrames{}
	pub := &UMockPublisher{}
	svc := ingest.NewService(blobs, frames, pub, UMockNotifier{}, ingest.NewValidator(ingest.DefaultAllowedExtensions), "http://frames.local")
	return api.NewUploadHandler(svc), blobs, frames, pub
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/frames", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withCamera(req *http.Request, cam *data.Camera) *http.Request {
	return req.WithContext(middleware.WithCamera(req.Context(), cam))
}

func TestUpload_Success(t *testing.T) {
	h, blobs, frames, pub := newUploadHandler()
	cam := &data.Camera{ID: uuid.New(), Name: "porch", IsActive: true}

	req := withCamera(multipartUpload(t, "frame.jpg", []byte("JPEGDATA")), cam)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "OK" {
		t.Errorf("expected status OK, got %v", resp["status"])
	}
	if resp["camera_state"] != true {
		t.Errorf("expected camera_state true, got %v", resp["camera_state"])
	}

	if blobs.puts != 1 {
		t.Errorf("expected 1 blob put, got %d", blobs.puts)
	}
	if len(frames.created) != 1 || frames.created[0].CameraName != "porch" {
		t.Errorf("expected frame record for porch")
	}
	if len(pub.published) != 1 {
		t.Errorf("expected 1 publish, got %d", len(pub.published))
	}
	if resp["ref"] != frames.created[0].BlobRef {
		t.Errorf("response ref should match the recorded blob ref")
	}
}

func TestUpload_RejectedExtension(t *testing.T) {
	h, blobs, _, _ := newUploadHandler()
	cam := &data.Camera{ID: uuid.New(), Name: "porch", IsActive: true}

	req := withCamera(multipartUpload(t, "frame.exe", []byte("MZ")), cam)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "NOK" || resp["error"] != "not allowed file" {
		t.Errorf("expected NOK/not allowed file, got %v", resp)
	}
	if blobs.puts != 0 {
		t.Errorf("rejected upload must not reach the blob store")
	}
}

func TestUpload_MissingFile(t *testing.T) {
	h, _, _, _ := newUploadHandler()
	cam := &data.Camera{ID: uuid.New(), Name: "porch", IsActive: true}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("api_key", "whatever")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/frames", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.Upload(w, withCamera(req, cam))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpload_InactiveCameraStillStores(t *testing.T) {
	h, _, frames, _ := newUploadHandler()
	cam := &data.Camera{ID: uuid.New(), Name: "porch", IsActive: false}

	req := withCamera(multipartUpload(t, "frame.jpg", []byte("JPEGDATA")), cam)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["camera_state"] != false {
		t.Errorf("expected camera_state false so the device can stop sending")
	}
	if len(frames.created) != 1 {
		t.Errorf("inactive camera frames are still stored")
	}
}

func TestCameraState(t *testing.T) {
	h, _, _, _ := newUploadHandler()
	cam := &data.Camera{ID: uuid.New(), Name: "porch", IsActive: true}

	req := withCamera(httptest.NewRequest("GET", "/api/v1/camera-state", nil), cam)
	w := httptest.NewRecorder()
	h.CameraState(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["result"] != "OK" || resp["camera_state"] != true {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}
