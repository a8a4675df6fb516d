package cameras

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/ts-camstream/internal/audit"
	"github.com/technosupport/ts-camstream/internal/data"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("camera not found")
	ErrDuplicateName = errors.New("there is already a camera with this name")
	ErrEmptyName     = errors.New("camera name required")
)

type Repository interface {
	Create(ctx context.Context, c *data.Camera) error
	GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*data.Camera, error)
	TouchLastAccess(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Toggle(ctx context.Context, id uuid.UUID) (*data.Camera, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*data.Camera, error)
}

type Auditor interface {
	Append(ctx context.Context, e *audit.Entry) error
	ListForCamera(ctx context.Context, cameraName string, limit int) ([]*audit.Entry, error)
}

type LastFrameReader interface {
	LastSavedAt(ctx context.Context, cameraName string) (time.Time, error)
}

// Notifier receives lifecycle side effects. Implementations must not
// block the caller; failures are theirs to log.
type Notifier interface {
	StateChanged(cam *data.Camera)
}

type Service struct {
	repo     Repository
	auditor  Auditor
	frames   LastFrameReader
	notifier Notifier
}

func NewService(repo Repository, aud Auditor, frames LastFrameReader, n Notifier) *Service {
	return &Service{repo: repo, auditor: aud, frames: frames, notifier: n}
}

// Authenticate resolves a device credential to its camera. On success
// the camera's last_access is refreshed write-through; that refresh is
// best-effort and never fails the request.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*data.Camera, error) {
	if apiKey == "" {
		return nil, ErrUnauthorized
	}
	cam, err := s.repo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if err := s.repo.TouchLastAccess(ctx, cam.ID); err != nil {
		log.Printf("cameras: last_access refresh failed for %s: %v", cam.ID, err)
	}
	return cam, nil
}

// Register creates a camera with a freshly minted api key. New cameras
// start active.
func (s *Service) Register(ctx context.Context, name, actor string) (*data.Camera, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	cam := &data.Camera{
		Name:     name,
		APIKey:   newAPIKey(),
		IsActive: true,
	}
	if err := s.repo.Create(ctx, cam); err != nil {
		if errors.Is(err, data.ErrDuplicateName) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}

	s.appendHistory(ctx, &audit.Entry{
		Action:     audit.ActionRegistered,
		CameraName: cam.Name,
		Actor:      actor,
	})
	return cam, nil
}

// SetActive flips the active flag and records the change. Every call
// appends a history entry, including no-op transitions; entries are
// deliberately not deduplicated.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool, actor string) (*data.Camera, error) {
	cam, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	cam.IsActive = active

	state := active
	s.appendHistory(ctx, &audit.Entry{
		Action:     audit.ActionStateChanged,
		CameraName: cam.Name,
		Actor:      actor,
		NewState:   &state,
	})

	go s.notifier.StateChanged(cam)
	return cam, nil
}

// Toggle flips the active flag in a single registry statement, so two
// concurrent toggles cannot both act on the same stale state. Audit
// and notification semantics match SetActive.
func (s *Service) Toggle(ctx context.Context, id uuid.UUID, actor string) (*data.Camera, error) {
	cam, err := s.repo.Toggle(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	state := cam.IsActive
	s.appendHistory(ctx, &audit.Entry{
		Action:     audit.ActionStateChanged,
		CameraName: cam.Name,
		Actor:      actor,
		NewState:   &state,
	})

	go s.notifier.StateChanged(cam)
	return cam, nil
}

// Remove hard-deletes the registry row. History entries keep the
// camera's name and outlive it. Live streams subscribed to the camera
// are not torn down; their channel simply goes quiet.
func (s *Service) Remove(ctx context.Context, id uuid.UUID, actor string) error {
	cam, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.appendHistory(ctx, &audit.Entry{
		Action:     audit.ActionRemoved,
		CameraName: cam.Name,
		Actor:      actor,
	})
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*data.Camera, error) {
	cam, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, data.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return cam, err
}

func (s *Service) List(ctx context.Context) ([]*data.Camera, error) {
	return s.repo.List(ctx)
}

// CameraOverview is the admin listing row: the camera plus its recent
// history and the time of its newest frame.
type CameraOverview struct {
	*data.Camera
	LastEvents    []*audit.Entry `json:"last_events,omitempty"`
	LastFrameDate *time.Time     `json:"last_image_date,omitempty"`
}

const overviewHistoryLimit = 5

// Overview assembles the full admin listing. History or frame lookups
// failing for one camera degrade that row, not the whole listing.
func (s *Service) Overview(ctx context.Context) ([]*CameraOverview, error) {
	cams, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*CameraOverview, 0, len(cams))
	for _, cam := range cams {
		row := &CameraOverview{Camera: cam}

		events, err := s.auditor.ListForCamera(ctx, cam.Name, overviewHistoryLimit)
		if err != nil {
			log.Printf("cameras: history lookup failed for %s: %v", cam.Name, err)
		} else {
			row.LastEvents = events
		}

		if t, err := s.frames.LastSavedAt(ctx, cam.Name); err == nil {
			row.LastFrameDate = &t
		} else if !errors.Is(err, data.ErrRecordNotFound) {
			log.Printf("cameras: last frame lookup failed for %s: %v", cam.Name, err)
		}

		out = append(out, row)
	}
	return out, nil
}

// History rows are the audit trail, so a failed append is worth more
// than a log line, but it must not undo an already-persisted mutation.
func (s *Service) appendHistory(ctx context.Context, e *audit.Entry) {
	if err := s.auditor.Append(ctx, e); err != nil {
		log.Printf("cameras: history append failed (%s %s): %v", e.Action, e.CameraName, err)
	}
}

func newAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in no state to
		// mint credentials at all.
		panic(fmt.Sprintf("cameras: rand.Read: %v", err))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
