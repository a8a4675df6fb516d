package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Frame is the durable metadata for one ingested image. The bytes live
// in the blob store; BlobRef is the handle into it.
type Frame struct {
	ID         uuid.UUID `json:"id"`
	BlobRef    string    `json:"blob_ref"`
	CameraName string    `json:"camera"`
	CapturedAt time.Time `json:"date_taken"`
	SavedAt    time.Time `json:"date_saved"`
}

type FrameModel struct {
	DB DBTX
}

// Create inserts a frame record. Frames are immutable after insert.
func (m FrameModel) Create(ctx context.Context, f *Frame) error {
	query := `
		INSERT INTO frames (blob_ref, camera_name, captured_at)
		VALUES ($1, $2, $3)
		RETURNING id, saved_at`

	return m.DB.QueryRowContext(ctx, query, f.BlobRef, f.CameraName, f.CapturedAt).
		Scan(&f.ID, &f.SavedAt)
}

// LastSavedAt returns the save time of the newest frame for a camera,
// or ErrRecordNotFound if it never uploaded.
func (m FrameModel) LastSavedAt(ctx context.Context, cameraName string) (time.Time, error) {
	query := `SELECT saved_at FROM frames WHERE camera_name = $1 ORDER BY saved_at DESC LIMIT 1`
	var t time.Time
	err := m.DB.QueryRowContext(ctx, query, cameraName).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrRecordNotFound
	}
	return t, err
}

func (m FrameModel) ListForCamera(ctx context.Context, cameraName string, limit int) ([]*Frame, error) {
	query := `
		SELECT id, blob_ref, camera_name, captured_at, saved_at
		FROM frames
		WHERE camera_name = $1
		ORDER BY saved_at DESC
		LIMIT $2`

	rows, err := m.DB.QueryContext(ctx, query, cameraName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []*Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.ID, &f.BlobRef, &f.CameraName, &f.CapturedAt, &f.SavedAt); err != nil {
			return nil, err
		}
		frames = append(frames, &f)
	}
	return frames, rows.Err()
}
