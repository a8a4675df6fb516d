package audit

import (
	"context"

	"github.com/technosupport/ts-camstream/internal/data"
)

// Service is the single append point for camera history. There are no
// update or delete methods: entries are immutable once written.
type Service struct {
	DB data.DBTX
}

func NewService(db data.DBTX) *Service {
	return &Service{DB: db}
}

// Append writes one history entry. CreatedAt is assigned by the
// database so append order matches insertion order.
func (s *Service) Append(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO camera_history (action, camera_name, actor, new_state)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.DB.QueryRowContext(ctx, query, string(e.Action), e.CameraName, e.Actor, e.NewState).
		Scan(&e.ID, &e.CreatedAt)
}

// ListForCamera returns entries for one camera, newest first. The rows
// remain retrievable after the camera itself has been removed.
func (s *Service) ListForCamera(ctx context.Context, cameraName string, limit int) ([]*Entry, error) {
	query := `
		SELECT id, action, camera_name, actor, new_state, created_at
		FROM camera_history
		WHERE camera_name = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.DB.QueryContext(ctx, query, cameraName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &action, &e.CameraName, &e.Actor, &e.NewState, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
