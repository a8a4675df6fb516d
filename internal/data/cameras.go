package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Camera is a registered capture device identity.
type Camera struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	APIKey       string     `json:"api_key,omitempty"`
	IsActive     bool       `json:"active"`
	LastAccess   *time.Time `json:"last_access,omitempty"`
	RegisteredAt time.Time  `json:"registered"`
}

type CameraModel struct {
	DB DBTX
}

const cameraColumns = `id, name, api_key, is_active, last_access, registered_at`

// Create inserts a new camera. Name and api_key uniqueness are enforced
// by DB constraints; violations map to ErrDuplicateName.
func (m CameraModel) Create(ctx context.Context, c *Camera) error {
	query := `
		INSERT INTO cameras (name, api_key, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, registered_at`

	err := m.DB.QueryRowContext(ctx, query, c.Name, c.APIKey, c.IsActive).
		Scan(&c.ID, &c.RegisteredAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}

func (m CameraModel) GetByID(ctx context.Context, id uuid.UUID) (*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE id = $1`
	return m.scanOne(m.DB.QueryRowContext(ctx, query, id))
}

// GetByAPIKey is the credential lookup used by the device auth gate.
func (m CameraModel) GetByAPIKey(ctx context.Context, apiKey string) (*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE api_key = $1`
	return m.scanOne(m.DB.QueryRowContext(ctx, query, apiKey))
}

func (m CameraModel) scanOne(row *sql.Row) (*Camera, error) {
	var c Camera
	var lastAccess sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.APIKey, &c.IsActive, &lastAccess, &c.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastAccess.Valid {
		t := lastAccess.Time
		c.LastAccess = &t
	}
	return &c, nil
}

// TouchLastAccess refreshes last_access. Callers treat failure as
// best-effort; a missing row is not an error here.
func (m CameraModel) TouchLastAccess(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE cameras SET last_access = NOW() WHERE id = $1`
	_, err := m.DB.ExecContext(ctx, query, id)
	return err
}

// Toggle flips is_active in one statement, so concurrent toggles
// serialize on the row instead of racing a read-then-write.
func (m CameraModel) Toggle(ctx context.Context, id uuid.UUID) (*Camera, error) {
	query := `UPDATE cameras SET is_active = NOT is_active WHERE id = $1 RETURNING ` + cameraColumns
	return m.scanOne(m.DB.QueryRowContext(ctx, query, id))
}

func (m CameraModel) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE cameras SET is_active = $1 WHERE id = $2`
	res, err := m.DB.ExecContext(ctx, query, active, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete is a hard delete. History rows reference the camera by name
// and are left untouched.
func (m CameraModel) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM cameras WHERE id = $1`
	res, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (m CameraModel) List(ctx context.Context) ([]*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras ORDER BY registered_at`
	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cams []*Camera
	for rows.Next() {
		var c Camera
		var lastAccess sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.APIKey, &c.IsActive, &lastAccess, &c.RegisteredAt); err != nil {
			return nil, err
		}
		if lastAccess.Valid {
			t := lastAccess.Time
			c.LastAccess = &t
		}
		cams = append(cams, &c)
	}
	return cams, rows.Err()
}
