package audit

import (
	"time"
)

// Action is a camera lifecycle event type.
type Action string

const (
	ActionStateChanged Action = "state_changed"
	ActionRemoved      Action = "removed"
	ActionRegistered   Action = "registered"
)

// Entry is one row of the append-only camera history. Entries reference
// the camera by name, not id: the id dies with the registry row, the
// history does not.
type Entry struct {
	ID         int64     `json:"id"`
	Action     Action    `json:"action"`
	CameraName string    `json:"camera"`
	// Actor is a free-form identity: an admin email today, or
	// "device:<camera-id>" if a device-originated path is ever added.
	Actor     string    `json:"user"`
	NewState  *bool     `json:"new_state,omitempty"` // only for state_changed
	CreatedAt time.Time `json:"when"`
}
