package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/technosupport/ts-camstream/internal/audit"
)

func TestAppend_StateChanged(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	s := audit.NewService(db)

	newState := true
	e := &audit.Entry{
		Action:     audit.ActionStateChanged,
		CameraName: "porch",
		Actor:      "alice",
		NewState:   &newState,
	}

	mock.ExpectQuery("INSERT INTO camera_history").
		WithArgs("state_changed", "porch", "alice", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	if err := s.Append(context.Background(), e); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if e.ID != 1 {
		t.Errorf("Expected assigned id 1, got %d", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
}

func TestAppend_RemovedHasNoState(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	s := audit.NewService(db)

	e := &audit.Entry{Action: audit.ActionRemoved, CameraName: "porch", Actor: "alice"}

	mock.ExpectQuery("INSERT INTO camera_history").
		WithArgs("removed", "porch", "alice", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), time.Now()))

	if err := s.Append(context.Background(), e); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// History survives camera removal: the query is keyed by name, nothing
// joins the cameras table.
func TestListForCamera_AfterRemoval(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	s := audit.NewService(db)

	state := false
	rows := sqlmock.NewRows([]string{"id", "action", "camera_name", "actor", "new_state", "created_at"}).
		AddRow(int64(3), "removed", "porch", "alice", nil, time.Now()).
		AddRow(int64(2), "state_changed", "porch", "alice", state, time.Now().Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM camera_history").
		WithArgs("porch", 5).
		WillReturnRows(rows)

	entries, err := s.ListForCamera(context.Background(), "porch", 5)
	if err != nil {
		t.Fatalf("ListForCamera failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != audit.ActionRemoved {
		t.Errorf("Expected newest-first ordering, got %s", entries[0].Action)
	}
	if entries[1].NewState == nil || *entries[1].NewState != false {
		t.Error("state_changed entry lost its resulting state")
	}
}
