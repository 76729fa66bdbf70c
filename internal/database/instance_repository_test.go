package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/godocscan/internal/database"
)

var instanceRows = []string{
	"id", "name", "owner_id", "base_url", "api_token", "scan_cron",
	"auto_process_enabled", "required_tag_ids", "default_bot_id",
	"apply_title", "apply_tags", "apply_correspondent", "apply_document_type", "apply_created_date",
	"last_scan_at", "next_scan_at", "created_at", "updated_at",
}

func newMockInstanceRepo(t *testing.T) (*database.InstanceRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return database.NewInstanceRepository(db), mock
}

func instanceRow(id string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(instanceRows).AddRow(
		id, "archive", "owner-1", "http://paperless.local", "token", "*/30 * * * *",
		true, pq.Int64Array{1, 2}, "bot-1",
		true, false, false, false, false,
		nil, nil, now, now,
	)
}

func TestInstanceRepository_GetByID(t *testing.T) {
	repo, mock := newMockInstanceRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM instances WHERE id").
		WithArgs("inst-1").
		WillReturnRows(instanceRow("inst-1", now))

	instance, err := repo.GetByID(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if instance.Name != "archive" {
		t.Errorf("expected name archive, got %s", instance.Name)
	}
	if len(instance.RequiredTagIDs) != 2 {
		t.Errorf("expected 2 required tags, got %d", len(instance.RequiredTagIDs))
	}
	if instance.DefaultBotID == nil || *instance.DefaultBotID != "bot-1" {
		t.Errorf("expected default bot bot-1, got %v", instance.DefaultBotID)
	}
}

func TestInstanceRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockInstanceRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM instances WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(instanceRows))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInstanceRepository_ListDue(t *testing.T) {
	repo, mock := newMockInstanceRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM instances").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(instanceRow("inst-1", now))

	due, err := repo.ListDue(context.Background(), now)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due instance, got %d", len(due))
	}
}

func TestInstanceRepository_ListDue_Empty(t *testing.T) {
	repo, mock := newMockInstanceRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM instances").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(instanceRows))

	due, err := repo.ListDue(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}
	if due == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(due) != 0 {
		t.Errorf("expected no due instances, got %d", len(due))
	}
}

func TestInstanceRepository_UpdateScanTimes_NullNext(t *testing.T) {
	repo, mock := newMockInstanceRepo(t)
	now := time.Now()

	mock.ExpectExec("UPDATE instances").
		WithArgs(now, nil, "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateScanTimes(context.Background(), "inst-1", now, nil); err != nil {
		t.Fatalf("UpdateScanTimes() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
