package archive

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestArchive(t *testing.T) ArchiveService {
	t.Helper()

	service, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "uploads.db"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := service.CreateSchema(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	t.Cleanup(func() { _ = service.Close() })
	return service
}

func TestRecordAndGetBySession(t *testing.T) {
	service := newTestArchive(t)

	uploadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id, err := service.Record("session-1", "scan.jpg", "data:image/jpeg;base64,AAAA", uploadedAt)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated upload id")
	}

	uploads, err := service.GetBySession("session-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(uploads) != 1 {
		t.Fatalf("Expected 1 upload, got %d", len(uploads))
	}
	if uploads[0].ID != id {
		t.Errorf("Expected id %s, got %s", id, uploads[0].ID)
	}
	if uploads[0].Filename != "scan.jpg" {
		t.Errorf("Expected filename scan.jpg, got %s", uploads[0].Filename)
	}
	if !uploads[0].UploadedAt.Equal(uploadedAt) {
		t.Errorf("Expected uploadedAt %v, got %v", uploadedAt, uploads[0].UploadedAt)
	}
	if uploads[0].Processed {
		t.Error("Expected a fresh upload to be unprocessed")
	}
}

func TestGetBySessionOrdersOldestFirst(t *testing.T) {
	service := newTestArchive(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := service.Record("session-1", "second.jpg", "data:image/jpeg;base64,BBBB", base.Add(time.Minute)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := service.Record("session-1", "first.jpg", "data:image/jpeg;base64,AAAA", base); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	uploads, err := service.GetBySession("session-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("Expected 2 uploads, got %d", len(uploads))
	}
	if uploads[0].Filename != "first.jpg" || uploads[1].Filename != "second.jpg" {
		t.Errorf("Expected oldest-first order, got %s then %s", uploads[0].Filename, uploads[1].Filename)
	}
}

func TestGetPendingSkipsProcessed(t *testing.T) {
	service := newTestArchive(t)

	uploadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first, _ := service.Record("session-1", "first.jpg", "data:image/jpeg;base64,AAAA", uploadedAt)
	second, _ := service.Record("session-1", "second.jpg", "data:image/jpeg;base64,BBBB", uploadedAt.Add(time.Minute))

	if err := service.MarkProcessed(first); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	pending, err := service.GetPending("session-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending upload, got %d", len(pending))
	}
	if pending[0].ID != second {
		t.Errorf("Expected pending upload %s, got %s", second, pending[0].ID)
	}
}

func TestDeleteBySession(t *testing.T) {
	service := newTestArchive(t)

	uploadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, _ = service.Record("session-1", "scan.jpg", "data:image/jpeg;base64,AAAA", uploadedAt)
	_, _ = service.Record("session-2", "other.jpg", "data:image/jpeg;base64,BBBB", uploadedAt)

	if err := service.DeleteBySession("session-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	uploads, err := service.GetBySession("session-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(uploads) != 0 {
		t.Errorf("Expected no uploads for deleted session, got %d", len(uploads))
	}

	remaining, err := service.GetBySession("session-2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("Expected the other session to keep its upload, got %d", len(remaining))
	}
}

func TestArchiveFactory(t *testing.T) {
	service, err := NewArchive("sqlite", filepath.Join(t.TempDir(), "uploads.db"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer func() { _ = service.Close() }()

	if _, err := service.Record("session-1", "scan.jpg", "data:image/jpeg;base64,AAAA", time.Now()); err != nil {
		t.Errorf("Expected a usable archive from the factory, got %v", err)
	}
}

func TestArchiveFactoryUnknownType(t *testing.T) {
	if _, err := NewArchive("postgres", ""); err == nil {
		t.Error("Expected an error for an unsupported archive type")
	}
}
