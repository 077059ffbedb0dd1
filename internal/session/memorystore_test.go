package session

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	record := &Session{
		ID:        "session-1",
		Status:    StatusActive,
		ExpiresAt: time.Now().Add(time.Minute),
		ImageData: "data:image/jpeg;base64,AAAA",
	}
	if err := store.Put(record.ID, record); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := store.Get(record.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.ImageData != record.ImageData {
		t.Errorf("Expected %q, got %q", record.ImageData, got.ImageData)
	}

	// The store hands out copies; mutating one must not leak into the other.
	got.Status = StatusClosed
	again, _ := store.Get(record.ID)
	if again.Status != StatusActive {
		t.Errorf("Expected stored record to be unchanged, got %s", again.Status)
	}
}

func TestMemoryStoreGetUnknownID(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Get("unknown-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()

	record := &Session{ID: "session-1", Status: StatusPending}
	_ = store.Put(record.ID, record)

	if err := store.Delete(record.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.Delete(record.ID); err != nil {
		t.Errorf("Expected no error on repeated delete, got %v", err)
	}
}

func TestMemoryStoreSweepHonorsGrace(t *testing.T) {
	store := NewMemoryStore()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	records := []*Session{
		{ID: "alive", Status: StatusActive, ExpiresAt: current.Add(time.Minute)},
		{ID: "in-grace", Status: StatusExpired, ExpiresAt: current.Add(-sweepGrace / 2)},
		{ID: "past-grace", Status: StatusExpired, ExpiresAt: current.Add(-sweepGrace - time.Second)},
	}
	for _, record := range records {
		_ = store.Put(record.ID, record)
	}

	if err := store.Sweep(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := store.Get("alive"); err != nil {
		t.Errorf("Expected live record to survive, got %v", err)
	}
	if _, err := store.Get("in-grace"); err != nil {
		t.Errorf("Expected record inside grace window to survive, got %v", err)
	}
	if _, err := store.Get("past-grace"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected record past grace window to be swept, got %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("Expected 2 remaining records, got %d", store.Len())
	}
}
