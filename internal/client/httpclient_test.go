package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/neuroscan/scanrelay/internal/backend"
	"github.com/neuroscan/scanrelay/internal/common"
	"github.com/neuroscan/scanrelay/internal/core"
	"github.com/neuroscan/scanrelay/internal/session"
)

func newRelayServer(t *testing.T) *httptest.Server {
	t.Helper()

	config := &core.ServiceConfig{
		Port:          8080,
		PublicBaseURL: "http://relay.test",
		Session: core.SessionConfig{
			TTLSeconds:            300,
			Store:                 "memory",
			Discipline:            "pull",
			SweepIntervalSeconds:  60,
			PollIntervalSeconds:   1,
			MaxEncodedUploadBytes: 1 << 20,
		},
		Predict: core.PredictConfig{BackendURL: "http://localhost:1", TimeoutSeconds: 1},
	}
	coreService := core.NewCoreService(config)
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	e.Validator = &common.GenericEchoValidator{}
	backend.NewAPIService(config, coreService).SetRoutes(e)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClientFullFlow(t *testing.T) {
	server := newRelayServer(t)
	api := NewHTTPClient(server.URL)
	ctx := context.Background()

	created, err := api.Create(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("Expected a session id")
	}
	if created.Discipline != session.DisciplinePull {
		t.Errorf("Expected pull discipline, got %s", created.Discipline)
	}

	if err := api.Connect(ctx, created.SessionID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	dataURL := pngDataURL(t)
	if err := api.Upload(ctx, created.SessionID, dataURL, "scan.png"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	image, err := api.Consume(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if image != dataURL {
		t.Errorf("Expected the uploaded image, got %q", image)
	}

	// Drained after delivery.
	image, err = api.Consume(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if image != "" {
		t.Errorf("Expected no image on second consume, got %q", image)
	}

	if err := api.Close(ctx, created.SessionID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	record, err := api.Get(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if record.Status != session.StatusClosed {
		t.Errorf("Expected closed, got %s", record.Status)
	}
}

func TestHTTPClientTranslatesStatuses(t *testing.T) {
	server := newRelayServer(t)
	api := NewHTTPClient(server.URL)
	ctx := context.Background()

	if _, err := api.Get(ctx, "unknown-id"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := api.Connect(ctx, "unknown-id"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	created, err := api.Create(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	// Upload before activation maps 409 back to ErrInactive.
	if err := api.Upload(ctx, created.SessionID, pngDataURL(t), "scan.png"); !errors.Is(err, session.ErrInactive) {
		t.Errorf("Expected ErrInactive, got %v", err)
	}
	// A non-image payload maps 400 back to ErrInvalidInput.
	if err := api.Connect(ctx, created.SessionID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := api.Upload(ctx, created.SessionID, "data:text/plain;base64,aGVsbG8=", "notes.txt"); !errors.Is(err, session.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestHTTPClientWatch(t *testing.T) {
	server := newRelayServer(t)
	api := NewHTTPClient(server.URL)
	ctx := context.Background()

	created, err := api.Create(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updates, cancel, err := api.Watch(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer cancel()

	first := <-updates
	if first.Status != session.StatusPending {
		t.Errorf("Expected the pending snapshot first, got %s", first.Status)
	}

	if err := api.Connect(ctx, created.SessionID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	snapshot := <-updates
	if snapshot.Status != session.StatusActive {
		t.Errorf("Expected an active snapshot, got %s", snapshot.Status)
	}

	if err := api.Close(ctx, created.SessionID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	snapshot = <-updates
	if snapshot.Status != session.StatusClosed {
		t.Errorf("Expected a closed snapshot, got %s", snapshot.Status)
	}
}

func TestHTTPClientWatchUnknownSession(t *testing.T) {
	server := newRelayServer(t)
	api := NewHTTPClient(server.URL)

	if _, _, err := api.Watch(context.Background(), "unknown-id"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
