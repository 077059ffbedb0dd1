package client

import (
	"context"
	"time"

	"github.com/neuroscan/scanrelay/internal/session"
)

// Created describes a freshly created session from the desktop's point of
// view.
type Created struct {
	SessionID    string
	MobileURL    string
	ExpiresAt    time.Time
	Discipline   session.Discipline
	PollInterval time.Duration
}

// API is the relay surface the controllers drive. It is implemented
// in-process by Direct and over the wire by HTTPClient, so the same
// controller logic powers both tests and the CLI.
type API interface {
	Create(ctx context.Context) (*Created, error)
	Connect(ctx context.Context, id string) error
	Upload(ctx context.Context, id, dataURL, filename string) error
	Close(ctx context.Context, id string) error
	// Consume returns and clears the waiting image, or "" when none.
	Consume(ctx context.Context, id string) (string, error)
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Watcher is the optional push-discipline extension of API.
type Watcher interface {
	Watch(ctx context.Context, id string) (<-chan *session.Session, func(), error)
}
