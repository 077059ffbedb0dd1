package client

import (
	"context"
	"fmt"
	"time"

	"github.com/neuroscan/scanrelay/internal/session"
)

// Direct drives a session manager in-process, without HTTP. Used by tests
// and by deployments embedding the relay.
type Direct struct {
	Manager      *session.Manager
	MobileURL    func(id string) string
	PollInterval time.Duration
}

func (d *Direct) Create(_ context.Context) (*Created, error) {
	record, err := d.Manager.Create()
	if err != nil {
		return nil, err
	}

	mobileURL := fmt.Sprintf("/mobile-upload?session=%s", record.ID)
	if d.MobileURL != nil {
		mobileURL = d.MobileURL(record.ID)
	}
	pollInterval := d.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Created{
		SessionID:    record.ID,
		MobileURL:    mobileURL,
		ExpiresAt:    record.ExpiresAt,
		Discipline:   d.Manager.Discipline(),
		PollInterval: pollInterval,
	}, nil
}

func (d *Direct) Connect(_ context.Context, id string) error {
	return d.Manager.Connect(id)
}

func (d *Direct) Upload(_ context.Context, id, dataURL, filename string) error {
	return d.Manager.Upload(id, dataURL, filename)
}

func (d *Direct) Close(_ context.Context, id string) error {
	return d.Manager.Close(id)
}

func (d *Direct) Consume(_ context.Context, id string) (string, error) {
	return d.Manager.Consume(id)
}

func (d *Direct) Get(_ context.Context, id string) (*session.Session, error) {
	return d.Manager.Get(id)
}

func (d *Direct) Watch(_ context.Context, id string) (<-chan *session.Session, func(), error) {
	return d.Manager.Watch(id)
}
