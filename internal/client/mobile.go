package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/neuroscan/scanrelay/internal/imaging"
	"github.com/neuroscan/scanrelay/internal/session"
)

// MobileController owns the mobile side of a pairing: it connects on start,
// validates and normalizes selected files before upload, and closes the
// session on teardown. Closing invalidates the pairing, so interactive UIs
// should confirm with the user before calling End.
type MobileController struct {
	api             API
	sessionID       string
	maxEncodedBytes int
}

func NewMobileController(api API, sessionID string, maxEncodedBytes int) *MobileController {
	if maxEncodedBytes <= 0 {
		maxEncodedBytes = 1 << 20
	}
	return &MobileController{
		api:             api,
		sessionID:       sessionID,
		maxEncodedBytes: maxEncodedBytes,
	}
}

// Start joins the session. Reconnecting to an already-active session
// succeeds, so a page reload does not strand the pairing.
func (c *MobileController) Start(ctx context.Context) error {
	return c.api.Connect(ctx, c.sessionID)
}

// Send validates that data is an image, recompresses it under the payload
// ceiling if needed, and uploads it. Non-image files are rejected before any
// bytes travel.
func (c *MobileController) Send(ctx context.Context, filename string, data []byte) error {
	dataURL, err := imaging.Normalize(data, c.maxEncodedBytes)
	if errors.Is(err, imaging.ErrNotImage) {
		return fmt.Errorf("%w: selected file is not an image", session.ErrInvalidInput)
	}
	if err != nil {
		return err
	}
	return c.api.Upload(ctx, c.sessionID, dataURL, filename)
}

// End closes the session. Idempotent, like the close it wraps.
func (c *MobileController) End(ctx context.Context) error {
	return c.api.Close(ctx, c.sessionID)
}
