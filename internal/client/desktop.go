package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/neuroscan/scanrelay/internal/session"
)

// DesktopController owns the desktop side of a pairing: it creates the
// session, watches for uploaded images through the sync channel, tracks the
// TTL deadline, and closes the session on teardown. Every timer it registers
// is cancelled when Stop is called, so no background request outlives the
// owning view.
type DesktopController struct {
	api     API
	onImage func(dataURL string)
	onEnded func(status session.Status)

	created  *Created
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewDesktopController builds a controller delivering received images to
// onImage. onEnded fires once when the session reaches a terminal state; it
// may be nil.
func NewDesktopController(api API, onImage func(string), onEnded func(session.Status)) *DesktopController {
	return &DesktopController{
		api:     api,
		onImage: onImage,
		onEnded: onEnded,
	}
}

// Start creates the session and launches the sync loop. The returned Created
// carries the mobile URL to render as a QR code. If the mobile side never
// connects, the loop simply runs until TTL expiry; that is a timeout, not an
// error.
func (c *DesktopController) Start(ctx context.Context) (*Created, error) {
	created, err := c.api.Create(ctx)
	if err != nil {
		return nil, err
	}
	c.created = created

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	watcher, ok := c.api.(Watcher)
	if created.Discipline == session.DisciplinePush && ok {
		go c.runWatch(runCtx, watcher)
	} else {
		go c.runPoll(runCtx)
	}
	return created, nil
}

func (c *DesktopController) Session() *Created {
	return c.created
}

// Stop cancels the poll loop and deadline timer, waits for them to unwind
// and closes the session. Safe to call more than once.
func (c *DesktopController) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		<-c.done

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.api.Close(ctx, c.created.SessionID); err != nil {
			slog.Warn("desktop controller: failed to close session", "session_id", c.created.SessionID, "error", err)
		}
	})
}

// runPoll is the pull-discipline loop: a fixed-interval consume poll plus a
// one-shot deadline timer. The two run on independent timers and are both
// released on return.
func (c *DesktopController) runPoll(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.created.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(time.Until(c.created.ExpiresAt))
	defer deadline.Stop()

	id := c.created.SessionID
	for {
		select {
		case <-ctx.Done():
			return

		case <-deadline.C:
			// The TTL may have slid forward since the timer was armed.
			record, err := c.api.Get(ctx, id)
			if err != nil {
				c.ended(session.StatusExpired)
				return
			}
			if record.Status.Terminal() {
				c.ended(record.Status)
				return
			}
			if remaining := time.Until(record.ExpiresAt); remaining > 0 {
				deadline.Reset(remaining)
				continue
			}
			c.ended(session.StatusExpired)
			return

		case <-ticker.C:
			image, err := c.api.Consume(ctx, id)
			if errors.Is(err, session.ErrNotFound) {
				c.ended(session.StatusClosed)
				return
			}
			if errors.Is(err, session.ErrExpired) {
				c.ended(session.StatusExpired)
				return
			}
			if err != nil {
				// Transient store or transport trouble; keep polling.
				slog.Warn("desktop controller: poll failed", "session_id", id, "error", err)
				continue
			}
			if image == "" {
				continue
			}
			c.onImage(image)
			if record, err := c.api.Get(ctx, id); err == nil {
				deadline.Reset(time.Until(record.ExpiresAt))
			}
		}
	}
}

// runWatch is the push-discipline loop: snapshots arrive over the watch
// feed and the retained image is delivered whenever it changes.
func (c *DesktopController) runWatch(ctx context.Context, watcher Watcher) {
	defer close(c.done)

	id := c.created.SessionID
	updates, cancelWatch, err := watcher.Watch(ctx, id)
	if err != nil {
		slog.Warn("desktop controller: watch failed", "session_id", id, "error", err)
		c.ended(session.StatusClosed)
		return
	}
	defer cancelWatch()

	var lastImage string
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if snapshot.Status.Terminal() {
				c.ended(snapshot.Status)
				return
			}
			if snapshot.ImageData != "" && snapshot.ImageData != lastImage {
				lastImage = snapshot.ImageData
				c.onImage(snapshot.ImageData)
			}
		}
	}
}

func (c *DesktopController) ended(status session.Status) {
	if c.onEnded != nil {
		c.onEnded(status)
	}
}
