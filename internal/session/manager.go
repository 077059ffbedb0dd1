package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Discipline selects how the desktop side consumes uploaded images.
type Discipline string

const (
	// DisciplinePull pairs with a stateless polling endpoint: reading an
	// image also clears it, so delivery is at-most-once.
	DisciplinePull Discipline = "pull"
	// DisciplinePush pairs with a live watch feed: the last uploaded image
	// is retained until overwritten, and the mobile side signals completion
	// via Close since the desktop has no natural consumption moment.
	DisciplinePush Discipline = "push"
)

// UploadRecorder archives uploaded images outside the session record.
// Implemented by the archive package; optional.
type UploadRecorder interface {
	Record(sessionID, filename, dataURL string, uploadedAt time.Time) (string, error)
}

// Manager enforces the session state machine on top of a Store. All
// read-modify-write transitions are serialized through a single mutex so a
// stale upload can never resurrect an already-closed session.
//
// Reconnect policy: connecting to an already-active session is an idempotent
// no-op success, so a mobile page reload mid-session does not strand the
// pairing.
type Manager struct {
	store      Store
	ttl        time.Duration
	discipline Discipline
	recorder   UploadRecorder
	hub        *hub
	now        func() time.Time
	mu         sync.Mutex
}

func NewManager(store Store, ttl time.Duration, discipline Discipline) *Manager {
	if discipline == "" {
		discipline = DisciplinePull
	}
	return &Manager{
		store:      store,
		ttl:        ttl,
		discipline: discipline,
		hub:        newHub(),
		now:        time.Now,
	}
}

// SetRecorder wires an upload archive into the manager. Archive failures are
// logged and swallowed; they never fail the upload itself.
func (m *Manager) SetRecorder(r UploadRecorder) {
	m.recorder = r
}

func (m *Manager) Discipline() Discipline {
	return m.discipline
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create allocates a fresh session in the pending state. The desktop side is
// marked connected since it is the creator.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	now := m.now()
	record := &Session{
		ID:               uuid.NewString(),
		Status:           StatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(m.ttl),
		DesktopConnected: true,
		MobileConnected:  false,
		LastUpdateAt:     now,
	}
	if err := m.store.Put(record.ID, record); err != nil {
		return nil, storageErr("put", err)
	}
	m.hub.publish(record)
	return record.Clone(), nil
}

// Connect marks the mobile side as joined and activates the session.
// Connecting an already-active session is a no-op success.
func (m *Manager) Connect(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	record, err := m.load(id)
	if err != nil {
		return err
	}
	if record.Status == StatusClosed {
		return ErrInactive
	}
	if record.Status == StatusActive && record.MobileConnected {
		return nil
	}

	record.Status = StatusActive
	record.MobileConnected = true
	record.LastUpdateAt = m.now()
	if err := m.store.Put(id, record); err != nil {
		return storageErr("put", err)
	}
	m.hub.publish(record)
	return nil
}

// Upload stores the image on an active session and slides the expiry window
// forward. Concurrent uploads are last-write-wins; only the newest image is
// meaningful to the user.
func (m *Manager) Upload(id, dataURL, filename string) error {
	if dataURL == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	record, err := m.load(id)
	if err != nil {
		return err
	}
	if record.Status != StatusActive {
		return ErrInactive
	}

	now := m.now()
	record.ImageData = dataURL
	record.Filename = filename
	record.ExpiresAt = now.Add(m.ttl)
	record.LastUpdateAt = now
	if err := m.store.Put(id, record); err != nil {
		return storageErr("put", err)
	}
	m.hub.publish(record)

	if m.recorder != nil {
		if _, err := m.recorder.Record(id, filename, dataURL, now); err != nil {
			slog.Warn("failed to archive upload", "session_id", id, "error", err)
		}
	}
	return nil
}

// Close terminates the session. It is idempotent: closing a missing, closed
// or expired session is a no-op success.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	record, err := m.load(id)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		return nil
	}

	record.Status = StatusClosed
	record.ImageData = ""
	record.Filename = ""
	record.LastUpdateAt = m.now()
	if err := m.store.Put(id, record); err != nil {
		return storageErr("put", err)
	}
	m.hub.publish(record)
	return nil
}

// Consume atomically returns and clears the stored image, leaving the status
// unchanged. It returns an empty string when no image is waiting, so each
// uploaded image is delivered at most once.
func (m *Manager) Consume(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	record, err := m.load(id)
	if err != nil {
		return "", err
	}
	if record.ImageData == "" {
		return "", nil
	}

	image := record.ImageData
	record.ImageData = ""
	record.Filename = ""
	record.LastUpdateAt = m.now()
	if err := m.store.Put(id, record); err != nil {
		return "", storageErr("put", err)
	}
	m.hub.publish(record)
	return image, nil
}

// Get returns the current snapshot with lazy expiry applied. A swept or
// never-existing id yields ErrNotFound; an expired-but-unswept record is
// returned with its status already transitioned.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	record, err := m.load(id)
	if errors.Is(err, ErrExpired) {
		return record.Clone(), nil
	}
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Watch subscribes to snapshot updates for a session. The current snapshot
// is delivered immediately so a late or reconnecting subscriber always sees
// the present value rather than waiting for the next mutation. The returned
// cancel func must be called when the watcher goes away.
func (m *Manager) Watch(id string) (<-chan *Session, func(), error) {
	m.mu.Lock()
	m.sweep()
	record, err := m.load(id)
	m.mu.Unlock()

	if err != nil && !errors.Is(err, ErrExpired) {
		return nil, nil, err
	}

	ch := m.hub.subscribe(id)
	ch <- record.Clone()
	cancel := func() { m.hub.unsubscribe(id, ch) }
	return ch, cancel, nil
}

// Sweep removes expired records. It runs opportunistically at the start of
// every operation and may also be driven by a background ticker.
func (m *Manager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
}

func (m *Manager) sweep() {
	if err := m.store.Sweep(); err != nil {
		slog.Warn("session sweep failed", "error", err)
	}
}

// load reads a record and applies the lazy expiry transition: a request
// arriving after the wall-clock deadline always observes ErrExpired, even if
// no writer has performed the transition yet.
func (m *Manager) load(id string) (*Session, error) {
	record, err := m.store.Get(id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	if record.Status == StatusExpired {
		return record, ErrExpired
	}
	if record.ExpiredBy(m.now()) {
		record.Status = StatusExpired
		record.ImageData = ""
		record.Filename = ""
		record.LastUpdateAt = m.now()
		if putErr := m.store.Put(id, record); putErr != nil {
			slog.Warn("failed to persist expiry transition", "session_id", id, "error", putErr)
		}
		m.hub.publish(record)
		return record, ErrExpired
	}
	return record, nil
}
