package archive

import "time"

// Upload is one archived image, keyed by the session that produced it. The
// collection is append-only: rows are marked processed rather than mutated.
type Upload struct {
	ID         string    `db:"id"`
	SessionID  string    `db:"session_id"`
	Filename   string    `db:"filename"`
	DataURL    string    `db:"data_url"`
	UploadedAt time.Time `db:"uploaded_at"`
	Processed  bool      `db:"processed"`
}

type ArchiveService interface {
	CreateSchema() error
	Close() error

	// Record appends an upload and returns its generated id.
	Record(sessionID, filename, dataURL string, uploadedAt time.Time) (string, error)
	// GetBySession returns all uploads for a session, oldest first.
	GetBySession(sessionID string) ([]*Upload, error)
	// GetPending returns the not-yet-processed uploads for a session, oldest
	// first. A reconnecting desktop replays these.
	GetPending(sessionID string) ([]*Upload, error)
	MarkProcessed(id string) error
	DeleteBySession(sessionID string) error
}
