package archive

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type SQLiteArchive struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteArchive(connectionString string) (ArchiveService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}

	return &SQLiteArchive{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteArchive) CreateSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		filename TEXT,
		data_url TEXT NOT NULL,
		uploaded_at INTEGER NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_uploads_session ON uploads (session_id, uploaded_at)`)
	return err
}

func (s *SQLiteArchive) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteArchive) Record(sessionID, filename, dataURL string, uploadedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO uploads (id, session_id, filename, data_url, uploaded_at, processed) VALUES (?, ?, ?, ?, ?, 0)",
		id, sessionID, filename, dataURL, uploadedAt.UnixNano())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteArchive) GetBySession(sessionID string) ([]*Upload, error) {
	return s.query("SELECT id, session_id, filename, data_url, uploaded_at, processed FROM uploads WHERE session_id = ? ORDER BY uploaded_at", sessionID)
}

func (s *SQLiteArchive) GetPending(sessionID string) ([]*Upload, error) {
	return s.query("SELECT id, session_id, filename, data_url, uploaded_at, processed FROM uploads WHERE session_id = ? AND processed = 0 ORDER BY uploaded_at", sessionID)
}

func (s *SQLiteArchive) query(stmt string, args ...any) ([]*Upload, error) {
	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var uploads []*Upload
	for rows.Next() {
		var (
			upload     Upload
			uploadedAt int64
			processed  int
		)
		if err := rows.Scan(&upload.ID, &upload.SessionID, &upload.Filename, &upload.DataURL, &uploadedAt, &processed); err != nil {
			return nil, err
		}
		upload.UploadedAt = time.Unix(0, uploadedAt)
		upload.Processed = processed != 0
		uploads = append(uploads, &upload)
	}
	return uploads, rows.Err()
}

func (s *SQLiteArchive) MarkProcessed(id string) error {
	_, err := s.db.Exec("UPDATE uploads SET processed = 1 WHERE id = ?", id)
	return err
}

func (s *SQLiteArchive) DeleteBySession(sessionID string) error {
	_, err := s.db.Exec("DELETE FROM uploads WHERE session_id = ?", sessionID)
	return err
}
