package session

import "time"

// Status describes where a session is in its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusClosed  Status = "closed"
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusExpired
}

// Session is a time-bounded pairing between a desktop viewer and a mobile
// uploader, identified by an opaque token. The token itself is the capability:
// any holder of the id may read and write the record.
type Session struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ImageData        string    `json:"imageData,omitempty"`
	Filename         string    `json:"filename,omitempty"`
	DesktopConnected bool      `json:"desktopConnected"`
	MobileConnected  bool      `json:"mobileConnected"`
	LastUpdateAt     time.Time `json:"lastUpdateAt"`
}

// ExpiredBy reports whether the session's TTL has passed at the given instant.
// Readers must treat such a session as expired even before a writer has
// performed the transition.
func (s *Session) ExpiredBy(now time.Time) bool {
	return !s.Status.Terminal() && now.After(s.ExpiresAt)
}

// Clone returns an independent copy so store internals are never aliased by
// callers.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}
