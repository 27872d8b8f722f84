package models

import "time"

// UserSession is the persisted record of one browser login. SessionKey is
// the sha256 of the cookie token, never the token itself.
type UserSession struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	SessionKey   string     `db:"session_key" json:"-"`
	IPAddress    string     `db:"ip_address" json:"ip_address"`
	UserAgent    string     `db:"user_agent" json:"user_agent"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastActivity time.Time  `db:"last_activity" json:"last_activity"`
	ExpiresAt    time.Time  `db:"expires_at" json:"expires_at"`
	Revoked      bool       `db:"revoked" json:"revoked"`
	RevokedAt    *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	Current      bool       `db:"-" json:"current"`
}

// Valid reports whether the record still authorises requests at now.
func (s *UserSession) Valid(now time.Time) bool {
	return s != nil && !s.Revoked && now.Before(s.ExpiresAt)
}
