package models

import "github.com/golang-jwt/jwt/v5"

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// Info projects the public part of u.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// JWTClaims represents the payload of API access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor identifies who performs an operation and from where.
type Actor struct {
	UserID    string
	Role      UserRole
	SessionID string
	IP        string
	UserAgent string
}

// ActorFor builds an Actor for user.
func ActorFor(u *User, sessionID, ip, userAgent string) Actor {
	return Actor{UserID: u.ID, Role: u.Role, SessionID: sessionID, IP: ip, UserAgent: userAgent}
}
