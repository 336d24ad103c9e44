package model

import "time"

// Identity is the resolved account behind a successful login, whichever method produced it.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Image string `json:"image,omitempty"`
}

func (u *User) Identity() Identity {
	return Identity{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role.OrDefault(),
		Image: u.Image,
	}
}

// Session is a capability snapshot taken at login. Its role is never re-read from
// storage while it lives; a role change only applies to sessions created afterwards.
type Session struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Role                Role      `json:"role"`
	UpstreamAccessToken string    `json:"-"`
	AuthTime            time.Time `json:"auth_time"`
	IssuedAt            time.Time `json:"issued_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}

func (s Session) Identity() Identity {
	return Identity{ID: s.UserID, Email: s.Email, Name: s.Name, Role: s.Role}
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
