package fleet

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleInspector Role = "inspector"
	RoleViewer    Role = "viewer"
)

var Roles = []Role{RoleAdmin, RoleInspector, RoleViewer}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInspector, RoleViewer:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Session is the authenticated identity. It lives in memory only.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`

	// ExpiresAt is read from the token's exp claim; zero when the token carries none.
	ExpiresAt time.Time `json:"-"`
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
}

// UserInput is the body for both self-registration and admin user creation.
type UserInput struct {
	Username string `json:"username" validate:"min=5"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
	Role     Role   `json:"role" validate:"required,role"`
}

type RoleUpdate struct {
	Role Role `json:"role" validate:"required,role"`
}
