package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleEditor    Role = "editor"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role in ascending privilege order.
var Roles = []Role{RoleUser, RoleModerator, RoleEditor, RoleAdmin}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.Level() == 0 {
		return "", fmt.Errorf("unknown role %q, expected one of %v", raw, Roles)
	}
	return role, nil
}

// Level is the position of r in the hierarchy user(1) < moderator(2) < editor(3) < admin(4).
// Anything outside the enumeration is 0.
func (r Role) Level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleModerator:
		return 2
	case RoleEditor:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.Level() > 0
}

func (r Role) String() string {
	return string(r)
}

// OrDefault returns RoleUser for an unset role.
func (r Role) OrDefault() Role {
	if r == "" {
		return RoleUser
	}
	return r
}

// HasPermission reports whether actual sits at or above required in the hierarchy.
// An invalid role never passes.
func HasPermission(actual, required Role) bool {
	if !actual.Valid() || !required.Valid() {
		return false
	}
	return actual.Level() >= required.Level()
}
