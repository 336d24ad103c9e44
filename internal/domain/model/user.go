package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"foundation_portal/internal/common"
)

type Provider string

const (
	ProviderCredentials Provider = "credentials"
	ProviderGoogle      Provider = "google"
)

const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           Role      `json:"role"`
	Image          string    `json:"image,omitempty"`
	Provider       Provider  `json:"provider"`
	ProviderID     string    `json:"provider_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) HasPassword() bool {
	return u.HashedPassword != ""
}

// Validate checks the stored shape of a user. It normalizes the email and fills the
// role and provider defaults.
func (u *User) Validate() error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
	u.Role = u.Role.OrDefault()
	if u.Provider == "" {
		u.Provider = ProviderCredentials
	}

	if u.Name == "" {
		return common.Validationf("name is required")
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if !u.Role.Valid() {
		return common.Validationf("role %q is not one of admin, user, editor, moderator", u.Role)
	}
	if u.Provider != ProviderCredentials && u.Provider != ProviderGoogle {
		return common.Validationf("provider %q is not supported", u.Provider)
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return common.Validationf("email is required")
	}
	if !emailPattern.MatchString(email) {
		return common.Validationf("email %q is not a valid address", email)
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return common.Validationf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
