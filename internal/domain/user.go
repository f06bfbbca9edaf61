package domain

import (
	"strings"
	"time"
)

// AnonymousDisplayName is the sentinel shown when a profile lookup fails or a
// user never picked a username.
const AnonymousDisplayName = "anonymous"

// User is the domain model for registered accounts.
type User struct {
	ID           string
	Email        string
	Username     *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName resolves the name shown in rosters: the chosen username, else
// the local part of the email, else the anonymous sentinel.
func (u User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return AnonymousDisplayName
}
