// Package model holds the ledger's domain entities: users, groups, expenses,
// settlements, notifications and API keys.
package model

import (
	"strings"
	"time"
)

// User is an identity referenced by groups, expenses and notifications.
// Email is stored normalized and is compared exactly.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail is the canonical form stored in users.email and used for
// every lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
