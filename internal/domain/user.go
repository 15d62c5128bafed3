// Package domain contains core domain types for the autopilot service.
package domain

import (
	"strings"
	"time"
)

// Credentials is the per-user secret pair captured during onboarding.
// It is written once and read-only thereafter.
type Credentials struct {
	ModelAPIKey   string `json:"-"`
	SandboxAPIKey string `json:"-"`
}

// Complete reports whether both secrets are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.ModelAPIKey) != "" && strings.TrimSpace(c.SandboxAPIKey) != ""
}

// User represents an onboarded user keyed by their chat-platform identifier.
type User struct {
	UserID      string      `json:"user_id"`
	Username    string      `json:"username"`
	Credentials Credentials `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}
