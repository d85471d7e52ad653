// Package alert raises operational alerts for provisioning defects detected
// while serving requests. Alerts never fail the request that detected them.
package alert

import (
	"context"
	"log/slog"
	"time"
)

// TokenCollision describes one access token found under more than one tenant.
// The token itself is never carried, only its fingerprint.
type TokenCollision struct {
	Type        string    `json:"type"`
	Fingerprint string    `json:"fingerprint"`
	TenantIDs   []string  `json:"tenant_ids"`
	DetectedAt  time.Time `json:"detected_at"`
}

// TypeTokenCollision is the Type of a TokenCollision alert.
const TypeTokenCollision = "token_collision"

// Alerter receives operational alerts.
type Alerter interface {
	TokenCollision(ctx context.Context, c TokenCollision)
}

// LogAlerter writes alerts to a structured logger at ERROR level.
type LogAlerter struct {
	logger *slog.Logger
}

// NewLogAlerter creates a LogAlerter. A nil logger uses slog.Default().
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAlerter{logger: logger}
}

// TokenCollision logs the collision.
func (a *LogAlerter) TokenCollision(ctx context.Context, c TokenCollision) {
	a.logger.ErrorContext(ctx, "access token shared across tenants",
		"alert", TypeTokenCollision,
		"token_fingerprint", c.Fingerprint,
		"tenant_ids", c.TenantIDs,
	)
}

// Multi fans an alert out to several alerters in order.
type Multi []Alerter

// TokenCollision forwards to every alerter.
func (m Multi) TokenCollision(ctx context.Context, c TokenCollision) {
	for _, a := range m {
		a.TokenCollision(ctx, c)
	}
}
