package repository

import (
	"context"
	"time"

	"grapevpn/keyhub/internal/model"
)

// AdminSessionStore keeps the per-admin input state machine.
// Implementations: Redis (multi-instance) or in-memory (single instance).
type AdminSessionStore interface {
	Save(ctx context.Context, session *model.AdminSession, ttl time.Duration) error
	// Load returns nil, nil when the admin has no live session.
	Load(ctx context.Context, adminID int64) (*model.AdminSession, error)
	// Take loads and removes the session in one step; of two concurrent
	// callers at most one gets it.
	Take(ctx context.Context, adminID int64) (*model.AdminSession, error)
	Clear(ctx context.Context, adminID int64) error
}
