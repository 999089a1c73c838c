package store

import (
	"context"
	"time"

	"github.com/slotbot-ai/slotbot/internal/model"
)

// Store exposes persistence operations required by the engine.
// Implementations live under internal/store/<driver>/ (postgres, sqlite,
// memory). The store needs no cross-record transactions; the engine's
// per-user guard provides the real serialization guarantee.
type Store interface {
	Users() Users
	Turns() Turns
	Descriptors() Descriptors
}

type Users interface {
	// GetOrCreate returns the user, creating it with defaultTZ on first contact.
	GetOrCreate(ctx context.Context, userID, defaultTZ string) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
}

type Turns interface {
	Create(ctx context.Context, t *model.Turn) (*model.Turn, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*model.Turn, error)
}

type Descriptors interface {
	Create(ctx context.Context, d *model.MeetingDescriptor) (*model.MeetingDescriptor, error)
	Update(ctx context.Context, d *model.MeetingDescriptor) error
	GetByID(ctx context.Context, userID, descriptorID string) (*model.MeetingDescriptor, error)
	// Open returns the user's most recent non-terminal descriptor
	// (awaiting_clarification, or confirmed with pending legs), or
	// model.ErrNotFound.
	Open(ctx context.Context, userID string) (*model.MeetingDescriptor, error)
	// ListScheduled returns scheduled descriptors starting in [from, to),
	// ordered by start ascending.
	ListScheduled(ctx context.Context, userID string, from, to time.Time) ([]*model.MeetingDescriptor, error)
}
