package repositories

import (
	"context"
	"errors"

	"github.com/fraudwatch/server/domain/entities"
)

// Storage errors shared by all repository implementations.
var (
	// ErrConflict indicates a unique constraint violation (duplicate
	// username or email on registration).
	ErrConflict = errors.New("resource already exists")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrNotOwned indicates the record exists but belongs to another user.
	ErrNotOwned = errors.New("resource owned by another user")
)

// UserRepository defines data access methods for users
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
}

// AnalysisRepository defines data access methods for analysis records
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *entities.Analysis) error
	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*entities.Analysis, error)
	// Delete removes a record owned by userID. Returns ErrNotFound if the
	// record does not exist and ErrNotOwned if it belongs to someone else.
	Delete(ctx context.Context, id int64, userID int64) error
}
