package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fraudwatch/server/domain/entities"
	"github.com/fraudwatch/server/domain/repositories"
)

type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a SQLite-backed user repository
func NewUserRepository(db *sql.DB) repositories.UserRepository {
	return &UserRepository{db: db}
}

// Create implements repositories.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO usuarios (username, email, hashed_password, fecha_registro) VALUES (?, ?, ?, ?)`,
		user.Username, user.Email, user.HashedPassword, user.RegisteredAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return repositories.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID implements repositories.UserRepository
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.getBy(ctx, `SELECT id, username, email, hashed_password, fecha_registro FROM usuarios WHERE id = ?`, id)
}

// GetByUsername implements repositories.UserRepository
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return r.getBy(ctx, `SELECT id, username, email, hashed_password, fecha_registro FROM usuarios WHERE username = ?`, username)
}

func (r *UserRepository) getBy(ctx context.Context, query string, arg interface{}) (*entities.User, error) {
	var user entities.User
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
