package auth

import (
	"context"
	"database/sql"
	"errors"

	"appwini/internal/db"
	"appwini/internal/domain/user"
)

var (
	ErrEmailTaken   = errors.New("email already exists")
	ErrUserNotFound = errors.New("user not found")
)

type UserRepo struct {
	db *db.DB
}

func NewUserRepo(db *db.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash, role string) (user.User, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES (?,?,?,?)
		RETURNING id
	`, name, email, passwordHash, role).Scan(&id)
	if db.IsUniqueViolation(err) {
		return user.User{}, ErrEmailTaken
	}
	if err != nil {
		return user.User{}, err
	}
	return r.ByID(ctx, id)
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrUserNotFound
	}
	return u, err
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrUserNotFound
	}
	return u, err
}
