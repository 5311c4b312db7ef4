package repositories

import (
	"context"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, executor SQLExecutor, user *models.User) error
	FindUserByID(ctx context.Context, executor SQLExecutor, userID int64) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error)
	UpdateUser(ctx context.Context, executor SQLExecutor, user *models.User) error
	UpdatePassword(ctx context.Context, executor SQLExecutor, userID int64, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, password_hash, role, full_name, email, phone, active, last_login, created_at, updated_at`

// CreateUser inserts user and fills its id and timestamps.
// A taken username yields ErrDuplicateKey.
func (r *userRepository) CreateUser(ctx context.Context, executor SQLExecutor, user *models.User) error {
	query := `INSERT INTO users (username, password_hash, role, full_name, email, phone, active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id, created_at, updated_at`
	err := executor.QueryRowxContext(ctx, query,
		user.Username, user.PasswordHash, user.Role, user.FullName, user.Email, user.Phone, user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapError(err, "creating user")
}

func (r *userRepository) FindUserByID(ctx context.Context, executor SQLExecutor, userID int64) (*models.User, error) {
	var user models.User
	err := executor.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, mapError(err, "finding user by id")
	}
	return &user, nil
}

func (r *userRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, mapError(err, "finding user by username")
	}
	return &user, nil
}

func (r *userRepository) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY full_name, username`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, mapError(err, "listing users")
	}
	return users, nil
}

// UpdateUser writes the mutable profile fields of user.
func (r *userRepository) UpdateUser(ctx context.Context, executor SQLExecutor, user *models.User) error {
	query := `UPDATE users
	          SET full_name = $2, email = $3, phone = $4, role = $5, active = $6, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`
	err := executor.QueryRowxContext(ctx, query,
		user.ID, user.FullName, user.Email, user.Phone, user.Role, user.Active,
	).Scan(&user.UpdatedAt)
	return mapError(err, "updating user")
}

func (r *userRepository) UpdatePassword(ctx context.Context, executor SQLExecutor, userID int64, passwordHash string) error {
	res, err := executor.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return mapError(err, "updating password")
	}
	if err := requireAffected(res, "updating password"); err != nil {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, userID, at)
	return mapError(err, "updating last login")
}
