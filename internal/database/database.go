package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"venue_ops_backend/internal/config"
	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

//go:embed schema.sql
var schemaSQL string

// DSN builds a lib/pq connection string from cfg.
func DSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// Connect opens the connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.DBName).Msg("Successfully connected to the database")
	return db, nil
}

// ApplySchema executes the embedded schema. Every statement is idempotent.
func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("could not execute schema script: %w", err)
	}
	log.Info().Msg("Database schema applied successfully")
	return nil
}

// Seed inserts the role baselines and a default admin account when no admin exists.
func Seed(ctx context.Context, db *sqlx.DB, adminPassword string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for role, perms := range models.RoleBaselines {
		for _, perm := range perms {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO role_permissions (role, permission) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				role, perm); err != nil {
				return fmt.Errorf("seeding role permission %s/%s: %w", role, perm, err)
			}
		}
	}

	var admins int
	if err := tx.GetContext(ctx, &admins, `SELECT COUNT(*) FROM users WHERE role = $1`, models.RoleAdmin); err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}
	if admins == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing default admin password: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, role, full_name) VALUES ('admin', $1, $2, 'Administrator')
			 ON CONFLICT (username) DO NOTHING`,
			string(hash), models.RoleAdmin); err != nil {
			return fmt.Errorf("creating default admin: %w", err)
		}
		log.Warn().Msg("Default admin account created; change its password")
	}

	return tx.Commit()
}
