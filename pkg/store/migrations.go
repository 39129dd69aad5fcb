package store

import (
	"context"
	"fmt"
)

// migrations are the config database schema statements, portable between
// PostgreSQL and SQLite. Production deployments normally manage this schema
// externally; RunMigrations exists for development and fixtures.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_groups (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_roles (
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		PRIMARY KEY (group_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		parent_id INTEGER REFERENCES resources(id)
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id INTEGER PRIMARY KEY,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		resource_id INTEGER NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		priority INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resources_type_name ON resources(type, name)`,
	`CREATE INDEX IF NOT EXISTS idx_permissions_role ON permissions(role_id)`,
}

// RunMigrations creates the config database schema.
func (s *Store) RunMigrations(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
