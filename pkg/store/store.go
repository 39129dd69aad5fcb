package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/geoserve/confgen/pkg/permissions"
	"github.com/geoserve/confgen/pkg/resource"
)

// Store reads config rows from a tenant's relational config database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the config database. URLs starting with postgres:// or
// postgresql:// use the pq driver; anything else is treated as a SQLite
// path or DSN.
func Open(databaseURL string) (*Store, error) {
	driver := "sqlite3"
	if strings.HasPrefix(databaseURL, "postgres://") ||
		strings.HasPrefix(databaseURL, "postgresql://") {
		driver = "postgres"
	}
	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open config database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Resources returns all resource rows ordered by ID.
func (s *Store) Resources(ctx context.Context) ([]resource.Record, error) {
	query := `
		SELECT id, type, name, parent_id
		FROM resources
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var records []resource.Record
	for rows.Next() {
		var rec resource.Record
		var parent sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Name, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			rec.Parent = &p
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Grants returns all explicit permission records joined with their role and
// resource identity, ordered for deterministic processing.
func (s *Store) Grants(ctx context.Context) ([]permissions.Grant, error) {
	query := `
		SELECT ro.name, re.type, re.name
		FROM permissions p
		JOIN roles ro ON ro.id = p.role_id
		JOIN resources re ON re.id = p.resource_id
		ORDER BY ro.name, re.type, re.name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var grants []permissions.Grant
	for rows.Next() {
		var g permissions.Grant
		if err := rows.Scan(&g.Role, &g.ResourceType, &g.ResourceName); err != nil {
			return nil, fmt.Errorf("failed to scan permission row: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// Roles returns all role names ordered by name.
func (s *Store) Roles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// Users returns all users with their group and role memberships, ordered by
// user name.
func (s *Store) Users(ctx context.Context) ([]permissions.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []permissions.User
	index := make(map[int64]int)
	for rows.Next() {
		var id int64
		var u permissions.User
		if err := rows.Scan(&id, &u.Name); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Groups = []string{}
		u.Roles = []string{}
		index[id] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groupRows, err := s.db.QueryContext(ctx, `
		SELECT ug.user_id, g.name
		FROM user_groups ug
		JOIN groups g ON g.id = ug.group_id
		ORDER BY g.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user groups: %w", err)
	}
	defer groupRows.Close()
	for groupRows.Next() {
		var userID int64
		var group string
		if err := groupRows.Scan(&userID, &group); err != nil {
			return nil, fmt.Errorf("failed to scan user group row: %w", err)
		}
		if i, ok := index[userID]; ok {
			users[i].Groups = append(users[i].Groups, group)
		}
	}
	if err := groupRows.Err(); err != nil {
		return nil, err
	}

	roleRows, err := s.db.QueryContext(ctx, `
		SELECT ur.user_id, r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		ORDER BY r.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var userID int64
		var role string
		if err := roleRows.Scan(&userID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan user role row: %w", err)
		}
		if i, ok := index[userID]; ok {
			users[i].Roles = append(users[i].Roles, role)
		}
	}
	return users, roleRows.Err()
}

// Groups returns all groups with their roles, ordered by group name.
func (s *Store) Groups(ctx context.Context) ([]permissions.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []permissions.Group
	index := make(map[int64]int)
	for rows.Next() {
		var id int64
		var g permissions.Group
		if err := rows.Scan(&id, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		g.Roles = []string{}
		index[id] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roleRows, err := s.db.QueryContext(ctx, `
		SELECT gr.group_id, r.name
		FROM group_roles gr
		JOIN roles r ON r.id = gr.role_id
		ORDER BY r.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query group roles: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var groupID int64
		var role string
		if err := roleRows.Scan(&groupID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan group role row: %w", err)
		}
		if i, ok := index[groupID]; ok {
			groups[i].Roles = append(groups[i].Roles, role)
		}
	}
	return groups, roleRows.Err()
}
