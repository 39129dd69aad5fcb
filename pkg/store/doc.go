// Package store reads resource and permission rows from a tenant's config
// database.
//
// The store is a read-only collaborator of the generator: it supplies raw
// rows (resources, grants, roles, users, groups) and never interprets them.
// PostgreSQL is the production backend; SQLite is supported for local
// development and fixtures.
package store
