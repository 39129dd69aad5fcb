// Package schema validates generated documents against per-service JSON
// schemas loaded from a schema directory.
package schema
