// Package observability provides structured logging and Prometheus metrics
// for the config generator.
//
// The Logger wraps stdlib slog with a JSON handler so log output is
// machine-parseable. Generation tasks additionally keep their own
// append-only task log (see pkg/generator); the Logger here is for process
// level logging only.
package observability
