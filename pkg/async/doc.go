// Package async provides panic-safe goroutine helpers for background
// generation tasks.
package async
