// Package api exposes the generation task manager over HTTP: starting
// runs, inspecting and cancelling tasks, and streaming task logs.
package api
