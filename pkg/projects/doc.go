// Package projects supplies structured map-project metadata to the config
// assembler.
//
// Metadata extraction from map project files is an external concern; this
// package reads the pre-extracted per-theme JSON documents, caches them,
// and invalidates cache entries when the metadata files change on disk.
package projects
