// Package assembler builds the per-service config documents and the tenant
// permissions document from resolved permissions, store rows and project
// metadata.
//
// Documents are written to a staging directory first. On full success the
// staging directory atomically replaces the tenant's published output, so
// readers never observe a half-written generation; on failure or
// cancellation the staging area is discarded and the previously published
// output stays untouched.
package assembler
