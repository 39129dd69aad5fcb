// Package generator orchestrates config generation runs: one task per
// tenant at a time, moving through pending, running and a terminal
// succeeded, failed or cancelled state.
//
// A task owns an append-only log that both the resolver and the assembler
// report into, and that API clients can snapshot or stream. Output is
// staged and only published atomically on success; a failed or cancelled
// task leaves the previously published output untouched.
package generator
