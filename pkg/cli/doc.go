// Package cli implements the confgen command line interface.
package cli
