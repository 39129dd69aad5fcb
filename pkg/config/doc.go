// Package config loads application configuration from CONFGEN_*
// environment variables.
package config
