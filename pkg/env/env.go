// Package env reads process environment variables for the few knobs that are
// needed before the typed config is loaded.
package env

import "os"

// Get returns key's value, or fallback when the variable is unset or empty.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
