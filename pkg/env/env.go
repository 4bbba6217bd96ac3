package env

import "os"

// Get returns the environment variable's value, or fallback when the
// variable is unset or empty. Empty values are treated as unset because
// hosting platforms often export blank placeholders.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
