package config

import "os"

// ExpandEnv expands environment variables in YAML content using the
// standard library's shell-style substitution ($VAR and ${VAR}).
// Missing variables expand to empty string.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
