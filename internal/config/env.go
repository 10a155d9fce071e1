package config

import "os"

// ExpandEnv substitutes ${VAR} and $VAR references with environment
// variable values. Unset variables expand to the empty string, so a
// config like "Bearer ${GITHUB_TOKEN}" degrades to "Bearer " rather
// than leaking the placeholder to a server.
func ExpandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}

// ExpandEnvMap expands every value in m. A nil map stays nil.
func ExpandEnvMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	expanded := make(map[string]string, len(m))
	for key, value := range m {
		expanded[key] = ExpandEnv(value)
	}
	return expanded
}
