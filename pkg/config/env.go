package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} or ${VAR:-default}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces environment variable references in the input string
// with their values.
//
// Supported formats:
//   - ${VAR}          - the value of VAR, or empty string if not set
//   - ${VAR:-default} - the value of VAR, or "default" if VAR is not set or empty
//
// Example:
//
//	input := "target: http://${SSO_HOST:-sso-api.codegene.xyz}"
//	output := ExpandEnv(input)
//	// With SSO_HOST unset: "target: http://sso-api.codegene.xyz"
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		if value, exists := os.LookupEnv(parts[1]); exists && value != "" {
			return value
		}

		// parts[2] is the ":-default" group
		if len(parts) >= 4 && parts[2] != "" {
			return parts[3]
		}
		return ""
	})
}

// ExpandEnvBytes is a convenience wrapper around ExpandEnv for byte slices
// Useful for processing file contents before YAML/JSON unmarshaling
func ExpandEnvBytes(input []byte) []byte {
	return []byte(ExpandEnv(string(input)))
}

// MissingEnvVars lists variables referenced without a default that are unset
// or empty, in order of first appearance
func MissingEnvVars(input string) []string {
	matches := envVarPattern.FindAllStringSubmatch(input, -1)
	seen := make(map[string]bool)
	missing := make([]string, 0)

	for _, match := range matches {
		varName := match[1]
		hasDefault := len(match) >= 4 && match[2] != ""
		if seen[varName] || hasDefault {
			continue
		}
		seen[varName] = true

		if os.Getenv(varName) == "" {
			missing = append(missing, varName)
		}
	}

	return missing
}
