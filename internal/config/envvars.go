// ABOUTME: Environment variable expansion in config string fields
// ABOUTME: Replaces ${VAR} patterns with os.Getenv values; unset vars become empty

package config

import (
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// resolveEnvVars expands ${VAR} patterns in string fields so keys can live
// in the environment while the file stays committed.
func resolveEnvVars(c *Config) {
	c.Model = expandEnv(c.Model)
	c.System = expandEnv(c.System)
	c.Listen = expandEnv(c.Listen)
	c.Consent.Path = expandEnv(c.Consent.Path)

	for name, v := range c.Vendors {
		v.APIKey = expandEnv(v.APIKey)
		v.BaseURL = expandEnv(v.BaseURL)
		c.Vendors[name] = v
	}
}

// expandEnv replaces ${VAR} with os.Getenv(VAR). Unset vars become "".
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
