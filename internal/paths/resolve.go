package paths

import (
	"fmt"
	"regexp"
)

const DefaultSource = "system"

var sourceRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateSource checks that a store source name is safe to use as a directory.
func ValidateSource(name string) error {
	if !sourceRegexp.MatchString(name) {
		return fmt.Errorf("invalid source name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// ResolveSource determines the store source using precedence:
// 1. flagOverride (--source flag)
// 2. the conduit config value
// 3. "system"
func ResolveSource(flagOverride, configured string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if configured != "" {
		return configured
	}
	return DefaultSource
}
