package logging

import (
	"regexp"
	"strings"
)

// sensitiveKeyPatterns are substrings that mark a key as holding a secret.
var sensitiveKeyPatterns = []string{
	"token",
	"secret",
	"password",
	"api_key",
	"apikey",
	"access_key",
	"credential",
}

// sensitiveValuePattern matches key=value pairs with sensitive keys.
var sensitiveValuePattern = regexp.MustCompile(`(?i)(password|token|secret|key|credential|auth)=\S+`)

// IsSensitiveKey returns true if the key name matches known sensitive
// patterns. The check is case-insensitive.
func IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(lowerKey, pattern) {
			return true
		}
	}
	return false
}

// RedactToken returns a redacted form of a secret suitable for logs. The
// last four characters are kept so operators can tell tokens apart.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return "***" + token[len(token)-4:]
}

// RedactSensitivePatterns redacts known sensitive key=value patterns from a
// string, e.g. "token=abc123" becomes "token=***".
func RedactSensitivePatterns(input string) string {
	return sensitiveValuePattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := strings.SplitN(match, "=", 2)
		if len(parts) == 2 {
			return parts[0] + "=***"
		}
		return match
	})
}
