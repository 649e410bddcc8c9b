package audit

import (
	"regexp"
	"strings"
)

const (
	RedactedValue = "[redacted]"
	RedactedJWT   = "[jwt-redacted]"
	RedactedToken = "[token-redacted]"
)

var sensitiveKeyParts = []string{
	"password",
	"passwd",
	"token",
	"secret",
	"authorization",
	"cookie",
	"api_key",
	"apikey",
	"credit_card",
	"creditcard",
	"card_number",
	"cardnumber",
	"cvv",
	"cvc",
}

var (
	jwtPattern          = regexp.MustCompile(`[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`)
	sensitivePairRegex  = regexp.MustCompile(`(?i)([a-z0-9_.-]*(?:` + strings.Join(sensitiveKeyParts, "|") + `)[a-z0-9_.-]*\s*[=:]\s*)([^\s,;&]+)`)
	longOpaqueRunRegexp = regexp.MustCompile(`[A-Za-z0-9_-]{32,}`)
)

// MaskEvent returns a copy of the event with sensitive material
// removed from metadata and detail. It is pure and idempotent:
// masking an already-masked event changes nothing.
func MaskEvent(event Event) Event {
	masked := event
	masked.Detail = MaskText(event.Detail)
	masked.Metadata = maskMetadata(event.Metadata)
	return masked
}

// MaskText scrubs free text: JWT-shaped substrings, values of
// sensitive key=value pairs, and long opaque alphanumeric runs that
// look like tokens.
func MaskText(text string) string {
	if text == "" {
		return ""
	}

	text = jwtPattern.ReplaceAllString(text, RedactedJWT)
	text = sensitivePairRegex.ReplaceAllString(text, "${1}"+RedactedValue)
	text = longOpaqueRunRegexp.ReplaceAllString(text, RedactedToken)

	return text
}

func maskMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}

	masked := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if isSensitiveKey(key) {
			masked[key] = RedactedValue
			continue
		}
		masked[key] = maskValue(value)
	}
	return masked
}

func maskValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return maskMetadata(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = maskValue(item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
