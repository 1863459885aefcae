package llm

import (
	"regexp"
	"strings"
)

// Sanitize strips a markdown code fence from a raw model response. Both
// tagged (```sql) and untagged fences are handled, and a truncated
// response without the closing fence is tolerated.
func Sanitize(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")

	// Drop a language tag on the opening fence ("sql", "json", ...).
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		if isFenceTag(trimmed[:newline]) {
			trimmed = trimmed[newline+1:]
		}
	} else if isFenceTag(trimmed) && !strings.Contains(trimmed, "```") {
		return ""
	}

	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isFenceTag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '+':
		default:
			return false
		}
	}
	return true
}

var vendorPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)litellm\.\w+Error:\s*`),
	regexp.MustCompile(`(?i)\w+Error:\s*`),
	regexp.MustCompile(`(?i)\w+Exception\s*-\s*`),
}

// CleanVendorError strips vendor exception-class prefixes from an error
// message so the user sees provider-agnostic text. String cleanup only;
// an all-prefix message is returned unchanged rather than emptied.
func CleanVendorError(message string) string {
	cleaned := message
	for _, prefix := range vendorPrefixes {
		cleaned = prefix.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return message
	}
	return cleaned
}
