package compliance

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Government id numbers in the common dashed form.
	ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	// Payment card numbers, 13-16 digits with optional separators.
	cardPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
)

var sensitiveKeywords = []string{
	"ssn", "social_security", "credit_card", "bank_account",
	"medical", "health", "salary", "compensation",
}

var maskedFieldFragments = []string{
	"password", "secret", "token", "key", "ssn", "credit_card",
}

// containsSensitiveData reports whether any parameter value matches a
// sensitive-data pattern.
func containsSensitiveData(parameters map[string]any) bool {
	flat := strings.ToLower(flatten(parameters))
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(flat, keyword) {
			return true
		}
	}
	return ssnPattern.MatchString(flat) || cardPattern.MatchString(flat)
}

// MaskParameters returns a copy safe for logs and audit detail: values of
// credential-like fields are replaced.
func MaskParameters(parameters map[string]any) map[string]any {
	masked := make(map[string]any, len(parameters))
	for key, value := range parameters {
		if isMaskedField(key) {
			masked[key] = "***MASKED***"
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			masked[key] = MaskParameters(nested)
			continue
		}
		masked[key] = value
	}
	return masked
}

func isMaskedField(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range maskedFieldFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

func flatten(parameters map[string]any) string {
	var b strings.Builder
	for key, value := range parameters {
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(fmt.Sprintf("%v", value))
		b.WriteString(" ")
	}
	return b.String()
}
