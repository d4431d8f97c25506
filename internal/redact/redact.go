// Package redact strips credentials, connection strings, file paths and
// other sensitive fragments from text before it is logged or persisted as
// an export failure reason.
package redact

import (
	"regexp"
	"strings"
)

// Placeholders substituted for redacted fragments.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

// MaxReasonLength bounds the failure reason stored on an export row.
const MaxReasonLength = 500

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// rules are applied in order; connection strings must go before hosts and
// emails so their userinfo is removed as a whole.
var rules = []rule{
	{regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss|mysql|db|database|connection)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder},
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(
		`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|GRANT)[\s\w,*()]+(?:FROM|INTO|SET|TABLE|DATABASE|SCHEMA|VIEW)(?:[\s\w,*()='"]+)?`,
	), "[REDACTED_SQL]"},
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`), "[REDACTED_HOST]"},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Reason renders err as a single-line, redacted failure reason of at most
// MaxReasonLength bytes.
func Reason(err error) string {
	s := strings.Join(strings.Fields(Error(err)), " ")
	if len(s) <= MaxReasonLength {
		return s
	}
	cut := MaxReasonLength
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
