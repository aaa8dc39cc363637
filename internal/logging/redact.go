package logging

import (
	"net/http"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveHeaders = map[string]struct{}{
	"Authorization":       {},
	"Proxy-Authorization": {},
	"X-Api-Key":           {},
	"Api-Key":             {},
	"Cookie":              {},
	"Set-Cookie":          {},
}

// RedactHeaders flattens h into a map suitable for logging, masking
// credentials and cookies.
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		canonical := http.CanonicalHeaderKey(name)
		if _, secret := sensitiveHeaders[canonical]; secret {
			out[canonical] = redacted
			continue
		}
		out[canonical] = strings.Join(values, ", ")
	}
	return out
}

var textPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`), "${1}" + redacted},
	{regexp.MustCompile(`sk-[A-Za-z0-9_\-]{8,}`), "sk-" + redacted},
	{regexp.MustCompile(`(?i)((?:api[-_]?key|access_token|client_secret|password)["']?\s*[:=]\s*["']?)[^\s"'&,}]+`), "${1}" + redacted},
}

// RedactText masks bearer tokens, API keys and similar secrets in s.
func RedactText(s string) string {
	for _, p := range textPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}
