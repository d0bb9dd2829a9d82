// Package security holds input validation and secret redaction shared by the
// importer, the probe, the CLI and the log pipeline.
package security

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxRedactedLength bounds messages returned by Redact.
	MaxRedactedLength = 500
	// MaxConnectionNameLength bounds sanitised connection names.
	MaxConnectionNameLength = 100
	// MaxHeaderValueLength bounds sanitised header values.
	MaxHeaderValueLength = 8192
)

var (
	ErrInvalidName     = errors.New("invalid connection name")
	ErrInvalidHeader   = errors.New("invalid header name")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrInvalidMethod   = errors.New("invalid HTTP method")
)

var redactions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)password[=:]\s*\S+`), "password=***"},
	{regexp.MustCompile(`(?i)token[=:]\s*\S+`), "token=***"},
	{regexp.MustCompile(`(?i)key[=:]\s*\S+`), "key=***"},
	{regexp.MustCompile(`(?i)secret[=:]\s*\S+`), "secret=***"},
	{regexp.MustCompile(`(?i)Bearer\s+\S+`), "Bearer ***"},
	{regexp.MustCompile(`(?i)Basic\s+\S+`), "Basic ***"},
}

// Redact masks credential-looking substrings and truncates the result to
// MaxRedactedLength runes followed by "...".
func Redact(s string) string {
	for _, r := range redactions {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	if runes := []rune(s); len(runes) > MaxRedactedLength {
		s = string(runes[:MaxRedactedLength]) + "..."
	}
	return s
}

// RedactError is Redact applied to err's message.
func RedactError(err error) string {
	if err == nil {
		return "An unknown error occurred"
	}
	return Redact(err.Error())
}

// IsValidURL reports whether s is an absolute http or https URL with a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	}
	return false
}

var salesforceDomains = []string{
	".salesforce.com",
	".force.com",
	".cloudforce.com",
	".database.com",
}

// IsValidSalesforceURL reports whether s is a valid URL on a Salesforce
// owned domain or on localhost.
func IsValidSalesforceURL(s string) bool {
	if !IsValidURL(s) {
		return false
	}
	u, _ := url.Parse(strings.TrimSpace(s))
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	for _, d := range salesforceDomains {
		if strings.HasSuffix(host, d) {
			return true
		}
	}
	return false
}

var connectionNameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)

// SanitizeConnectionName keeps letters, digits, whitespace, '-' and '_',
// trims, and caps the length.
func SanitizeConnectionName(name string) (string, error) {
	s := connectionNameChars.ReplaceAllString(name, "")
	s = strings.TrimSpace(s)
	if len(s) > MaxConnectionNameLength {
		s = strings.TrimSpace(s[:MaxConnectionNameLength])
	}
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return s, nil
}

var headerNameRe = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// ValidHeaderName reports whether h is a plain token usable as a header name.
func ValidHeaderName(h string) bool {
	return headerNameRe.MatchString(strings.TrimSpace(h))
}

// SanitizeHeaderName trims h and rejects anything but [A-Za-z0-9_-].
func SanitizeHeaderName(h string) (string, error) {
	h = strings.TrimSpace(h)
	if !headerNameRe.MatchString(h) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHeader, h)
	}
	return h, nil
}

// SanitizeHeaderValue strips control characters and caps the length.
func SanitizeHeaderValue(v string) string {
	v = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, v)
	if len(v) > MaxHeaderValueLength {
		v = v[:MaxHeaderValueLength]
	}
	return strings.TrimSpace(v)
}

// SanitizeHeaders returns a copy of headers with invalid names dropped and
// values sanitised.
func SanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		name, err := SanitizeHeaderName(k)
		if err != nil {
			continue
		}
		out[name] = SanitizeHeaderValue(v)
	}
	return out
}

var allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// NormalizeHTTPMethod upper-cases m and checks it against the verbs a probe
// may issue. An empty method means GET.
func NormalizeHTTPMethod(m string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(m))
	if up == "" {
		return "GET", nil
	}
	for _, a := range allowedMethods {
		if up == a {
			return up, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, m)
}

var (
	dangerousPathChars  = regexp.MustCompile("[;&|`$()\\[\\]<>\\\\!#]")
	// the query keeps & as its pair separator
	dangerousQueryChars = regexp.MustCompile("[;|`$()\\[\\]<>\\\\!#]")
	placeholderSegment  = regexp.MustCompile(`^\{[A-Za-z0-9_.\-]+\}$`)
)

// SanitizeEndpointPath validates a request path: NUL bytes are removed, path
// traversal and shell metacharacters are rejected, a leading slash is added,
// and each segment and query pair is re-encoded. {name} placeholder segments
// are kept verbatim.
func SanitizeEndpointPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\x00", "")
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidEndpoint)
	}
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidEndpoint)
	}
	path, query, hasQuery := strings.Cut(p, "?")
	if dangerousPathChars.MatchString(path) || dangerousQueryChars.MatchString(query) {
		return "", fmt.Errorf("%w: invalid characters in %q", ErrInvalidEndpoint, p)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if placeholderSegment.MatchString(seg) {
			continue
		}
		if dec, err := url.PathUnescape(seg); err == nil {
			seg = dec
		}
		segments[i] = url.PathEscape(seg)
	}
	out := strings.Join(segments, "/")
	if !hasQuery {
		return out, nil
	}

	var pairs []string
	for _, part := range strings.Split(query, "&") {
		key, value, _ := strings.Cut(part, "=")
		if key == "" {
			continue
		}
		if dec, err := url.QueryUnescape(key); err == nil {
			key = dec
		}
		if dec, err := url.QueryUnescape(value); err == nil {
			value = dec
		}
		pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}
	return out + "?" + strings.Join(pairs, "&"), nil
}
