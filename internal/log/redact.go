package log

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// secretNames are attribute keys, header names and query parameters whose
// values are never logged. Matching is case-insensitive.
var secretNames = map[string]bool{
	"authorization":        true,
	"proxy-authorization":  true,
	"cookie":               true,
	"set-cookie":           true,
	"x-api-key":            true,
	"x-auth-token":         true,
	"api_key":              true,
	"apikey":               true,
	"api-key":              true,
	"access_token":         true,
	"refresh_token":        true,
	"id_token":             true,
	"client_secret":        true,
	"private_key":          true,
	"secret_key":           true,
	"jsessionid":           true,
	"phpsessid":            true,
	"sid":                  true,
	"sig":                  true,
	"signature":            true,
	"x-amz-signature":      true,
	"x-amz-credential":     true,
	"x-amz-security-token": true,
}

// secretKeywords mark a name as secret when contained anywhere in it.
// The bare "key" is not a keyword: "primary_key", "keyboard" and
// "cache_key" are routine.
var secretKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private", "cookie",
}

// secretValues match values that are secrets whatever their key.
var secretValues = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// AWS access key id
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// userinfoPattern finds "scheme://user:pass@" inside free text such as
// wrapped error messages.
var userinfoPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/\s@]+@`)

// isSecretName reports whether values named name must be masked.
func isSecretName(name string) bool {
	name = strings.ToLower(name)
	return secretNames[name] || containsSensitiveKeyword(name)
}

// containsSensitiveKeyword checks if the lowercase key contains a secret keyword.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range secretKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSecretValue checks if a value looks like a credential on its own.
func isSecretValue(value string) bool {
	for _, pattern := range secretValues {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// redactUserinfo replaces URL credentials in s with the mask.
func redactUserinfo(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}
	return userinfoPattern.ReplaceAllString(s, "${1}"+MaskValue+"@")
}

// redactQuery masks secret query parameters of an absolute URL, leaving
// everything else, including parameter order, untouched. Strings that are
// not absolute URLs are returned unchanged.
func redactQuery(s string) string {
	i := strings.IndexByte(s, '?')
	if i < 0 || !strings.Contains(s[:i], "://") {
		return s
	}

	query, fragment, hasFragment := strings.Cut(s[i+1:], "#")
	params := strings.Split(query, "&")
	changed := false
	for j, p := range params {
		name, _, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if isSecretName(name) {
			params[j] = name + "=" + MaskValue
			changed = true
		}
	}
	if !changed {
		return s
	}

	out := s[:i+1] + strings.Join(params, "&")
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

// redactString applies every value rule to s. ok is false when s needs no change.
func redactString(s string) (string, bool) {
	if isSecretValue(s) {
		return MaskValue, true
	}
	r := redactQuery(redactUserinfo(s))
	return r, r != s
}
