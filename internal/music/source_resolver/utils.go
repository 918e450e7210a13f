package source_resolver

import "regexp"

var urlPattern = regexp.MustCompile(`^https?://`)

// IsURL reports whether query is a link rather than search text.
func IsURL(query string) bool {
	return urlPattern.MatchString(query)
}
