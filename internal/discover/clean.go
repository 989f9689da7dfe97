package discover

import (
	"net/url"
	"sort"
	"strings"
)

// CleanText collapses runs of whitespace, including non-breaking spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalURL lowercases scheme and host, drops the fragment, a trailing
// slash or ".git", and tracking parameters. Unparseable input is returned
// trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), ".git")

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" || lk == "ref" {
			q.Del(k)
		}
	}
	// deterministic query
	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()
	return u.String()
}
