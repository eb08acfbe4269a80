package simplestory

import (
	"net/url"
	"regexp"
	"strings"
)

var duplicateSlashes = regexp.MustCompile(`/{2,}`)

// JoinPath joins path segments, dropping empty ones and collapsing duplicate
// slashes. A scheme in the first segment keeps its "scheme://" intact.
func JoinPath(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return ""
	}
	if scheme, rest, ok := strings.Cut(filtered[0], "://"); ok {
		joined := scheme + "://" + rest + "/" + strings.Join(filtered[1:], "/")
		joined = duplicateSlashes.ReplaceAllString(joined, "/")
		return strings.Replace(joined, ":/", "://", 1)
	}
	return duplicateSlashes.ReplaceAllString(strings.Join(filtered, "/"), "/")
}

// StripStartingSlash removes one leading slash.
func StripStartingSlash(path string) string {
	return strings.TrimPrefix(path, "/")
}

// StripEndingSlash removes one trailing slash.
func StripEndingSlash(path string) string {
	return strings.TrimSuffix(path, "/")
}

// AddStartingSlash makes sure path starts with a slash. An empty path becomes "/".
func AddStartingSlash(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// RemoveFirstFolder drops the first segment of a slug, usually the locale folder.
func RemoveFirstFolder(slug string) string {
	parts := strings.Split(StripStartingSlash(slug), "/")
	return strings.Join(parts[1:], "/")
}

// RemoveLastFolder drops the last segment of a slug.
func RemoveLastFolder(slug string) string {
	parts := strings.Split(StripEndingSlash(slug), "/")
	return strings.Join(parts[:len(parts)-1], "/")
}

var fileBase = &url.URL{Scheme: "file", Path: "/"}

// ExtendURL joins prefix and href and sets params on the query string.
// Relative results are returned as an absolute path plus query; an absolute
// prefix keeps its scheme and host.
func ExtendURL(href, prefix string, params url.Values) string {
	joined := JoinPath(prefix, href)
	u, err := url.Parse(joined)
	if err != nil {
		return AddStartingSlash(joined)
	}

	rawQuery := u.RawQuery
	if len(params) > 0 {
		q := u.Query()
		for name, values := range params {
			q[name] = append([]string(nil), values...)
		}
		rawQuery = q.Encode()
	}

	if u.IsAbs() && u.Scheme != "file" {
		u.RawQuery = rawQuery
		u.Fragment = ""
		return u.String()
	}

	resolved := fileBase.ResolveReference(u)
	if rawQuery == "" {
		return resolved.EscapedPath()
	}
	return resolved.EscapedPath() + "?" + rawQuery
}
