package helpers

import (
	"net/url"
	"strings"
)

// LastPathSegment returns the last non-empty path segment of a URL, ignoring
// the query string and fragment.
func LastPathSegment(link string) string {
	link = strings.SplitN(link, "#", 2)[0]
	link = strings.SplitN(link, "?", 2)[0]
	parts := strings.Split(strings.TrimRight(link, "/"), "/")
	return parts[len(parts)-1]
}

// ResolveURL turns a site-relative link into an absolute one
func ResolveURL(baseURL, link string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(link, "/")
	}
	ref, err := url.Parse(link)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(link, "/")
	}
	return base.ResolveReference(ref).String()
}
