package service

import (
	"net/url"
	"strings"
)

const (
	DefaultLandingPath = "/usuario/user-panel"

	oauthCallbackPrefix = "/api/auth/callback/"
	signInPath          = "/api/auth/signin"
)

// PostLoginRedirectTarget decides where a browser goes after signing in. It never
// leaves originURL's origin.
func PostLoginRedirectTarget(requestedURL, originURL string) string {
	origin := strings.TrimRight(originURL, "/")
	landing := origin + DefaultLandingPath
	requested := strings.TrimSpace(requestedURL)

	if requested == "" {
		return landing
	}
	if isAuthEndpoint(requested) {
		return landing
	}
	if requested == origin || requested == origin+"/" || requested == "/" {
		return landing
	}

	if strings.HasPrefix(requested, "/") {
		// "//host" and "/\host" are network-path references to another origin.
		if strings.HasPrefix(requested, "//") || strings.HasPrefix(requested, "/\\") {
			return landing
		}
		return origin + requested
	}

	if sameOrigin(requested, origin) {
		return requested
	}
	return landing
}

func isAuthEndpoint(raw string) bool {
	path := raw
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		path = parsed.Path
	}
	return strings.HasPrefix(path, oauthCallbackPrefix) || strings.HasPrefix(path, signInPath)
}

func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil || ua.Scheme == "" || ua.Host == "" {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}
