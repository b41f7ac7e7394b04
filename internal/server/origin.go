// Package server normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// normalizeOrigins canonicalizes the configured origin list. A "*" entry
// switches the server into allow-all mode; entries that do not parse as
// scheme://host are logged and dropped.
func normalizeOrigins(configured []string) ([]string, bool) {
	if len(configured) == 0 {
		return nil, false
	}

	var allowAll bool
	normalized := make([]string, 0, len(configured))
	for _, entry := range configured {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case entry == "*":
			allowAll = true
		default:
			canonical, ok := canonicalOrigin(entry)
			if !ok {
				log.Printf("Ignoring invalid origin in configuration: %q", entry)
				continue
			}
			normalized = append(normalized, canonical)
		}
	}
	return normalized, allowAll
}

// canonicalOrigin lowercases the scheme and host of an origin so comparisons
// are case-insensitive. Origins missing either part are rejected.
func canonicalOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// checkOrigin is the upgrader's origin gate. Requests without an Origin
// header are rejected outright; browsers always send one, and non-browser
// clients are expected to identify themselves the same way.
func checkOrigin(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header != "" {
		if canonical, ok := canonicalOrigin(header); ok {
			configMu.RLock()
			defer configMu.RUnlock()
			if allowAllOrigins {
				return true
			}
			if _, allowed := allowedOrigins[canonical]; allowed {
				return true
			}
		}
	}

	log.Printf("Blocked WebSocket connection from disallowed origin: %q", header)
	return false
}
