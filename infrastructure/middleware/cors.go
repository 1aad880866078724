// Package middleware provides the HTTP middleware chain wrapped around
// the intake router: recovery, CORS, security headers, body limits,
// timeouts, request logging, metrics, and graceful shutdown.
package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CORSConfig configures allowed origins, methods, and headers for
// cross-origin label-upload requests.
type CORSConfig struct {
	AllowedOrigins         []string
	AllowedMethods         []string
	AllowedHeaders         []string
	ExposedHeaders         []string
	AllowCredentials       bool
	MaxAgeSeconds          int
	PreflightStatus        int
	RejectDisallowedOrigin bool
}

// CORSMiddleware answers preflight requests and sets CORS response
// headers for allowed origins.
type CORSMiddleware struct {
	cfg             CORSConfig
	acceptAnyOrigin bool
}

// NewCORSMiddleware builds a CORSMiddleware from cfg, filling in
// reasonable defaults for any unset field. A nil cfg is equivalent to
// an empty CORSConfig.
func NewCORSMiddleware(cfg *CORSConfig) *CORSMiddleware {
	resolved := CORSConfig{}
	if cfg != nil {
		resolved = *cfg
	}

	if len(resolved.AllowedMethods) == 0 {
		resolved.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	if len(resolved.AllowedHeaders) == 0 {
		resolved.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Trace-ID"}
	}
	if len(resolved.ExposedHeaders) == 0 {
		resolved.ExposedHeaders = []string{"X-Trace-ID"}
	}
	if resolved.MaxAgeSeconds == 0 {
		resolved.MaxAgeSeconds = 3600
	}
	if resolved.PreflightStatus == 0 {
		resolved.PreflightStatus = http.StatusNoContent
	}

	acceptAny := false
	for _, origin := range resolved.AllowedOrigins {
		if origin == "*" {
			acceptAny = true
			break
		}
	}

	return &CORSMiddleware{cfg: resolved, acceptAnyOrigin: acceptAny}
}

// Handler applies CORS headers to the response and short-circuits
// preflight (OPTIONS) requests.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := origin != "" && (m.acceptAnyOrigin || m.originAllowed(origin))
		switch {
		case allowed:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(m.cfg.AllowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(m.cfg.AllowedHeaders, ", "))
			w.Header().Set("Access-Control-Expose-Headers", strings.Join(m.cfg.ExposedHeaders, ", "))
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(m.cfg.MaxAgeSeconds))
			if m.cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		case origin != "" && m.cfg.RejectDisallowedOrigin:
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			http.Error(w, "CORS origin not allowed", http.StatusForbidden)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(m.cfg.PreflightStatus)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// originAllowed reports whether origin matches an exact entry in
// AllowedOrigins, or a leading-dot wildcard suffix like ".example.com".
func (m *CORSMiddleware) originAllowed(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if host == "" {
		return false
	}

	for _, allowed := range m.cfg.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == origin {
			return true
		}
		suffix := strings.TrimPrefix(allowed, ".")
		if suffix == "" || !strings.HasPrefix(allowed, ".") {
			continue
		}
		if !strings.HasSuffix(host, suffix) {
			continue
		}
		if idx := len(host) - len(suffix); idx > 0 && host[idx-1] == '.' {
			return true
		}
	}
	return false
}
