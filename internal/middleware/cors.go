package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// OriginList matches request origins against configured entries. An entry
// is either an exact origin ("https://desk.example.com") or a subdomain
// pattern ("*.example.com"). Matching ignores case.
type OriginList struct {
	exact    map[string]bool
	suffixes []string
}

// NewOriginList builds an OriginList. Blank entries are ignored.
func NewOriginList(origins []string) OriginList {
	l := OriginList{exact: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSpace(o))
		switch {
		case o == "":
		case strings.HasPrefix(o, "*."):
			l.suffixes = append(l.suffixes, o[1:])
		default:
			l.exact[o] = true
		}
	}
	return l
}

// Empty reports whether no origin is allowed.
func (l OriginList) Empty() bool {
	return len(l.exact) == 0 && len(l.suffixes) == 0
}

// Allows reports whether origin is listed.
func (l OriginList) Allows(origin string) bool {
	origin = strings.ToLower(origin)
	if l.exact[origin] {
		return true
	}
	for _, suffix := range l.suffixes {
		head, ok := strings.CutSuffix(origin, suffix)
		if !ok {
			continue
		}
		// "https://evilexample.com" must not match "*.example.com".
		if i := strings.Index(head, "://"); i >= 0 && len(head) > i+3 {
			return true
		}
	}
	return false
}

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	Origins        OriginList
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	// AllowCredentials lets browsers send the token cookie cross-origin.
	AllowCredentials bool

	// MaxAge caches preflight results, in seconds.
	MaxAge int
}

// DefaultCORSConfig returns the CORS setup for the dashboard API.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		Origins:          NewOriginList(origins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "Accept", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORS answers preflight requests and tags responses for listed origins.
// Requests without an Origin header pass through untouched. Unlisted origins
// get no CORS headers, and their preflights are refused with 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			preflight := r.Method == http.MethodOptions
			if !cfg.Origins.Allows(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
