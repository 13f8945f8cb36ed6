package middleware

import (
	"net/http"

	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

// ClientIP resolves the caller's IP once per request, trusting forwarding
// headers only from configured proxies, and stores it on the request context
func ClientIP(ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipConfig)
			next.ServeHTTP(w, r.WithContext(pkghttp.WithClientIP(r.Context(), ip)))
		})
	}
}

// clientIP returns the IP stored by ClientIP, or RemoteAddr when the
// middleware did not run
func clientIP(r *http.Request) string {
	if ip := pkghttp.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return pkghttp.ExtractClientIP(r, nil)
}
