package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
)

const timezoneHeader = "X-Timezone"

// BackendContext forwards the caller's language and timezone to every backend call made
// while serving the request.
func BackendContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := configurator.RequestContext{}
			if lang := primaryLanguage(r.Header.Get("Accept-Language")); lang != "" {
				reqCtx["lang"] = lang
			}
			if tz := strings.TrimSpace(r.Header.Get(timezoneHeader)); tz != "" {
				reqCtx["tz"] = tz
			}
			ctx := configurator.WithRequestContext(r.Context(), reqCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// primaryLanguage turns "fr-BE,fr;q=0.9" into "fr_BE".
func primaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	first = strings.TrimSpace(first)
	if first == "" || first == "*" {
		return ""
	}
	return strings.ReplaceAll(first, "-", "_")
}
