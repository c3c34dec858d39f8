package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey carries the matched locale tag through the request context.
var LocaleKey = localeContextKey{}

// supported lists the locales content can be generated in; the first entry
// is the fallback.
var supported = []language.Tag{
	language.English,
	language.Indonesian,
	language.Spanish,
	language.Portuguese,
}

var localeMatcher = language.NewMatcher(supported)

// Locale matches the caller's preferred language against the supported set
// and stores the canonical base tag. X-Locale wins over Accept-Language.
func Locale(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := matchLocale(r.Header.Get("X-Locale"), r.Header.Get("Accept-Language"), defaultLocale)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func matchLocale(override, accept, fallback string) string {
	prefs := accept
	if override != "" {
		prefs = override
	}
	tags, _, err := language.ParseAcceptLanguage(prefs)
	if err != nil || len(tags) == 0 {
		if fallback != "" {
			return fallback
		}
		return "en"
	}
	_, index, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		if fallback != "" {
			return fallback
		}
		return "en"
	}
	base, _ := supported[index].Base()
	return base.String()
}

// LocaleFromContext returns the matched locale, defaulting to en.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok && v != "" {
		return v
	}
	return "en"
}
