package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

const langCookie = "examgen_lang"

var matcher = language.NewMatcher([]language.Tag{language.English, language.Korean})

// Middleware picks the UI language for each request and injects its localizer.
// The order is the ?lang= query parameter (remembered in a cookie), the cookie,
// the Accept-Language header, then fallback.
func Middleware(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := fallback
			if q := r.URL.Query().Get("lang"); isSupported(q) {
				lang = q
				http.SetCookie(w, &http.Cookie{
					Name:     langCookie,
					Value:    q,
					Path:     "/",
					MaxAge:   365 * 24 * 3600,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			} else if c, err := r.Cookie(langCookie); err == nil && isSupported(c.Value) {
				lang = c.Value
			} else if accept := r.Header.Get("Accept-Language"); accept != "" {
				tags, _, err := language.ParseAcceptLanguage(accept)
				if err == nil && len(tags) > 0 {
					_, idx, conf := matcher.Match(tags...)
					if conf != language.No {
						lang = Supported[idx]
					}
				}
			}
			ctx := WithLanguage(r.Context(), lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isSupported(lang string) bool {
	for _, s := range Supported {
		if s == lang {
			return true
		}
	}
	return false
}
