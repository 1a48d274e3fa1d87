package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examgen/internal/model"
)

const csrfCookieName = "csrf_token"

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) cookiePath() string {
	if h.cfg.Server.BasePath != "" {
		return h.cfg.Server.BasePath + "/"
	}
	return "/"
}

// issueCSRFToken sets a fresh token cookie and passes the token to the views.
func (h *Handler) issueCSRFToken(w http.ResponseWriter, r *http.Request, next http.Handler) {
	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: false,
		Secure:   h.cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	ctx := model.ContextWithCSRFToken(r.Context(), token)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// csrfMiddleware implements the double-submit cookie pattern for form posts.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			h.issueCSRFToken(w, r, next)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		formToken := r.FormValue("csrf_token")
		if formToken == "" {
			slog.Warn("CSRF form token missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		if len(formToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch")
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}

		h.issueCSRFToken(w, r, next)
	})
}

// basicAuth requires HTTP basic credentials when an auth user is configured.
// The password is checked against a bcrypt hash.
func (h *Handler) basicAuth(next http.Handler) http.Handler {
	if h.cfg.Server.AuthUser == "" {
		return next
	}
	wantUser := []byte(h.cfg.Server.AuthUser)
	hash := []byte(h.cfg.Server.AuthPasswordHash)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok && subtle.ConstantTimeCompare([]byte(user), wantUser) == 1 &&
			bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil {
			next.ServeHTTP(w, r)
			return
		}
		if ok {
			slog.Warn("basic auth failed", "user", user, "remote", r.RemoteAddr)
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="examgen", charset="UTF-8"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}
