// Package middleware содержит HTTP middleware для сервиса пресейла.
package middleware

import (
	"net/http"
	"strings"
)

// BearerAuth проверяет заголовок Authorization на совпадение с общим секретом.
// Секрет генерируется сервером, поэтому достаточно сравнения значений —
// криптографическая подпись здесь не используется.
type BearerAuth struct {
	secret string
}

// NewBearerAuth создаёт middleware авторизации по общему секрету.
func NewBearerAuth(secret string) *BearerAuth {
	return &BearerAuth{secret: secret}
}

// Middleware отклоняет запросы без корректного bearer-токена.
func (a *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.secret == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || token != a.secret {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
