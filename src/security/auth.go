package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/username/fundsight/backend/src/utils"
)

// AuthService validates HS256 bearer tokens on the API surface. There are no
// user accounts; tokens are issued out of band to API clients.
type AuthService struct {
	secret []byte
	log    *slog.Logger
}

func NewAuthService(secret string, log *slog.Logger) *AuthService {
	return &AuthService{secret: []byte(secret), log: log}
}

// IssueToken mints a token for an API client. Used by operational tooling,
// not by any request path.
func (a *AuthService) IssueToken(subject string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.log.Warn("Missing bearer token", "path", r.URL.Path)
			utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			a.log.Warn("Invalid bearer token", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
