package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/models"
)

type contextKey string

const userKey contextKey = "user"

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthMiddleware rejects requests without a valid access token and stores the
// authenticated user in the request context.
func AuthMiddleware(auth Authenticator, log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeError(w, apperror.New(apperror.KindUnauthorized, "Authorization header required"))
				return
			}
			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if !apperror.Is(err, apperror.KindUnauthorized) {
					log.Errorf("Authentication failed: %v", err)
				}
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin allows only users holding ROLE_ADMIN. It must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, apperror.New(apperror.KindUnauthorized, "Authorization header required"))
			return
		}
		if !user.HasRole(models.RoleAdmin) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "forbidden", "message": "Access denied"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperror.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(map[string]string{"code": string(kind), "message": apperror.Message(err)})
}
