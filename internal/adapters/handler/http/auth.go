package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	MemberIDKey contextKey = "member_id"
	RoleKey     contextKey = "role"
)

const (
	RoleMember  = "member"
	RoleAuditor = "auditor"
	RoleAdmin   = "admin"
)

// Authenticator validates HS256 access tokens issued by the membership
// service. The token comes from the access_token cookie or a Bearer header.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing access token")
			return
		}

		var claims accessClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
			return a.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		role := claims.Role
		if role == "" {
			role = RoleMember
		}
		ctx := context.WithValue(r.Context(), MemberIDKey, claims.Subject)
		ctx = context.WithValue(ctx, RoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets the request through when the caller has one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(RoleKey).(string)
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func memberID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(MemberIDKey).(string)
	return id, ok && id != ""
}
