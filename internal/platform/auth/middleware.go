package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

type contextKey string

const principalKey contextKey = "principal"

// Middleware verifies the bearer token and attaches the principal to the
// request context. allowQueryToken permits a ?token= fallback; that exists
// only for the push-stream endpoint, whose browser clients cannot set
// headers on an EventSource.
func Middleware(tokens *TokenService, allowQueryToken bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c)
			if tokenStr == "" && allowQueryToken {
				tokenStr = c.QueryParam("token")
			}
			if tokenStr == "" {
				return httperr.New(httperr.KindUnauthenticated, "missing bearer token")
			}

			principal, err := tokens.Verify(tokenStr)
			if err != nil {
				return err
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), principal)))
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// WithPrincipal returns a context carrying the verified principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the verified principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// ClinicIDOf extracts the principal's clinic id for the tenant binder.
func ClinicIDOf(c echo.Context) (uuid.UUID, bool) {
	p := PrincipalFromContext(c.Request().Context())
	if p == nil {
		return uuid.Nil, false
	}
	return p.ClinicID, true
}

// RequireRole returns middleware that rejects principals whose role is not
// one of the listed roles. Messages are generic to avoid leaking which role
// would have been sufficient.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return httperr.New(httperr.KindUnauthenticated, "missing bearer token")
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			return httperr.New(httperr.KindForbidden, "insufficient permissions")
		}
	}
}

// RequireStaff is shorthand for RequireRole(ADMIN, DOCTOR).
func RequireStaff() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin, RoleDoctor)
}
