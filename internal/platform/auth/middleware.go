package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const CallerKey contextKey = "caller"

const (
	RoleAdmin  = "ADMIN"
	RoleBiller = "BILLER"
	RoleCoder  = "CODER"
)

// Caller is the authenticated identity every lifecycle operation runs as.
type Caller struct {
	UserID   int64
	Role     string
	TenantID int64
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Claims is the bearer token payload issued by the session service.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"userId"`
	Role     string `json:"role"`
	TenantID int64  `json:"tenantId"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleBiller, RoleCoder:
		return true
	}
	return false
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, CallerKey, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(CallerKey).(Caller)
	return c, ok
}

func (cfg JWTConfig) parse(tokenStr string) (*Claims, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("no signing key configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token not valid")
	}
	if claims.TenantID <= 0 {
		return nil, errors.New("token has no tenant")
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func setCaller(c echo.Context, caller Caller) {
	c.Set("jwt_tenant_id", fmt.Sprintf("%d", caller.TenantID))
	c.SetRequest(c.Request().WithContext(WithCaller(c.Request().Context(), caller)))
}

// JWTMiddleware verifies HS256 bearer tokens and binds the Caller they carry
// to the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}
			claims, err := cfg.parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			setCaller(c, Caller{UserID: claims.UserID, Role: claims.Role, TenantID: claims.TenantID})
			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as DefaultDevCaller.
// A request that does carry a bearer token is still verified when a signing
// key is configured.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	verify := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		verified := verify(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" || len(cfg.SigningKey) == 0 {
				setCaller(c, DefaultDevCaller)
				return next(c)
			}
			return verified(c)
		}
	}
}

// DefaultDevCaller is the identity assumed in development without a token.
var DefaultDevCaller = Caller{UserID: 1, Role: RoleAdmin, TenantID: 1}

// IssueToken signs a token for caller. Used by the CLI for local testing and
// by tests; production tokens come from the session service.
func IssueToken(cfg JWTConfig, caller Caller, ttl time.Duration) (string, error) {
	if len(cfg.SigningKey) == 0 {
		return "", errors.New("no signing key configured")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", caller.UserID),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   caller.UserID,
		Role:     caller.Role,
		TenantID: caller.TenantID,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}
