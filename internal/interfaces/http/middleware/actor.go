package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/infrastructure/config"
	"github.com/labstock/backend/internal/infrastructure/logger"
)

// Actor context keys
const (
	ActorNameKey  = "actor_name"
	ActorRoleKey  = "actor_role"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "

	// Header fallback for deployments without a token issuer. Only
	// honored when auth.allow_header_fallback is on.
	ActorHeaderKey     = "X-Actor"
	ActorRoleHeaderKey = "X-Actor-Role"
)

// Auth errors surfaced by token parsing
var (
	ErrMissingActor = errors.New("actor identity missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// ActorClaims is the token payload the ledger understands. The engine
// never issues tokens; it validates whatever the deployment's identity
// provider signed and lifts the actor identity out of it.
type ActorClaims struct {
	Actor string `json:"actor"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ActorMiddlewareConfig holds configuration for actor identification
type ActorMiddlewareConfig struct {
	// Secret is the HMAC key tokens are verified against
	Secret string
	// Issuer, when set, must match the token's iss claim
	Issuer string
	// AllowHeaderFallback accepts X-Actor/X-Actor-Role headers in
	// place of a bearer token. Development convenience only.
	AllowHeaderFallback bool
	// SkipPaths are paths that don't require an actor identity
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require an actor identity
	SkipPathPrefixes []string
	// Logger for middleware logging
	Logger *zap.Logger
}

// ActorMiddlewareFromConfig builds the middleware config from the
// application auth settings.
func ActorMiddlewareFromConfig(cfg config.AuthConfig, log *zap.Logger) ActorMiddlewareConfig {
	return ActorMiddlewareConfig{
		Secret:              cfg.Secret,
		Issuer:              cfg.Issuer,
		AllowHeaderFallback: cfg.AllowHeaderFallback,
		SkipPaths: []string{
			"/health",
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
}

// ActorMiddleware resolves the acting identity for every request and
// rejects requests that carry none. Mutations are attributed to this
// identity in the audit trail, so it must be present before any
// handler runs.
func ActorMiddleware(cfg ActorMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		name, role, err := resolveActor(c, cfg)
		if err != nil {
			handleActorError(c, cfg, err)
			return
		}

		c.Set(ActorNameKey, name)
		c.Set(ActorRoleKey, role)

		// Propagate into the request context so downstream logs carry
		// the actor automatically.
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithActor(ctx, log, name, role)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// resolveActor extracts the actor from the bearer token, falling back
// to identity headers when the deployment allows it.
func resolveActor(c *gin.Context, cfg ActorMiddlewareConfig) (name, role string, err error) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			return "", "", ErrInvalidToken
		}
		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		if tokenString == "" {
			return "", "", ErrInvalidToken
		}
		claims, err := parseActorToken(tokenString, cfg)
		if err != nil {
			return "", "", err
		}
		return claims.Actor, claims.Role, nil
	}

	if cfg.AllowHeaderFallback {
		if name := c.GetHeader(ActorHeaderKey); name != "" {
			return name, c.GetHeader(ActorRoleHeaderKey), nil
		}
	}

	return "", "", ErrMissingActor
}

// parseActorToken validates the token signature and standard claims,
// then requires a non-empty actor.
func parseActorToken(tokenString string, cfg ActorMiddlewareConfig) (*ActorClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Actor == "" {
		// sub is an acceptable stand-in when the issuer doesn't emit
		// a dedicated actor claim
		claims.Actor = claims.Subject
	}
	if claims.Actor == "" {
		return nil, ErrMissingActor
	}
	return claims, nil
}

// handleActorError rejects the request with a 401
func handleActorError(c *gin.Context, cfg ActorMiddlewareConfig, err error) {
	if cfg.Logger != nil {
		cfg.Logger.Warn("Actor identification failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	}

	errorCode := "UNAUTHORIZED"
	errorMessage := "Actor identity required"

	switch {
	case errors.Is(err, ErrExpiredToken):
		errorCode = "TOKEN_EXPIRED"
		errorMessage = "Token has expired"
	case errors.Is(err, ErrInvalidToken):
		errorCode = "INVALID_TOKEN"
		errorMessage = "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    errorCode,
			"message": errorMessage,
		},
	})
}

// GetActor returns the audit actor for the current request. The source
// IP always reflects the connection, never a client-supplied claim.
func GetActor(c *gin.Context) audit.Actor {
	return audit.Actor{
		Name:     c.GetString(ActorNameKey),
		Role:     c.GetString(ActorRoleKey),
		SourceIP: c.ClientIP(),
	}
}
