package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	applog "fintrack/internal/log"
)

const (
	localRequestID = "request_id"
	localOwnerID   = "owner_id"

	HeaderRequestID = "X-Request-ID"
	// HeaderOwnerID carries the caller identity when Clerk is not configured.
	HeaderOwnerID = "X-Owner-ID"
)

func requestID(c fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

func ownerID(c fiber.Ctx) string {
	id, _ := c.Locals(localOwnerID).(string)
	return id
}

// RequestLogger tags every request with an id, exposes a request-scoped
// logger through the context and logs the completed request.
func RequestLogger(logger *applog.Logger) fiber.Handler {
	sl := applog.NewStructuredLogger(logger)
	return func(c fiber.Ctx) error {
		start := time.Now()

		id := c.Get(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Locals(localRequestID, id)
		c.Set(HeaderRequestID, id)

		reqLogger := logger.With(applog.FieldRequestID, id)
		c.SetContext(applog.WithContext(c.Context(), reqLogger))

		err := c.Next()
		if err != nil {
			// Render now so the logged status is the one the client sees.
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		sl.LogRequest(c.Context(), applog.RequestInfo{
			RequestID: id,
			Method:    c.Method(),
			Path:      c.Path(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			ClientIP:  c.IP(),
			Status:    c.Response().StatusCode(),
			Duration:  time.Since(start),
		})
		return nil
	}
}

// AuthConfig selects how callers are identified.
type AuthConfig struct {
	// ClerkSecretKey enables bearer token verification with Clerk.
	ClerkSecretKey string
	// AllowDevHeader trusts X-Owner-ID when ClerkSecretKey is empty.
	AllowDevHeader bool
}

type tokenVerifier func(ctx context.Context, token string) (string, error)

func clerkVerifier(secretKey string) tokenVerifier {
	clerk.SetKey(secretKey)
	return func(ctx context.Context, token string) (string, error) {
		claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
}

// Auth resolves the opaque owner id of the caller and stores it in the
// request locals. Requests without an identity are rejected.
func Auth(cfg AuthConfig) fiber.Handler {
	if cfg.ClerkSecretKey != "" {
		return bearerAuth(clerkVerifier(cfg.ClerkSecretKey))
	}
	return func(c fiber.Ctx) error {
		if !cfg.AllowDevHeader {
			return NewUnauthorizedError("authentication is not configured")
		}
		owner := strings.TrimSpace(c.Get(HeaderOwnerID))
		if owner == "" {
			return NewUnauthorizedError(fmt.Sprintf("missing %s header", HeaderOwnerID))
		}
		c.Locals(localOwnerID, owner)
		return c.Next()
	}
}

func bearerAuth(verify tokenVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return NewUnauthorizedError("Missing authorization token")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || token == "" {
			return NewUnauthorizedError("Invalid authorization header format")
		}

		subject, err := verify(c.Context(), token)
		if err != nil || subject == "" {
			applog.FromContext(c.Context()).WithComponent(applog.ComponentAuth).
				WarnContext(c.Context(), "Token verification failed", "error", err)
			return NewUnauthorizedError("Invalid or expired token")
		}

		c.Locals(localOwnerID, subject)
		return c.Next()
	}
}
