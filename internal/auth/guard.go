package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	pkghttp "github.com/tick42/quicksilver/pkg/http"

	"github.com/tick42/quicksilver/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const identityContextKey contextKey = "identity"

// UserStateFetcher loads the current stored account, letting the guard
// re-check live state instead of trusting the token's embedded role.
type UserStateFetcher interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Guard decides allow/deny for an operation given a raw token and the
// operation's required role set.
type Guard struct {
	tm     *TokenManager
	users  UserStateFetcher
	logger *slog.Logger
}

// NewGuard creates a new Guard
func NewGuard(tm *TokenManager, users UserStateFetcher, logger *slog.Logger) *Guard {
	return &Guard{
		tm:     tm,
		users:  users,
		logger: logger,
	}
}

// Authorize resolves the caller's identity and checks it against the
// required roles. Role sets are evaluated as OR; an empty set means any
// authenticated or anonymous caller.
//
// Token verification failures of any kind surface as ErrUnauthorized so the
// caller cannot distinguish an expired token from a forged one. A valid
// token for an account that is no longer ACTIVE is refused the same way:
// this is the single place stored state is re-consulted, and it locks out
// blocked accounts before their tokens expire.
func (g *Guard) Authorize(ctx context.Context, rawToken string, requiredRoles ...string) (*models.Identity, error) {
	if rawToken == "" {
		if len(requiredRoles) > 0 {
			return nil, models.ErrUnauthorized
		}
		return nil, nil
	}

	claims, err := g.tm.Verify(rawToken)
	if err != nil {
		g.logger.Info("token verification failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		// Only a missing account means the token no longer names anyone.
		// A store failure is an outage, not an authentication verdict.
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load account %d: %w", claims.UserID, err)
	}

	if user.State != models.UserStateActive {
		g.logger.Info("request refused for inactive account",
			slog.Int64("user_id", user.ID),
			slog.String("state", user.State))
		return nil, models.ErrUnauthorized
	}

	identity := &models.Identity{
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if len(requiredRoles) == 0 {
		return identity, nil
	}

	for _, role := range requiredRoles {
		if user.Role == role {
			return identity, nil
		}
	}

	return nil, models.ErrForbidden
}

// BearerToken extracts the token from an Authorization header, stripping the
// scheme prefix. Returns "" when the header is absent or not bearer-shaped.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}

// Required returns middleware that rejects requests whose caller does not
// hold one of the given roles, and injects the resolved identity otherwise.
func Required(g *Guard, roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := g.Authorize(r.Context(), BearerToken(r), roles...)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrForbidden):
					pkghttp.WriteForbidden(w, "insufficient permissions")
				case errors.Is(err, models.ErrUnauthorized):
					pkghttp.WriteUnauthorized(w, "authentication required")
				default:
					g.logger.Error("authorization check failed", slog.Any("error", err))
					pkghttp.WriteInternalError(w, "something went wrong")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// Optional returns middleware that resolves the caller's identity when a
// valid token is present but lets anonymous requests through.
func Optional(g *Guard) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := g.Authorize(r.Context(), BearerToken(r))
			if err != nil {
				if !errors.Is(err, models.ErrUnauthorized) {
					g.logger.Error("authorization check failed", slog.Any("error", err))
					pkghttp.WriteInternalError(w, "something went wrong")
					return
				}
				// A bad token on an optional route is treated as anonymous.
				identity = nil
			}

			if identity != nil {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithIdentity attaches a resolved identity to the context.
func ContextWithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the resolved identity from the request
// context, or nil for anonymous callers.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(identityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}
