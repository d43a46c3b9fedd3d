package transport

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/config"
	"github.com/nexusmfg/traveler/internal/observability"
	"github.com/nexusmfg/traveler/internal/user"
	"github.com/nexusmfg/traveler/model"
)

// Authenticator verifies bearer tokens and resolves the acting user.
// Token issuance belongs to the identity provider; this service only
// verifies HMAC-signed tokens against a shared secret.
type Authenticator struct {
	cfg    config.IdentityConfig
	secret []byte
	users  user.Store
	logger *zap.Logger
}

// NewAuthenticator creates an Authenticator. The secret must not be empty.
func NewAuthenticator(cfg config.IdentityConfig, secret []byte, users user.Store, logger *zap.Logger) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("auth: signing secret is empty")
	}
	return &Authenticator{cfg: cfg, secret: secret, users: users, logger: logger}, nil
}

// Middleware verifies the Authorization header, loads the subject's account,
// and stores a model.Actor in the request context. Inactive accounts are
// rejected even when their token is otherwise valid.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			WriteError(w, model.NewUnauthorizedError("Missing authorization header"))
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			WriteError(w, model.NewUnauthorizedError("Invalid authorization header format"))
			return
		}
		tokenStr := auth[7:]

		algorithms := a.cfg.Algorithms
		if len(algorithms) == 0 {
			algorithms = []string{"HS256"}
		}

		opts := []jwt.ParserOption{
			jwt.WithValidMethods(algorithms),
			jwt.WithLeeway(30 * time.Second),
			jwt.WithExpirationRequired(),
		}
		if a.cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
		}
		if a.cfg.Audience != "" {
			opts = append(opts, jwt.WithAudience(a.cfg.Audience))
		}

		token, err := jwt.Parse(tokenStr,
			func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return a.secret, nil
			},
			opts...,
		)
		if err != nil {
			WriteError(w, model.NewUnauthorizedError(classifyJWTError(err)))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			WriteError(w, model.NewUnauthorizedError("Invalid token"))
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			WriteError(w, model.NewUnauthorizedError("Token missing subject"))
			return
		}

		u, err := a.users.GetByUsername(r.Context(), sub)
		if err != nil {
			if model.IsCode(err, model.ErrNotFound) {
				WriteError(w, model.NewUnauthorizedError("Unknown account"))
				return
			}
			a.logger.Error("auth: account lookup failed", zap.String("subject", sub), zap.Error(err))
			WriteError(w, model.NewInternalError())
			return
		}
		if !u.IsActive {
			WriteError(w, model.NewUnauthorizedError("Account is deactivated"))
			return
		}

		actor := u.Actor()
		actor.Origin = model.RequestOrigin{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}
		actor.CorrelationID = CorrelationIDFrom(r.Context())
		actor.TraceID = observability.TraceIDFromContext(r.Context())

		ctx := model.WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP strips the port from RemoteAddr, honoring X-Forwarded-For when
// set by a trusted proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func classifyJWTError(err error) string {
	s := err.Error()
	switch {
	case strings.Contains(s, "expired"):
		return "Token expired"
	case strings.Contains(s, "issuer"):
		return "Invalid token issuer"
	case strings.Contains(s, "audience"):
		return "Invalid token audience"
	case strings.Contains(s, "signing method"):
		return "Disallowed signing algorithm"
	case strings.Contains(s, "signature"):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}
