package shared

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/qbportal/internal/platform/httpx"
)

// Identity is the authenticated portal user.
type Identity struct {
	UserID string
	Email  string
}

// Claims are the bearer token claims issued by the login service.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// IdentityVerifier validates HS256 bearer tokens.
type IdentityVerifier struct {
	secret []byte
	leeway time.Duration
	logger *slog.Logger
}

// NewIdentityVerifier constructs a verifier for secret.
func NewIdentityVerifier(secret string, logger *slog.Logger) *IdentityVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityVerifier{secret: []byte(secret), leeway: 30 * time.Second, logger: logger}
}

// Issue signs a token for userID. The login collaborator issues the real
// tokens; this is used by tooling and tests.
func (v *IdentityVerifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	})
	return token.SignedString(v.secret)
}

// Verify parses and validates a raw token.
func (v *IdentityVerifier) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// identity in the request context.
func (v *IdentityVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			unauthorized(w, ErrUnauthenticated)
			return
		}
		id, err := v.Verify(raw)
		if err != nil {
			v.logger.Debug("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			unauthorized(w, ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="qbportal"`)
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
