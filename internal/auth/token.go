package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/projectdesk/projectdesk/internal/model"
)

// TokenCookieName is the cookie that carries the identity token for browsers.
const TokenCookieName = "token"

const tokenIssuer = "projectdesk"

// Token errors. All of them are authentication failures.
var (
	ErrMissingToken = errors.New("missing identity token")
	ErrInvalidToken = errors.New("invalid identity token")
	ErrTokenExpired = errors.New("identity token expired")
	ErrTokenRevoked = errors.New("identity token revoked")
)

// Claims are the JWT claims of an identity token.
type Claims struct {
	jwt.RegisteredClaims
	Username string     `json:"username,omitempty"`
	Email    string     `json:"email,omitempty"`
	Role     model.Role `json:"role"`
}

// TokenManager signs and verifies HS256 identity tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager with the given HMAC secret and token lifetime.
func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl, now: time.Now}
}

// Issue mints a token for the identity. The returned identity carries the new
// token id and expiry.
func (m *TokenManager) Issue(identity model.Identity) (string, model.Identity, error) {
	if identity.UserID == "" {
		return "", model.Identity{}, errors.New("issue token: empty user id")
	}
	if !identity.Role.IsValid() {
		identity.Role = model.RoleEmployee
	}

	now := m.now()
	identity.TokenID = uuid.NewString()
	identity.ExpiresAt = now.Add(m.ttl).Truncate(time.Second)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   identity.UserID,
			ID:        identity.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(identity.ExpiresAt),
		},
		Username: identity.Username,
		Email:    identity.Email,
		Role:     identity.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", model.Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, identity, nil
}

// Parse verifies the signature and expiry of a token and returns its identity.
func (m *TokenManager) Parse(tokenString string) (*model.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if !role.IsValid() {
		role = model.RoleEmployee
	}

	identity := &model.Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     role,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// RevocationChecker reports whether a token id has been revoked (logout).
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Resolver turns an incoming request into a verified identity.
type Resolver struct {
	tokens  *TokenManager
	revoked RevocationChecker
}

// NewResolver creates a Resolver. revoked may be nil when revocation is not tracked.
func NewResolver(tokens *TokenManager, revoked RevocationChecker) *Resolver {
	return &Resolver{tokens: tokens, revoked: revoked}
}

// Resolve extracts the identity token from the request, verifies it and
// returns the embedded identity.
func (r *Resolver) Resolve(req *http.Request) (*model.Identity, error) {
	raw := ExtractToken(req)
	if raw == "" {
		return nil, ErrMissingToken
	}

	identity, err := r.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}

	if r.revoked != nil && identity.TokenID != "" {
		revoked, err := r.revoked.IsTokenRevoked(req.Context(), identity.TokenID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return identity, nil
}

// ExtractToken returns the token from "Authorization: Bearer <token>" or,
// failing that, from the token cookie.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked)
}
