package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"transcriptcleaner/internal/util"
)

const (
	sessionIssuer     = "transcriptcleaner"
	sessionLeeway     = 30 * time.Second
	defaultSessionTTL = 24 * time.Hour
)

// JWTSessionStore issues HS256 session tokens. Logout pushes the token ID
// onto a revocation list that expires with the token, so revocation state
// never outlives the session it guards.
type JWTSessionStore struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker
}

// NewJWTSessionStore creates a session store. ttl <= 0 selects the default
// 24 hour lifetime. A nil revoker disables logout revocation; tokens then
// simply ride out their TTL.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker) (*JWTSessionStore, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &JWTSessionStore{secret: []byte(secret), ttl: ttl, revoker: revoker}, nil
}

// NewSession issues a signed token for the user.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("session user id is required")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        util.NewID(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GetUserIDByToken validates the token and returns its subject. Expired,
// malformed, and revoked tokens all report not-found rather than an error.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", false, nil
	}
	if s.revoker != nil && claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return "", false, fmt.Errorf("check session revocation: %w", err)
		}
		if revoked {
			return "", false, nil
		}
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", false, nil
	}
	return subject, true, nil
}

// DeleteSession revokes the token for the remainder of its lifetime.
func (s *JWTSessionStore) DeleteSession(token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	if s.revoker == nil || claims.ID == "" {
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	if err := s.revoker.Revoke(claims.ID, remaining); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *JWTSessionStore) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithLeeway(sessionLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return claims, err
	}
	if !parsed.Valid {
		return claims, errors.New("invalid session token")
	}
	return claims, nil
}
