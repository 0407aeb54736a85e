package internal

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Identity is the canonical result of verifying a credential. Immutable for
// the lifetime of the connections it authenticates.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Verifier resolves an opaque credential into an identity. Called once per
// connection attempt, before any registry mutation.
type Verifier interface {
	Verify(credential string) (Identity, error)
}

// JWTVerifier validates HMAC-signed tokens issued by the store service.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify checks the token signature and expiry and extracts the identity
// claims. Every failure mode maps to ErrAuth; callers do not need to
// distinguish a bad signature from an expired token.
func (v *JWTVerifier) Verify(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrAuth
	}
	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Identity{}, ErrAuth
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrAuth
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, ErrAuth
	}
	name, _ := claims["name"].(string)
	avatar, _ := claims["avatar"].(string)
	return Identity{ID: sub, Name: name, Avatar: avatar}, nil
}

// SignIdentity issues a credential the JWTVerifier accepts. Used by the
// store service's login endpoint and by tests.
func SignIdentity(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": identity.ID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if identity.Name != "" {
		claims["name"] = identity.Name
	}
	if identity.Avatar != "" {
		claims["avatar"] = identity.Avatar
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
