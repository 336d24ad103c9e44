package security

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"time"

	"foundation_portal/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	SessionCookieName = "session_token"

	claimSessionID     = "jti"
	claimSubject       = "sub"
	claimEmail         = "email"
	claimName          = "name"
	claimRole          = "role"
	claimAuthTime      = "auth_time_ms"
	claimIssuedAt      = "iat"
	claimExpiresAt     = "exp"
	claimUpstreamToken = "upstream_token"

	upstreamSealName = "upstream_token"
)

var ErrInvalidSession = errors.New("invalid session token")

// Lifetime holds the absolute max age of a session and how often use may extend it.
type Lifetime struct {
	MaxAge    time.Duration
	UpdateAge time.Duration
}

// New snapshots identity into a fresh session authenticated at now. AuthTime keeps
// millisecond precision so revocation marks can be ordered against it.
func (l Lifetime) New(identity model.Identity, upstreamAccessToken string, now time.Time) model.Session {
	authTime := now.UTC().Truncate(time.Millisecond)
	now = now.UTC().Truncate(time.Second)
	return model.Session{
		ID:                  uuid.NewString(),
		UserID:              identity.ID,
		Email:               identity.Email,
		Name:                identity.Name,
		Role:                identity.Role.OrDefault(),
		UpstreamAccessToken: upstreamAccessToken,
		AuthTime:            authTime,
		IssuedAt:            now,
		ExpiresAt:           now.Add(l.MaxAge),
	}
}

// Refresh extends s when at least UpdateAge has passed since it was issued.
// Everything but the timestamps is copied as is; the role is never re-read.
func (l Lifetime) Refresh(s model.Session, now time.Time) (model.Session, bool) {
	if s.Expired(now) || now.Sub(s.IssuedAt) < l.UpdateAge {
		return s, false
	}
	now = now.UTC().Truncate(time.Second)
	s.IssuedAt = now
	s.ExpiresAt = now.Add(l.MaxAge)
	return s, true
}

// SessionTokens signs sessions as HS256 JWTs. The optional upstream OAuth token is
// sealed with securecookie so it cannot be read out of the cookie.
type SessionTokens struct {
	auth   *jwtauth.JWTAuth
	sealer *securecookie.SecureCookie
}

func NewSessionTokens(key []byte, maxAge time.Duration) *SessionTokens {
	sealer := securecookie.New(deriveKey(sha512.New, key, "upstream-token-hmac"), deriveKey(sha256.New, key, "upstream-token-aes"))
	sealer.MaxAge(int(maxAge / time.Second))
	return &SessionTokens{
		auth:   jwtauth.New("HS256", key, nil),
		sealer: sealer,
	}
}

// Auth exposes the verifier used by the jwtauth middleware.
func (t *SessionTokens) Auth() *jwtauth.JWTAuth {
	return t.auth
}

func (t *SessionTokens) Issue(s model.Session) (string, error) {
	claims := jwt.MapClaims{
		claimSessionID: s.ID,
		claimSubject:   s.UserID,
		claimEmail:     s.Email,
		claimName:      s.Name,
		claimRole:      string(s.Role),
		claimAuthTime:  s.AuthTime.UnixMilli(),
		claimIssuedAt:  s.IssuedAt.Unix(),
		claimExpiresAt: s.ExpiresAt.Unix(),
	}
	if s.UpstreamAccessToken != "" {
		sealed, err := t.sealer.Encode(upstreamSealName, s.UpstreamAccessToken)
		if err != nil {
			return "", fmt.Errorf("seal upstream token: %w", err)
		}
		claims[claimUpstreamToken] = sealed
	}

	_, tokenString, err := t.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return tokenString, nil
}

// Parse verifies tokenString and returns the session it carries.
func (t *SessionTokens) Parse(tokenString string) (model.Session, error) {
	token, err := jwtauth.VerifyToken(t.auth, tokenString)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return t.FromClaims(claims)
}

// FromClaims rebuilds a session from verified claims.
func (t *SessionTokens) FromClaims(claims map[string]interface{}) (model.Session, error) {
	var s model.Session
	var err error

	if s.ID, err = stringClaim(claims, claimSessionID); err != nil {
		return model.Session{}, err
	}
	if s.UserID, err = stringClaim(claims, claimSubject); err != nil {
		return model.Session{}, err
	}
	if s.Email, err = stringClaim(claims, claimEmail); err != nil {
		return model.Session{}, err
	}
	s.Name, _ = claims[claimName].(string)

	rawRole, err := stringClaim(claims, claimRole)
	if err != nil {
		return model.Session{}, err
	}
	if s.Role, err = model.ParseRole(rawRole); err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if s.AuthTime, err = millisClaim(claims, claimAuthTime); err != nil {
		return model.Session{}, err
	}
	if s.IssuedAt, err = timeClaim(claims, claimIssuedAt); err != nil {
		return model.Session{}, err
	}
	if s.ExpiresAt, err = timeClaim(claims, claimExpiresAt); err != nil {
		return model.Session{}, err
	}

	if sealed, ok := claims[claimUpstreamToken].(string); ok && sealed != "" {
		if err := t.sealer.Decode(upstreamSealName, sealed, &s.UpstreamAccessToken); err != nil {
			return model.Session{}, fmt.Errorf("%w: upstream token: %v", ErrInvalidSession, err)
		}
	}
	return s, nil
}

func stringClaim(claims map[string]interface{}, key string) (string, error) {
	value, ok := claims[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s claim is missing or not a string", ErrInvalidSession, key)
	}
	return value, nil
}

// timeClaim accepts the shapes a numeric date takes after a JWT round trip.
func timeClaim(claims map[string]interface{}, key string) (time.Time, error) {
	switch v := claims[key].(type) {
	case time.Time:
		return v.UTC(), nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s claim: %v", ErrInvalidSession, key, err)
		}
		return time.Unix(n, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s claim is missing or not a date", ErrInvalidSession, key)
	}
}

func millisClaim(claims map[string]interface{}, key string) (time.Time, error) {
	var ms int64
	switch v := claims[key].(type) {
	case float64:
		ms = int64(v)
	case int64:
		ms = v
	case int:
		ms = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s claim: %v", ErrInvalidSession, key, err)
		}
		ms = n
	default:
		return time.Time{}, fmt.Errorf("%w: %s claim is missing or not a number", ErrInvalidSession, key)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func deriveKey(h func() hash.Hash, secret []byte, label string) []byte {
	mac := hmac.New(h, secret)
	mac.Write([]byte(label))
	return mac.Sum(nil)
}
