package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the typ claim. A refresh token can never be
// used as an access token and vice versa.
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrTokenExpired reports a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid reports a malformed token, a bad signature or a
	// token of the wrong kind.
	ErrTokenInvalid = errors.New("token is invalid")
)

// TokenIssuer mints and verifies HS256-signed access and refresh
// tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer builds an issuer from the shared signing secret and
// the two token lifetimes.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the access token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

// IssueAccess mints an access token for the user.
func (i *TokenIssuer) IssueAccess(userID int64) (string, error) {
	return i.issue(userID, typeAccess, i.accessTTL)
}

// IssueRefresh mints a refresh token for the user.
func (i *TokenIssuer) IssueRefresh(userID int64) (string, error) {
	return i.issue(userID, typeRefresh, i.refreshTTL)
}

func (i *TokenIssuer) issue(userID int64, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"typ": kind,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// ParseAccess verifies an access token and returns the user id it was
// issued for.
func (i *TokenIssuer) ParseAccess(token string) (int64, error) {
	return i.parse(token, typeAccess)
}

// ParseRefresh verifies a refresh token and returns the user id it was
// issued for.
func (i *TokenIssuer) ParseRefresh(token string) (int64, error) {
	return i.parse(token, typeRefresh)
}

func (i *TokenIssuer) parse(token, kind string) (int64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, ErrTokenInvalid
	}
	if typ, _ := claims["typ"].(string); typ != kind {
		return 0, ErrTokenInvalid
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return 0, ErrTokenInvalid
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return userID, nil
}
