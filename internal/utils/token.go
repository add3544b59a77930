// Package utils holds helpers for minting and parsing queue token values.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadToken is returned when a presented token value is not a token
// this service issued (malformed, wrong algorithm or bad signature).
var ErrBadToken = errors.New("invalid queue token")

// TokenClaims are the minted claims of a queue token value. The token
// value doubles as the lookup key in the token store; the signature
// lets validation reject forged or garbled values before touching the
// store at all.
type TokenClaims struct {
	TokenID string // jti claim, internal token identifier
	UserID  string // sub claim, token owner
}

// MintTokenValue signs an HS256 JWT carrying the token ID and user ID.
// Expiry is not encoded in the claims: the authoritative TTL lives in
// the token store, because promotion to ACTIVE extends it.
func MintTokenValue(secret, tokenID, userID string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti": tokenID,
		"sub": userID,
		"iat": time.Now().UTC().Unix(),
	})
	return t.SignedString([]byte(secret))
}

// ParseTokenValue verifies the signature and extracts the claims.
// Returns ErrBadToken for anything this service did not sign.
func ParseTokenValue(secret, raw string) (TokenClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return TokenClaims{}, ErrBadToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrBadToken
	}
	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	if jti == "" || sub == "" {
		return TokenClaims{}, ErrBadToken
	}
	return TokenClaims{TokenID: jti, UserID: sub}, nil
}
