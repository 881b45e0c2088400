package rpc

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken  = errors.New("rpc: missing bearer token")
	errInvalidToken  = errors.New("rpc: invalid bearer token")
	errAuthnDisabled = errors.New("rpc: authentication not configured")
)

// authenticator guards mutating RPC methods. It accepts either a static
// bearer token compared in constant time or an HS256-signed JWT, depending
// on which secret is configured. When both are set the static token is
// checked first.
type authenticator struct {
	token     []byte
	jwtSecret []byte
}

func newAuthenticator(token, jwtSecret string) *authenticator {
	auth := &authenticator{}
	if trimmed := strings.TrimSpace(token); trimmed != "" {
		auth.token = []byte(trimmed)
	}
	if trimmed := strings.TrimSpace(jwtSecret); trimmed != "" {
		auth.jwtSecret = []byte(trimmed)
	}
	return auth
}

func (a *authenticator) enabled() bool {
	return len(a.token) > 0 || len(a.jwtSecret) > 0
}

func (a *authenticator) authorize(r *http.Request) error {
	if !a.enabled() {
		return errAuthnDisabled
	}
	presented := extractBearer(r.Header.Get("Authorization"))
	if presented == "" {
		return errMissingToken
	}
	if len(a.token) > 0 {
		if subtle.ConstantTimeCompare([]byte(presented), a.token) == 1 {
			return nil
		}
		if len(a.jwtSecret) == 0 {
			return errInvalidToken
		}
	}
	return a.verifyJWT(presented)
}

func (a *authenticator) verifyJWT(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return errInvalidToken
	}
	if !token.Valid {
		return errInvalidToken
	}
	return nil
}

func extractBearer(header string) string {
	value := strings.TrimSpace(header)
	if value == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return ""
	}
	return strings.TrimSpace(value[len(prefix):])
}
