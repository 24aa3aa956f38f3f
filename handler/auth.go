package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"docchat-agent/internal/integrations/paramstore"
)

// Authenticator verifies the bearer token on incoming requests and
// extracts the caller's user id. The HMAC signing key lives in SSM and
// is fetched once per process.
type Authenticator struct {
	secrets     paramstore.Getter
	paramPrefix string

	keyOnce sync.Once
	key     []byte
	keyErr  error
}

// NewAuthenticator creates an Authenticator reading its signing key
// from paramPrefix + "/auth-signing-key".
func NewAuthenticator(secrets paramstore.Getter, paramPrefix string) (*Authenticator, error) {
	if secrets == nil {
		return nil, errors.New("handler: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("handler: parameter prefix must not be empty")
	}
	return &Authenticator{secrets: secrets, paramPrefix: paramPrefix}, nil
}

// UserID validates the Authorization header and returns the principal's
// user id (the token's sub claim).
func (a *Authenticator) UserID(ctx context.Context, headers map[string]string) (string, error) {
	token := bearerToken(headers)
	if token == "" {
		return "", errors.New("handler: missing bearer token")
	}

	key, err := a.signingKey(ctx)
	if err != nil {
		return "", err
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("handler: parse token: %w", err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("handler: token has no subject")
	}
	return sub, nil
}

func (a *Authenticator) signingKey(ctx context.Context) ([]byte, error) {
	a.keyOnce.Do(func() {
		secret, err := a.secrets.GetSecret(ctx, a.paramPrefix+"/auth-signing-key")
		if err != nil {
			a.keyErr = fmt.Errorf("handler: fetch signing key: %w", err)
			return
		}
		a.key = []byte(secret)
	})
	return a.key, a.keyErr
}

// bearerToken extracts the bearer token from the Authorization header,
// tolerating the lowercase header name API Gateway may deliver.
func bearerToken(headers map[string]string) string {
	auth := headers["Authorization"]
	if auth == "" {
		auth = headers["authorization"]
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}
