package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-wisata/internal/common"
)

// Service validates access tokens issued by the external session layer.
// Authentication itself lives outside this system; only token verification
// happens here.
type Service struct {
	Secret    []byte
	Issuer    string
	Algorithm jwa.SignatureAlgorithm
	ClockSkew time.Duration
	Now       func() time.Time
}

func (s *Service) algorithm() jwa.SignatureAlgorithm {
	if s.Algorithm != "" {
		return s.Algorithm
	}
	return jwa.HS256
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ParseAccessToken verifies the token and returns its subject (user ID).
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	options := []jwt.ParseOption{
		jwt.WithKey(s.algorithm(), s.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	}
	if s.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(s.ClockSkew))
	}
	if s.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.Issuer))
	}
	parsed, err := jwt.ParseString(trimmed, options...)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	subject := parsed.Subject()
	if subject == "" {
		return "", common.NewAppError("UNAUTHORIZED", "token has no subject", http.StatusUnauthorized, nil)
	}
	return subject, nil
}
