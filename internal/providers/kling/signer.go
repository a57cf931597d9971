package kling

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signer mints the short-lived bearer token the provider requires on every
// request. It is injected into the client so tests can substitute a fake
// without touching process-wide state.
type Signer interface {
	Token(now time.Time) (string, error)
}

const tokenTTL = 5 * time.Minute

// HMACSigner produces HS256-signed JWTs from an access key / secret key pair.
// The secret never leaves the server.
type HMACSigner struct {
	accessKey string
	secretKey string
	ttl       time.Duration
}

// NewHMACSigner validates the key pair and returns a signer.
func NewHMACSigner(accessKey, secretKey string) (*HMACSigner, error) {
	accessKey = strings.TrimSpace(accessKey)
	secretKey = strings.TrimSpace(secretKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("kling: access key and secret key are required")
	}
	return &HMACSigner{accessKey: accessKey, secretKey: secretKey, ttl: tokenTTL}, nil
}

type tokenClaims struct {
	Issuer    string `json:"iss"`
	Expiry    int64  `json:"exp"`
	NotBefore int64  `json:"nbf"`
	TokenID   string `json:"jti"`
}

// Token mints a fresh token valid for five minutes from now.
func (s *HMACSigner) Token(now time.Time) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, _ := json.Marshal(header)
	claims := tokenClaims{
		Issuer:    s.accessKey,
		Expiry:    now.Add(s.ttl).Unix(),
		NotBefore: now.Add(-5 * time.Second).Unix(),
		TokenID:   uuid.NewString(),
	}
	payloadJSON, _ := json.Marshal(claims)
	data := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(data))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return data + "." + sig, nil
}

var _ Signer = (*HMACSigner)(nil)
