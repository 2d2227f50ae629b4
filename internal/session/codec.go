package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Decode failure classes. Callers that face end users must collapse all of
// these to an anonymous session; they exist so internal logging can tell a
// rotated secret (bad signature) apart from ordinary expiry.
var (
	ErrMalformed    = errors.New("session token malformed")
	ErrBadSignature = errors.New("session token signature mismatch")
	ErrExpired      = errors.New("session token expired")
)

// Codec serializes Claims to the compact signed wire form
//
//	base64url(json) + "." + base64url(hmac-sha256(body))
//
// with unpadded URL-safe base64 throughout. This is deliberately not a JWT:
// the payload is a flat application-specific object with no header segment,
// and already-issued cookies in that format must keep verifying.
//
// There is exactly one Codec implementation; the issuer, the refresh
// middleware, and the reader all share it. Keeping a single serialization
// path is what guarantees tokens minted at the edge verify server-side and
// vice versa.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session signing secret is required")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Encode signs claims into a token. It does not validate the claims; callers
// are responsible for putting a sensible payload in.
func (c *Codec) Encode(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + c.sign(body), nil
}

// Decode verifies a token and returns its claims. The signature is checked
// before the payload is parsed, over the full MAC in constant time. A token
// whose expiry is at or before now is rejected.
func (c *Codec) Decode(token string, now time.Time) (Claims, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return Claims{}, ErrMalformed
	}

	gotMAC, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	if !hmac.Equal(gotMAC, mac.Sum(nil)) {
		return Claims{}, ErrBadSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrMalformed
	}

	if claims.ExpiresAt != 0 && claims.ExpiresAt <= now.Unix() {
		return Claims{}, ErrExpired
	}
	return claims, nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
