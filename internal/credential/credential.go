// Package credential produces and verifies the tamper-evident credential
// bundle that authenticates a web CLI terminal session.
//
// The bundle is a single JSON document serialized exactly once; its HMAC is
// computed over those exact bytes. Verifiers must never re-serialize the
// document before checking the signature.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingAPIKey indicates the caller did not supply an API key.
	ErrMissingAPIKey = errors.New("apiKey is required")

	// ErrNoSigningSecret indicates the signer has no secret configured. This
	// is a server-side configuration failure, not a caller error.
	ErrNoSigningSecret = errors.New("signing secret not configured")
)

// SignRequest carries the credential fields supplied by the embedder.
//
// Endpoint and ControlAPIHost are pointers because absence is semantically
// different from an empty value: an absent field must not appear in the
// signed document at all.
type SignRequest struct {
	APIKey          string  `json:"apiKey"`
	AccessToken     string  `json:"accessToken,omitempty"`
	BypassRateLimit bool    `json:"bypassRateLimit,omitempty"`
	Endpoint        *string `json:"endpoint,omitempty"`
	ControlAPIHost  *string `json:"controlAPIHost,omitempty"`
}

// signedConfig is the canonical signed document. Field order here is the
// wire key order; it must not change.
type signedConfig struct {
	APIKey          string  `json:"apiKey"`
	Timestamp       int64   `json:"timestamp"`
	BypassRateLimit bool    `json:"bypassRateLimit"`
	AccessToken     string  `json:"accessToken,omitempty"`
	Endpoint        *string `json:"endpoint,omitempty"`
	ControlAPIHost  *string `json:"controlAPIHost,omitempty"`
}

// SignedCredential is the signed bundle handed to the terminal for the
// handshake. SignedConfig is the exact serialized document the signature
// covers.
type SignedCredential struct {
	SignedConfig string `json:"signedConfig"`
	Signature    string `json:"signature"`
}

// Signer signs credential bundles with a shared HMAC secret.
//
// Signer is stateless apart from the secret and safe for concurrent use. The
// secret never leaves the signer.
type Signer struct {
	secret string
	now    func() time.Time
}

// NewSigner returns a Signer using the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// NewSignerAt returns a Signer with an injected time source, for tests.
func NewSignerAt(secret string, now func() time.Time) *Signer {
	return &Signer{secret: secret, now: now}
}

// Sign builds the canonical credential document, stamps it, and signs it.
func (s *Signer) Sign(req SignRequest) (SignedCredential, error) {
	if s.secret == "" {
		return SignedCredential{}, ErrNoSigningSecret
	}
	if req.APIKey == "" {
		return SignedCredential{}, ErrMissingAPIKey
	}

	doc := signedConfig{
		APIKey:          req.APIKey,
		Timestamp:       s.now().UnixMilli(),
		BypassRateLimit: req.BypassRateLimit,
		AccessToken:     req.AccessToken,
		Endpoint:        req.Endpoint,
		ControlAPIHost:  req.ControlAPIHost,
	}
	serialized, err := json.Marshal(doc)
	if err != nil {
		return SignedCredential{}, fmt.Errorf("serialize signed config: %w", err)
	}

	return SignedCredential{
		SignedConfig: string(serialized),
		Signature:    SignatureFor(string(serialized), s.secret),
	}, nil
}

// SignatureFor computes the hex HMAC-SHA256 of the exact signedConfig bytes.
func SignatureFor(signedConfig, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedConfig))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the exact signedConfig bytes under
// the given secret. Comparison is constant-time.
func Verify(signedConfig, signature, secret string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedConfig))
	return hmac.Equal(got, mac.Sum(nil))
}
