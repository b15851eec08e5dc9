// Package handshake builds the authenticated handshake payload sent to the
// session host on every connection attempt, and the shell environment derived
// from the signed credential config.
package handshake

import (
	"encoding/json"
	"fmt"
)

// Fixed environment entries present in every spawned shell.
const (
	EnvWebCLIMode     = "ABLY_WEB_CLI_MODE"
	EnvPrompt         = "PS1"
	EnvEndpoint       = "ABLY_ENDPOINT"
	EnvControlAPIHost = "ABLY_CONTROL_API_HOST"

	promptValue = "ably> "
)

// Payload is everything a connection attempt needs: the verbatim signed
// config plus derived values for the host to bootstrap the shell.
type Payload struct {
	SessionID string `json:"sessionId,omitempty"`
	Config    string `json:"config"`
	Signature string `json:"signature"`

	// APIKey and AccessToken are extracted verbatim from the signed config so
	// the host can authenticate the underlying platform session.
	APIKey      string `json:"-"`
	AccessToken string `json:"-"`

	// BypassRateLimit is honored by the host's connection limiter.
	BypassRateLimit bool `json:"-"`

	// EnvironmentVariables are injected into the spawned shell before it
	// becomes interactive.
	EnvironmentVariables map[string]string `json:"-"`
}

// parsedConfig mirrors the signed document. Optional fields are pointers so
// that absence survives the round trip: an absent field must not produce an
// environment entry at all, not even an empty one.
type parsedConfig struct {
	APIKey          string  `json:"apiKey"`
	AccessToken     string  `json:"accessToken"`
	BypassRateLimit bool    `json:"bypassRateLimit"`
	Endpoint        *string `json:"endpoint"`
	ControlAPIHost  *string `json:"controlAPIHost"`
}

// BuildPayload derives the handshake payload for one connection attempt.
//
// It is a pure function: identical inputs yield structurally identical
// output. A config that fails to parse is an error the caller must treat as
// fatal for the attempt; no transport may be opened with a malformed config.
func BuildPayload(sessionID, signedConfig, signature string) (Payload, error) {
	var cfg parsedConfig
	if err := json.Unmarshal([]byte(signedConfig), &cfg); err != nil {
		return Payload{}, fmt.Errorf("parse signed config: %w", err)
	}

	env := map[string]string{
		EnvWebCLIMode: "true",
		EnvPrompt:     promptValue,
	}
	if cfg.Endpoint != nil {
		env[EnvEndpoint] = *cfg.Endpoint
	}
	if cfg.ControlAPIHost != nil {
		env[EnvControlAPIHost] = *cfg.ControlAPIHost
	}

	return Payload{
		SessionID:            sessionID,
		Config:               signedConfig,
		Signature:            signature,
		APIKey:               cfg.APIKey,
		AccessToken:          cfg.AccessToken,
		BypassRateLimit:      cfg.BypassRateLimit,
		EnvironmentVariables: env,
	}, nil
}
