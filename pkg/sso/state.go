package sso

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/apperr"
)

// stateTTL bounds how long an initiated login may sit before the callback.
const stateTTL = 10 * time.Minute

// State rides through the provider round-trip: where to send the browser
// afterwards, and — for the bind flow — which existing account the external
// identity attaches to (zero means login, not bind).
type State struct {
	Redirect   string `json:"redirect,omitempty"`
	BindUserID int64  `json:"bindUserId,omitempty"`
	IssuedAt   int64  `json:"iat"`
}

// StateCodec signs and verifies the opaque state parameter, so the callback
// can trust it without server-side session storage.
type StateCodec struct {
	secret []byte
}

// NewStateCodec creates a codec keyed with the given secret.
func NewStateCodec(secret string) (*StateCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("state secret is required")
	}
	return &StateCodec{secret: []byte(secret)}, nil
}

// Encode serializes and signs the state.
func (c *StateCodec) Encode(s State) (string, error) {
	s.IssuedAt = time.Now().Unix()
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + c.sign(body), nil
}

// Decode verifies the signature and freshness of an incoming state value.
func (c *StateCodec) Decode(value string) (State, error) {
	var s State

	body, sig, ok := cut(value)
	if !ok {
		return s, fmt.Errorf("%w: malformed state", apperr.ErrInvalidArgument)
	}
	if !hmac.Equal([]byte(c.sign(body)), []byte(sig)) {
		return s, fmt.Errorf("%w: state signature mismatch", apperr.ErrInvalidArgument)
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return s, fmt.Errorf("%w: malformed state", apperr.ErrInvalidArgument)
	}
	if err := json.Unmarshal(payload, &s); err != nil {
		return s, fmt.Errorf("%w: malformed state", apperr.ErrInvalidArgument)
	}

	if time.Since(time.Unix(s.IssuedAt, 0)) > stateTTL {
		return State{}, fmt.Errorf("%w: state expired", apperr.ErrInvalidArgument)
	}
	return s, nil
}

func (c *StateCodec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func cut(value string) (body, sig string, ok bool) {
	for i := len(value) - 1; i >= 0; i-- {
		if value[i] == '.' {
			return value[:i], value[i+1:], true
		}
	}
	return "", "", false
}
