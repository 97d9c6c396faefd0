package sso

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/apperr"
)

func TestStateRoundTrip(t *testing.T) {
	codec, err := NewStateCodec("test-secret")
	require.NoError(t, err)

	value, err := codec.Encode(State{Redirect: "/console", BindUserID: 42})
	require.NoError(t, err)

	decoded, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, "/console", decoded.Redirect)
	assert.Equal(t, int64(42), decoded.BindUserID)
	assert.NotZero(t, decoded.IssuedAt)
}

func TestStateRejectsTampering(t *testing.T) {
	codec, err := NewStateCodec("test-secret")
	require.NoError(t, err)

	value, err := codec.Encode(State{Redirect: "/console"})
	require.NoError(t, err)

	// Flip a byte in the payload; the signature no longer matches.
	tampered := "x" + value[1:]
	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = codec.Decode("no-dot-at-all")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestStateRejectsForeignSignature(t *testing.T) {
	codec, err := NewStateCodec("test-secret")
	require.NoError(t, err)
	other, err := NewStateCodec("another-secret")
	require.NoError(t, err)

	value, err := other.Encode(State{Redirect: "/console"})
	require.NoError(t, err)

	_, err = codec.Decode(value)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestStateExpires(t *testing.T) {
	codec, err := NewStateCodec("test-secret")
	require.NoError(t, err)

	stale := State{Redirect: "/console", IssuedAt: time.Now().Add(-stateTTL - time.Minute).Unix()}
	payload, err := json.Marshal(stale)
	require.NoError(t, err)
	body := base64.RawURLEncoding.EncodeToString(payload)
	value := body + "." + codec.sign(body)

	_, err = codec.Decode(value)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "expired")
}

func TestNewStateCodecRequiresSecret(t *testing.T) {
	_, err := NewStateCodec("")
	assert.Error(t, err)
}
