package sso

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSignedCertPEM generates a throwaway IdP signing certificate.
func selfSignedCertPEM(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestNewSAMLProvider(t *testing.T) {
	p, err := NewSAMLProvider(SAMLConfig{
		IdentityProviderSSOURL: "https://idp.example.com/sso",
		IdentityProviderIssuer: "https://idp.example.com",
		Certificate:            selfSignedCertPEM(t),
		BaseURL:                "https://warden.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderSAML, p.Name())

	u, err := p.AuthURL("opaque-relay-state")
	require.NoError(t, err)
	assert.Contains(t, u, "https://idp.example.com/sso")
	assert.Contains(t, u, "RelayState=opaque-relay-state")
	assert.Contains(t, u, "SAMLRequest=")
}

func TestNewSAMLProviderValidatesConfig(t *testing.T) {
	_, err := NewSAMLProvider(SAMLConfig{})
	assert.Error(t, err)

	_, err = NewSAMLProvider(SAMLConfig{
		IdentityProviderSSOURL: "https://idp.example.com/sso",
		IdentityProviderIssuer: "https://idp.example.com",
		Certificate:            selfSignedCertPEM(t),
	})
	assert.Error(t, err, "base URL is required")

	_, err = NewSAMLProvider(SAMLConfig{
		IdentityProviderSSOURL: "https://idp.example.com/sso",
		IdentityProviderIssuer: "https://idp.example.com",
		Certificate:            "not a pem block",
		BaseURL:                "https://warden.example.com",
	})
	assert.Error(t, err)
}

func TestSAMLProviderRejectsGarbageResponse(t *testing.T) {
	p, err := NewSAMLProvider(SAMLConfig{
		IdentityProviderSSOURL: "https://idp.example.com/sso",
		IdentityProviderIssuer: "https://idp.example.com",
		Certificate:            selfSignedCertPEM(t),
		BaseURL:                "https://warden.example.com",
	})
	require.NoError(t, err)

	_, err = p.ParseResponse("bm90IGEgc2FtbCByZXNwb25zZQ==")
	assert.Error(t, err)
}
