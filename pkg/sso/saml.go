package sso

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
)

// SAMLConfig configures the generic SAML 2.0 provider.
type SAMLConfig struct {
	IdentityProviderSSOURL string
	IdentityProviderIssuer string
	// Certificate is the IdP signing certificate, PEM encoded.
	Certificate string
	BaseURL     string
}

// SAMLProvider implements SAML 2.0 login. It does not satisfy Provider:
// SAML's POST-binding response flow is routed separately from the OAuth2/OIDC
// code exchange.
type SAMLProvider struct {
	sp *saml2.SAMLServiceProvider
}

// NewSAMLProvider parses the IdP certificate and creates the service
// provider.
func NewSAMLProvider(cfg SAMLConfig) (*SAMLProvider, error) {
	if cfg.IdentityProviderSSOURL == "" || cfg.IdentityProviderIssuer == "" {
		return nil, fmt.Errorf("saml provider: IdP SSO URL and issuer are required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("saml provider: base URL is required")
	}

	certBlock, _ := pem.Decode([]byte(cfg.Certificate))
	if certBlock == nil {
		return nil, fmt.Errorf("saml provider: failed to decode IdP certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("saml provider: failed to parse IdP certificate: %w", err)
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.IdentityProviderSSOURL,
		IdentityProviderIssuer:      cfg.IdentityProviderIssuer,
		ServiceProviderIssuer:       cfg.BaseURL + "/auth/sso/saml/metadata",
		AssertionConsumerServiceURL: cfg.BaseURL + "/auth/sso/saml/callback",
		AudienceURI:                 cfg.BaseURL,
		IDPCertificateStore: &dsig.MemoryX509CertificateStore{
			Roots: []*x509.Certificate{cert},
		},
		SPKeyStore: dsig.RandomKeyStoreForTest(),
	}

	return &SAMLProvider{sp: sp}, nil
}

// Name returns "saml".
func (p *SAMLProvider) Name() string { return ProviderSAML }

// AuthURL builds the IdP redirect carrying the encoded state as RelayState.
func (p *SAMLProvider) AuthURL(relayState string) (string, error) {
	url, err := p.sp.BuildAuthURL(relayState)
	if err != nil {
		return "", fmt.Errorf("failed to build SAML auth URL: %w", err)
	}
	return url, nil
}

// ParseResponse validates a posted SAMLResponse and maps the assertion to an
// external identity.
func (p *SAMLProvider) ParseResponse(samlResponse string) (*ExternalUser, error) {
	assertionInfo, err := p.sp.RetrieveAssertionInfo(samlResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to validate SAML response: %w", err)
	}
	if assertionInfo.WarningInfo.InvalidTime || assertionInfo.WarningInfo.NotInAudience {
		return nil, fmt.Errorf("SAML assertion rejected")
	}
	if assertionInfo.NameID == "" {
		return nil, fmt.Errorf("missing NameID in SAML assertion")
	}

	u := &ExternalUser{
		ExternalID: assertionInfo.NameID,
		Username:   assertionInfo.NameID,
	}
	for _, attr := range assertionInfo.Values {
		if len(attr.Values) == 0 {
			continue
		}
		switch attr.Name {
		case "email", "mail":
			u.Email = attr.Values[0].Value
		case "displayName", "cn":
			u.NickName = attr.Values[0].Value
		}
	}
	return u, nil
}
