// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// selfSignedJwtLifetime bounds the validity of a certificate-based client
// assertion. The service rejects anything much longer.
const selfSignedJwtLifetime = 10 * time.Minute

// ClientKey identifies the calling application to the token endpoint,
// optionally carrying a credential: a shared secret or a certificate used to
// sign a client assertion.
type ClientKey struct {
	clientID    string
	secret      string
	certificate *x509.Certificate
	privateKey  *rsa.PrivateKey
}

// NewClientKey returns an identity-only key for public client flows.
func NewClientKey(clientID string) (*ClientKey, error) {
	if clientID == "" {
		return nil, newArgumentError("clientID", "clientID must not be empty")
	}

	return &ClientKey{clientID: clientID}, nil
}

// NewClientKeyWithSecret returns a key whose credential is a shared secret.
func NewClientKeyWithSecret(clientID, secret string) (*ClientKey, error) {
	key, err := NewClientKey(clientID)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, newArgumentError("secret", "secret must not be empty")
	}

	key.secret = secret
	return key, nil
}

// NewClientKeyWithCertificate returns a key that proves its identity with a
// signed assertion. The private key must match the certificate.
func NewClientKeyWithCertificate(clientID string, certificate *x509.Certificate, privateKey *rsa.PrivateKey) (*ClientKey, error) {
	key, err := NewClientKey(clientID)
	if err != nil {
		return nil, err
	}
	if certificate == nil || privateKey == nil {
		return nil, newArgumentError("certificate", "certificate and private key must both be provided")
	}

	key.certificate = certificate
	key.privateKey = privateKey
	return key, nil
}

func (k *ClientKey) ClientID() string {
	return k.clientID
}

// HasCredential reports whether this key can authenticate on its own, without
// a user. Such keys acquire tokens as a confidential client.
func (k *ClientKey) HasCredential() bool {
	return k.secret != "" || k.certificate != nil
}

// addToParameters contributes the client identity, and the shared secret when
// that is the credential. Certificate assertions need an audience and are
// added separately via addAssertion.
func (k *ClientKey) addToParameters(params url.Values) {
	if k.clientID != "" {
		params.Set(paramClientID, k.clientID)
	}

	if k.secret != "" {
		params.Set(paramClientSecret, k.secret)
	}
}

// addAssertion signs a short-lived jwt-bearer assertion for the given
// audience and attaches it to the request. No-op without a certificate.
func (k *ClientKey) addAssertion(params url.Values, audience string, clk clock.Clock) error {
	if k.certificate == nil {
		return nil
	}

	assertion, err := k.signedAssertion(audience, clk)
	if err != nil {
		return err
	}

	params.Set(paramClientAssertionType, assertionTypeJWTBearer)
	params.Set(paramClientAssertion, assertion)
	return nil
}

func (k *ClientKey) signedAssertion(audience string, clk clock.Clock) (string, error) {
	now := clk.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud": audience,
		"iss": k.clientID,
		"sub": k.clientID,
		"jti": uuid.NewString(),
		"nbf": now.Unix(),
		"exp": now.Add(selfSignedJwtLifetime).Unix(),
	})

	thumbprint := sha1.Sum(k.certificate.Raw)
	token.Header["x5t"] = base64.RawURLEncoding.EncodeToString(thumbprint[:])

	signed, err := token.SignedString(k.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing client assertion: %w", err)
	}

	return signed, nil
}
