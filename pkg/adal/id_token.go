// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import "encoding/json"

// idToken holds the claims this library reads from an OpenID Connect ID
// token. The token is treated as a hint about the signed-in user; its
// signature is not validated here.
type idToken struct {
	ObjectID           string      `json:"oid"`
	Subject            string      `json:"sub"`
	TenantID           string      `json:"tid"`
	UPN                string      `json:"upn"`
	Email              string      `json:"email"`
	GivenName          string      `json:"given_name"`
	FamilyName         string      `json:"family_name"`
	IdentityProvider   string      `json:"idp"`
	Issuer             string      `json:"iss"`
	PasswordExpiration json.Number `json:"pwd_exp"`
	PasswordChangeURL  string      `json:"pwd_url"`
}

// parseIDToken decodes the claims segment of a compact JWT. A missing or
// malformed token yields nil; the caller proceeds without user details.
func parseIDToken(raw string) *idToken {
	if raw == "" {
		return nil
	}

	segments := splitJWTSegments(raw)
	if len(segments) != 3 {
		return nil
	}

	claims, err := Base64URLDecode(segments[1])
	if err != nil {
		return nil
	}

	var token idToken
	if err := json.Unmarshal(claims, &token); err != nil {
		return nil
	}

	return &token
}

func splitJWTSegments(raw string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			segments = append(segments, raw[start:i])
			start = i + 1
		}
	}

	return append(segments, raw[start:])
}

// uniqueID prefers the immutable object id over the token subject.
func (t *idToken) uniqueID() string {
	if t.ObjectID != "" {
		return t.ObjectID
	}

	return t.Subject
}

// displayableID prefers the UPN over the email claim.
func (t *idToken) displayableID() string {
	if t.UPN != "" {
		return t.UPN
	}

	return t.Email
}

func (t *idToken) identityProvider() string {
	if t.IdentityProvider != "" {
		return t.IdentityProvider
	}

	return t.Issuer
}
