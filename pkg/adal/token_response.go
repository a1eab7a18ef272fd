// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
)

// tokenResponse is the token endpoint's JSON payload, success and error
// fields combined the way the service actually returns them.
type tokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Resource     string `json:"resource"`
	IDTokenRaw   string `json:"id_token"`

	CreatedOn         int64 `json:"created_on"`
	ExpiresOnEpoch    int64 `json:"expires_on"`
	ExpiresIn         int64 `json:"expires_in"`
	ExtendedExpiresIn int64 `json:"ext_expires_in"`

	Error            string        `json:"error"`
	ErrorDescription string        `json:"error_description"`
	ErrorCodes       []json.Number `json:"error_codes"`
	CorrelationID    string        `json:"correlation_id"`
	Claims           string        `json:"claims"`

	// CloudInstanceHost is set on authorization responses that redirect the
	// client to a different cloud instance, never by the token endpoint.
	CloudInstanceHost string `json:"cloud_instance_host_name"`

	// Authority is stamped by the acquisition handler before the result is
	// derived, so the issued token records where it came from.
	Authority string `json:"-"`
}

// getResult converts the response into a cacheable result. Expiry instants
// are anchored on the supplied clock, and a missing or shorter
// ext_expires_in is coerced up to expires_in.
func (t *tokenResponse) getResult(clk clock.Clock, cs *callState) (*AuthenticationResultEx, error) {
	if t.ExtendedExpiresIn < t.ExpiresIn {
		cs.logf("ext_expires_in (%d) is less than expires_in (%d), using expires_in",
			t.ExtendedExpiresIn, t.ExpiresIn)
		t.ExtendedExpiresIn = t.ExpiresIn
	}

	now := clk.Now()
	return t.getResultWithDates(
		now.Add(time.Duration(t.ExpiresIn)*time.Second),
		now.Add(time.Duration(t.ExtendedExpiresIn)*time.Second),
		clk)
}

func (t *tokenResponse) getResultWithDates(expiresOn, extendedExpiresOn time.Time, clk clock.Clock) (*AuthenticationResultEx, error) {
	if t.AccessToken == "" {
		if t.Error != "" {
			return nil, &ServiceError{
				Code:              t.Error,
				Description:       t.ErrorDescription,
				ServiceErrorCodes: formatErrorCodes(t.ErrorCodes),
			}
		}

		return nil, &ServiceError{
			Code:        errCodeUnknown,
			Description: "the service returned a response with neither a token nor an error",
		}
	}

	result := newAuthenticationResult(t.TokenType, t.AccessToken, expiresOn, extendedExpiresOn)

	if token := parseIDToken(t.IDTokenRaw); token != nil {
		userInfo := &UserInfo{
			UniqueID:         token.uniqueID(),
			DisplayableID:    token.displayableID(),
			GivenName:        token.GivenName,
			FamilyName:       token.FamilyName,
			IdentityProvider: token.identityProvider(),
		}

		if exp, err := token.PasswordExpiration.Int64(); err == nil && exp > 0 {
			passwordExpiresOn := clk.Now().Add(time.Duration(exp) * time.Second)
			userInfo.PasswordExpiresOn = &passwordExpiresOn
		}

		if token.PasswordChangeURL != "" {
			if changeURL, err := url.Parse(token.PasswordChangeURL); err == nil {
				userInfo.PasswordChangeURL = changeURL.String()
			}
		}

		result.updateTenantAndUserInfo(token.TenantID, t.IDTokenRaw, userInfo)
		result.Authority = t.Authority
	}

	return &AuthenticationResultEx{
		Result:       result,
		RefreshToken: t.RefreshToken,
		// A refresh token issued together with an explicit resource is
		// redeemable for other resources too.
		IsMultipleResourceRefreshToken: t.Resource != "" && t.RefreshToken != "",
		// Needed for authorization-code exchanges where the resource is
		// optional on the request and only known from the response.
		ResourceInResponse: t.Resource,
	}, nil
}

func formatErrorCodes(codes []json.Number) []string {
	if len(codes) == 0 {
		return nil
	}

	formatted := make([]string, 0, len(codes))
	for _, code := range codes {
		formatted = append(formatted, code.String())
	}

	return formatted
}
