// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuthenticationResult is the outcome of a successful token acquisition.
type AuthenticationResult struct {
	AccessToken     string `json:"accessToken,omitempty"`
	AccessTokenType string `json:"accessTokenType,omitempty"`

	// Authority is the canonical authority that issued the token, stamped by
	// the cache or the acquisition handler.
	Authority string `json:"authority,omitempty"`

	ExpiresOn         time.Time `json:"expiresOn"`
	ExtendedExpiresOn time.Time `json:"extendedExpiresOn"`

	// ExtendedLifeTimeToken is true when the token is being served past its
	// normal expiry under the extended-lifetime contract.
	ExtendedLifeTimeToken bool `json:"extendedLifeTimeToken,omitempty"`

	IDToken  string    `json:"idToken,omitempty"`
	TenantID string    `json:"tenantId,omitempty"`
	UserInfo *UserInfo `json:"userInfo,omitempty"`
}

// newAuthenticationResult enforces that ExtendedExpiresOn never precedes
// ExpiresOn: a zero extended expiry defaults to the normal one.
func newAuthenticationResult(tokenType, accessToken string, expiresOn, extendedExpiresOn time.Time) *AuthenticationResult {
	if extendedExpiresOn.IsZero() || extendedExpiresOn.Before(expiresOn) {
		extendedExpiresOn = expiresOn
	}

	return &AuthenticationResult{
		AccessTokenType:   tokenType,
		AccessToken:       accessToken,
		ExpiresOn:         expiresOn,
		ExtendedExpiresOn: extendedExpiresOn,
	}
}

func (r *AuthenticationResult) updateTenantAndUserInfo(tenantID, idToken string, userInfo *UserInfo) {
	r.TenantID = tenantID
	r.IDToken = idToken
	if userInfo != nil {
		clone := *userInfo
		r.UserInfo = &clone
	}
}

// AuthenticationResultEx wraps an AuthenticationResult with the cache-side
// bookkeeping that never leaves the library: the refresh token, whether it is
// good for other resources, and any captured refresh failure.
type AuthenticationResultEx struct {
	Result                         *AuthenticationResult `json:"result"`
	RefreshToken                   string                `json:"refreshToken,omitempty"`
	IsMultipleResourceRefreshToken bool                  `json:"isMultipleResourceRefreshToken,omitempty"`
	ResourceInResponse             string                `json:"resourceInResponse,omitempty"`
	UserAssertionHash              string                `json:"userAssertionHash,omitempty"`

	// Error records a refresh failure so the acquisition handler can fall
	// through to the credential step. Never serialized.
	Error error `json:"-"`
}

// Clone returns a deep copy. Cache reads always hand out clones so callers and
// expiry bookkeeping never alias cache-internal storage.
func (r *AuthenticationResultEx) Clone() *AuthenticationResultEx {
	cloned := &AuthenticationResultEx{
		RefreshToken:                   r.RefreshToken,
		IsMultipleResourceRefreshToken: r.IsMultipleResourceRefreshToken,
		ResourceInResponse:             r.ResourceInResponse,
		UserAssertionHash:              r.UserAssertionHash,
		Error:                          r.Error,
	}

	if r.Result != nil {
		result := *r.Result
		cloned.Result = &result
		if r.Result.UserInfo != nil {
			userInfo := *r.Result.UserInfo
			cloned.Result.UserInfo = &userInfo
		}
	}

	return cloned
}

func (r *AuthenticationResultEx) serialize() ([]byte, error) {
	return json.Marshal(r)
}

func deserializeResultEx(data []byte) (*AuthenticationResultEx, error) {
	var result AuthenticationResultEx
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("deserializing cache entry: %w", err)
	}

	return &result, nil
}
