// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import "net/url"

// OAuth2 wire parameter names. The extensions beyond RFC 6749 that the
// directory service understands are grouped at the bottom.
const (
	paramResponseType        = "response_type"
	paramGrantType           = "grant_type"
	paramClientID            = "client_id"
	paramClientSecret        = "client_secret"
	paramClientAssertion     = "client_assertion"
	paramClientAssertionType = "client_assertion_type"
	paramRefreshToken        = "refresh_token"
	paramRedirectURI         = "redirect_uri"
	paramResource            = "resource"
	paramCode                = "code"
	paramScope               = "scope"
	paramUsername            = "username"
	paramPassword            = "password"

	paramHasChrome     = "haschrome"
	paramLoginHint     = "login_hint"
	paramClaims        = "claims"
	paramPrompt        = "prompt"
	paramCorrelationID = headerCorrelationID
)

const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
	grantTypeClientCredentials = "client_credentials"
	grantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	grantTypePassword          = "password"
	grantTypeDeviceCode        = "device_code"
)

const (
	responseTypeCode = "code"

	assertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	scopeOpenID = "openid"

	oauthErrorLoginRequired = "login_required"
)

// Prompt values accepted by the authorization endpoint.
const (
	PromptLogin          = "login"
	PromptRefreshSession = "refresh_session"
	PromptSelectAccount  = "select_account"
	// PromptAttemptNone behaves like prompt=none for managed users while
	// still allowing a federated-user redirect to the federation endpoint.
	PromptAttemptNone = "attempt_none"
)

// newRequestParameters seeds the form body sent to the token endpoint with
// the resource and the client's identity.
func newRequestParameters(resource string, clientKey *ClientKey) url.Values {
	params := url.Values{}
	if resource != "" {
		params.Set(paramResource, resource)
	}

	if clientKey != nil {
		clientKey.addToParameters(params)
	}

	return params
}
