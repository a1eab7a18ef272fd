// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"net/url"
	"strings"
)

// AuthorizationStatus classifies how an interactive authorization round trip
// ended.
type AuthorizationStatus int

const (
	AuthorizationSuccess AuthorizationStatus = iota
	AuthorizationErrorHTTP
	AuthorizationProtocolError
	AuthorizationUserCancel
	AuthorizationUnknownError
)

// AuthorizationResult is the parsed outcome of the authorization endpoint's
// redirect back to the application.
type AuthorizationResult struct {
	Status           AuthorizationStatus
	Code             string
	Error            string
	ErrorDescription string

	// CloudInstanceHost directs the client to exchange the code against a
	// different cloud instance than the one it started with.
	CloudInstanceHost string
}

// WebUI drives the user-facing half of an interactive flow: it navigates to
// authorizationURI and returns the full redirect URI the authorization server
// sent the user agent back to.
type WebUI interface {
	Authorize(ctx context.Context, authorizationURI string, redirectURI string) (string, error)
}

// NewAuthorizationResult parses the redirect URI returned by a WebUI. Broker
// redirects (msauth scheme) carry the entire URI as the code.
func NewAuthorizationResult(status AuthorizationStatus, returnedURI string) *AuthorizationResult {
	result := &AuthorizationResult{Status: status}

	switch status {
	case AuthorizationUserCancel:
		result.Error = "authentication_canceled"
		result.ErrorDescription = "user canceled authentication"
	case AuthorizationUnknownError:
		result.Error = errCodeUnknown
		result.ErrorDescription = "unknown error"
	default:
		if returnedURI != "" {
			result.parseAuthorizeResponse(returnedURI)
		}
	}

	return result
}

func (r *AuthorizationResult) parseAuthorizeResponse(returnedURI string) {
	resultURI, err := url.Parse(returnedURI)
	if err != nil {
		r.invalidResponse()
		return
	}

	query := resultURI.Query()
	if len(query) == 0 {
		r.invalidResponse()
		return
	}

	switch {
	case query.Get(paramCode) != "":
		r.Code = query.Get(paramCode)
	case strings.HasPrefix(strings.ToLower(returnedURI), "msauth://"):
		// Broker response: the whole URI is the authorization code.
		r.Code = returnedURI
	case query.Get("error") != "":
		r.Error = query.Get("error")
		r.ErrorDescription = query.Get("error_description")
		r.Status = AuthorizationProtocolError
	default:
		r.invalidResponse()
	}

	if host := query.Get("cloud_instance_host_name"); host != "" {
		r.CloudInstanceHost = host
	}
}

func (r *AuthorizationResult) invalidResponse() {
	r.Error = errCodeAuthenticationFailed
	r.ErrorDescription = "the authorization server returned an invalid response"
	r.Status = AuthorizationUnknownError
}
