// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// acquireTokenInteractiveHandler drives the authorization-code flow: it sends
// the user through a WebUI to the authorization endpoint, then exchanges the
// returned code at the token endpoint.
type acquireTokenInteractiveHandler struct {
	*acquireTokenHandler

	redirectURI          *url.URL
	userID               UserIdentifier
	extraQueryParameters string
	claims               string
	prompt               string
	webUI                WebUI

	authorizationResult *AuthorizationResult
}

func newAcquireTokenInteractiveHandler(
	request requestData,
	redirectURI string,
	userID *UserIdentifier,
	extraQueryParameters string,
	webUI WebUI,
	claims string,
	prompt string,
) (*acquireTokenInteractiveHandler, error) {
	parsedRedirect, err := url.Parse(redirectURI)
	if err != nil || parsedRedirect.Scheme == "" {
		return nil, newArgumentError("redirectURI", "redirectURI '%s' is not a valid absolute URI", redirectURI)
	}
	if parsedRedirect.Fragment != "" {
		return nil, newArgumentError("redirectURI", "redirectURI must not contain a fragment")
	}

	if userID == nil {
		return nil, newArgumentError("userID", "userID must be provided, use AnyUser for any user")
	}
	if webUI == nil {
		return nil, newArgumentError("webUI", "webUI must be provided for interactive acquisition")
	}

	if len(extraQueryParameters) > 0 && extraQueryParameters[0] == '&' {
		extraQueryParameters = extraQueryParameters[1:]
	}

	if claims != "" {
		// A claims challenge means cached tokens are insufficient by
		// definition, so the cache lookup is skipped.
		request.tokenCache = nil
	}

	base, err := newAcquireTokenHandler(request)
	if err != nil {
		return nil, err
	}

	base.uniqueID = userID.UniqueID()
	base.displayableID = userID.DisplayableID()
	base.userIdentifierType = userID.Type
	base.supportADFS = true

	if claims != "" {
		base.cs.logf("claims present, skipping cache lookup")
	}

	handler := &acquireTokenInteractiveHandler{
		acquireTokenHandler:  base,
		redirectURI:          parsedRedirect,
		userID:               *userID,
		extraQueryParameters: extraQueryParameters,
		claims:               claims,
		prompt:               prompt,
		webUI:                webUI,
	}
	base.flow = handler
	return handler, nil
}

// preTokenRequest runs the authorization round trip through the WebUI and
// re-points the authenticator if the service directed the client to another
// cloud instance.
func (h *acquireTokenInteractiveHandler) preTokenRequest(ctx context.Context) error {
	if err := h.acquireAuthorization(ctx); err != nil {
		return err
	}

	if err := h.verifyAuthorizationResult(); err != nil {
		return err
	}

	if host := h.authorizationResult.CloudInstanceHost; host != "" {
		updated, err := replaceHost(h.authenticator.Authority(), host)
		if err != nil {
			return err
		}

		if err := h.updateAuthority(ctx, updated); err != nil {
			return err
		}
	}

	return nil
}

func (h *acquireTokenInteractiveHandler) acquireAuthorization(ctx context.Context) error {
	authorizationURI, err := h.createAuthorizationURI()
	if err != nil {
		return err
	}

	returnedURI, err := h.webUI.Authorize(ctx, authorizationURI, h.redirectURI.String())
	if err != nil {
		return fmt.Errorf("acquiring authorization: %w", err)
	}

	h.authorizationResult = NewAuthorizationResult(AuthorizationSuccess, returnedURI)
	return nil
}

func (h *acquireTokenInteractiveHandler) verifyAuthorizationResult() error {
	if h.authorizationResult.Error == oauthErrorLoginRequired {
		return ErrUserInteractionRequired
	}

	if h.authorizationResult.Status != AuthorizationSuccess {
		return &ServiceError{
			Code:        h.authorizationResult.Error,
			Description: h.authorizationResult.ErrorDescription,
		}
	}

	return nil
}

func (h *acquireTokenInteractiveHandler) sendTokenRequest(ctx context.Context) (*AuthenticationResultEx, error) {
	extra := url.Values{}
	extra.Set(paramGrantType, grantTypeAuthorizationCode)
	extra.Set(paramCode, h.authorizationResult.Code)
	extra.Set(paramRedirectURI, h.redirectURI.String())

	return h.sendTokenRequestBase(ctx, extra)
}

// postTokenRequest enforces that the issued token belongs to the user the
// caller pinned. An optional displayable id is a hint, not a constraint.
func (h *acquireTokenInteractiveHandler) postTokenRequest(ctx context.Context, resultEx *AuthenticationResultEx) error {
	if err := h.postTokenRequestBase(ctx, resultEx); err != nil {
		return err
	}

	if (h.uniqueID == "" && h.displayableID == "") ||
		h.userIdentifierType == UserIdentifierOptionalDisplayableID {
		return nil
	}

	var returnedUniqueID, returnedDisplayableID string
	if resultEx.Result.UserInfo != nil {
		returnedUniqueID = resultEx.Result.UserInfo.UniqueID
		returnedDisplayableID = resultEx.Result.UserInfo.DisplayableID
	}

	if h.userIdentifierType == UserIdentifierUniqueID && returnedUniqueID != h.uniqueID {
		return &UserMismatchError{Requested: h.uniqueID, Returned: returnedUniqueID}
	}

	if h.userIdentifierType == UserIdentifierRequiredDisplayableID && returnedDisplayableID != h.displayableID {
		return &UserMismatchError{Requested: h.displayableID, Returned: returnedDisplayableID}
	}

	return nil
}

// createAuthorizationURI builds the full authorization endpoint URI for this
// request, including identity hints and telemetry parameters.
func (h *acquireTokenInteractiveHandler) createAuthorizationURI() (string, error) {
	params := newRequestParameters(h.resource, h.clientKey)
	params.Set(paramResponseType, responseTypeCode)
	params.Set(paramHasChrome, "1")
	params.Set(paramRedirectURI, h.redirectURI.String())

	if loginHint := h.loginHint(); loginHint != "" {
		params.Set(paramLoginHint, loginHint)
	}

	if h.claims != "" {
		params.Set(paramClaims, h.claims)
	}

	if h.prompt != "" {
		params.Set(paramPrompt, h.prompt)
	}

	if h.cs.correlationID != "" && h.cs.correlationID != uuid.Nil.String() {
		params.Set(paramCorrelationID, h.cs.correlationID)
	}

	for name, value := range clientIdentityHeaders() {
		params.Set(name, value)
	}

	authorizationURI, err := url.Parse(h.authenticator.AuthorizationURI())
	if err != nil {
		return "", fmt.Errorf("parsing authorization endpoint: %w", err)
	}

	query := params.Encode()
	if h.extraQueryParameters != "" {
		extra, err := url.ParseQuery(h.extraQueryParameters)
		if err != nil {
			return "", newArgumentError("extraQueryParameters", "extraQueryParameters are not a valid query string: %v", err)
		}

		for name := range extra {
			if params.Has(name) {
				return "", newArgumentError("extraQueryParameters",
					"extra query parameter '%s' duplicates a parameter already set by the library", name)
			}
		}

		query += "&" + h.extraQueryParameters
	}

	authorizationURI.RawQuery = query
	return authorizationURI.String(), nil
}

// loginHint carries the pinned user's name to the authorization endpoint so
// the sign-in page can preselect the account.
func (h *acquireTokenInteractiveHandler) loginHint() string {
	if h.userID.IsAnyUser() {
		return ""
	}

	if h.userID.Type == UserIdentifierOptionalDisplayableID ||
		h.userID.Type == UserIdentifierRequiredDisplayableID {
		return h.userID.ID
	}

	return ""
}

func replaceHost(original, newHost string) (string, error) {
	parsed, err := url.Parse(original)
	if err != nil {
		return "", fmt.Errorf("parsing authority: %w", err)
	}

	parsed.Host = newHost
	return parsed.String(), nil
}
