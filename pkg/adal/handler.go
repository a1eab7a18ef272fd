// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/azure/adtoken/pkg/httputil"
	"github.com/benbjohnson/clock"
)

// nullResource marks a flow where the resource is optional on the request and
// learned from the token response instead.
const nullResource = "null_resource_as_optional"

// requestData bundles everything an acquisition shares regardless of flow.
type requestData struct {
	authenticator           *Authenticator
	tokenCache              *TokenCache
	resource                string
	clientKey               *ClientKey
	subjectType             TokenSubjectType
	extendedLifeTimeEnabled bool
	correlationID           string

	clk       clock.Clock
	transport httputil.Client
}

// tokenFlow is the per-flow half of an acquisition. The base handler drives
// the shared state machine and calls back into the flow for the credential
// step.
type tokenFlow interface {
	// preTokenRequest runs after the cache missed and before the token
	// request, e.g. the interactive authorization round trip.
	preTokenRequest(ctx context.Context) error

	// sendTokenRequest produces a fresh result from the service.
	sendTokenRequest(ctx context.Context) (*AuthenticationResultEx, error)

	// postTokenRequest inspects and adjusts the fresh result before it is
	// cached.
	postTokenRequest(ctx context.Context, resultEx *AuthenticationResultEx) error
}

// acquireTokenHandler is the shared acquisition state machine: resolve the
// authority, consult the cache, refresh when possible, fall through to the
// flow's credential step, and store the outcome.
type acquireTokenHandler struct {
	cs   *callState
	flow tokenFlow

	authenticator *Authenticator
	tokenCache    *TokenCache
	resource      string
	clientKey     *ClientKey
	subjectType   TokenSubjectType

	uniqueID           string
	displayableID      string
	userIdentifierType UserIdentifierType

	loadFromCache           bool
	storeToCache            bool
	supportADFS             bool
	extendedLifeTimeEnabled bool

	clk                 clock.Clock
	transport           httputil.Client
	deviceAuthResponder DeviceAuthResponder

	// client is the wire client of the most recent token request, kept so the
	// failure path can ask whether the failure was transient.
	client *wireClient

	// resultEx is the in-flight result, visible to the flow callbacks.
	resultEx *AuthenticationResultEx
}

func newAcquireTokenHandler(request requestData) (*acquireTokenHandler, error) {
	if request.resource == "" {
		return nil, newArgumentError("resource", "resource must not be empty")
	}
	if request.clientKey == nil {
		return nil, newArgumentError("clientKey", "clientKey must not be nil")
	}
	if request.authenticator == nil {
		return nil, newArgumentError("authenticator", "authenticator must not be nil")
	}

	clk := request.clk
	if clk == nil {
		clk = clock.New()
	}

	resource := request.resource
	if resource == nullResource {
		resource = ""
	}

	handler := &acquireTokenHandler{
		cs:                      newCallState(request.correlationID),
		authenticator:           request.authenticator,
		tokenCache:              request.tokenCache,
		resource:                resource,
		clientKey:               request.clientKey,
		subjectType:             request.subjectType,
		loadFromCache:           request.tokenCache != nil,
		storeToCache:            request.tokenCache != nil,
		extendedLifeTimeEnabled: request.extendedLifeTimeEnabled,
		clk:                     clk,
		transport:               request.transport,
	}

	handler.cs.logf("=== token acquisition started, authentication target %d", request.subjectType)
	if IsTrusted(request.authenticator.AuthorityHost()) {
		handler.cs.logf("authority host: %s", request.authenticator.AuthorityHost())
	}
	handler.cs.logPii("authority: %s, resource: %s, client id: %s",
		request.authenticator.Authority(), request.resource, request.clientKey.ClientID())

	return handler, nil
}

// run drives the acquisition to completion.
func (h *acquireTokenHandler) run(ctx context.Context) (*AuthenticationResult, error) {
	notifiedBeforeAccess := false
	defer func() {
		if notifiedBeforeAccess {
			h.notifyAfterAccess()
		}
	}()

	var extendedLifetimeResultEx *AuthenticationResultEx
	result, err := h.runStages(ctx, &notifiedBeforeAccess, &extendedLifetimeResultEx)
	if err != nil {
		h.cs.logPii("token acquisition failed: %v", err)

		// A transient service failure after a usable stale token was found:
		// honor the extended-lifetime contract and return the stale token.
		if h.client != nil && h.client.resilient &&
			extendedLifetimeResultEx != nil && extendedLifetimeResultEx.Result != nil &&
			extendedLifetimeResultEx.Result.AccessToken != "" {
			h.cs.logf("refreshing the access token failed with a transient service error, returning the stale access token")
			return extendedLifetimeResultEx.Result, nil
		}

		return nil, err
	}

	return result, nil
}

func (h *acquireTokenHandler) runStages(
	ctx context.Context,
	notifiedBeforeAccess *bool,
	extendedLifetimeResultEx **AuthenticationResultEx,
) (*AuthenticationResult, error) {
	if err := h.preRun(ctx); err != nil {
		return nil, err
	}

	if h.loadFromCache {
		h.cs.logf("loading from cache")

		query := CacheQueryData{
			Authority:               h.authenticator.Authority(),
			Resource:                h.resource,
			ClientID:                h.clientKey.ClientID(),
			SubjectType:             h.subjectType,
			UniqueID:                h.uniqueID,
			DisplayableID:           h.displayableID,
			ExtendedLifeTimeEnabled: h.extendedLifeTimeEnabled,
		}

		h.notifyBeforeAccess()
		*notifiedBeforeAccess = true

		var err error
		h.resultEx, err = h.tokenCache.loadFromCache(query, h.cs)
		if err != nil {
			return nil, err
		}
		*extendedLifetimeResultEx = h.resultEx

		if h.resultEx != nil && h.resultEx.Result != nil &&
			((h.resultEx.Result.AccessToken == "" && h.resultEx.RefreshToken != "") ||
				(h.resultEx.Result.ExtendedLifeTimeToken && h.resultEx.RefreshToken != "")) {
			h.resultEx, err = h.refreshAccessToken(ctx, h.resultEx)
			if err != nil {
				return nil, err
			}

			if h.resultEx != nil && h.resultEx.Error == nil {
				if err := h.storeResultEx(h.resultEx, notifiedBeforeAccess); err != nil {
					return nil, err
				}
			}
		}
	}

	if h.resultEx == nil || h.resultEx.Error != nil {
		if err := h.flow.preTokenRequest(ctx); err != nil {
			return nil, err
		}

		resultEx, err := h.flow.sendTokenRequest(ctx)
		if err != nil {
			return nil, err
		}
		if resultEx.Error != nil {
			return nil, resultEx.Error
		}
		h.resultEx = resultEx

		if err := h.flow.postTokenRequest(ctx, h.resultEx); err != nil {
			return nil, err
		}
		if err := h.storeResultEx(h.resultEx, notifiedBeforeAccess); err != nil {
			return nil, err
		}
	}

	h.logReturnedToken(h.resultEx.Result)
	return h.resultEx.Result, nil
}

func (h *acquireTokenHandler) preRun(ctx context.Context) error {
	if err := h.authenticator.ResolveEndpoints(ctx, h.cs); err != nil {
		return err
	}

	return h.validateAuthorityType()
}

func (h *acquireTokenHandler) validateAuthorityType() error {
	if !h.supportADFS && h.authenticator.AuthorityType() == AuthorityTypeADFS {
		return newArgumentError("authority",
			"authority '%s' is an ADFS authority, which this flow does not support", h.authenticator.Authority())
	}

	return nil
}

// updateAuthority re-points the authenticator when the service directs the
// client elsewhere mid-flow.
func (h *acquireTokenHandler) updateAuthority(ctx context.Context, updatedAuthority string) error {
	if h.authenticator.Authority() == updatedAuthority {
		return nil
	}

	if err := h.authenticator.UpdateAuthority(ctx, updatedAuthority, h.cs); err != nil {
		return err
	}

	return h.validateAuthorityType()
}

// postTokenRequestBase folds the response's authority hints back into the
// authenticator and stamps the canonical authority on the result.
func (h *acquireTokenHandler) postTokenRequestBase(ctx context.Context, resultEx *AuthenticationResultEx) error {
	if resultEx.Result.Authority != "" {
		if err := h.updateAuthority(ctx, resultEx.Result.Authority); err != nil {
			return err
		}
	}

	h.authenticator.UpdateTenantID(resultEx.Result.TenantID)
	resultEx.Result.Authority = h.authenticator.Authority()
	return nil
}

// sendTokenRequestBase posts the flow's parameters to the token endpoint.
func (h *acquireTokenHandler) sendTokenRequestBase(ctx context.Context, extra url.Values) (*AuthenticationResultEx, error) {
	params := newRequestParameters(h.resource, h.clientKey)
	for name, values := range extra {
		for _, value := range values {
			params.Set(name, value)
		}
	}

	return h.executeTokenRequest(ctx, params)
}

// sendTokenRequestByRefreshToken redeems a refresh token. The service may
// omit the refresh token from the response, in which case the one from the
// request remains valid and is echoed onto the result.
func (h *acquireTokenHandler) sendTokenRequestByRefreshToken(ctx context.Context, refreshToken string) (*AuthenticationResultEx, error) {
	params := newRequestParameters(h.resource, h.clientKey)
	params.Set(paramGrantType, grantTypeRefreshToken)
	params.Set(paramRefreshToken, refreshToken)
	params.Set(paramScope, scopeOpenID)

	resultEx, err := h.executeTokenRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	if resultEx.RefreshToken == "" {
		resultEx.RefreshToken = refreshToken
		h.cs.logf("refresh token was missing from the token refresh response, returning the request's refresh token instead")
	}

	return resultEx, nil
}

func (h *acquireTokenHandler) executeTokenRequest(ctx context.Context, params url.Values) (*AuthenticationResultEx, error) {
	if err := h.clientKey.addAssertion(params, h.authenticator.SelfSignedJwtAudience(), h.clk); err != nil {
		return nil, err
	}

	client := newWireClient(h.authenticator.TokenURI(), h.transport, h.cs)
	client.deviceAuthResponder = h.deviceAuthResponder
	h.client = client

	var response tokenResponse
	if err := client.getResponse(ctx, params, &response); err != nil {
		return nil, err
	}

	return response.getResult(h.clk, h.cs)
}

// refreshAccessToken redeems the cached refresh token. Service rejections
// other than invalid_request are captured on the returned result so the flow
// can fall through to its credential step.
func (h *acquireTokenHandler) refreshAccessToken(ctx context.Context, cached *AuthenticationResultEx) (*AuthenticationResultEx, error) {
	if h.resource == "" {
		return nil, nil
	}

	h.cs.logf("refreshing access token")

	resultEx, err := h.sendTokenRequestByRefreshToken(ctx, cached.RefreshToken)
	if err != nil {
		var serviceErr *ServiceError
		if !errors.As(err, &serviceErr) {
			return nil, err
		}

		if serviceErr.Code == "invalid_request" {
			return nil, &ServiceError{
				Code:              errCodeFailedToRefresh,
				Description:       fmt.Sprintf("failed to refresh the access token: %s", serviceErr.Description),
				ServiceErrorCodes: serviceErr.ServiceErrorCodes,
				innerErr:          serviceErr,
			}
		}

		return &AuthenticationResultEx{Error: err}, nil
	}

	h.authenticator.UpdateTenantID(cached.Result.TenantID)
	resultEx.Result.Authority = h.authenticator.Authority()

	if resultEx.Result.IDToken == "" {
		// The token endpoint does not return an id token when a refresh token
		// is redeemed, so the identity travels over from the cached token.
		resultEx.Result.updateTenantAndUserInfo(cached.Result.TenantID, cached.Result.IDToken, cached.Result.UserInfo)
	}

	return resultEx, nil
}

func (h *acquireTokenHandler) storeResultEx(resultEx *AuthenticationResultEx, notifiedBeforeAccess *bool) error {
	if !h.storeToCache {
		return nil
	}

	if !*notifiedBeforeAccess {
		h.notifyBeforeAccess()
		*notifiedBeforeAccess = true
	}

	return h.tokenCache.store(resultEx, h.authenticator.Authority(), h.resource,
		h.clientKey.ClientID(), h.subjectType, h.cs)
}

func (h *acquireTokenHandler) logReturnedToken(result *AuthenticationResult) {
	if result != nil && result.AccessToken != "" {
		h.cs.logf("=== token acquisition finished successfully, expiration time: %s", result.ExpiresOn)
		if result.UserInfo != nil {
			h.cs.logPii("user id: %s", result.UserInfo.UniqueID)
		}
	}
}

func (h *acquireTokenHandler) notifyBeforeAccess() {
	h.tokenCache.notifyBeforeAccess(h.notificationArgs())
}

func (h *acquireTokenHandler) notifyAfterAccess() {
	h.tokenCache.notifyAfterAccess(h.notificationArgs())
}

func (h *acquireTokenHandler) notificationArgs() CacheNotificationArgs {
	return CacheNotificationArgs{
		Cache:         h.tokenCache,
		Resource:      h.resource,
		ClientID:      h.clientKey.ClientID(),
		UniqueID:      h.uniqueID,
		DisplayableID: h.displayableID,
	}
}
