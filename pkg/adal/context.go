// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"sync"

	"github.com/azure/adtoken/pkg/httputil"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// AuthorityValidationType controls whether the authority host is validated
// against the instance discovery metadata before use.
type AuthorityValidationType int

const (
	AuthorityValidationNotProvided AuthorityValidationType = iota
	AuthorityValidationTrue
	AuthorityValidationFalse
)

var (
	defaultSharedCacheOnce sync.Once
	defaultSharedCache     *TokenCache
)

// DefaultSharedCache is the process-wide token cache used by contexts that do
// not bring their own.
func DefaultSharedCache() *TokenCache {
	defaultSharedCacheOnce.Do(func() {
		defaultSharedCache = NewTokenCache()
	})

	return defaultSharedCache
}

// AuthenticationContext acquires tokens from a single authority. It is the
// entry point of this library: construct one per authority, then acquire
// tokens through it. Safe for concurrent use.
type AuthenticationContext struct {
	authenticator *Authenticator
	tokenCache    *TokenCache

	// ExtendedLifeTimeEnabled opts every acquisition through this context
	// into serving stale tokens during service outages.
	ExtendedLifeTimeEnabled bool

	clk                 clock.Clock
	transport           httputil.Client
	webUI               WebUI
	deviceAuthResponder DeviceAuthResponder
	correlationID       string
}

// ContextOption customizes an AuthenticationContext.
type ContextOption func(*AuthenticationContext)

// WithTokenCache replaces the default shared cache. Pass nil to disable
// caching entirely.
func WithTokenCache(cache *TokenCache) ContextOption {
	return func(c *AuthenticationContext) {
		c.tokenCache = cache
	}
}

// WithTransport replaces the HTTP client used for all service calls.
func WithTransport(transport httputil.Client) ContextOption {
	return func(c *AuthenticationContext) {
		c.transport = transport
	}
}

// WithClock replaces the wall clock used for expiry calculations.
func WithClock(clk clock.Clock) ContextOption {
	return func(c *AuthenticationContext) {
		c.clk = clk
	}
}

// WithWebUI wires the user-facing surface interactive acquisitions run in.
func WithWebUI(webUI WebUI) ContextOption {
	return func(c *AuthenticationContext) {
		c.webUI = webUI
	}
}

// WithDeviceAuthResponder wires a responder for PKeyAuth device challenges.
func WithDeviceAuthResponder(responder DeviceAuthResponder) ContextOption {
	return func(c *AuthenticationContext) {
		c.deviceAuthResponder = responder
	}
}

// WithCorrelationID pins the correlation id stamped on every request from
// this context. The default is a fresh id per acquisition.
func WithCorrelationID(correlationID string) ContextOption {
	return func(c *AuthenticationContext) {
		c.correlationID = correlationID
	}
}

// NewAuthenticationContext validates the authority eagerly but resolves its
// endpoints lazily, on the first acquisition.
func NewAuthenticationContext(authority string, validation AuthorityValidationType, opts ...ContextOption) (*AuthenticationContext, error) {
	authContext := &AuthenticationContext{
		tokenCache: DefaultSharedCache(),
		clk:        clock.New(),
	}

	for _, opt := range opts {
		opt(authContext)
	}

	discovery := defaultInstanceDiscovery
	if authContext.transport != nil {
		discovery = NewInstanceDiscovery(authContext.transport)
	}

	authenticator, err := NewAuthenticator(authority, validation != AuthorityValidationFalse, discovery)
	if err != nil {
		return nil, err
	}

	authContext.authenticator = authenticator
	return authContext, nil
}

func (c *AuthenticationContext) Authority() string {
	return c.authenticator.Authority()
}

func (c *AuthenticationContext) Cache() *TokenCache {
	return c.tokenCache
}

// AcquireToken runs the interactive authorization-code flow for resource on
// behalf of userID.
func (c *AuthenticationContext) AcquireToken(
	ctx context.Context,
	resource string,
	clientID string,
	redirectURI string,
	userID UserIdentifier,
	extraQueryParameters string,
) (*AuthenticationResult, error) {
	return c.acquireTokenCommon(ctx, resource, clientID, redirectURI, userID, extraQueryParameters, "", "")
}

// AcquireTokenWithClaims is AcquireToken for retrying after a claims
// challenge: the claims blob is forwarded to the authorization endpoint and
// the cache is bypassed.
func (c *AuthenticationContext) AcquireTokenWithClaims(
	ctx context.Context,
	resource string,
	clientID string,
	redirectURI string,
	userID UserIdentifier,
	extraQueryParameters string,
	claims string,
) (*AuthenticationResult, error) {
	return c.acquireTokenCommon(ctx, resource, clientID, redirectURI, userID, extraQueryParameters, claims, "")
}

// AcquireTokenWithPrompt is AcquireToken with an explicit prompt behavior,
// e.g. PromptLogin to force a fresh sign-in.
func (c *AuthenticationContext) AcquireTokenWithPrompt(
	ctx context.Context,
	resource string,
	clientID string,
	redirectURI string,
	userID UserIdentifier,
	extraQueryParameters string,
	prompt string,
) (*AuthenticationResult, error) {
	return c.acquireTokenCommon(ctx, resource, clientID, redirectURI, userID, extraQueryParameters, "", prompt)
}

// AcquireTokenSilent produces a token for resource without any user
// interaction, from the cache or by redeeming a cached refresh token. A
// wrapped ErrSilentAcquisitionFailed means the caller must fall back to
// AcquireToken.
func (c *AuthenticationContext) AcquireTokenSilent(
	ctx context.Context,
	resource string,
	clientID string,
	userID UserIdentifier,
) (*AuthenticationResult, error) {
	clientKey, err := NewClientKey(clientID)
	if err != nil {
		return nil, err
	}

	return c.acquireTokenSilentCommon(ctx, resource, clientKey, userID)
}

// AcquireTokenSilentWithClientKey is AcquireTokenSilent for confidential
// clients: the key's credential accompanies the refresh request.
func (c *AuthenticationContext) AcquireTokenSilentWithClientKey(
	ctx context.Context,
	resource string,
	clientKey *ClientKey,
	userID UserIdentifier,
) (*AuthenticationResult, error) {
	if clientKey == nil {
		return nil, newArgumentError("clientKey", "clientKey must not be nil")
	}

	return c.acquireTokenSilentCommon(ctx, resource, clientKey, userID)
}

// CachedResult returns the cached result for an application token, without
// touching the network. The zero result is returned on a miss.
func (c *AuthenticationContext) CachedResult(resource, clientID string) (*AuthenticationResult, error) {
	if c.tokenCache == nil {
		return &AuthenticationResult{}, nil
	}

	resultEx, err := c.tokenCache.loadFromCache(CacheQueryData{
		Authority:   c.authenticator.Authority(),
		Resource:    resource,
		ClientID:    clientID,
		SubjectType: SubjectTypeClient,
	}, newCallState(c.correlationID))
	if err != nil {
		return nil, err
	}

	if resultEx == nil || resultEx.Result == nil {
		return &AuthenticationResult{}, nil
	}

	return resultEx.Result, nil
}

// ClearCache drops every entry from this context's cache.
func (c *AuthenticationContext) ClearCache() {
	if c.tokenCache != nil {
		c.tokenCache.Clear()
	}
}

func (c *AuthenticationContext) acquireTokenCommon(
	ctx context.Context,
	resource string,
	clientID string,
	redirectURI string,
	userID UserIdentifier,
	extraQueryParameters string,
	claims string,
	prompt string,
) (*AuthenticationResult, error) {
	clientKey, err := NewClientKey(clientID)
	if err != nil {
		return nil, err
	}

	handler, err := newAcquireTokenInteractiveHandler(
		c.newRequestData(resource, clientKey, SubjectTypeUser),
		redirectURI, &userID, extraQueryParameters, c.webUI, claims, prompt)
	if err != nil {
		return nil, err
	}

	handler.deviceAuthResponder = c.deviceAuthResponder
	return handler.run(ctx)
}

func (c *AuthenticationContext) acquireTokenSilentCommon(
	ctx context.Context,
	resource string,
	clientKey *ClientKey,
	userID UserIdentifier,
) (*AuthenticationResult, error) {
	handler, err := newAcquireTokenSilentHandler(c.newRequestData(resource, clientKey, SubjectTypeUser), userID)
	if err != nil {
		return nil, err
	}

	handler.deviceAuthResponder = c.deviceAuthResponder
	return handler.run(ctx)
}

func (c *AuthenticationContext) newRequestData(resource string, clientKey *ClientKey, subjectType TokenSubjectType) requestData {
	correlationID := c.correlationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return requestData{
		authenticator:           c.authenticator,
		tokenCache:              c.tokenCache,
		resource:                resource,
		clientKey:               clientKey,
		subjectType:             subjectType,
		extendedLifeTimeEnabled: c.ExtendedLifeTimeEnabled,
		correlationID:           correlationID,
		clk:                     c.clk,
		transport:               c.transport,
	}
}
