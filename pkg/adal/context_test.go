// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/azure/adtoken/pkg/httputil"
	"github.com/azure/adtoken/test/mocks/mockhttp"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

const (
	commonAuthority = "https://login.microsoftonline.com/common"
	tenantAuthority = "https://login.microsoftonline.com/tenant-1/"
	redirectURI     = "http://localhost:8400"
)

type fakeWebUI struct {
	lastAuthorizationURI string
	returnedURI          string
	err                  error
}

func (w *fakeWebUI) Authorize(ctx context.Context, authorizationURI, redirectURI string) (string, error) {
	w.lastAuthorizationURI = authorizationURI
	return w.returnedURI, w.err
}

type contextFixture struct {
	mockHttp *mockhttp.MockHttpClient
	clk      *clock.Mock
	cache    *TokenCache
	webUI    *fakeWebUI
}

func newContextFixture(t *testing.T) *contextFixture {
	t.Helper()

	f := &contextFixture{
		mockHttp: mockhttp.NewMockHttpClient(),
		clk:      clock.NewMock(),
		webUI:    &fakeWebUI{returnedURI: redirectURI + "/?code=auth-code-1"},
	}
	f.cache = NewTokenCacheWithClock(f.clk)

	f.mockHttp.WhenUrlContains("/common/discovery/instance").Respond(httputil.ResponseMessage{
		Status: 200,
		Body:   []byte(discoveryResponseBody),
	})

	return f
}

func (f *contextFixture) newContext(t *testing.T, authority string) *AuthenticationContext {
	t.Helper()

	authContext, err := NewAuthenticationContext(authority, AuthorityValidationTrue,
		WithTransport(f.mockHttp),
		WithClock(f.clk),
		WithTokenCache(f.cache),
		WithWebUI(f.webUI))
	require.NoError(t, err)

	return authContext
}

// respondWithToken wires the token endpoint to return a fixed successful
// response and records every request's form parameters.
func (f *contextFixture) respondWithToken(t *testing.T, idTokenClaims map[string]any) *[]url.Values {
	t.Helper()

	var requests []url.Values
	f.mockHttp.WhenUrlContains("/oauth2/token").RespondFn(
		func(request httputil.RequestMessage) (*httputil.ResponseMessage, error) {
			params, err := url.ParseQuery(request.Body)
			require.NoError(t, err)
			requests = append(requests, params)

			body := fmt.Sprintf(`{
				"token_type": "Bearer",
				"access_token": "access-token-%d",
				"refresh_token": "refresh-token-%d",
				"resource": %q,
				"expires_in": 3600,
				"ext_expires_in": 86400,
				"id_token": %q
			}`, len(requests), len(requests), testResource, makeIDToken(t, idTokenClaims))

			return &httputil.ResponseMessage{Status: 200, Body: []byte(body)}, nil
		})

	return &requests
}

func defaultIDTokenClaims() map[string]any {
	return map[string]any{
		"oid": "uid-1",
		"tid": "tenant-1",
		"upn": "user@contoso.com",
	}
}

func TestAcquireTokenInteractive(t *testing.T) {
	f := newContextFixture(t)
	requests := f.respondWithToken(t, defaultIDTokenClaims())
	authContext := f.newContext(t, commonAuthority)

	result, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "")
	require.NoError(t, err)

	require.Equal(t, "access-token-1", result.AccessToken)
	require.Equal(t, "Bearer", result.AccessTokenType)
	require.Equal(t, "tenant-1", result.TenantID)
	require.Equal(t, "user@contoso.com", result.UserInfo.DisplayableID)

	// The tenant from the id token replaces the tenantless segment.
	require.Equal(t, tenantAuthority, result.Authority)
	require.Equal(t, tenantAuthority, authContext.Authority())

	// The code exchange carried the authorization code.
	require.Len(t, *requests, 1)
	exchange := (*requests)[0]
	require.Equal(t, "authorization_code", exchange.Get("grant_type"))
	require.Equal(t, "auth-code-1", exchange.Get("code"))
	require.Equal(t, redirectURI, exchange.Get("redirect_uri"))
	require.Equal(t, testResource, exchange.Get("resource"))
	require.Equal(t, testClientID, exchange.Get("client_id"))

	// The authorization URI asked for a code and named the client.
	authorizeURL, err := url.Parse(f.webUI.lastAuthorizationURI)
	require.NoError(t, err)
	require.Equal(t, "code", authorizeURL.Query().Get("response_type"))
	require.Equal(t, testClientID, authorizeURL.Query().Get("client_id"))
	require.Equal(t, redirectURI, authorizeURL.Query().Get("redirect_uri"))
}

func TestAcquireTokenSilentFailsOnEmptyCache(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, commonAuthority)

	_, err := authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, AnyUser())
	require.ErrorIs(t, err, ErrSilentAcquisitionFailed)
}

func TestAcquireTokenSilentServesCachedToken(t *testing.T) {
	f := newContextFixture(t)
	requests := f.respondWithToken(t, defaultIDTokenClaims())
	authContext := f.newContext(t, commonAuthority)

	_, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "")
	require.NoError(t, err)
	require.Len(t, *requests, 1)

	user, err := NewUserIdentifier("user@contoso.com", UserIdentifierRequiredDisplayableID)
	require.NoError(t, err)

	result, err := authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, user)
	require.NoError(t, err)
	require.Equal(t, "access-token-1", result.AccessToken)

	// Served entirely from the cache.
	require.Len(t, *requests, 1)
}

func TestAcquireTokenSilentRefreshesExpiredToken(t *testing.T) {
	f := newContextFixture(t)
	requests := f.respondWithToken(t, defaultIDTokenClaims())
	authContext := f.newContext(t, tenantAuthority)

	_, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "")
	require.NoError(t, err)
	require.Len(t, *requests, 1)

	f.clk.Add(2 * time.Hour)

	result, err := authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, AnyUser())
	require.NoError(t, err)
	require.Equal(t, "access-token-2", result.AccessToken)
	require.Len(t, *requests, 2)

	refresh := (*requests)[1]
	require.Equal(t, "refresh_token", refresh.Get("grant_type"))
	require.Equal(t, "refresh-token-1", refresh.Get("refresh_token"))
	require.Equal(t, "openid", refresh.Get("scope"))
}

func TestAcquireTokenSilentEchoesRefreshTokenWhenOmitted(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, tenantAuthority)

	f.mockHttp.WhenUrlContains("/oauth2/token").Respond(httputil.ResponseMessage{
		Status: 200,
		Body: []byte(`{
			"token_type": "Bearer",
			"access_token": "refreshed-token",
			"expires_in": 3600
		}`),
	})

	seedCachedToken(t, f, tenantAuthority, -time.Minute)

	result, err := authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, AnyUser())
	require.NoError(t, err)
	require.Equal(t, "refreshed-token", result.AccessToken)

	// The response had no id token either, so the cached identity travels
	// over to the refreshed result.
	require.Equal(t, "user@contoso.com", result.UserInfo.DisplayableID)
	require.Equal(t, "tenant-1", result.TenantID)

	// The cache now holds the refreshed token together with the original
	// refresh token, which remains valid.
	cached, err := f.cache.loadFromCache(CacheQueryData{
		Authority:   tenantAuthority,
		Resource:    testResource,
		ClientID:    testClientID,
		SubjectType: SubjectTypeUser,
	}, newCallState(""))
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Equal(t, "seed-refresh-token", cached.RefreshToken)
	require.Equal(t, "refreshed-token", cached.Result.AccessToken)
}

func TestAcquireTokenSilentInvalidRequestOnRefresh(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, tenantAuthority)

	f.mockHttp.WhenUrlContains("/oauth2/token").Respond(httputil.ResponseMessage{
		Status: 400,
		Body:   []byte(`{"error": "invalid_request", "error_description": "the refresh token is malformed"}`),
	})

	seedCachedToken(t, f, tenantAuthority, -time.Minute)

	_, err := authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, AnyUser())

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, errCodeFailedToRefresh, serviceErr.Code)
}

func TestAcquireTokenSilentRefreshRejectionFallsThrough(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, tenantAuthority)

	f.mockHttp.WhenUrlContains("/oauth2/token").Respond(httputil.ResponseMessage{
		Status: 400,
		Body:   []byte(`{"error": "invalid_grant", "error_description": "the refresh token has expired"}`),
	})

	seedCachedToken(t, f, tenantAuthority, -time.Minute)

	_, err := authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, AnyUser())

	// Silent acquisition has no credential step to fall through to, so the
	// rejection surfaces wrapped in the silent failure.
	require.ErrorIs(t, err, ErrSilentAcquisitionFailed)

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "invalid_grant", serviceErr.Code)
}

func TestAcquireTokenSilentStaleTokenDuringOutage(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, tenantAuthority)
	authContext.ExtendedLifeTimeEnabled = true

	f.mockHttp.WhenUrlContains("/oauth2/token").Respond(httputil.ResponseMessage{Status: 503})

	// One minute of normal lifetime left, a day of extended lifetime.
	seedCachedToken(t, f, tenantAuthority, time.Minute)

	result, err := authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, AnyUser())
	require.NoError(t, err)
	require.Equal(t, "seed-access-token", result.AccessToken)
	require.True(t, result.ExtendedLifeTimeToken)
}

func TestAcquireTokenUserMismatch(t *testing.T) {
	f := newContextFixture(t)
	f.respondWithToken(t, map[string]any{
		"oid": "uid-2",
		"tid": "tenant-1",
		"upn": "other@contoso.com",
	})
	authContext := f.newContext(t, commonAuthority)

	user, err := NewUserIdentifier("user@contoso.com", UserIdentifierRequiredDisplayableID)
	require.NoError(t, err)

	_, err = authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, user, "")

	var mismatchErr *UserMismatchError
	require.ErrorAs(t, err, &mismatchErr)
	require.Equal(t, "user@contoso.com", mismatchErr.Requested)
	require.Equal(t, "other@contoso.com", mismatchErr.Returned)
}

func TestAcquireTokenAuthorizationDenied(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, commonAuthority)
	f.webUI.returnedURI = redirectURI + "/?error=access_denied&error_description=the+user+declined"

	_, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "")

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "access_denied", serviceErr.Code)
}

func TestAcquireTokenLoginRequired(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, commonAuthority)
	f.webUI.returnedURI = redirectURI + "/?error=login_required"

	_, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "")
	require.ErrorIs(t, err, ErrUserInteractionRequired)
}

func TestAcquireTokenWithClaimsBypassesCache(t *testing.T) {
	f := newContextFixture(t)
	requests := f.respondWithToken(t, defaultIDTokenClaims())
	authContext := f.newContext(t, commonAuthority)

	_, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "")
	require.NoError(t, err)
	require.Len(t, *requests, 1)

	claims := `{"access_token":{"polids":{"essential":true}}}`
	_, err = authContext.AcquireTokenWithClaims(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "", claims)
	require.NoError(t, err)

	// The cached token was not good enough: a fresh exchange ran and the
	// authorization request carried the claims challenge.
	require.Len(t, *requests, 2)
	authorizeURL, err := url.Parse(f.webUI.lastAuthorizationURI)
	require.NoError(t, err)
	require.Equal(t, claims, authorizeURL.Query().Get("claims"))
}

func TestAcquireTokenWithPrompt(t *testing.T) {
	f := newContextFixture(t)
	f.respondWithToken(t, defaultIDTokenClaims())
	authContext := f.newContext(t, commonAuthority)

	_, err := authContext.AcquireTokenWithPrompt(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "", PromptLogin)
	require.NoError(t, err)

	authorizeURL, err := url.Parse(f.webUI.lastAuthorizationURI)
	require.NoError(t, err)
	require.Equal(t, PromptLogin, authorizeURL.Query().Get("prompt"))
}

func TestAcquireTokenRejectsDuplicateExtraQueryParameter(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, commonAuthority)

	_, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "&client_id=other")

	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
}

func TestCachedResult(t *testing.T) {
	f := newContextFixture(t)
	authContext := f.newContext(t, tenantAuthority)

	// Miss: the zero result, not an error.
	result, err := authContext.CachedResult(testResource, testClientID)
	require.NoError(t, err)
	require.Empty(t, result.AccessToken)

	appToken := &AuthenticationResultEx{
		Result: newAuthenticationResult("Bearer", "app-access-token",
			f.clk.Now().Add(time.Hour), f.clk.Now().Add(24*time.Hour)),
	}
	require.NoError(t, f.cache.store(appToken, tenantAuthority, testResource, testClientID,
		SubjectTypeClient, newCallState("")))

	result, err = authContext.CachedResult(testResource, testClientID)
	require.NoError(t, err)
	require.Equal(t, "app-access-token", result.AccessToken)
}

func TestClearCache(t *testing.T) {
	f := newContextFixture(t)
	requests := f.respondWithToken(t, defaultIDTokenClaims())
	authContext := f.newContext(t, commonAuthority)

	_, err := authContext.AcquireToken(
		context.Background(), testResource, testClientID, redirectURI, AnyUser(), "")
	require.NoError(t, err)
	require.Equal(t, 1, authContext.Cache().Count())

	authContext.ClearCache()
	require.Equal(t, 0, authContext.Cache().Count())

	_, err = authContext.AcquireTokenSilent(context.Background(), testResource, testClientID, AnyUser())
	require.ErrorIs(t, err, ErrSilentAcquisitionFailed)
	require.Len(t, *requests, 1)
}

// seedCachedToken stores a user token whose access token expires lifetime from
// now, with a long extended expiry and a refresh token.
func seedCachedToken(t *testing.T, f *contextFixture, authority string, lifetime time.Duration) {
	t.Helper()

	result := newAuthenticationResult("Bearer", "seed-access-token",
		f.clk.Now().Add(lifetime), f.clk.Now().Add(24*time.Hour))
	result.updateTenantAndUserInfo("tenant-1", "", &UserInfo{
		UniqueID:      "uid-1",
		DisplayableID: "user@contoso.com",
	})

	require.NoError(t, f.cache.store(&AuthenticationResultEx{
		Result:             result,
		RefreshToken:       "seed-refresh-token",
		ResourceInResponse: testResource,
	}, authority, testResource, testClientID, SubjectTypeUser, newCallState("")))
}
