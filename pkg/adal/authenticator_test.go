// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"testing"

	"github.com/azure/adtoken/pkg/httputil"
	"github.com/azure/adtoken/test/mocks/mockhttp"
	"github.com/stretchr/testify/require"
)

const discoveryResponseBody = `{
	"tenant_discovery_endpoint": "https://login.microsoftonline.com/tenant-1/.well-known/openid-configuration",
	"metadata": [
		{
			"preferred_network": "login.microsoftonline.com",
			"preferred_cache": "login.windows.net",
			"aliases": ["login.microsoftonline.com", "login.windows.net", "sts.windows.net"]
		}
	]
}`

func TestDetectAuthorityType(t *testing.T) {
	cases := []struct {
		name      string
		authority string
		expected  AuthorityType
		wantErr   bool
	}{
		{name: "empty", authority: "", wantErr: true},
		{name: "plain http", authority: "http://login.microsoftonline.com/common", wantErr: true},
		{name: "no tenant", authority: "https://login.microsoftonline.com", wantErr: true},
		{name: "aad", authority: "https://login.microsoftonline.com/common", expected: AuthorityTypeAAD},
		{name: "aad tenant", authority: "https://login.microsoftonline.com/contoso.onmicrosoft.com/", expected: AuthorityTypeAAD},
		{name: "adfs", authority: "https://fs.contoso.com/adfs/", expected: AuthorityTypeADFS},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := DetectAuthorityType(tc.authority)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, actual)
		})
	}
}

func TestNewAuthenticatorRejectsValidatedADFS(t *testing.T) {
	_, err := NewAuthenticator("https://fs.contoso.com/adfs/", true, nil)

	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
}

func newDiscoveryForTest(t *testing.T) (*InstanceDiscovery, *mockhttp.MockHttpClient) {
	t.Helper()
	mockHttp := mockhttp.NewMockHttpClient()
	return NewInstanceDiscovery(mockHttp), mockHttp
}

func TestResolveEndpoints(t *testing.T) {
	discovery, mockHttp := newDiscoveryForTest(t)
	mockHttp.WhenUrlContains("/common/discovery/instance").Respond(httputil.ResponseMessage{
		Status: 200,
		Body:   []byte(discoveryResponseBody),
	})

	auth, err := NewAuthenticator("https://login.windows.net/tenant-1", true, discovery)
	require.NoError(t, err)
	require.NoError(t, auth.ResolveEndpoints(context.Background(), newCallState("")))

	// Endpoints live on the preferred network host; the authority itself
	// keeps the host it was constructed with.
	require.Equal(t, "https://login.windows.net/tenant-1/", auth.Authority())
	require.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/token", auth.TokenURI())
	require.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/authorize", auth.AuthorizationURI())
	require.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/devicecode", auth.DeviceCodeURI())
	require.Equal(t, "https://login.microsoftonline.com/common/userrealm/", auth.UserRealmURIPrefix())
	require.Equal(t, auth.TokenURI(), auth.SelfSignedJwtAudience())
	require.False(t, auth.IsTenantless())
}

func TestResolveEndpointsTenantless(t *testing.T) {
	discovery, mockHttp := newDiscoveryForTest(t)
	mockHttp.WhenUrlContains("/common/discovery/instance").Respond(httputil.ResponseMessage{
		Status: 200,
		Body:   []byte(discoveryResponseBody),
	})

	auth, err := NewAuthenticator("https://login.microsoftonline.com/Common", true, discovery)
	require.NoError(t, err)
	require.NoError(t, auth.ResolveEndpoints(context.Background(), newCallState("")))
	require.True(t, auth.IsTenantless())

	auth.UpdateTenantID("tenant-1")
	require.Equal(t, "https://login.microsoftonline.com/tenant-1/", auth.Authority())

	// Resolution was invalidated; the next resolve recomputes endpoints for
	// the concrete tenant.
	require.NoError(t, auth.ResolveEndpoints(context.Background(), newCallState("")))
	require.Equal(t, "https://login.microsoftonline.com/tenant-1/oauth2/token", auth.TokenURI())
	require.False(t, auth.IsTenantless())
}

func TestResolveEndpointsIsIdempotent(t *testing.T) {
	discovery, mockHttp := newDiscoveryForTest(t)

	requests := 0
	mockHttp.WhenUrlContains("/common/discovery/instance").RespondFn(
		func(request httputil.RequestMessage) (*httputil.ResponseMessage, error) {
			requests++
			return &httputil.ResponseMessage{Status: 200, Body: []byte(discoveryResponseBody)}, nil
		})

	auth, err := NewAuthenticator("https://login.microsoftonline.com/tenant-1", true, discovery)
	require.NoError(t, err)

	require.NoError(t, auth.ResolveEndpoints(context.Background(), newCallState("")))
	require.NoError(t, auth.ResolveEndpoints(context.Background(), newCallState("")))
	require.Equal(t, 1, requests)
}

func TestUntrustedHostValidatesThroughDefaultAuthority(t *testing.T) {
	discovery, mockHttp := newDiscoveryForTest(t)

	var discoveryURL string
	mockHttp.WhenUrlContains("/common/discovery/instance").RespondFn(
		func(request httputil.RequestMessage) (*httputil.ResponseMessage, error) {
			discoveryURL = request.Url
			return &httputil.ResponseMessage{Status: 200, Body: []byte(discoveryResponseBody)}, nil
		})

	auth, err := NewAuthenticator("https://login.contoso.example/tenant-1", true, discovery)
	require.NoError(t, err)
	require.NoError(t, auth.ResolveEndpoints(context.Background(), newCallState("")))

	require.Contains(t, discoveryURL, "https://login.microsoftonline.com/common/discovery/instance")
	require.Contains(t, discoveryURL, "login.contoso.example")
}

func TestResolveEndpointsValidationFailures(t *testing.T) {
	t.Run("no tenant discovery endpoint", func(t *testing.T) {
		discovery, mockHttp := newDiscoveryForTest(t)
		mockHttp.WhenUrlContains("/common/discovery/instance").Respond(httputil.ResponseMessage{
			Status: 200,
			Body:   []byte(`{"metadata": []}`),
		})

		auth, err := NewAuthenticator("https://login.microsoftonline.com/tenant-1", true, discovery)
		require.NoError(t, err)

		err = auth.ResolveEndpoints(context.Background(), newCallState(""))
		var validationErr *AuthorityValidationError
		require.ErrorAs(t, err, &validationErr)
		require.True(t, validationErr.NotInValidList)
	})

	t.Run("invalid instance", func(t *testing.T) {
		discovery, mockHttp := newDiscoveryForTest(t)
		mockHttp.WhenUrlContains("/common/discovery/instance").Respond(httputil.ResponseMessage{
			Status: 400,
			Body:   []byte(`{"error": "invalid_instance", "error_description": "the instance was not found"}`),
		})

		auth, err := NewAuthenticator("https://login.contoso.example/tenant-1", true, discovery)
		require.NoError(t, err)

		err = auth.ResolveEndpoints(context.Background(), newCallState(""))
		var validationErr *AuthorityValidationError
		require.ErrorAs(t, err, &validationErr)
		require.True(t, validationErr.NotInValidList)
	})

	t.Run("validation disabled swallows failure", func(t *testing.T) {
		discovery, mockHttp := newDiscoveryForTest(t)
		mockHttp.WhenUrlContains("/common/discovery/instance").Respond(httputil.ResponseMessage{
			Status: 400,
			Body:   []byte(`{"error": "invalid_instance", "error_description": "the instance was not found"}`),
		})

		auth, err := NewAuthenticator("https://login.contoso.example/tenant-1", false, discovery)
		require.NoError(t, err)
		require.NoError(t, auth.ResolveEndpoints(context.Background(), newCallState("")))

		// The original host serves as its own metadata.
		require.Equal(t, "https://login.contoso.example/tenant-1/oauth2/token", auth.TokenURI())
	})
}
