// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAuthorizationResult(t *testing.T) {
	t.Run("code", func(t *testing.T) {
		result := NewAuthorizationResult(AuthorizationSuccess, "http://localhost:8400/?code=auth-code-1&session_state=s1")
		require.Equal(t, AuthorizationSuccess, result.Status)
		require.Equal(t, "auth-code-1", result.Code)
	})

	t.Run("broker redirect", func(t *testing.T) {
		uri := "msauth://com.contoso.app/?payload=abc"
		result := NewAuthorizationResult(AuthorizationSuccess, uri)
		require.Equal(t, AuthorizationSuccess, result.Status)
		require.Equal(t, uri, result.Code)
	})

	t.Run("protocol error", func(t *testing.T) {
		result := NewAuthorizationResult(AuthorizationSuccess,
			"http://localhost:8400/?error=access_denied&error_description=declined")
		require.Equal(t, AuthorizationProtocolError, result.Status)
		require.Equal(t, "access_denied", result.Error)
		require.Equal(t, "declined", result.ErrorDescription)
	})

	t.Run("cloud instance redirect", func(t *testing.T) {
		result := NewAuthorizationResult(AuthorizationSuccess,
			"http://localhost:8400/?code=auth-code-1&cloud_instance_host_name=login.microsoftonline.de")
		require.Equal(t, "auth-code-1", result.Code)
		require.Equal(t, "login.microsoftonline.de", result.CloudInstanceHost)
	})

	t.Run("user cancel", func(t *testing.T) {
		result := NewAuthorizationResult(AuthorizationUserCancel, "")
		require.Equal(t, AuthorizationUserCancel, result.Status)
		require.Equal(t, "authentication_canceled", result.Error)
	})

	t.Run("no recognizable response", func(t *testing.T) {
		result := NewAuthorizationResult(AuthorizationSuccess, "http://localhost:8400/?state=only")
		require.Equal(t, AuthorizationUnknownError, result.Status)
	})
}
