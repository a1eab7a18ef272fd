// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseMessageHeaderIsCaseInsensitive(t *testing.T) {
	response := &ResponseMessage{
		Headers: map[string]string{"WWW-Authenticate": "Bearer"},
	}

	require.Equal(t, "Bearer", response.Header("www-authenticate"))
	require.Equal(t, "Bearer", response.Header("WWW-AUTHENTICATE"))
	require.Empty(t, response.Header("Content-Type"))
}

func TestClientSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "grant_type=client_credentials", string(body))

		w.Header().Set("client-request-id", "correlation-1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	response, err := NewClient().Send(context.Background(), &RequestMessage{
		Url:     server.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    "grant_type=client_credentials",
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, response.Status)
	require.JSONEq(t, `{"ok": true}`, string(response.Body))
	require.Equal(t, "correlation-1", response.Header("Client-Request-Id"))
}

func TestClientSendContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient().Send(ctx, &RequestMessage{
		Url:    "https://login.microsoftonline.com/common/discovery/instance",
		Method: http.MethodGet,
	})
	require.Error(t, err)
}
