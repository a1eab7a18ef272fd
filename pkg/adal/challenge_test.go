// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWWWAuthenticateHeaderPKeyAuth(t *testing.T) {
	header := `PKeyAuth Nonce="nonce-1", Version="1.0", CertThumbprint="thumb-1", Context="ctx-1"`

	challenges := ParseWWWAuthenticateHeader(header)
	require.Len(t, challenges, 1)
	require.Equal(t, "PKeyAuth", challenges[0].Scheme)
	require.Equal(t, map[string]string{
		"Nonce":          "nonce-1",
		"Version":        "1.0",
		"CertThumbprint": "thumb-1",
		"Context":        "ctx-1",
	}, challenges[0].AuthParams)
}

func TestParseWWWAuthenticateHeaderMultipleChallenges(t *testing.T) {
	header := `Bearer realm="contoso.com", PKeyAuth Nonce="nonce-1"`

	challenges := ParseWWWAuthenticateHeader(header)
	require.Len(t, challenges, 2)
	require.Equal(t, "Bearer", challenges[0].Scheme)
	require.Equal(t, "contoso.com", challenges[0].AuthParams["realm"])
	require.Equal(t, "PKeyAuth", challenges[1].Scheme)
	require.Equal(t, "nonce-1", challenges[1].AuthParams["Nonce"])
}

func TestParseWWWAuthenticateHeaderToken68(t *testing.T) {
	challenges := ParseWWWAuthenticateHeader("Bearer eyJhbGciOiJSUzI1NiJ9")
	require.Len(t, challenges, 1)
	require.Equal(t, "Bearer", challenges[0].Scheme)
	require.Equal(t, "eyJhbGciOiJSUzI1NiJ9", challenges[0].Token68)
}

func TestParseWWWAuthenticateHeaderQuotedCommaAndEscapes(t *testing.T) {
	header := `PKeyAuth SubmitUrl="https://host/path?a=1,b=2", Context="quoted \"context\""`

	challenges := ParseWWWAuthenticateHeader(header)
	require.Len(t, challenges, 1)
	require.Equal(t, "https://host/path?a=1,b=2", challenges[0].AuthParams["SubmitUrl"])
	require.Equal(t, `quoted "context"`, challenges[0].AuthParams["Context"])
}
