// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase64URLRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("f"),
		[]byte("fo"),
		[]byte("foo"),
		[]byte("foob"),
		[]byte(`{"oid":"user-1","upn":"user@contoso.com"}`),
		{0xfb, 0xff, 0xfe, 0x00},
	}

	for _, input := range cases {
		encoded := Base64URLEncode(input)
		require.NotContains(t, encoded, "+")
		require.NotContains(t, encoded, "/")
		require.NotContains(t, encoded, "=")

		decoded, err := Base64URLDecode(encoded)
		require.NoError(t, err)
		require.Equal(t, input, decoded)
	}
}

func TestBase64URLDecodePadded(t *testing.T) {
	// Padded input decodes the same as unpadded.
	decoded, err := Base64URLDecode("Zm9vYg==")
	require.NoError(t, err)
	require.Equal(t, []byte("foob"), decoded)

	decoded, err = Base64URLDecode("Zm9vYg")
	require.NoError(t, err)
	require.Equal(t, []byte("foob"), decoded)
}

func TestBase64URLDecodeRejectsImpossibleLength(t *testing.T) {
	// A base64 encoder can never produce 4n+1 characters.
	_, err := Base64URLDecode("Zm9vY")
	require.Error(t, err)
}

func TestBase64URLDecodeAlternateAlphabet(t *testing.T) {
	decoded, err := Base64URLDecode("-_8")
	require.NoError(t, err)
	require.Equal(t, []byte{0xfb, 0xff}, decoded)
}
