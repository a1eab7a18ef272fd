// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Base64url per RFC 4648 section 5: the '+' and '/' characters of the regular
// alphabet are replaced with '-' and '_', and padding is dropped so the result
// is file and URL safe.

// Base64URLEncode encodes data with the base64url alphabet and no padding.
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes a base64url string, tolerating both padded and
// unpadded input. A length that can never occur in base64 output is rejected.
func Base64URLDecode(s string) ([]byte, error) {
	normalized := strings.ReplaceAll(s, "-", "+")
	normalized = strings.ReplaceAll(normalized, "_", "/")
	normalized = strings.TrimRight(normalized, "=")

	switch len(normalized) % 4 {
	case 0:
	case 2:
		normalized += "=="
	case 3:
		normalized += "="
	default:
		return nil, fmt.Errorf("illegal base64url string %q", s)
	}

	return base64.StdEncoding.DecodeString(normalized)
}
