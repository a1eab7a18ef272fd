// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"fmt"
	"log"
	"strings"
)

// AuthChallenge represents an authentication challenge parsed from a
// WWW-Authenticate header: the scheme, an optional token68 value, and any
// additional auth parameters.
//
// See https://datatracker.ietf.org/doc/html/rfc9110#name-www-authenticate
type AuthChallenge struct {
	// Scheme is the authentication scheme, e.g. "Bearer" or "PKeyAuth".
	Scheme string

	// Token68 is a legacy field for token-based challenges.
	Token68 string

	// AuthParams contains the challenge's parameters, e.g. nonce or SubmitUrl.
	AuthParams map[string]string
}

// An element of a comma-separated list in a WWW-Authenticate header.
type challengeElement struct {
	// Optional scheme name, e.g. "Bearer" or "PKeyAuth".
	Scheme string

	// Optional key, e.g. "realm" in `Bearer realm="example.com"`.
	Key string

	// Token68 or value.
	Value string
}

// ParseWWWAuthenticateHeader parses a WWW-Authenticate header value into its
// challenges.
func ParseWWWAuthenticateHeader(headerValue string) []AuthChallenge {
	var challenges []AuthChallenge

	for _, part := range splitComma(headerValue) {
		elem, err := parseChallengeElement(part)

		if err != nil {
			log.Printf("parsing WWW-Authenticate header: %s", err)
		} else if elem.Scheme != "" {
			// a new auth-scheme challenge
			challenge := AuthChallenge{
				Scheme: elem.Scheme,
			}

			if elem.Key != "" {
				challenge.AuthParams = map[string]string{elem.Key: elem.Value}
			} else {
				challenge.Token68 = elem.Value
			}

			challenges = append(challenges, challenge)
		} else if len(challenges) > 0 {
			// continuation of the previous challenge
			last := &challenges[len(challenges)-1]
			if last.AuthParams == nil {
				last.AuthParams = map[string]string{}
			}
			last.AuthParams[elem.Key] = elem.Value
		}
	}

	return challenges
}

// parseChallengeElement parses a single comma-delimited element, handling the
// three possible formats:
// - `PKeyAuth nonce="abc"`  -> (scheme, key, value)
// - `Bearer eyJhbGciOaJIUzI1NiJ9`  -> (scheme, value)
// - `SubmitUrl="https://..."` -> (key, value)
func parseChallengeElement(s string) (challengeElement, error) {
	before, after, hasEquals := strings.Cut(s, "=")
	if !hasEquals {
		schemeToken68 := strings.Fields(before)
		if len(schemeToken68) == 2 {
			return challengeElement{
				Scheme: schemeToken68[0],
				Value:  schemeToken68[1],
			}, nil
		}

		return challengeElement{}, fmt.Errorf("unexpected elements in '%s'", s)
	}

	schemeAndKey := strings.Fields(before)

	value := strings.TrimSpace(after)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = handleEscapes(value[1 : len(value)-1])
	}

	switch len(schemeAndKey) {
	case 1:
		return challengeElement{
			Key:   schemeAndKey[0],
			Value: value,
		}, nil
	case 2:
		return challengeElement{
			Scheme: schemeAndKey[0],
			Key:    schemeAndKey[1],
			Value:  value,
		}, nil
	}

	return challengeElement{}, fmt.Errorf("unexpected elements in '%s'", s)
}

// handleEscapes interprets backslash escapes inside a quoted string.
func handleEscapes(s string) string {
	escaped := false
	var value strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			value.WriteByte(c)
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		default:
			value.WriteByte(c)
		}
	}

	return value.String()
}

// Split by commas outside of quoted strings.
func splitComma(value string) []string {
	var elements []string
	var current strings.Builder
	inQuote := false

	for i := 0; i < len(value); i++ {
		c := value[i]

		switch c {
		case '"':
			if inQuote && i-1 >= 0 && value[i-1] == '\\' {
				current.WriteByte(c)
				continue
			}
			inQuote = !inQuote
		case ',':
			if !inQuote {
				elements = append(elements, current.String())
				current.Reset()
				continue
			}
		}

		current.WriteByte(c)
	}

	if current.Len() > 0 {
		elements = append(elements, current.String())
	}

	return elements
}
