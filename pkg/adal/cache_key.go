// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenSubjectType indicates what a cached token is scoped to.
type TokenSubjectType int

const (
	// SubjectTypeUser is a token scoped to a user alone.
	SubjectTypeUser TokenSubjectType = iota

	// SubjectTypeClient is a token scoped to a client application alone.
	SubjectTypeClient

	// SubjectTypeUserPlusClient is a token scoped to a user signed in through
	// a client that holds its own credential.
	SubjectTypeUserPlusClient
)

// cacheKeyDelimiter joins key fields in the serialized form. Field values may
// not contain it; NewTokenCacheKey rejects values that do, since the format
// has no escaping.
const cacheKeyDelimiter = ":::"

// TokenCacheKey identifies one token cache entry. Resource, client id and
// displayable id compare case-insensitively; authority and unique id compare
// exactly.
type TokenCacheKey struct {
	Authority        string
	Resource         string
	ClientID         string
	TokenSubjectType TokenSubjectType
	UniqueID         string
	DisplayableID    string
}

func NewTokenCacheKey(
	authority string,
	resource string,
	clientID string,
	subjectType TokenSubjectType,
	uniqueID string,
	displayableID string,
) (TokenCacheKey, error) {
	for name, value := range map[string]string{
		"authority":     authority,
		"resource":      resource,
		"clientID":      clientID,
		"uniqueID":      uniqueID,
		"displayableID": displayableID,
	} {
		if strings.Contains(value, cacheKeyDelimiter) {
			return TokenCacheKey{}, newArgumentError(name, "%s cannot contain %q", name, cacheKeyDelimiter)
		}
	}

	return TokenCacheKey{
		Authority:        authority,
		Resource:         resource,
		ClientID:         clientID,
		TokenSubjectType: subjectType,
		UniqueID:         uniqueID,
		DisplayableID:    displayableID,
	}, nil
}

func (k TokenCacheKey) ResourceEquals(other string) bool {
	return strings.EqualFold(k.Resource, other)
}

func (k TokenCacheKey) ClientIDEquals(other string) bool {
	return strings.EqualFold(k.ClientID, other)
}

func (k TokenCacheKey) DisplayableIDEquals(other string) bool {
	return strings.EqualFold(k.DisplayableID, other)
}

// StringKey renders the key as the cache map's string form. Case-insensitive
// fields are lowercased so equal keys render identically.
func (k TokenCacheKey) StringKey() string {
	return strings.Join([]string{
		k.Authority,
		strings.ToLower(k.Resource),
		strings.ToLower(k.ClientID),
		k.UniqueID,
		strings.ToLower(k.DisplayableID),
		strconv.Itoa(int(k.TokenSubjectType)),
	}, cacheKeyDelimiter)
}

func parseCacheKey(stringKey string) (TokenCacheKey, error) {
	parts := strings.Split(stringKey, cacheKeyDelimiter)
	if len(parts) != 6 {
		return TokenCacheKey{}, fmt.Errorf("token cache key %q is in the incorrect format", stringKey)
	}

	subjectType, err := strconv.Atoi(parts[5])
	if err != nil {
		return TokenCacheKey{}, fmt.Errorf("token cache key %q has a malformed subject type: %w", stringKey, err)
	}

	return TokenCacheKey{
		Authority:        parts[0],
		Resource:         parts[1],
		ClientID:         parts[2],
		UniqueID:         parts[3],
		DisplayableID:    parts[4],
		TokenSubjectType: TokenSubjectType(subjectType),
	}, nil
}

// CacheQueryData is the query-side projection of a cache lookup. Empty string
// fields act as wildcards.
type CacheQueryData struct {
	Authority               string
	Resource                string
	ClientID                string
	SubjectType             TokenSubjectType
	UniqueID                string
	DisplayableID           string
	ExtendedLifeTimeEnabled bool
}
