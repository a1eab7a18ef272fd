// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// expirationMargin keeps near-expiry tokens out of circulation: an access
// token inside this margin is treated as expired so it gets refreshed before
// it can go stale mid-call.
const expirationMargin = 5 * time.Minute

const serializedCacheVersion = 1

// CacheNotificationArgs describes the access that is about to happen (or just
// happened) to a token cache.
type CacheNotificationArgs struct {
	Cache         *TokenCache
	Resource      string
	ClientID      string
	UniqueID      string
	DisplayableID string
}

// CacheObserver is notified synchronously around cache accesses so an
// external persistence layer can load the serialized blob before a read and
// snapshot it after a mutation.
type CacheObserver interface {
	OnBeforeAccess(args CacheNotificationArgs)
	OnBeforeWrite(args CacheNotificationArgs)
	OnAfterAccess(args CacheNotificationArgs)
}

type serializedTokenStore struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

// TokenCache holds the tokens acquired on behalf of a client application. A
// single cache may be shared by concurrent acquisition operations; all map
// access is serialized under one mutex per instance.
type TokenCache struct {
	mu              sync.Mutex
	entries         map[string]*AuthenticationResultEx
	hasStateChanged bool

	observer CacheObserver
	clk      clock.Clock
}

func NewTokenCache() *TokenCache {
	return NewTokenCacheWithClock(clock.New())
}

// NewTokenCacheWithClock lets the caller control the clock the expiry policy
// reads.
func NewTokenCacheWithClock(clk clock.Clock) *TokenCache {
	return &TokenCache{
		entries: map[string]*AuthenticationResultEx{},
		clk:     clk,
	}
}

// NewTokenCacheFromBlob restores a cache from a blob produced by Serialize.
func NewTokenCacheFromBlob(blob []byte) *TokenCache {
	cache := NewTokenCache()
	cache.Deserialize(blob)
	return cache
}

// SetObserver registers the persistence observer. Pass nil to detach.
func (c *TokenCache) SetObserver(observer CacheObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = observer
}

// HasStateChanged reports whether the cache has been mutated since the flag
// was last reset. The persistence layer resets it after serializing.
func (c *TokenCache) HasStateChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasStateChanged
}

func (c *TokenCache) ResetStateChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasStateChanged = false
}

func (c *TokenCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Serialize renders the cache as a versioned JSON blob the caller can persist
// and later hand back to Deserialize or NewTokenCacheFromBlob.
func (c *TokenCache) Serialize() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	store := serializedTokenStore{
		Version: serializedCacheVersion,
		Entries: make(map[string]string, len(c.entries)),
	}

	for key, entry := range c.entries {
		serialized, err := entry.serialize()
		if err != nil {
			return nil, err
		}
		store.Entries[key] = string(serialized)
	}

	return json.Marshal(store)
}

// Deserialize replaces the cache contents with the given blob. An empty blob
// clears the cache. A blob with an unknown version is ignored with a warning,
// leaving the cache at its prior state.
func (c *TokenCache) Deserialize(blob []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(blob) == 0 {
		c.entries = map[string]*AuthenticationResultEx{}
		return
	}

	var store serializedTokenStore
	if err := json.Unmarshal(blob, &store); err != nil {
		log.Printf("adal: ignoring malformed token cache blob: %v", err)
		return
	}

	if store.Version != serializedCacheVersion {
		log.Printf("adal: unexpected serialized token cache version %d", store.Version)
		return
	}

	entries := make(map[string]*AuthenticationResultEx, len(store.Entries))
	for key, serialized := range store.Entries {
		entry, err := deserializeResultEx([]byte(serialized))
		if err != nil {
			log.Printf("adal: ignoring malformed token cache entry: %v", err)
			continue
		}
		entries[key] = entry
	}

	c.entries = entries
}

// Clear removes every entry.
func (c *TokenCache) Clear() {
	args := CacheNotificationArgs{Cache: c}
	c.notifyBeforeAccess(args)
	c.notifyBeforeWrite(args)

	c.mu.Lock()
	c.entries = map[string]*AuthenticationResultEx{}
	c.hasStateChanged = true
	c.mu.Unlock()

	c.notifyAfterAccess(args)
}

// Delete removes the entry matching the given key, comparing every field
// case-insensitively. Deleting an absent entry is not an error.
func (c *TokenCache) Delete(item TokenCacheKey) {
	args := CacheNotificationArgs{
		Cache:         c,
		Resource:      item.Resource,
		ClientID:      item.ClientID,
		UniqueID:      item.UniqueID,
		DisplayableID: item.DisplayableID,
	}
	c.notifyBeforeAccess(args)
	c.notifyBeforeWrite(args)

	c.mu.Lock()
	for stringKey := range c.entries {
		key, err := parseCacheKey(stringKey)
		if err != nil {
			continue
		}

		if itemMatches(item, key) {
			delete(c.entries, stringKey)
			break
		}
	}
	c.hasStateChanged = true
	c.mu.Unlock()

	c.notifyAfterAccess(args)
}

func itemMatches(item, key TokenCacheKey) bool {
	return key.TokenSubjectType == item.TokenSubjectType &&
		strings.EqualFold(key.Authority, item.Authority) &&
		key.ResourceEquals(item.Resource) &&
		key.ClientIDEquals(item.ClientID) &&
		strings.EqualFold(key.UniqueID, item.UniqueID) &&
		key.DisplayableIDEquals(item.DisplayableID)
}

// store inserts or overwrites the entry for the given coordinates, deriving
// the user fields from the result's user info. The stored value is a clone so
// later caller-side mutation cannot reach into the cache.
func (c *TokenCache) store(
	result *AuthenticationResultEx,
	authority string,
	resource string,
	clientID string,
	subjectType TokenSubjectType,
	cs *callState,
) error {
	var uniqueID, displayableID string
	if result.Result.UserInfo != nil {
		uniqueID = result.Result.UserInfo.UniqueID
		displayableID = result.Result.UserInfo.DisplayableID
	}

	c.notifyBeforeWrite(CacheNotificationArgs{
		Cache:         c,
		Resource:      resource,
		ClientID:      clientID,
		UniqueID:      uniqueID,
		DisplayableID: displayableID,
	})

	key, err := NewTokenCacheKey(authority, resource, clientID, subjectType, uniqueID, displayableID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[key.StringKey()] = result.Clone()
	c.hasStateChanged = true
	c.mu.Unlock()

	cs.logf("token stored in cache, %d items total", c.Count())
	return nil
}

type cacheMatch struct {
	key   TokenCacheKey
	value *AuthenticationResultEx
}

// loadFromCache looks up the best usable entry for the query and applies the
// expiry policy to a clone of it. The beforeAccess/afterAccess notifications
// are the acquisition handler's responsibility; internal eviction of dead
// entries happens here.
func (c *TokenCache) loadFromCache(query CacheQueryData, cs *callState) (*AuthenticationResultEx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	match, err := c.loadSingleEntry(query)
	if err != nil {
		return nil, err
	}

	if match == nil {
		cs.logf("no matching token was found in the cache")
		return nil, nil
	}

	key := match.key
	resultEx := match.value.Clone()

	now := c.clk.Now()
	tokenNearExpiry := !resultEx.Result.ExpiresOn.After(now.Add(expirationMargin))
	extendedLifeTimeExpired := !resultEx.Result.ExtendedExpiresOn.After(now)

	switch {
	case key.Authority != query.Authority:
		// Cross-tenant hit: only the refresh token is usable.
		resultEx.Result.AccessToken = ""
		cs.logf("cross-tenant refresh token found in the cache")

	case tokenNearExpiry && !query.ExtendedLifeTimeEnabled:
		resultEx.Result.AccessToken = ""
		cs.logf("an expired or near expiry token was found in the cache")

	case !key.ResourceEquals(query.Resource):
		// A multi-resource refresh token issued for another resource: no
		// access token is valid for the requested resource yet, so synthesize
		// an already-expired result carrying only the refresh token and the
		// user identity.
		cs.logf("a multi-resource refresh token for resource '%s' will be used to acquire a token for '%s'",
			key.Resource, query.Resource)

		synthesized := &AuthenticationResultEx{
			Result:                         newAuthenticationResult("", "", time.Time{}, time.Time{}),
			RefreshToken:                   resultEx.RefreshToken,
			IsMultipleResourceRefreshToken: resultEx.IsMultipleResourceRefreshToken,
			ResourceInResponse:             resultEx.ResourceInResponse,
		}
		synthesized.Result.updateTenantAndUserInfo(
			resultEx.Result.TenantID, resultEx.Result.IDToken, resultEx.Result.UserInfo)
		resultEx = synthesized

	case !extendedLifeTimeExpired && query.ExtendedLifeTimeEnabled && tokenNearExpiry:
		// Serve the stale token under the extended-lifetime contract.
		resultEx.Result.ExtendedLifeTimeToken = true
		resultEx.Result.ExpiresOn = resultEx.Result.ExtendedExpiresOn
		cs.logf("extended lifetime is enabled, returning a stale access token under its extended expiry")

	case extendedLifeTimeExpired:
		resultEx.Result.AccessToken = ""
		cs.logf("the access token has expired its extended lifetime")

	default:
		cs.logf("%.2f minutes left until the token in the cache expires",
			resultEx.Result.ExpiresOn.Sub(now).Minutes())
	}

	if resultEx.Result.AccessToken == "" && resultEx.RefreshToken == "" {
		delete(c.entries, key.StringKey())
		c.hasStateChanged = true
		cs.logf("an unusable item was removed from the cache")
		return nil, nil
	}

	resultEx.Result.Authority = key.Authority
	cs.logf("a matching item (access token, refresh token or both) was found in the cache")
	return resultEx, nil
}

// loadSingleEntry resolves the query to at most one entry, failing on
// ambiguity. Caller holds the mutex.
func (c *TokenCache) loadSingleEntry(query CacheQueryData) (*cacheMatch, error) {
	candidates := c.queryCache(query.Authority, query.ClientID, query.SubjectType, query.UniqueID, query.DisplayableID)

	var resourceMatches []cacheMatch
	for _, candidate := range candidates {
		if candidate.key.ResourceEquals(query.Resource) {
			resourceMatches = append(resourceMatches, candidate)
		}
	}

	var result *cacheMatch
	switch len(resourceMatches) {
	case 1:
		result = &resourceMatches[0]

	case 0:
		// A refresh token flagged multi-resource works for resources other
		// than the one it was issued for.
		for _, candidate := range candidates {
			if candidate.value.IsMultipleResourceRefreshToken {
				match := candidate
				result = &match
				break
			}
		}

	default:
		return nil, ErrMultipleTokensMatched
	}

	if result == nil && query.SubjectType != SubjectTypeClient {
		// Cross-tenant fallback: any entry in the same cloud (same authority
		// host) may carry a refresh token redeemable against this tenant.
		for _, candidate := range c.queryCache("", query.ClientID, query.SubjectType, query.UniqueID, query.DisplayableID) {
			if isSameCloud(candidate.key.Authority, query.Authority) {
				match := candidate
				result = &match
				break
			}
		}
	}

	return result, nil
}

// queryCache returns the entries matching the given fields; empty strings are
// wildcards. Caller holds the mutex.
func (c *TokenCache) queryCache(
	authority string,
	clientID string,
	subjectType TokenSubjectType,
	uniqueID string,
	displayableID string,
) []cacheMatch {
	var results []cacheMatch
	for stringKey, entry := range c.entries {
		key, err := parseCacheKey(stringKey)
		if err != nil {
			log.Printf("adal: skipping malformed cache key: %v", err)
			continue
		}

		if (authority == "" || key.Authority == authority) &&
			(clientID == "" || key.ClientIDEquals(clientID)) &&
			(uniqueID == "" || key.UniqueID == uniqueID) &&
			(displayableID == "" || key.DisplayableIDEquals(displayableID)) &&
			key.TokenSubjectType == subjectType {
			results = append(results, cacheMatch{key: key, value: entry})
		}
	}

	return results
}

// isSameCloud compares authority hosts only. Whether alias equivalence from
// instance discovery should also count is an open product question; the
// literal host comparison matches the upstream behavior.
func isSameCloud(authority, other string) bool {
	u1, err1 := url.Parse(authority)
	u2, err2 := url.Parse(other)
	if err1 != nil || err2 != nil {
		return false
	}

	return u1.Host == u2.Host
}

func (c *TokenCache) notifyBeforeAccess(args CacheNotificationArgs) {
	if observer := c.currentObserver(); observer != nil {
		observer.OnBeforeAccess(args)
	}
}

func (c *TokenCache) notifyBeforeWrite(args CacheNotificationArgs) {
	if observer := c.currentObserver(); observer != nil {
		observer.OnBeforeWrite(args)
	}
}

func (c *TokenCache) notifyAfterAccess(args CacheNotificationArgs) {
	if observer := c.currentObserver(); observer != nil {
		observer.OnAfterAccess(args)
	}
}

func (c *TokenCache) currentObserver() CacheObserver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observer
}
