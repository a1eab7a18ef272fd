// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// AuthorityType classifies an authority URL by which protocol dialect its
// first path segment implies.
type AuthorityType int

const (
	AuthorityTypeAAD AuthorityType = iota
	AuthorityTypeADFS
)

const tenantlessTenantName = "common"

// Authenticator resolves an authority URL into the endpoints token requests
// are sent to. Endpoint resolution happens lazily, once per authority value:
// changing the authority or learning a concrete tenant for a tenantless
// authority drives the resolver back to its unresolved state.
type Authenticator struct {
	mu sync.Mutex

	authority         string
	authorityType     AuthorityType
	validateAuthority bool

	resolved bool

	authorizationURI   string
	deviceCodeURI      string
	tokenURI           string
	userRealmURIPrefix string
	isTenantless       bool
	// selfSignedJwtAudience is the audience client-assertion JWTs must carry;
	// the directory expects its own token endpoint there.
	selfSignedJwtAudience string

	discovery *InstanceDiscovery
}

// DetectAuthorityType validates the authority URL shape and classifies it.
func DetectAuthorityType(authority string) (AuthorityType, error) {
	if authority == "" {
		return 0, newArgumentError("authority", "authority cannot be empty")
	}

	u, err := url.Parse(authority)
	if err != nil {
		return 0, newArgumentError("authority", "authority is not a valid URL: %v", err)
	}

	if u.Scheme != "https" {
		return 0, newArgumentError("authority", "authority must use https, not %q", u.Scheme)
	}

	firstPath := firstPathSegment(u)
	if firstPath == "" {
		return 0, newArgumentError("authority", "the authority path is invalid")
	}

	if strings.HasPrefix(strings.ToLower(firstPath), "adfs") {
		return AuthorityTypeADFS, nil
	}

	return AuthorityTypeAAD, nil
}

func firstPathSegment(u *url.URL) string {
	path := strings.TrimPrefix(u.Path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}

	return path
}

func ensureTrailingSlash(uri string) string {
	if uri != "" && !strings.HasSuffix(uri, "/") {
		uri += "/"
	}

	return uri
}

// NewAuthenticator constructs a resolver for the given authority. Authority
// validation is only supported for AAD authorities.
func NewAuthenticator(authority string, validateAuthority bool, discovery *InstanceDiscovery) (*Authenticator, error) {
	authorityType, err := DetectAuthorityType(authority)
	if err != nil {
		return nil, err
	}

	if authorityType != AuthorityTypeAAD && validateAuthority {
		return nil, newArgumentError("validateAuthority",
			"authority validation is not supported for authority type %d", authorityType)
	}

	if discovery == nil {
		discovery = defaultInstanceDiscovery
	}

	return &Authenticator{
		authority:         ensureTrailingSlash(authority),
		authorityType:     authorityType,
		validateAuthority: validateAuthority,
		discovery:         discovery,
	}, nil
}

func (a *Authenticator) Authority() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authority
}

func (a *Authenticator) AuthorityType() AuthorityType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authorityType
}

func (a *Authenticator) ValidateAuthority() bool {
	return a.validateAuthority
}

func (a *Authenticator) AuthorityHost() string {
	u, err := url.Parse(a.Authority())
	if err != nil {
		return ""
	}

	return u.Host
}

func (a *Authenticator) AuthorizationURI() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authorizationURI
}

func (a *Authenticator) DeviceCodeURI() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deviceCodeURI
}

func (a *Authenticator) TokenURI() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenURI
}

func (a *Authenticator) UserRealmURIPrefix() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userRealmURIPrefix
}

func (a *Authenticator) IsTenantless() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isTenantless
}

func (a *Authenticator) SelfSignedJwtAudience() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selfSignedJwtAudience
}

// UpdateAuthority re-points the resolver at a new authority (e.g. after a
// cloud redirect) and resolves its endpoints immediately.
func (a *Authenticator) UpdateAuthority(ctx context.Context, authority string, cs *callState) error {
	authorityType, err := DetectAuthorityType(authority)
	if err != nil {
		return err
	}

	if authorityType != AuthorityTypeAAD && a.validateAuthority {
		return newArgumentError("authority",
			"authority validation is not supported for authority type %d", authorityType)
	}

	a.mu.Lock()
	a.authority = ensureTrailingSlash(authority)
	a.authorityType = authorityType
	a.resolved = false
	a.mu.Unlock()

	return a.ResolveEndpoints(ctx, cs)
}

// UpdateTenantID substitutes a concrete tenant, typically learned from a
// token response, into a tenantless authority and invalidates the resolved
// endpoints so they are recomputed on next use.
func (a *Authenticator) UpdateTenantID(tenantID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isTenantless || tenantID == "" {
		return
	}

	replaced := strings.Replace(a.authority, tenantlessTenantName, tenantID, 1)
	if replaced == a.authority {
		// Authority may carry a differently-cased "Common" segment.
		lower := strings.ToLower(a.authority)
		if i := strings.Index(lower, tenantlessTenantName); i >= 0 {
			replaced = a.authority[:i] + tenantID + a.authority[i+len(tenantlessTenantName):]
		}
	}

	a.authority = replaced
	a.resolved = false
}

// ResolveEndpoints derives the authorization, device-code, token and user
// realm endpoints from the authority. Idempotent until the authority changes.
func (a *Authenticator) ResolveEndpoints(ctx context.Context, cs *callState) error {
	a.mu.Lock()
	if a.resolved {
		a.mu.Unlock()
		return nil
	}

	authority := a.authority
	authorityType := a.authorityType
	validate := a.validateAuthority
	a.mu.Unlock()

	u, err := url.Parse(authority)
	if err != nil {
		return newArgumentError("authority", "authority is not a valid URL: %v", err)
	}

	host := u.Host
	tenant := firstPathSegment(u)

	if authorityType == AuthorityTypeAAD {
		metadata, err := a.discovery.MetadataEntry(ctx, u, validate, cs)
		if err != nil {
			return err
		}

		// Endpoints use the preferred network host; the authority itself
		// keeps its original host for cache identity.
		host = metadata.PreferredNetwork
	} else {
		a.discovery.AddMetadataEntry(host)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.authorizationURI = formatAuthorizeEndpoint(host, tenant)
	a.deviceCodeURI = fmt.Sprintf("https://%s/%s/oauth2/devicecode", host, tenant)
	a.tokenURI = fmt.Sprintf("https://%s/%s/oauth2/token", host, tenant)
	a.userRealmURIPrefix = fmt.Sprintf("https://%s/common/userrealm/", host)
	a.isTenantless = strings.EqualFold(tenant, tenantlessTenantName)
	a.selfSignedJwtAudience = a.tokenURI
	a.resolved = true

	cs.logf("authority endpoints resolved")
	return nil
}
