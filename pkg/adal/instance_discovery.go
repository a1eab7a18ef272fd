// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/azure/adtoken/pkg/httputil"
)

const defaultTrustedAuthority = "login.microsoftonline.com"

// trustedAuthorities are hosts whose discovery endpoint may be queried
// directly; any other authority host is validated through the default
// trusted authority.
var trustedAuthorities = map[string]bool{
	"login.windows.net":            true, // Microsoft Azure Worldwide - legacy
	"login.chinacloudapi.cn":       true, // Microsoft Azure China
	"login.microsoftonline.de":     true, // Microsoft Azure Germany
	"login-us.microsoftonline.com": true, // Microsoft Azure US Government - legacy
	"login.microsoftonline.us":     true, // Microsoft Azure US Government
	"login.microsoftonline.com":    true, // Microsoft Azure Worldwide
}

// InstanceDiscoveryMetadata maps an authority host to its preferred hosts and
// cloud aliases. Entries are immutable once inserted; instance metadata is
// expected to be stable for the lifetime of the process.
type InstanceDiscoveryMetadata struct {
	PreferredNetwork string   `json:"preferred_network"`
	PreferredCache   string   `json:"preferred_cache"`
	Aliases          []string `json:"aliases"`
}

type instanceDiscoveryResponse struct {
	TenantDiscoveryEndpoint string                      `json:"tenant_discovery_endpoint"`
	Metadata                []InstanceDiscoveryMetadata `json:"metadata"`
}

// InstanceDiscovery caches instance metadata by authority host. The table is
// append-mostly: concurrent discovery of the same host de-duplicates on
// first-writer-wins.
type InstanceDiscovery struct {
	mu      sync.Mutex
	entries map[string]InstanceDiscoveryMetadata

	transport httputil.Client
}

// defaultInstanceDiscovery is the process-wide table shared by resolvers that
// do not supply their own.
var defaultInstanceDiscovery = NewInstanceDiscovery(nil)

func NewInstanceDiscovery(transport httputil.Client) *InstanceDiscovery {
	if transport == nil {
		transport = httputil.NewClient()
	}

	return &InstanceDiscovery{
		entries:   map[string]InstanceDiscoveryMetadata{},
		transport: transport,
	}
}

// IsTrusted reports whether the host is in the trusted authority list.
func IsTrusted(authorityHost string) bool {
	return trustedAuthorities[authorityHost]
}

func formatAuthorizeEndpoint(host, tenant string) string {
	return fmt.Sprintf("https://%s/%s/oauth2/authorize", host, tenant)
}

// MetadataEntry returns the metadata for the authority's host, running a
// discovery round trip on a cache miss. With validation disabled a discovery
// failure is swallowed and the original host is used as its own metadata.
func (d *InstanceDiscovery) MetadataEntry(
	ctx context.Context,
	authority *url.URL,
	validateAuthority bool,
	cs *callState,
) (InstanceDiscoveryMetadata, error) {
	if authority == nil {
		return InstanceDiscoveryMetadata{}, newArgumentError("authority", "authority cannot be nil")
	}

	if entry, ok := d.lookup(authority.Host); ok {
		return entry, nil
	}

	if err := d.discover(ctx, authority, validateAuthority, cs); err != nil {
		return InstanceDiscoveryMetadata{}, err
	}

	entry, _ := d.lookup(authority.Host)
	return entry, nil
}

// AddMetadataEntry registers a host as its own metadata, if absent.
func (d *InstanceDiscovery) AddMetadataEntry(host string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries[host]; !ok {
		d.entries[host] = InstanceDiscoveryMetadata{
			PreferredNetwork: host,
			PreferredCache:   host,
		}
	}
}

func (d *InstanceDiscovery) lookup(host string) (InstanceDiscoveryMetadata, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[host]
	return entry, ok
}

// discover queries the trusted discovery endpoint and populates the table
// with every alias the response lists, plus the queried host itself.
func (d *InstanceDiscovery) discover(
	ctx context.Context,
	authority *url.URL,
	validateAuthority bool,
	cs *callState,
) error {
	discoveryHost := defaultTrustedAuthority
	if IsTrusted(authority.Host) {
		discoveryHost = authority.Host
	}

	query := url.Values{}
	query.Set("api-version", "1.1")
	query.Set("authorization_endpoint", formatAuthorizeEndpoint(authority.Host, firstPathSegment(authority)))

	endpoint := fmt.Sprintf("https://%s/common/discovery/instance?%s", discoveryHost, query.Encode())

	client := newWireClient(endpoint, d.transport, cs)
	var response instanceDiscoveryResponse
	err := client.getResponse(ctx, nil, &response)
	if err == nil && validateAuthority && response.TenantDiscoveryEndpoint == "" {
		return &AuthorityValidationError{NotInValidList: true}
	}

	if err != nil {
		var serviceErr *ServiceError
		var transportErr *TransportError
		if !errors.As(err, &serviceErr) && !errors.As(err, &transportErr) {
			return err
		}

		if validateAuthority {
			if serviceErr != nil && serviceErr.Code == "invalid_instance" {
				return &AuthorityValidationError{NotInValidList: true, innerErr: err}
			}

			return &AuthorityValidationError{innerErr: err}
		}

		// Validation is off: proceed with the original host.
		cs.logf("instance discovery failed, continuing without validation")
		cs.logPii("instance discovery failed: %v", err)
	}

	d.mu.Lock()
	for _, entry := range response.Metadata {
		for _, alias := range entry.Aliases {
			if _, ok := d.entries[alias]; !ok {
				d.entries[alias] = entry
			}
		}
	}
	d.mu.Unlock()

	d.AddMetadataEntry(authority.Host)
	return nil
}
