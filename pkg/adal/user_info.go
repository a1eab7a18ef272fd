// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import "time"

// UserInfo describes the user a token was issued for, derived from the id
// token embedded in the token response.
type UserInfo struct {
	UniqueID          string     `json:"uniqueId,omitempty"`
	DisplayableID     string     `json:"displayableId,omitempty"`
	GivenName         string     `json:"givenName,omitempty"`
	FamilyName        string     `json:"familyName,omitempty"`
	IdentityProvider  string     `json:"identityProvider,omitempty"`
	PasswordExpiresOn *time.Time `json:"passwordExpiresOn,omitempty"`
	PasswordChangeURL string     `json:"passwordChangeUrl,omitempty"`
}
