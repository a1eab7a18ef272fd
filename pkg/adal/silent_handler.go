// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"fmt"
)

// acquireTokenSilentHandler serves a request entirely from the cache, using
// the refresh token when the access token is no longer usable. It never
// contacts the authorization endpoint: a cache miss is a failure the caller
// resolves interactively.
type acquireTokenSilentHandler struct {
	*acquireTokenHandler
}

func newAcquireTokenSilentHandler(request requestData, userID UserIdentifier) (*acquireTokenSilentHandler, error) {
	if userID.ID == "" {
		return nil, newArgumentError("userID", "userID must be provided, use AnyUser for any user")
	}

	if request.clientKey != nil && request.clientKey.HasCredential() {
		request.subjectType = SubjectTypeUserPlusClient
	} else {
		request.subjectType = SubjectTypeUser
	}

	base, err := newAcquireTokenHandler(request)
	if err != nil {
		return nil, err
	}

	base.uniqueID = userID.UniqueID()
	base.displayableID = userID.DisplayableID()
	base.userIdentifierType = userID.Type
	base.supportADFS = true

	handler := &acquireTokenSilentHandler{acquireTokenHandler: base}
	base.flow = handler
	return handler, nil
}

func (h *acquireTokenSilentHandler) preTokenRequest(ctx context.Context) error {
	return nil
}

// sendTokenRequest is only reached when the cache could not produce a usable
// token, which for the silent flow is terminal.
func (h *acquireTokenSilentHandler) sendTokenRequest(ctx context.Context) (*AuthenticationResultEx, error) {
	if h.resultEx != nil && h.resultEx.Error != nil {
		return nil, fmt.Errorf("%w: %w", ErrSilentAcquisitionFailed, h.resultEx.Error)
	}

	h.cs.logf("no token matching the arguments was found in the cache")
	return nil, fmt.Errorf("%w: no matching token was found in the cache", ErrSilentAcquisitionFailed)
}

func (h *acquireTokenSilentHandler) postTokenRequest(ctx context.Context, resultEx *AuthenticationResultEx) error {
	return h.postTokenRequestBase(ctx, resultEx)
}
