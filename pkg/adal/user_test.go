// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUserIdentifierRejectsEmptyID(t *testing.T) {
	_, err := NewUserIdentifier("", UserIdentifierUniqueID)

	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	require.Equal(t, "id", argErr.Name)
}

func TestAnyUser(t *testing.T) {
	user := AnyUser()
	require.True(t, user.IsAnyUser())
	require.Empty(t, user.UniqueID())
	require.Empty(t, user.DisplayableID())
}

func TestUserIdentifierProjections(t *testing.T) {
	unique, err := NewUserIdentifier("uid-1", UserIdentifierUniqueID)
	require.NoError(t, err)
	require.False(t, unique.IsAnyUser())
	require.Equal(t, "uid-1", unique.UniqueID())
	require.Empty(t, unique.DisplayableID())

	optional, err := NewUserIdentifier("user@contoso.com", UserIdentifierOptionalDisplayableID)
	require.NoError(t, err)
	require.Empty(t, optional.UniqueID())
	require.Equal(t, "user@contoso.com", optional.DisplayableID())

	required, err := NewUserIdentifier("user@contoso.com", UserIdentifierRequiredDisplayableID)
	require.NoError(t, err)
	require.Empty(t, required.UniqueID())
	require.Equal(t, "user@contoso.com", required.DisplayableID())
}
