// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

// UserIdentifierType indicates how a UserIdentifier's value constrains a token
// acquisition.
type UserIdentifierType int

const (
	// UserIdentifierUniqueID guarantees the operation returns a token issued
	// for the user with the matching unique (object) id, or fails.
	UserIdentifierUniqueID UserIdentifierType = iota

	// UserIdentifierOptionalDisplayableID restricts cache matches to the
	// given displayable id and injects it as a login hint, but the end user
	// may sign in as someone else; the returned token is accepted either way.
	UserIdentifierOptionalDisplayableID

	// UserIdentifierRequiredDisplayableID guarantees the operation returns a
	// token issued for the user with the matching displayable id (UPN or
	// email), or fails.
	UserIdentifierRequiredDisplayableID
)

const anyUserID = "AnyUser"

// UserIdentifier identifies the user a token acquisition is for.
type UserIdentifier struct {
	ID   string
	Type UserIdentifierType
}

// AnyUser matches whichever single user the cache holds, and places no
// constraint on interactive sign-in.
func AnyUser() UserIdentifier {
	return UserIdentifier{ID: anyUserID, Type: UserIdentifierOptionalDisplayableID}
}

func NewUserIdentifier(id string, idType UserIdentifierType) (UserIdentifier, error) {
	if id == "" {
		return UserIdentifier{}, newArgumentError("id", "id cannot be empty")
	}

	return UserIdentifier{ID: id, Type: idType}, nil
}

func (u UserIdentifier) IsAnyUser() bool {
	any := AnyUser()
	return u.Type == any.Type && u.ID == any.ID
}

// UniqueID returns the identifier value when it names a unique id, else "".
func (u UserIdentifier) UniqueID() string {
	if !u.IsAnyUser() && u.Type == UserIdentifierUniqueID {
		return u.ID
	}

	return ""
}

// DisplayableID returns the identifier value when it names a displayable id,
// else "".
func (u UserIdentifier) DisplayableID() string {
	if !u.IsAnyUser() &&
		(u.Type == UserIdentifierOptionalDisplayableID || u.Type == UserIdentifierRequiredDisplayableID) {
		return u.ID
	}

	return ""
}
