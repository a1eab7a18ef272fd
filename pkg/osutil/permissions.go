// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package osutil

import "io/fs"

const (
	// PermissionDirectory is the permission set applied to directories this
	// tool creates.
	PermissionDirectory fs.FileMode = 0755

	// PermissionDirectoryOwnerOnly is the permission set applied to
	// directories holding cached credentials.
	PermissionDirectoryOwnerOnly fs.FileMode = 0700

	// PermissionFile is the permission set applied to ordinary files.
	PermissionFile fs.FileMode = 0644

	// PermissionFileOwnerOnly is the permission set applied to files holding
	// cached credentials.
	PermissionFileOwnerOnly fs.FileMode = 0600

	// PermissionMaskDirectoryExecute selects the owner execute bit of a
	// directory's permissions.
	PermissionMaskDirectoryExecute fs.FileMode = 0100
)
