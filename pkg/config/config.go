// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package config stores user-wide settings for the token client: the
// authority, client registration, and cache location in use.
//
// Configuration data is stored in the user's home directory @ ~/.adtoken/config.json
package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config is a tree of settings addressed by dotted paths, e.g.
// "client.redirectUri".
type Config interface {
	Raw() map[string]any
	Get(path string) (any, bool)
	GetString(path string) (string, bool)
	GetSection(path string, section any) (bool, error)
	Set(path string, value any) error
	Unset(path string) error
	IsEmpty() bool
}

// NewEmptyConfig creates an empty configuration object.
func NewEmptyConfig() Config {
	return NewConfig(nil)
}

// NewConfig creates a configuration object populated with an initial set of
// keys and values.
func NewConfig(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}

	return &config{
		data: data,
	}
}

type config struct {
	data map[string]any
}

func (c *config) IsEmpty() bool {
	return len(c.data) == 0
}

func (c *config) Raw() map[string]any {
	return c.data
}

// Set stores a value at the specified location, creating intermediate nodes
// as needed.
func (c *config) Set(path string, value any) error {
	currentNode := c.data
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if i == len(parts)-1 {
			currentNode[part] = value
			return nil
		}

		node := map[string]any{}
		if existing, ok := currentNode[part]; ok && existing != nil {
			node, ok = existing.(map[string]any)
			if !ok {
				return fmt.Errorf("failed converting node at path '%s' to map", part)
			}
		}

		currentNode[part] = node
		currentNode = node
	}

	return nil
}

// Unset removes the value stored at the specified path. Removing an object
// node removes everything below it; a missing path is a no-op.
func (c *config) Unset(path string) error {
	currentNode := c.data
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if i == len(parts)-1 {
			delete(currentNode, part)
			return nil
		}

		existing, ok := currentNode[part]
		if !ok || existing == nil {
			return nil
		}

		node, ok := existing.(map[string]any)
		if !ok {
			return fmt.Errorf("failed converting node at path '%s' to map", part)
		}

		currentNode = node
	}

	return nil
}

// Get returns the value stored at the specified location and whether it
// exists.
func (c *config) Get(path string) (any, bool) {
	currentNode := c.data
	parts := strings.Split(path, ".")
	for i, part := range parts {
		value, ok := currentNode[part]
		if !ok {
			return nil, false
		}

		if i == len(parts)-1 {
			return value, true
		}

		currentNode, ok = value.(map[string]any)
		if !ok {
			return nil, false
		}
	}

	return nil, false
}

func (c *config) GetString(path string) (string, bool) {
	value, ok := c.Get(path)
	if !ok {
		return "", false
	}

	str, ok := value.(string)
	return str, ok
}

// GetSection unmarshals the node at path into section, which must be a
// pointer to a struct or map.
func (c *config) GetSection(path string, section any) (bool, error) {
	sectionConfig, ok := c.Get(path)
	if !ok {
		return false, nil
	}

	jsonBytes, err := json.Marshal(sectionConfig)
	if err != nil {
		return true, fmt.Errorf("marshalling section config: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, section); err != nil {
		return true, fmt.Errorf("unmarshalling section config: %w", err)
	}

	return true, nil
}
