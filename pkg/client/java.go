// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// JavaClient lists Java runtimes.
type JavaClient struct {
	c *Client
}

// List returns the runtimes the panel knows about, sorted by version.
func (j *JavaClient) List(ctx context.Context) ([]JavaEnvironment, error) {
	data, err := j.c.get(ctx, "/api/v1/java")
	if err != nil {
		return nil, err
	}

	var envs []JavaEnvironment
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("failed to parse java environments: %w", err)
	}
	return envs, nil
}

// ServerVersion reports the panel's build version and the API version it
// answered with.
func (c *Client) ServerVersion(ctx context.Context) (build, api string, err error) {
	data, err := c.get(ctx, "/api/v1/version")
	if err != nil {
		return "", "", err
	}

	var resp struct {
		Version    string `json:"version"`
		APIVersion string `json:"api_version"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", "", fmt.Errorf("failed to parse version: %w", err)
	}
	return resp.Version, resp.APIVersion, nil
}
