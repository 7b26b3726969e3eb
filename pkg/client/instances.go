// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// InstanceClient manages game-server instances.
//
// Access this client through [Client.Instances]:
//
//	inst, err := client.Instances.Start(ctx, id)
type InstanceClient struct {
	c *Client
}

func instancePath(id string) string {
	return "/api/v1/instances/" + url.PathEscape(id)
}

// List returns all instances in the order they were created.
func (s *InstanceClient) List(ctx context.Context) ([]Instance, error) {
	data, err := s.c.get(ctx, "/api/v1/instances")
	if err != nil {
		return nil, err
	}

	var instances []Instance
	if err := json.Unmarshal(data, &instances); err != nil {
		return nil, fmt.Errorf("failed to parse instances: %w", err)
	}
	return instances, nil
}

// Get returns one instance.
func (s *InstanceClient) Get(ctx context.Context, id string) (*Instance, error) {
	data, err := s.c.get(ctx, instancePath(id))
	if err != nil {
		return nil, err
	}
	return parseInstance(data)
}

// Create adds an instance. The panel assigns the ID.
func (s *InstanceClient) Create(ctx context.Context, cfg InstanceConfig) (*Instance, error) {
	data, err := s.c.postJSON(ctx, "/api/v1/instances", cfg)
	if err != nil {
		return nil, err
	}
	return parseInstance(data)
}

// Update replaces an instance's configuration. The panel refuses while
// the instance is starting or stopping.
func (s *InstanceClient) Update(ctx context.Context, id string, cfg InstanceConfig) (*Instance, error) {
	data, err := s.c.putJSON(ctx, instancePath(id), cfg)
	if err != nil {
		return nil, err
	}
	return parseInstance(data)
}

// Delete removes an instance, stopping it first if needed.
func (s *InstanceClient) Delete(ctx context.Context, id string) error {
	_, err := s.c.delete(ctx, instancePath(id))
	return err
}

// Start launches an instance and returns it once it is running.
func (s *InstanceClient) Start(ctx context.Context, id string) (*Instance, error) {
	return s.action(ctx, id, "start")
}

// Stop sends the instance's stop command. The returned instance is
// usually still stopping.
func (s *InstanceClient) Stop(ctx context.Context, id string) (*Instance, error) {
	return s.action(ctx, id, "stop")
}

// Restart stops a running instance and starts it again.
func (s *InstanceClient) Restart(ctx context.Context, id string) (*Instance, error) {
	return s.action(ctx, id, "restart")
}

// CloseTerminal force-closes the instance's terminal session.
func (s *InstanceClient) CloseTerminal(ctx context.Context, id string) (*Instance, error) {
	return s.action(ctx, id, "terminal/close")
}

// Input writes data to a running instance's terminal. With line set, the
// panel appends the terminal line ending. It returns the number of bytes
// written.
func (s *InstanceClient) Input(ctx context.Context, id, text string, line bool) (int, error) {
	body := map[string]interface{}{"data": text, "line": line}
	data, err := s.c.postJSON(ctx, instancePath(id)+"/input", body)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Bytes int `json:"bytes"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Bytes, nil
}

func (s *InstanceClient) action(ctx context.Context, id, action string) (*Instance, error) {
	data, err := s.c.post(ctx, instancePath(id)+"/"+action)
	if err != nil {
		return nil, err
	}
	return parseInstance(data)
}

func parseInstance(data json.RawMessage) (*Instance, error) {
	var inst Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("failed to parse instance: %w", err)
	}
	return &inst, nil
}
