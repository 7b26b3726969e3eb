// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EventClient reads the panel's event history.
//
// Events record instance changes and boot sweeps. Terminal output is
// streamed live only and never appears here.
//
//	events, err := client.Events.List(ctx, &client.ListOptions{Instance: id, Limit: 20})
type EventClient struct {
	c *Client
}

// ListOptions filters an event listing. Zero fields are ignored.
type ListOptions struct {
	// Limit keeps only the newest N matching events. The panel caps it at 1000.
	Limit int

	// Types are event type patterns such as "instance.*" or "boot.finished".
	Types []string

	// Instance restricts events to one instance ID.
	Instance string

	Since time.Time
	Until time.Time
}

func (o *ListOptions) query() url.Values {
	params := url.Values{}
	if o == nil {
		return params
	}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	for _, t := range o.Types {
		params.Add("type", t)
	}
	if o.Instance != "" {
		params.Set("instance", o.Instance)
	}
	if !o.Since.IsZero() {
		params.Set("since", o.Since.UTC().Format(time.RFC3339))
	}
	if !o.Until.IsZero() {
		params.Set("until", o.Until.UTC().Format(time.RFC3339))
	}
	return params
}

// List returns matching events, oldest first.
func (e *EventClient) List(ctx context.Context, opts *ListOptions) ([]Event, error) {
	path := "/api/v1/events"
	if params := opts.query(); len(params) > 0 {
		path += "?" + params.Encode()
	}

	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return events, nil
}
