// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the gamepanel API.
//
// Create a client pointing at a running panel:
//
//	c := client.New("http://localhost:23333")
//
// Resources are reached through sub-clients:
//
//	instances, err := c.Instances.List(ctx)
//	inst, err := c.Instances.Start(ctx, id)
//	runtimes, err := c.Java.List(ctx)
//
// API errors are returned as *APIError values carrying the server's error
// code and message:
//
//	if apiErr, ok := err.(*client.APIError); ok && apiErr.Code == client.CodeConflict {
//	    // instance is busy
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a gamepanel API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Instances manages game-server instances.
	Instances *InstanceClient

	// Java lists the Java runtimes known to the panel.
	Java *JavaClient

	// Events reads the panel's event history.
	Events *EventClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a client for the panel at baseURL. It uses the latest API
// version and a 30-second timeout unless options say otherwise.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Instances = &InstanceClient{c: c}
	c.Java = &JavaClient{c: c}
	c.Events = &EventClient{c: c}

	return c
}

// WithVersion pins the API version sent with every request.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests. Starting an
// instance waits for it to come up, so keep this above the panel's
// ready timeout plus settle delay.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError is an error response from the panel. Code is one of the Code
// constants.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// putJSON performs a PUT request with a JSON body.
func (c *Client) putJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, bytes.NewReader(data))
}

// delete performs a DELETE request to the given path.
func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Try to parse as standard envelope
	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// If we can't parse it and status is bad, return error
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		// Return raw body for non-envelope responses
		return respBody, nil
	}

	// Check for error in envelope
	if apiResp.Error != nil {
		return nil, apiResp.Error
	}

	// Check for error embedded in data (some endpoints do this)
	if resp.StatusCode >= 400 {
		var errData APIError
		if err := json.Unmarshal(apiResp.Data, &errData); err == nil && errData.Code != "" {
			return nil, &errData
		}
	}

	return apiResp.Data, nil
}
