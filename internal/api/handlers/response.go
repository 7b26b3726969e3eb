// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wingedpig/gamepanel/internal/instance"
)

// Response is the standard API response wrapper.
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
	Meta  *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains response metadata.
type MetaInfo struct {
	Timestamp time.Time `json:"timestamp"`
}

// Common error codes
const (
	ErrNotFound      = "NOT_FOUND"
	ErrBadRequest    = "BAD_REQUEST"
	ErrInternalError = "INTERNAL_ERROR"
	ErrConflict      = "CONFLICT"
	ErrUnavailable   = "UNAVAILABLE"
)

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	resp.Meta = &MetaInfo{Timestamp: time.Now().UTC()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeResponse(w, status, Response{Data: data})
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWithDetails(w, status, code, message, nil)
}

// WriteErrorWithDetails writes an error response with details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	writeResponse(w, status, Response{Error: &ErrorInfo{Code: code, Message: message, Details: details}})
}

var kindStatus = map[instance.Kind]struct {
	status int
	code   string
}{
	instance.KindValidation:  {http.StatusBadRequest, ErrBadRequest},
	instance.KindConcurrency: {http.StatusConflict, ErrConflict},
	instance.KindNotFound:    {http.StatusNotFound, ErrNotFound},
	instance.KindResource:    {http.StatusServiceUnavailable, ErrUnavailable},
}

// WriteInstanceError maps an instance error to its HTTP status and code.
// The failed operation and instance ID are returned as details.
func WriteInstanceError(w http.ResponseWriter, err error) {
	m, ok := kindStatus[instance.KindOf(err)]
	if !ok {
		m.status, m.code = http.StatusInternalServerError, ErrInternalError
	}

	var details map[string]interface{}
	var ierr *instance.Error
	if errors.As(err, &ierr) {
		details = map[string]interface{}{"kind": ierr.Kind.String()}
		if ierr.Op != "" {
			details["op"] = ierr.Op
		}
		if ierr.ID != "" {
			details["id"] = ierr.ID
		}
	}
	WriteErrorWithDetails(w, m.status, m.code, err.Error(), details)
}
