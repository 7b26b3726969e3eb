// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/gamepanel/internal/java"
)

// JavaLister lists the known Java runtimes.
type JavaLister interface {
	ListEnvironments() []java.Environment
}

// JavaHandler serves the Java runtime listing.
type JavaHandler struct {
	java JavaLister
}

// NewJavaHandler creates a new Java handler.
func NewJavaHandler(java JavaLister) *JavaHandler {
	return &JavaHandler{java: java}
}

// List returns every known runtime.
func (h *JavaHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.java == nil {
		WriteJSON(w, http.StatusOK, []java.Environment{})
		return
	}
	WriteJSON(w, http.StatusOK, h.java.ListEnvironments())
}
