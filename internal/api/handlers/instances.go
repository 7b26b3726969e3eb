// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/gamepanel/internal/instance"
)

// InstanceHandler handles instance API requests.
type InstanceHandler struct {
	mgr instance.Manager
}

// NewInstanceHandler creates a new instance handler.
func NewInstanceHandler(mgr instance.Manager) *InstanceHandler {
	return &InstanceHandler{mgr: mgr}
}

// List returns all instances in stored order.
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.mgr.List())
}

// Get returns one instance.
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.mgr.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteInstanceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inst)
}

// Create adds an instance from the request body.
func (h *InstanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec instance.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body: "+err.Error())
		return
	}

	inst, err := h.mgr.Create(r.Context(), rec)
	if err != nil {
		WriteInstanceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, inst)
}

// Update replaces an instance's configuration.
func (h *InstanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var rec instance.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body: "+err.Error())
		return
	}

	inst, err := h.mgr.Update(r.Context(), mux.Vars(r)["id"], rec)
	if err != nil {
		WriteInstanceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inst)
}

// Delete removes an instance, stopping it first if it is running.
func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	// Background context: the stop must finish even if the client goes away.
	if err := h.mgr.Delete(context.Background(), id); err != nil {
		WriteInstanceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

// Start launches an instance and returns it once running.
func (h *InstanceHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.mgr.Start)
}

// Stop sends the stop command. The instance reports stopping until the
// process exits or the watchdog closes it.
func (h *InstanceHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.mgr.Stop)
}

// Restart stops a running instance and starts it again.
func (h *InstanceHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.mgr.Restart)
}

// CloseTerminal force-closes the instance's terminal session.
func (h *InstanceHandler) CloseTerminal(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.mgr.CloseTerminal)
}

func (h *InstanceHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	id := mux.Vars(r)["id"]

	// Background context: the process outlives the HTTP request.
	if err := op(context.Background(), id); err != nil {
		WriteInstanceError(w, err)
		return
	}

	inst, err := h.mgr.Get(id)
	if err != nil {
		WriteInstanceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inst)
}

// inputRequest is the body of an input request. Line appends the terminal
// line ending.
type inputRequest struct {
	Data string `json:"data"`
	Line bool   `json:"line"`
}

// Input writes raw bytes to a running instance's terminal.
func (h *InstanceHandler) Input(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body: "+err.Error())
		return
	}
	data := req.Data
	if req.Line {
		data += "\r"
	}

	if err := h.mgr.SendInput(r.Context(), mux.Vars(r)["id"], []byte(data)); err != nil {
		WriteInstanceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"bytes": len(data)})
}
