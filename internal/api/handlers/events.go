// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/gamepanel/internal/events"
)

// Websocket keepalive shared by the event and terminal streams.
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// maxHistoryLimit caps a single history request.
const maxHistoryLimit = 1000

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler handles event-related API requests.
type EventHandler struct {
	bus events.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus events.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

// parseEventFilter reads type, instance, limit, since and until from the
// query. Malformed values are rejected rather than ignored.
func parseEventFilter(query url.Values) (events.EventFilter, error) {
	filter := events.EventFilter{
		Types:    query["type"],
		Instance: query.Get("instance"),
	}
	for _, t := range filter.Types {
		if _, err := events.Compile(t); err != nil {
			return filter, fmt.Errorf("invalid type pattern %q", t)
		}
	}

	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("invalid limit %q", s)
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		filter.Limit = n
	}

	for name, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		s := query.Get(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("invalid %s %q: want RFC 3339", name, s)
		}
		*dst = t
	}
	return filter, nil
}

// History returns retained events, oldest first. Terminal output is never
// retained.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	eventList, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, eventList)
}

// WebSocket streams live events as JSON. The query takes a single pattern
// (default "*"), an optional instance ID, and replay=N to send the last N
// retained events before going live.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pattern := query.Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	if _, err := events.Compile(pattern); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	instanceID := query.Get("instance")

	replay := 0
	if s := query.Get("replay"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, fmt.Sprintf("invalid replay %q", s))
			return
		}
		replay = min(n, maxHistoryLimit)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Event WebSocket: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	eventCh := make(chan events.Event, 100)
	done := make(chan struct{})

	// Subscribe before reading history so nothing falls between the two.
	subID, err := h.bus.SubscribeAsync(pattern, func(_ context.Context, event events.Event) error {
		if instanceID != "" && event.Instance != instanceID {
			return nil
		}
		select {
		case eventCh <- event:
		case <-done:
		default:
		}
		return nil
	}, 100)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer h.bus.Unsubscribe(subID)

	write := func(v interface{}) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	sent := make(map[string]bool)
	if replay > 0 {
		backlog, err := h.bus.History(events.EventFilter{
			Types:    []string{pattern},
			Instance: instanceID,
			Limit:    replay,
		})
		if err == nil {
			for _, event := range backlog {
				sent[event.ID] = true
				if err := write(event); err != nil {
					return
				}
			}
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	// Read goroutine (for close detection)
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-eventCh:
			if sent[event.ID] {
				delete(sent, event.ID)
				continue
			}
			if err := write(event); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
