// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wingedpig/gamepanel/internal/instance"
)

// terminalMessage is a message from the terminal frontend.
type terminalMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// TerminalHandler attaches WebSocket clients to instance terminals.
type TerminalHandler struct {
	mgr   instance.Manager
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{} // Active WebSocket connections
}

// NewTerminalHandler creates a new terminal handler.
func NewTerminalHandler(mgr instance.Manager) *TerminalHandler {
	return &TerminalHandler{
		mgr:   mgr,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *TerminalHandler) trackConn(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *TerminalHandler) untrackConn(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// Shutdown closes all active WebSocket connections to allow graceful server shutdown.
func (h *TerminalHandler) Shutdown() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	if len(conns) > 0 {
		log.Printf("Terminal handler: closing %d active WebSocket connections", len(conns))
	}

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// outputRelay forwards one instance's terminal output to a channel.
type outputRelay struct {
	id string
	ch chan []byte
}

func (o *outputRelay) InstanceCreated(instance.Instance) {}
func (o *outputRelay) InstanceUpdated(instance.Instance) {}
func (o *outputRelay) InstanceDeleted(string) {}
func (o *outputRelay) StatusChanged(string, instance.Status) {}

func (o *outputRelay) Output(id string, data []byte) {
	if id != o.id {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case o.ch <- buf:
	default:
		// Drop if the client can't keep up
	}
}

// WebSocket streams an instance's terminal output to the client and
// forwards input and resize messages back to the instance.
func (h *TerminalHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.mgr.Get(id); err != nil {
		WriteInstanceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Terminal WebSocket: upgrade failed: %v", err)
		return
	}
	h.trackConn(conn)
	defer func() {
		h.untrackConn(conn)
		conn.Close()
	}()

	relay := &outputRelay{id: id, ch: make(chan []byte, 256)}
	unsubscribe := h.mgr.Subscribe(relay)
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// gorilla/websocket allows a single concurrent writer
	var writeMu sync.Mutex
	write := func(data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readLoop(conn, id, write)
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	var joiner instance.RuneJoiner
	for {
		select {
		case data := <-relay.ch:
			text := joiner.Push(data)
			if len(text) == 0 {
				continue
			}
			if err := write([]byte(strings.ToValidUTF8(string(text), ""))); err != nil {
				return
			}
		case <-pingTicker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
			writeMu.Unlock()
			if err != nil {
				log.Printf("Terminal WebSocket: ping failed for %s: %v", id, err)
				return
			}
		case <-done:
			return
		}
	}
}

func (h *TerminalHandler) readLoop(conn *websocket.Conn, id string, write func([]byte) error) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg terminalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("Terminal WebSocket: bad message for %s: %v", id, err)
			continue
		}

		switch msg.Type {
		case "input":
			err = h.mgr.SendInput(context.Background(), id, []byte(msg.Data))
		case "resize":
			if msg.Cols <= 0 || msg.Rows <= 0 {
				continue
			}
			err = h.mgr.Resize(context.Background(), id, msg.Cols, msg.Rows)
			if instance.IsKind(err, instance.KindConcurrency) {
				// Resizing a stopped instance is harmless
				err = nil
			}
		default:
			log.Printf("Terminal WebSocket: unknown message type %q for %s", msg.Type, id)
			continue
		}
		if err != nil {
			if werr := write([]byte("Error: " + err.Error() + "\r\n")); werr != nil {
				return
			}
		}
	}
}
