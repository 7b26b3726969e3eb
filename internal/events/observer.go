// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"log"
	"sync"

	"github.com/wingedpig/gamepanel/internal/instance"
)

// InstanceObserver publishes instance lifecycle notifications to a bus.
type InstanceObserver struct {
	bus EventBus

	mu      sync.Mutex
	joiners map[string]*instance.RuneJoiner // per-instance output carry
}

// NewInstanceObserver returns an observer that publishes to bus.
func NewInstanceObserver(bus EventBus) *InstanceObserver {
	return &InstanceObserver{
		bus:     bus,
		joiners: make(map[string]*instance.RuneJoiner),
	}
}

var _ instance.Observer = (*InstanceObserver)(nil)

func (o *InstanceObserver) publish(eventType, id string, payload map[string]interface{}) {
	err := o.bus.Publish(context.Background(), Event{
		Type:     eventType,
		Instance: id,
		Payload:  payload,
	})
	if err != nil && err != ErrBusClosed {
		log.Printf("EventBus: publish %s for %s: %v", eventType, id, err)
	}
}

func (o *InstanceObserver) InstanceCreated(inst instance.Instance) {
	o.publish(EventInstanceCreated, inst.ID, map[string]interface{}{"instance": inst})
}

func (o *InstanceObserver) InstanceUpdated(inst instance.Instance) {
	o.publish(EventInstanceUpdated, inst.ID, map[string]interface{}{"instance": inst})
}

func (o *InstanceObserver) InstanceDeleted(id string) {
	o.mu.Lock()
	delete(o.joiners, id)
	o.mu.Unlock()
	o.publish(EventInstanceDeleted, id, map[string]interface{}{"id": id})
}

func (o *InstanceObserver) StatusChanged(id string, status instance.Status) {
	if status == instance.StatusStarting {
		// A new session never continues the previous one's output.
		o.mu.Lock()
		delete(o.joiners, id)
		o.mu.Unlock()
	}
	o.publish(EventInstanceStatusChanged, id, map[string]interface{}{
		"id":     id,
		"status": status.String(),
	})
}

// Output publishes terminal output as a string so it survives JSON encoding
// without base64. A rune split across two chunks is published whole with
// the later chunk.
func (o *InstanceObserver) Output(id string, data []byte) {
	o.mu.Lock()
	j, ok := o.joiners[id]
	if !ok {
		j = &instance.RuneJoiner{}
		o.joiners[id] = j
	}
	text := j.Push(data)
	o.mu.Unlock()
	if len(text) == 0 {
		return
	}
	o.publish(EventInstanceOutput, id, map[string]interface{}{
		"id":   id,
		"data": string(text),
	})
}
