package events

import (
	"fmt"
	"sync"

	console "cms0/internal/utils/logger"
)

var log = console.New("EVENTS")

// Domain events emitted by services.
const (
	UsersCreated       = "users.created"
	AffiliatesCreated  = "affiliates.created"
	RolesUpdated       = "roles.updated"
	RolesDeleted       = "roles.deleted"
	PermissionsDeleted = "permissions.deleted"
	MenusUpdated       = "menus.updated"
	MenusReordered     = "menus.reordered"
)

type EventHandler func(interface{})

type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

var defaultBus = NewEventBus()

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
	}
}

// On registers a handler for an event
func (bus *EventBus) On(event string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[event] = append(bus.handlers[event], handler)
	log.Debug("Registered handler for event: %s", event)
}

// Emit runs every handler of event on its own goroutine. A panicking handler is logged and dropped.
func (bus *EventBus) Emit(event string, data interface{}) {
	bus.mu.RLock()
	handlers := append([]EventHandler(nil), bus.handlers[event]...)
	bus.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	log.Debug("Emitting event: %s", event)

	for _, handler := range handlers {
		bus.wg.Add(1)
		go func(h EventHandler) {
			defer bus.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					_ = log.Error("Panic in handler for %s", fmt.Errorf("panic: %v", r), event)
				}
			}()
			h(data)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (bus *EventBus) Wait() {
	bus.wg.Wait()
}

// On Global event functions that use the default event bus
func On(event string, handler EventHandler) {
	defaultBus.On(event, handler)
}

func Emit(event string, data interface{}) {
	defaultBus.Emit(event, data)
}

func Wait() {
	defaultBus.Wait()
}
