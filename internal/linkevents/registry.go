// Package linkevents keeps link-event handler registrations for network
// drivers.
package linkevents

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/logging"
)

// ErrNilHandler is returned when subscribing a nil handler
var ErrNilHandler = errors.New("nil handler")

type registration struct {
	kind    coordinator.EventKind
	handler func()
}

// Registry maps tokens to handlers and delivers events in registration
// order. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu       sync.Mutex
	handlers map[coordinator.Token]registration
	order    []coordinator.Token
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[coordinator.Token]registration),
	}
}

// Subscribe registers handler for kind under a fresh token
func (r *Registry) Subscribe(kind coordinator.EventKind, handler func()) (coordinator.Token, error) {
	if handler == nil {
		return "", ErrNilHandler
	}
	tok := coordinator.Token(uuid.NewString())

	r.mu.Lock()
	r.handlers[tok] = registration{kind: kind, handler: handler}
	r.order = append(r.order, tok)
	r.mu.Unlock()

	logging.Debug("Handler subscribed",
		zap.String("kind", kind.String()),
		zap.String("token", string(tok)),
	)
	return tok, nil
}

// Unsubscribe removes a registration; unknown tokens are ignored
func (r *Registry) Unsubscribe(token coordinator.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[token]; !ok {
		return
	}
	delete(r.handlers, token)
	for i, t := range r.order {
		if t == token {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Count returns the number of handlers registered for kind
func (r *Registry) Count(kind coordinator.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, reg := range r.handlers {
		if reg.kind == kind {
			n++
		}
	}
	return n
}

// Emit runs every handler registered for kind on the calling goroutine.
// The lock is not held while handlers run, so a handler may subscribe,
// unsubscribe or emit again.
func (r *Registry) Emit(kind coordinator.EventKind) {
	r.mu.Lock()
	var handlers []func()
	for _, tok := range r.order {
		if reg := r.handlers[tok]; reg.kind == kind {
			handlers = append(handlers, reg.handler)
		}
	}
	r.mu.Unlock()

	logging.Debug("Emitting link event",
		zap.String("kind", kind.String()),
		zap.Int("handlers", len(handlers)),
	)
	for _, h := range handlers {
		h()
	}
}
