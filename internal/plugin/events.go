package plugin

import (
	"fmt"
	"sync"
)

// EventSourceRead fires once per document after its raw text is read and
// before any markup parsing.
const EventSourceRead = "source-read"

// Source is the mutable container holding one document's raw text. Handlers
// read Text and write the rewritten text back into it.
type Source struct {
	Text string
}

// SourceReadHandler handles the source-read event for one document.
type SourceReadHandler func(pc *PluginContext, docname string, src *Source)

// Hub dispatches build events to connected handlers in connection order.
// Emitting is safe from several goroutines as long as each call passes its
// own Source.
type Hub struct {
	mu         sync.RWMutex
	sourceRead []SourceReadHandler
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Connect registers handler for event.
func (h *Hub) Connect(event string, handler SourceReadHandler) error {
	if handler == nil {
		return fmt.Errorf("cannot connect nil handler to %s", event)
	}
	if event != EventSourceRead {
		return fmt.Errorf("unknown event %q", event)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sourceRead = append(h.sourceRead, handler)
	return nil
}

// EmitSourceRead runs every source-read handler on src.
func (h *Hub) EmitSourceRead(pc *PluginContext, docname string, src *Source) {
	h.mu.RLock()
	handlers := h.sourceRead
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(pc, docname, src)
	}
}

// HandlerCount returns how many handlers are connected to event.
func (h *Hub) HandlerCount(event string) int {
	if event != EventSourceRead {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sourceRead)
}
