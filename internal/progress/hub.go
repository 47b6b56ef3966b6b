package progress

import (
	"sync"

	"audit-backend/internal/shared/telemetry"
)

// Event is one pipeline progress update. Delivery is best-effort; subscribers
// that fall behind lose events rather than slow the pipeline down.
type Event struct {
	Stage      string `json:"stage"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

const subscriberBuffer = 16

// Hub fans progress events out to subscribers keyed by audit ID. Publish
// never blocks: a full subscriber channel drops the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe attaches a listener to one audit. The returned cancel func
// detaches and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(auditID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[auditID] == nil {
		h.subs[auditID] = map[chan Event]struct{}{}
	}
	h.subs[auditID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[auditID], ch)
			if len(h.subs[auditID]) == 0 {
				delete(h.subs, auditID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber of the audit.
// No subscribers is not an error; a pipeline run never blocks on listeners.
func (h *Hub) Publish(auditID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[auditID] {
		select {
		case ch <- event:
		default:
			telemetry.Warn("progress.subscriber_lagging", map[string]any{
				"audit_id": auditID,
				"stage":    event.Stage,
			})
		}
	}
}

// SubscriberCount reports current listeners for an audit.
func (h *Hub) SubscriberCount(auditID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auditID])
}
