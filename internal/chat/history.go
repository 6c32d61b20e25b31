package chat

import (
	"context"
	"slices"
	"sync"
)

// History is the locally loaded slice of the message history and the pager
// state around it. It is safe for concurrent use.
type History struct {
	svc   *MessageService
	limit int

	mu       sync.Mutex
	messages []Message
	hasMore  bool
	loading  bool
}

// NewHistory returns an empty pager asking for limit messages per page.
func NewHistory(svc *MessageService, limit int) *History {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return &History{svc: svc, limit: limit, hasMore: true}
}

// LoadMore fetches the next page of older messages and appends it. It does
// nothing and returns false when a load is already running or the end of
// history was reached. The end is only recognised when a page comes back
// with strictly fewer than limit messages.
func (h *History) LoadMore(ctx context.Context) (bool, error) {
	h.mu.Lock()
	if h.loading || !h.hasMore {
		h.mu.Unlock()
		return false, nil
	}
	h.loading = true
	var before string
	if n := len(h.messages); n > 0 {
		before = h.messages[n-1].ID
	}
	h.mu.Unlock()

	page, err := h.svc.GetMessages(ctx, h.limit, before)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false
	if err != nil {
		return false, err
	}
	if len(page) < h.limit {
		h.hasMore = false
	}
	h.messages = append(h.messages, page...)
	return true, nil
}

// Prepend puts a freshly sent message in front of the list.
func (h *History) Prepend(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append([]Message{m}, h.messages...)
}

// Remove drops the message with id.
func (h *History) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = slices.DeleteFunc(h.messages, func(m Message) bool { return m.ID == id })
}

// Replace swaps in an edited message, matched by id.
func (h *History) Replace(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.messages {
		if h.messages[i].ID == m.ID {
			h.messages[i] = m
		}
	}
}

// Messages returns a copy of the loaded messages.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.messages)
}

// HasMore reports whether older messages may still exist.
func (h *History) HasMore() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasMore
}

// Loading reports whether a LoadMore call is in flight.
func (h *History) Loading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}
