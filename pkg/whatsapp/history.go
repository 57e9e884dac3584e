package whatsapp

import (
	"sort"

	"github.com/grovetools/wagate/pkg/client"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// history keeps the most recent messages of every chat seen by a client.
// The protocol offers no on-demand history fetch, so chats are filled from
// live message events and history sync payloads.
type history struct {
	limit    int
	messages cmap.ConcurrentMap[string, []client.Message]
	names    cmap.ConcurrentMap[string, string]
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = 200
	}
	return &history{
		limit:    limit,
		messages: cmap.New[[]client.Message](),
		names:    cmap.New[string](),
	}
}

// add appends msg to chat, keeping at most limit entries in timestamp order.
// A message whose id is already present is ignored.
func (h *history) add(chat string, msg client.Message) {
	h.messages.Upsert(chat, nil, func(exist bool, current []client.Message, _ []client.Message) []client.Message {
		if msg.ID != "" {
			for _, m := range current {
				if m.ID == msg.ID {
					return current
				}
			}
		}
		next := make([]client.Message, 0, len(current)+1)
		next = append(next, current...)
		next = append(next, msg)
		sort.SliceStable(next, func(i, j int) bool {
			return next[i].Timestamp.Before(next[j].Timestamp)
		})
		if len(next) > h.limit {
			next = next[len(next)-h.limit:]
		}
		return next
	})
}

// recent returns up to limit of the newest messages of chat, oldest first.
func (h *history) recent(chat string, limit int) []client.Message {
	msgs, ok := h.messages.Get(chat)
	if !ok {
		return []client.Message{}
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]client.Message(nil), msgs...)
}

func (h *history) setName(chat, name string) {
	if name != "" {
		h.names.Set(chat, name)
	}
}

func (h *history) name(chat string) string {
	name, _ := h.names.Get(chat)
	return name
}

// chats returns every chat with at least one message, sorted.
func (h *history) chats() []string {
	keys := h.messages.Keys()
	sort.Strings(keys)
	return keys
}
