// Package recency keeps a client's conversation list ordered by last activity.
package recency

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/pairchat-server/internal/core"
)

// Conversation is one row of the local conversation list.
type Conversation struct {
	ID          string
	Members     [2]string
	LastMessage *core.Message
	CreatedAt   time.Time
}

// LastActivity is the time the list is ordered by.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// View is a conversation list sorted newest first. Safe for concurrent use.
type View struct {
	mu    sync.Mutex
	convs []Conversation
}

// NewView creates an empty view.
func NewView() *View {
	return &View{}
}

// Apply merges conversations from a full fetch. Known entries are replaced
// unless the local copy already has a newer last message.
func (v *View) Apply(convs ...Conversation) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, conv := range convs {
		_, idx, ok := lo.FindIndexOf(v.convs, func(c Conversation) bool { return c.ID == conv.ID })
		if !ok {
			v.convs = append(v.convs, conv)
			continue
		}
		local := v.convs[idx]
		if local.LastActivity().After(conv.LastActivity()) {
			conv.LastMessage = local.LastMessage
		}
		v.convs[idx] = conv
	}
	v.sortLocked()
}

// Touch records msg as activity in its conversation: the conversation moves to
// the head and the list is re-sorted. Conversations not yet in the view are inserted.
func (v *View) Touch(members [2]string, msg *core.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	conv, idx, ok := lo.FindIndexOf(v.convs, func(c Conversation) bool { return c.ID == msg.ConversationID })
	if ok {
		v.convs = slices.Delete(v.convs, idx, idx+1)
	} else {
		conv = Conversation{ID: msg.ConversationID, Members: members, CreatedAt: msg.CreatedAt}
	}
	if conv.LastMessage == nil || !msg.CreatedAt.Before(conv.LastMessage.CreatedAt) {
		m := *msg
		conv.LastMessage = &m
	}
	v.convs = slices.Insert(v.convs, 0, conv)
	v.sortLocked()
}

// UpdateMessage replaces the last message of its conversation if ids match.
// Order is unaffected.
func (v *View) UpdateMessage(oldID string, msg *core.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.convs {
		last := v.convs[i].LastMessage
		if v.convs[i].ID == msg.ConversationID && last != nil && last.ID == oldID {
			m := *msg
			v.convs[i].LastMessage = &m
			return
		}
	}
}

// Conversations returns a copy of the list, newest first.
func (v *View) Conversations() []Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.convs)
}

// Len returns the number of conversations in the view.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.convs)
}

// sortLocked orders by last activity, descending. The sort is stable so a
// conversation just moved to the head stays ahead of equal timestamps.
func (v *View) sortLocked() {
	slices.SortStableFunc(v.convs, func(a, b Conversation) int {
		return b.LastActivity().Compare(a.LastActivity())
	})
}
