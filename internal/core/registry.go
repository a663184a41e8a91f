package core

import (
	"sync"

	"github.com/samber/lo"
)

type registration struct {
	userID  string
	session *Session
}

// Registry maps user identities to their single active session.
// Entries live in a flat slice scanned linearly; all access is serialized by mu.
type Registry struct {
	mu      sync.Mutex
	entries []registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds userID to session. It is a no-op returning false when the
// identity already has a session or the session is already bound to an identity.
func (r *Registry) Register(userID string, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.userID == userID || e.session == session {
			return false
		}
	}
	r.entries = append(r.entries, registration{userID: userID, session: session})
	return true
}

// Unregister removes any entry bound to session and returns the identity it held.
func (r *Registry) Unregister(session *Session) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		userID  string
		removed bool
	)
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.session == session {
			userID, removed = e.userID, true
			continue
		}
		kept = append(kept, e)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	return userID, removed
}

// Lookup returns the session registered for userID.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := lo.Find(r.entries, func(e registration) bool { return e.userID == userID })
	return e.session, ok
}

// IdentityOf returns the identity bound to session, if any.
func (r *Registry) IdentityOf(session *Session) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := lo.Find(r.entries, func(e registration) bool { return e.session == session })
	return e.userID, ok
}

// Snapshot lists registered identities in registration order.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Map(r.entries, func(e registration, _ int) string { return e.userID })
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
