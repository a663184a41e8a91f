package core

// AddUser registers session as userID. A duplicate registration is ignored and
// nothing is broadcast; the first session for an identity keeps receiving its events.
// Only sessions added by Connect and not yet disconnected can register.
func (h *Hub) AddUser(session *Session, userID string) bool {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	if _, ok := h.connected[session]; !ok || session.Closed() {
		h.log.Debug().Str("user_id", userID).Str("session_id", session.ID).Msg("registration refused, session not connected")
		return false
	}
	if !h.registry.Register(userID, session) {
		h.log.Debug().Str("user_id", userID).Str("session_id", session.ID).Msg("registration ignored")
		return false
	}

	h.log.Info().Str("user_id", userID).Str("session_id", session.ID).Msg("user registered")
	h.broadcastPresenceLocked()
	return true
}

// Presence returns the identities currently registered.
func (h *Hub) Presence() []string {
	return h.registry.Snapshot()
}

// broadcastPresenceLocked sends the full snapshot to every connected session,
// registered or not. Caller holds presenceMu.
func (h *Hub) broadcastPresenceLocked() {
	users := h.registry.Snapshot()
	for session := range h.connected {
		// Each session gets its own event; the users slice is shared read-only.
		if !session.Push(&Event{Kind: EventPresence, Users: users}) {
			h.log.Warn().Str("session_id", session.ID).Msg("presence snapshot dropped")
		}
	}
}
