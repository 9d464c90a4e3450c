// Package session implements the Session Store (§4.1): a primary networked
// key-value backend mirrored into an in-process fallback, guarded by a
// circuit breaker and retry policy from internal/resilience.
package session

import "time"

// schemaVersion is the `v` field on every persisted Context. Bump when the
// encoding changes shape; Store.Get neither checks it nor migrates across
// versions.
const schemaVersion = 1

// Turn is one exchange in the conversation history.
type Turn struct {
	Utterance string    `json:"utterance"`
	Intent    string    `json:"intent,omitempty"`
	Response  string    `json:"response,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SlotValue is a dialog slot filled by NLU entity extraction, with a
// turn-count expiry (§4.7 slot filling).
type SlotValue struct {
	Value     string `json:"value"`
	FilledAt  int    `json:"filled_at_turn"`
}

// DialogState holds the dialog manager's current flow position.
type DialogState struct {
	FlowID       string               `json:"flow_id,omitempty"`
	NodeID       string               `json:"node_id,omitempty"`
	Slots        map[string]SlotValue `json:"slots,omitempty"`
	CurrentTurn  int                  `json:"current_turn"`
}

// Context is the canonical per-session record. The Orchestrator is the
// single concurrent owner of a given session's Context for the duration of
// one turn (§3 Ownership).
type Context struct {
	Version      int         `json:"v"`
	SessionID    string      `json:"session_id"`
	Language     string      `json:"language"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	History      []Turn      `json:"history,omitempty"`
	Dialog       DialogState `json:"dialog"`
	CreatedAt    time.Time   `json:"created_at"`
	LastAccessed time.Time   `json:"last_accessed"`
	Incomplete   bool        `json:"incomplete,omitempty"`

	// revision counts Save calls made with this in-memory Context. It is
	// not persisted and is not compared with the stored copy, so Save
	// neither detects nor logs a concurrent overwrite (last-writer-wins).
	revision uint64
}

// NewContext creates a fresh Context for a new session, stamped with now.
func NewContext(sessionID, language string, metadata map[string]any, now time.Time) *Context {
	return &Context{
		Version:      schemaVersion,
		SessionID:    sessionID,
		Language:     language,
		Metadata:     metadata,
		Dialog:       DialogState{Slots: make(map[string]SlotValue)},
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// AppendTurn records a new turn and bumps the dialog turn counter, clearing
// slots that have expired per maxSlotAge turns (§4.7).
func (c *Context) AppendTurn(turn Turn, maxSlotAge int) {
	c.History = append(c.History, turn)
	c.Dialog.CurrentTurn++
	c.LastAccessed = turn.Timestamp

	for name, slot := range c.Dialog.Slots {
		if c.Dialog.CurrentTurn-slot.FilledAt > maxSlotAge {
			delete(c.Dialog.Slots, name)
		}
	}
}

// RecentHistory returns the last n turns, oldest first.
func (c *Context) RecentHistory(n int) []Turn {
	if len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

// Revision returns the Save counter of this Context value.
func (c *Context) Revision() uint64 { return c.revision }

// bumpRevision advances the counter; called by Store.Save.
func (c *Context) bumpRevision() { c.revision++ }
