package dialog

import (
	"context"
	"log/slog"

	applog "github.com/Omarrvv/final-bot-sub005/pkg/logger"
	"github.com/Omarrvv/final-bot-sub005/internal/nlu"
	"github.com/Omarrvv/final-bot-sub005/internal/session"
)

// DefaultSlotMaxAge is the number of turns a filled slot stays valid before
// it is cleared (§4.7 Slot filling).
const DefaultSlotMaxAge = 10

// Manager evaluates the current flow/node against an NLU result and
// produces the next Dialog Action, mutating the session's DialogState in
// place.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
}

// New constructs a Manager over an already-validated Registry.
func New(registry *Registry, logger *slog.Logger) *Manager {
	return &Manager{registry: registry, logger: logger}
}

// Decide advances the state machine by one turn and returns the action to
// execute. It never returns an error: per §4.7, once a Registry has passed
// validation, every transition target is guaranteed to exist.
func (m *Manager) Decide(ctx context.Context, result nlu.Result, sessCtx *session.Context) Action {
	log := applog.FromContext(ctx, m.logger)

	flow, node := m.currentPosition(sessCtx)
	source := node

	transition, matched := matchTransition(node.Transitions, result.Intent)
	if !matched {
		log.Debug("no transition matched, using global fallback", "flow", flow.ID, "node", node.ID, "intent", result.Intent)
		flow = m.registry.Fallback()
		node = flow.Nodes[flow.EntryNode]
	} else if transition.TargetFlow != "" {
		targetFlow, ok := m.registry.Flow(transition.TargetFlow)
		if !ok {
			// Unreachable after NewRegistry validation; fall back defensively.
			targetFlow = m.registry.Fallback()
		}
		flow = targetFlow
		node = flow.Nodes[flow.EntryNode]
	} else {
		node = flow.Nodes[transition.TargetNode]
	}

	sessCtx.Dialog.FlowID = flow.ID
	sessCtx.Dialog.NodeID = node.ID

	// Entities fill the slots of the node being left (answering its
	// prompt) as well as those of the node being entered.
	fillSlots(sessCtx, source.RequiredSlots, result.Entities)
	fillSlots(sessCtx, node.RequiredSlots, result.Entities)

	if missing, ok := firstMissingSlot(sessCtx, node.RequiredSlots); ok {
		return Action{Kind: ActionPrompt, Slot: missing.Name}
	}

	return node.Action
}

// currentPosition resolves the session's stored flow/node, defaulting to
// the global fallback flow's entry node for a brand-new session.
func (m *Manager) currentPosition(sessCtx *session.Context) (*Flow, *Node) {
	flowID := sessCtx.Dialog.FlowID
	if flowID == "" {
		flowID = FallbackFlowID
	}
	flow, ok := m.registry.Flow(flowID)
	if !ok {
		flow = m.registry.Fallback()
	}

	nodeID := sessCtx.Dialog.NodeID
	if nodeID == "" {
		nodeID = flow.EntryNode
	}
	node, ok := flow.Nodes[nodeID]
	if !ok {
		node = flow.Nodes[flow.EntryNode]
	}
	return flow, node
}

// matchTransition finds the transition for intent in declaration order
// (§4.7 Tie-breaking), falling back to the first "*" wildcard.
func matchTransition(transitions []Transition, intent string) (Transition, bool) {
	var wildcard Transition
	haveWildcard := false

	for _, t := range transitions {
		if t.Intent == intent {
			return t, true
		}
		if !haveWildcard && t.Intent == "*" {
			wildcard = t
			haveWildcard = true
		}
	}
	if haveWildcard {
		return wildcard, true
	}
	return Transition{}, false
}

// fillSlots populates session slots from NLU entities by type match,
// limited to the given slots.
func fillSlots(sessCtx *session.Context, slots []Slot, entities []nlu.Entity) {
	if len(slots) == 0 || len(entities) == 0 {
		return
	}
	if sessCtx.Dialog.Slots == nil {
		sessCtx.Dialog.Slots = make(map[string]session.SlotValue)
	}

	for _, slot := range slots {
		for _, e := range entities {
			if e.Type != slot.EntityType {
				continue
			}
			sessCtx.Dialog.Slots[slot.Name] = session.SlotValue{
				Value:    e.Canonical,
				FilledAt: sessCtx.Dialog.CurrentTurn,
			}
			break
		}
	}
}

// firstMissingSlot returns the first required slot (declaration order)
// that has no current value in the session.
func firstMissingSlot(sessCtx *session.Context, slots []Slot) (Slot, bool) {
	for _, slot := range slots {
		if _, ok := sessCtx.Dialog.Slots[slot.Name]; !ok {
			return slot, true
		}
	}
	return Slot{}, false
}
