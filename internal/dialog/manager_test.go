package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omarrvv/final-bot-sub005/internal/nlu"
	"github.com/Omarrvv/final-bot-sub005/internal/session"
)

func bookingFlows() []*Flow {
	return []*Flow{
		{
			ID:        "book_hotel",
			EntryNode: "ask_city",
			Nodes: map[string]*Node{
				"ask_city": {
					ID:            "ask_city",
					RequiredSlots: []Slot{{Name: "city", EntityType: "place"}},
					Action:        Action{Kind: ActionRespond, TemplateID: "hotel_confirmed"},
					Transitions: []Transition{
						{Intent: "provide_city", TargetNode: "confirm"},
						{Intent: "cancel", TargetFlow: FallbackFlowID},
						{Intent: "*", TargetNode: "ask_city"},
					},
				},
				"confirm": {
					ID:     "confirm",
					Action: Action{Kind: ActionRespond, TemplateID: "hotel_confirmed"},
					Transitions: []Transition{
						{Intent: "*", TargetNode: "confirm"},
					},
				},
			},
			nodeOrder: []string{"ask_city", "confirm"},
		},
		{
			ID:        FallbackFlowID,
			EntryNode: "apologize",
			Nodes: map[string]*Node{
				"apologize": {
					ID:          "apologize",
					Action:      Action{Kind: ActionRespond, TemplateID: "fallback_apology"},
					Transitions: []Transition{{Intent: "*", TargetNode: "apologize"}},
				},
			},
			nodeOrder: []string{"apologize"},
		},
	}
}

func newManager(t *testing.T) *Manager {
	r, errs := NewRegistry(bookingFlows())
	require.Empty(t, errs)
	return New(r, nil)
}

func freshContext() *session.Context {
	return session.NewContext("sess-1", "en", nil, time.Now())
}

func TestDecide_UnmatchedIntentOnFreshSessionStaysInFallback(t *testing.T) {
	m := newManager(t)
	sessCtx := freshContext()

	action := m.Decide(context.Background(), nlu.Result{Intent: "book_hotel_intent"}, sessCtx)

	// No transition matches "book_hotel_intent" in the fallback flow's entry
	// node, so the wildcard there applies and we stay in fallback/apologize.
	assert.Equal(t, FallbackFlowID, sessCtx.Dialog.FlowID)
	assert.Equal(t, ActionRespond, action.Kind)
}

func TestDecide_SlotFillingUnblocksNode(t *testing.T) {
	m := newManager(t)
	sessCtx := freshContext()
	sessCtx.Dialog.FlowID = "book_hotel"
	sessCtx.Dialog.NodeID = "ask_city"

	entities := []nlu.Entity{{Type: "place", Surface: "Cairo", Canonical: "city:cairo"}}
	action := m.Decide(context.Background(), nlu.Result{Intent: "provide_city", Entities: entities}, sessCtx)

	require.Equal(t, "confirm", sessCtx.Dialog.NodeID)
	assert.Equal(t, ActionRespond, action.Kind)
	assert.Equal(t, "city:cairo", sessCtx.Dialog.Slots["city"].Value)
}

func TestDecide_PromptsWhenSlotStillMissing(t *testing.T) {
	m := newManager(t)
	sessCtx := freshContext()
	sessCtx.Dialog.FlowID = "book_hotel"
	sessCtx.Dialog.NodeID = "ask_city"

	action := m.Decide(context.Background(), nlu.Result{Intent: "smalltalk"}, sessCtx)

	assert.Equal(t, ActionPrompt, action.Kind)
	assert.Equal(t, "city", action.Slot)
}

func TestDecide_TransfersToFallbackFlow(t *testing.T) {
	m := newManager(t)
	sessCtx := freshContext()
	sessCtx.Dialog.FlowID = "book_hotel"
	sessCtx.Dialog.NodeID = "ask_city"

	action := m.Decide(context.Background(), nlu.Result{Intent: "cancel"}, sessCtx)

	assert.Equal(t, FallbackFlowID, sessCtx.Dialog.FlowID)
	assert.Equal(t, "apologize", sessCtx.Dialog.NodeID)
	assert.Equal(t, "fallback_apology", action.TemplateID)
}

func TestDecide_WildcardAppliesWhenNoSpecificMatch(t *testing.T) {
	m := newManager(t)
	sessCtx := freshContext()
	sessCtx.Dialog.FlowID = "book_hotel"
	sessCtx.Dialog.NodeID = "ask_city"

	action := m.Decide(context.Background(), nlu.Result{Intent: "totally_unknown"}, sessCtx)

	assert.Equal(t, "book_hotel", sessCtx.Dialog.FlowID)
	assert.Equal(t, "ask_city", sessCtx.Dialog.NodeID)
	assert.Equal(t, ActionPrompt, action.Kind)
}

func TestMatchTransition_ExactBeforeWildcard(t *testing.T) {
	transitions := []Transition{
		{Intent: "*", TargetNode: "a"},
		{Intent: "book", TargetNode: "b"},
	}
	tr, ok := matchTransition(transitions, "book")
	require.True(t, ok)
	assert.Equal(t, "b", tr.TargetNode)
}

func TestMatchTransition_FallsBackToFirstWildcard(t *testing.T) {
	transitions := []Transition{
		{Intent: "book", TargetNode: "b"},
		{Intent: "*", TargetNode: "a"},
	}
	tr, ok := matchTransition(transitions, "something_else")
	require.True(t, ok)
	assert.Equal(t, "a", tr.TargetNode)
}

func TestMatchTransition_NoMatchNoWildcard(t *testing.T) {
	transitions := []Transition{{Intent: "book", TargetNode: "b"}}
	_, ok := matchTransition(transitions, "cancel")
	assert.False(t, ok)
}

func TestFillSlots_OnlyFillsRequiredTypes(t *testing.T) {
	sessCtx := freshContext()
	slots := []Slot{{Name: "city", EntityType: "place"}}
	entities := []nlu.Entity{
		{Type: "date", Surface: "tomorrow", Canonical: "tomorrow"},
		{Type: "place", Surface: "Giza", Canonical: "city:giza"},
	}

	fillSlots(sessCtx, slots, entities)

	require.Contains(t, sessCtx.Dialog.Slots, "city")
	assert.Equal(t, "city:giza", sessCtx.Dialog.Slots["city"].Value)
	assert.NotContains(t, sessCtx.Dialog.Slots, "date")
}

func TestFirstMissingSlot_DeclarationOrder(t *testing.T) {
	sessCtx := freshContext()
	sessCtx.Dialog.Slots = map[string]session.SlotValue{"city": {Value: "cairo"}}
	slots := []Slot{{Name: "city", EntityType: "place"}, {Name: "date", EntityType: "date"}}

	missing, ok := firstMissingSlot(sessCtx, slots)
	require.True(t, ok)
	assert.Equal(t, "date", missing.Name)
}
