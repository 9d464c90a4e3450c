package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContext_AppendTurn_ExpiresOldSlots(t *testing.T) {
	now := time.Now()
	sc := NewContext("s1", "en", nil, now)
	sc.Dialog.Slots["city"] = SlotValue{Value: "Cairo", FilledAt: 0}

	for i := 1; i <= 11; i++ {
		sc.AppendTurn(Turn{Utterance: "turn", Timestamp: now.Add(time.Duration(i) * time.Second)}, 10)
	}

	_, stillPresent := sc.Dialog.Slots["city"]
	assert.False(t, stillPresent, "slot should expire after maxSlotAge turns")
	assert.Equal(t, 11, sc.Dialog.CurrentTurn)
}

func TestContext_RecentHistory(t *testing.T) {
	now := time.Now()
	sc := NewContext("s1", "en", nil, now)
	for i := 0; i < 6; i++ {
		sc.AppendTurn(Turn{Utterance: "t", Timestamp: now}, 10)
	}

	recent := sc.RecentHistory(4)
	assert.Len(t, recent, 4)
}

func TestContext_RevisionBumpsOnSave(t *testing.T) {
	sc := NewContext("s1", "en", nil, time.Now())
	assert.Equal(t, uint64(0), sc.Revision())
	sc.bumpRevision()
	assert.Equal(t, uint64(1), sc.Revision())
}
