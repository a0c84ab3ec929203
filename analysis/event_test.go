package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEventAliases(t *testing.T) {
	ev := NormalizeEvent(RawEvent{
		"Ability Name": "Besiege",
		"Target":       "Akame",
		"srcName":      "Nexus-King",
		"eventType":    "damage",
		"value":        "1234.5",
		"time":         "15000",
	})

	assert.Equal(t, "Besiege", ev.AbilityName)
	assert.Equal(t, "Akame", ev.TargetName)
	assert.Equal(t, "Nexus-King", ev.SourceName)
	assert.Equal(t, "damage", ev.EventType)
	require.NotNil(t, ev.Amount)
	assert.Equal(t, 1234.5, *ev.Amount)
	require.NotNil(t, ev.Timestamp)
	assert.Equal(t, 15000.0, *ev.Timestamp)
}

func TestNormalizeEventNestedAbility(t *testing.T) {
	ev := NormalizeEvent(RawEvent{
		"ability": map[string]interface{}{
			"name": "Reverse Gravity",
			"guid": 1243577.0,
		},
		"target": map[string]interface{}{"name": "Dara", "id": 14.0},
		"source": map[string]interface{}{"name": "Artoshion", "id": 7.0},
	})

	assert.Equal(t, "Reverse Gravity", ev.AbilityName)
	assert.Equal(t, "1243577", ev.AbilityID)
	assert.Equal(t, "Dara", ev.TargetName)
	require.NotNil(t, ev.TargetID)
	assert.Equal(t, 14, *ev.TargetID)
	require.NotNil(t, ev.SourceID)
	assert.Equal(t, 7, *ev.SourceID)
}

func TestNormalizeEventAbilityIDCanonicalForm(t *testing.T) {
	numeric := NormalizeEvent(RawEvent{"abilityGameID": 1224737.0})
	text := NormalizeEvent(RawEvent{"spellId": "1224737"})

	assert.Equal(t, "1224737", numeric.AbilityID)
	assert.Equal(t, numeric.AbilityID, text.AbilityID)
}

func TestNormalizeEventMissDetection(t *testing.T) {
	byType := NormalizeEvent(RawEvent{"type": "spellmissed"})
	assert.True(t, byType.IsMiss)

	byHitType := NormalizeEvent(RawEvent{"type": "damage", "hitType": "Dodge"})
	assert.True(t, byHitType.IsMiss)

	// Substring matching only applies to the event type; a hitType of
	// "critical" must not trip the "resist" hint.
	clean := NormalizeEvent(RawEvent{"type": "damage", "hitType": "critical"})
	assert.False(t, clean.IsMiss)
}

func TestIsHit(t *testing.T) {
	typed := NormalizeEvent(RawEvent{"type": "Spell_Damage"})
	assert.True(t, typed.IsHit())

	loose := NormalizeEvent(RawEvent{
		"type":        "cast",
		"abilityName": "Besiege",
		"targetName":  "Akame",
	})
	assert.True(t, loose.IsHit())

	bare := NormalizeEvent(RawEvent{"type": "cast", "abilityName": "Besiege"})
	assert.False(t, bare.IsHit())

	missed := NormalizeEvent(RawEvent{"type": "damage", "hitType": "immune"})
	assert.False(t, missed.IsHit())
}

func TestNormalizeEventMalformedValues(t *testing.T) {
	ev := NormalizeEvent(RawEvent{
		"timestamp": "not-a-number",
		"amount":    map[string]interface{}{},
		"fight":     "abc",
	})

	assert.Nil(t, ev.Timestamp)
	assert.Nil(t, ev.Amount)
	assert.Nil(t, ev.FightID)
}

func TestEventAbilityGameID(t *testing.T) {
	flat, ok := eventAbilityGameID(RawEvent{"abilityGameID": 1243373.0})
	require.True(t, ok)
	assert.Equal(t, 1243373, flat)

	nested, ok := eventAbilityGameID(RawEvent{
		"ability": map[string]interface{}{"gameID": 1249077.0},
	})
	require.True(t, ok)
	assert.Equal(t, 1249077, nested)

	_, ok = eventAbilityGameID(RawEvent{"type": "damage"})
	assert.False(t, ok)
}
