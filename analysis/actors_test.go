package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOwner(t *testing.T) {
	owners := map[int]int{30: 12, 31: 30}

	assert.Equal(t, 12, ResolveOwner(30, owners))
	// Pet of a pet walks the full chain.
	assert.Equal(t, 12, ResolveOwner(31, owners))
	// No owner entry returns the actor itself.
	assert.Equal(t, 11, ResolveOwner(11, owners))
}

func TestResolveOwnerCycle(t *testing.T) {
	owners := map[int]int{1: 2, 2: 1}
	got := ResolveOwner(1, owners)
	assert.Contains(t, []int{1, 2}, got)
}

func TestResolveEventSourcePlayer(t *testing.T) {
	names := map[int]string{11: "Akame", 12: "Bela", 30: "Shadowfiend"}
	owners := map[int]int{30: 12}

	// Pet damage resolves to the owning player.
	name, id := resolveEventSourcePlayer(RawEvent{"sourceID": 30.0}, names, owners)
	require.NotNil(t, id)
	assert.Equal(t, 12, *id)
	assert.Equal(t, "Bela", name)

	// Nested source object with guid.
	name, id = resolveEventSourcePlayer(RawEvent{
		"source": map[string]interface{}{"guid": 11.0, "name": "someone"},
	}, names, owners)
	require.NotNil(t, id)
	assert.Equal(t, "Akame", name)

	// Name-only fallback.
	name, id = resolveEventSourcePlayer(RawEvent{"sourceName": "Cree"}, names, owners)
	assert.Nil(t, id)
	assert.Equal(t, "Cree", name)

	// Nothing usable.
	name, id = resolveEventSourcePlayer(RawEvent{}, names, owners)
	assert.Nil(t, id)
	assert.Equal(t, "", name)
}

func TestExtractTargetKey(t *testing.T) {
	key, ok := extractTargetKey(RawEvent{
		"target":         map[string]interface{}{"guid": 200.0, "instance": 2.0},
		"targetID":       40.0,
		"targetInstance": 3.0,
	})
	require.True(t, ok)
	assert.Equal(t, targetIdentity{GUID: 200, TargetID: 40, Instance: 2, InstanceID: 3}, key)

	// Distinct instances of the same creature produce distinct keys.
	other, ok := extractTargetKey(RawEvent{
		"target":         map[string]interface{}{"guid": 200.0, "instance": 2.0},
		"targetID":       40.0,
		"targetInstance": 4.0,
	})
	require.True(t, ok)
	assert.NotEqual(t, key, other)

	_, ok = extractTargetKey(RawEvent{"type": "damage"})
	assert.False(t, ok)
}
