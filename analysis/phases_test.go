package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func besiegeHit(ts float64, target string, fightID int) RawEvent {
	return RawEvent{
		"timestamp":     ts,
		"type":          "damage",
		"targetName":    target,
		"abilityName":   "Besiege",
		"abilityGameID": float64(defaultBesiegeAbilityID),
		"fight":         float64(fightID),
	}
}

func TestFetchPhaseSummary(t *testing.T) {
	src := &fakeSource{
		meta:    testMeta(),
		details: testRoster(),
		eventsFn: eventsByDataType(map[string][]RawEvent{
			"DamageTaken": {
				besiegeHit(16000, "Akame", 1),
				besiegeHit(30000, "Akame", 1),
				besiegeHit(416000, "Akame", 2),
				besiegeHit(16000, "Dara", 1),
			},
			"Debuffs": {
				{"timestamp": 20000.0, "type": "applydebuff", "targetName": "Dara", "abilityGameID": float64(defaultGhostAbilityID)},
				{"timestamp": 40000.0, "type": "applydebuff", "targetName": "Dara", "abilityGameID": float64(defaultGhostAbilityID)},
			},
		}),
	}

	summary, err := FetchPhaseSummary(context.Background(), src, &PhaseOptions{
		Options: Options{ReportCode: "abc", FightName: "dimensius"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PullCount)
	assert.Equal(t, defaultBesiegeAbilityID, summary.BesiegeAbilityID)
	assert.Equal(t, defaultGhostAbilityID, summary.GhostAbilityID)
	assert.Equal(t, GhostFirstPerSet, summary.GhostMode)

	assert.Equal(t, 4, summary.TotalBesieges)
	assert.Equal(t, 2, summary.TotalGhosts)
	assert.Equal(t, 2.0, summary.AvgBesiegesPerPull)
	assert.Equal(t, 1.0, summary.AvgGhostsPerPull)
	assert.Equal(t, 3.0, summary.CombinedPerPull)

	byPlayer := make(map[string]PhasePlayerEntry)
	for _, entry := range summary.Entries {
		byPlayer[entry.Player] = entry
	}

	akame := byPlayer["Akame"]
	assert.Equal(t, RoleTank, akame.Role)
	assert.Equal(t, 2, akame.Pulls)
	assert.Equal(t, 3, akame.BesiegeHits)
	assert.Equal(t, 1.5, akame.BesiegePerPull)
	assert.Equal(t, 0, akame.GhostMisses)
	assert.Equal(t, 1.5, akame.FuckupRate)

	dara := byPlayer["Dara"]
	assert.Equal(t, 1, dara.BesiegeHits)
	assert.Equal(t, 2, dara.GhostMisses)
	assert.Equal(t, 0.5+1.0, dara.FuckupRate)

	// Every rostered player has a row even with zero counts.
	require.Contains(t, byPlayer, "Bela")
	assert.Equal(t, 0.0, byPlayer["Bela"].FuckupRate)
}

func TestFetchPhaseSummaryBadGhostMode(t *testing.T) {
	src := &fakeSource{meta: testMeta(), details: testRoster()}

	_, err := FetchPhaseSummary(context.Background(), src, &PhaseOptions{
		Options:   Options{ReportCode: "abc", FightName: "dimensius"},
		GhostMode: "whenever",
	})
	assert.Error(t, err)
}

func TestMergeStringMaps(t *testing.T) {
	merged := mergeStringMaps(
		map[string]string{"a": "one", "b": ""},
		map[string]string{"a": "two", "b": "three", "c": "four"},
	)
	assert.Equal(t, map[string]string{"a": "one", "b": "three", "c": "four"}, merged)
}
