package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGhostMissModeAliases(t *testing.T) {
	for _, alias := range []interface{}{"first_per_set", "First-Per-Set", " perset ", "set first"} {
		mode, err := NormalizeGhostMissMode(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, GhostFirstPerSet, mode, alias)
	}

	mode, err := NormalizeGhostMissMode("per_pull")
	require.NoError(t, err)
	assert.Equal(t, GhostFirstPerPull, mode)

	mode, err = NormalizeGhostMissMode("all_misses")
	require.NoError(t, err)
	assert.Equal(t, GhostAll, mode)
}

func TestNormalizeGhostMissModeLegacy(t *testing.T) {
	mode, err := NormalizeGhostMissMode(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultGhostMissMode, mode)

	mode, err = NormalizeGhostMissMode(true)
	require.NoError(t, err)
	assert.Equal(t, GhostFirstPerPull, mode)

	mode, err = NormalizeGhostMissMode(false)
	require.NoError(t, err)
	assert.Equal(t, GhostAll, mode)

	mode, err = NormalizeGhostMissMode(1.0)
	require.NoError(t, err)
	assert.Equal(t, GhostFirstPerPull, mode)

	mode, err = NormalizeGhostMissMode(0)
	require.NoError(t, err)
	assert.Equal(t, GhostAll, mode)
}

func TestNormalizeGhostMissModeRejectsUnknown(t *testing.T) {
	_, err := NormalizeGhostMissMode("bogus_mode")
	assert.Error(t, err)

	_, err = NormalizeGhostMissMode(7)
	assert.Error(t, err)
}

func ghostDebuff(ts float64, target string) RawEvent {
	return RawEvent{
		"timestamp":     ts,
		"type":          "applydebuff",
		"targetName":    target,
		"abilityGameID": 1224737.0,
	}
}

func ghostTestSource(events []RawEvent) *fakeSource {
	return &fakeSource{
		meta:    testMeta(),
		details: testRoster(),
		eventsFn: eventsByDataType(map[string][]RawEvent{
			"Debuffs": events,
		}),
	}
}

func TestFetchGhostSummaryFirstPerSet(t *testing.T) {
	// 16s and 18s fall in one set; 30s starts another. The 10s application
	// is opener noise.
	src := ghostTestSource([]RawEvent{
		ghostDebuff(10000, "Dara"),
		ghostDebuff(16000, "Dara"),
		ghostDebuff(18000, "Dara"),
		ghostDebuff(30000, "Dara"),
	})

	summary, err := FetchGhostSummary(context.Background(), src, &GhostOptions{
		Options:   Options{ReportCode: "abc", FightName: "dimensius"},
		AbilityID: 1224737,
	})
	require.NoError(t, err)

	assert.Equal(t, GhostFirstPerSet, summary.Mode)
	assert.Equal(t, 2, summary.PerPlayerMisses()["Dara"])
	assert.Equal(t, 2, summary.TotalGhosts())
	require.Len(t, summary.Events, 2)
	assert.Equal(t, 16000.0, summary.Events[0].Timestamp)
	assert.Equal(t, 30000.0, summary.Events[1].Timestamp)
}

func TestFetchGhostSummaryFirstPerPull(t *testing.T) {
	src := ghostTestSource([]RawEvent{
		ghostDebuff(16000, "Dara"),
		ghostDebuff(30000, "Dara"),
		ghostDebuff(416000, "Dara"),
	})

	summary, err := FetchGhostSummary(context.Background(), src, &GhostOptions{
		Options:   Options{ReportCode: "abc", FightName: "dimensius"},
		AbilityID: 1224737,
		Mode:      "first_per_pull",
	})
	require.NoError(t, err)

	// One per pull, across two pulls.
	assert.Equal(t, 2, summary.PerPlayerMisses()["Dara"])
}

func TestFetchGhostSummaryAll(t *testing.T) {
	src := ghostTestSource([]RawEvent{
		ghostDebuff(16000, "Dara"),
		ghostDebuff(17000, "Dara"),
		ghostDebuff(18000, "Dara"),
	})

	summary, err := FetchGhostSummary(context.Background(), src, &GhostOptions{
		Options:   Options{ReportCode: "abc", FightName: "dimensius"},
		AbilityID: 1224737,
		Mode:      "all",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.PerPlayerMisses()["Dara"])
}

func TestFetchGhostSummaryFiltersAbility(t *testing.T) {
	src := ghostTestSource([]RawEvent{
		ghostDebuff(16000, "Dara"),
		{"timestamp": 17000.0, "type": "applydebuff", "targetName": "Dara", "abilityGameID": 999.0},
		{"timestamp": 18000.0, "type": "removedebuff", "targetName": "Dara", "abilityGameID": 1224737.0},
	})

	summary, err := FetchGhostSummary(context.Background(), src, &GhostOptions{
		Options:   Options{ReportCode: "abc", FightName: "dimensius"},
		AbilityID: 1224737,
		Mode:      "all",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PerPlayerMisses()["Dara"])
}

func TestFetchGhostSummaryBadMode(t *testing.T) {
	src := ghostTestSource(nil)

	_, err := FetchGhostSummary(context.Background(), src, &GhostOptions{
		Options:   Options{ReportCode: "abc", FightName: "dimensius"},
		AbilityID: 1224737,
		Mode:      "sometimes",
	})
	assert.Error(t, err)
}

func TestFetchGhostSummaryEntriesSorted(t *testing.T) {
	src := ghostTestSource([]RawEvent{
		ghostDebuff(16000, "Dara"),
		ghostDebuff(30000, "Dara"),
		ghostDebuff(16000, "Cree"),
	})

	summary, err := FetchGhostSummary(context.Background(), src, &GhostOptions{
		Options:   Options{ReportCode: "abc", FightName: "dimensius"},
		AbilityID: 1224737,
	})
	require.NoError(t, err)

	// Tank, healer, then melee and ranged; every rostered player appears.
	assert.Equal(t, "Akame,Bela,Cree,Dara", entryPlayers(summary.Entries))
}
