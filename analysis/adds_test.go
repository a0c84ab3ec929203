package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addHit(ts float64, sourceID int, targetInstance int, amount float64) RawEvent {
	return RawEvent{
		"timestamp":      ts,
		"type":           "damage",
		"sourceID":       float64(sourceID),
		"targetID":       900.0,
		"targetInstance": float64(targetInstance),
		"amount":         amount,
	}
}

func addSource(events []RawEvent) *fakeSource {
	return &fakeSource{
		meta:    testMeta(),
		details: testRoster(),
		eventsFn: func(q EventQuery) []RawEvent {
			if q.DataType != "DamageDone" || q.Filter != livingMassFilter || q.Start != 0 {
				return nil
			}
			return events
		},
	}
}

func TestFetchAddDamageSummary(t *testing.T) {
	provider := &fakeProvider{sources: map[string]*fakeSource{
		"abc": addSource([]RawEvent{
			addHit(10000, 14, 1, 5000),
			addHit(11000, 13, 1, 3000),
			// absorbed adds, overkill subtracts.
			{"timestamp": 12000.0, "type": "damage", "sourceID": 14.0, "targetID": 900.0, "targetInstance": 2.0,
				"amount": 1000.0, "absorbed": 200.0, "overkill": 300.0},
			// Non-positive results drop.
			{"timestamp": 13000.0, "type": "damage", "sourceID": 13.0, "targetID": 900.0, "targetInstance": 2.0,
				"amount": 100.0, "overkill": 150.0},
		}),
	}}

	summary, err := FetchAddDamageSummary(context.Background(), provider, &AddDamageOptions{
		Options: Options{ReportCode: "abc", FightName: "dimensius"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PullCount)
	assert.False(t, summary.IgnoreFirstAddSet)
	assert.Equal(t, []string{"abc"}, summary.SourceReports)

	byPlayer := make(map[string]AddDamageEntry)
	for _, entry := range summary.Entries {
		byPlayer[entry.Player] = entry
	}
	assert.Equal(t, 5900.0, byPlayer["Dara"].TotalDamage)
	assert.Equal(t, 3000.0, byPlayer["Cree"].TotalDamage)
	assert.Equal(t, 2, byPlayer["Dara"].Pulls)
	assert.Equal(t, 2950.0, byPlayer["Dara"].AverageDamage)

	// Rostered players with no add damage still get zero rows.
	require.Contains(t, byPlayer, "Akame")
	assert.Equal(t, 0.0, byPlayer["Akame"].TotalDamage)

	assert.Equal(t, 8900.0, summary.TotalDamage)
	assert.Equal(t, 4450.0, summary.AvgDamagePerPull)
}

func TestFetchAddDamageSummaryIgnoreFirstSet(t *testing.T) {
	var events []RawEvent
	// Six distinct first-set adds, all damaged by Dara.
	for instance := 1; instance <= 6; instance++ {
		events = append(events, addHit(float64(10000+instance), 14, instance, 1000))
	}
	// A seventh add is past the first set and counts.
	events = append(events, addHit(20000, 14, 7, 750))
	// Repeat damage on an ignored add stays ignored.
	events = append(events, addHit(21000, 14, 3, 400))

	provider := &fakeProvider{sources: map[string]*fakeSource{
		"abc": addSource(events),
	}}

	summary, err := FetchAddDamageSummary(context.Background(), provider, &AddDamageOptions{
		Options:           Options{ReportCode: "abc", FightName: "dimensius"},
		IgnoreFirstAddSet: true,
	})
	require.NoError(t, err)

	assert.True(t, summary.IgnoreFirstAddSet)
	byPlayer := make(map[string]AddDamageEntry)
	for _, entry := range summary.Entries {
		byPlayer[entry.Player] = entry
	}
	assert.Equal(t, 750.0, byPlayer["Dara"].TotalDamage)
}

func TestFetchAddDamageSummaryMerge(t *testing.T) {
	provider := &fakeProvider{sources: map[string]*fakeSource{
		"abc": addSource([]RawEvent{addHit(10000, 14, 1, 5000)}),
		"xyz": addSource([]RawEvent{addHit(10000, 14, 1, 7000)}),
	}}

	summary, err := FetchAddDamageSummary(context.Background(), provider, &AddDamageOptions{
		Options:          Options{ReportCode: "abc", FightName: "dimensius"},
		ExtraReportCodes: []string{"xyz"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"abc", "xyz"}, summary.SourceReports)

	byPlayer := make(map[string]AddDamageEntry)
	for _, entry := range summary.Entries {
		byPlayer[entry.Player] = entry
	}
	// Maximum across recordings, not the sum.
	assert.Equal(t, 7000.0, byPlayer["Dara"].TotalDamage)
}
