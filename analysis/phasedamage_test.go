package analysis

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhaseIDs(t *testing.T) {
	labels := resolvePhaseLabels("nexus")

	assert.Equal(t, []string{"1", "3"}, normalizePhaseIDs([]string{"1", "3"}, labels))
	assert.Equal(t, []string{"full"}, normalizePhaseIDs([]string{"full"}, labels))
	assert.Equal(t, []string{"full"}, normalizePhaseIDs([]string{"ALL"}, labels))

	// Unknown and duplicate phases drop silently.
	assert.Equal(t, []string{"2"}, normalizePhaseIDs([]string{"2", "99", "2", "x"}, labels))

	// Nothing usable falls back to full.
	assert.Equal(t, []string{"full"}, normalizePhaseIDs([]string{"99"}, labels))
	assert.Equal(t, []string{"full"}, normalizePhaseIDs(nil, labels))
}

func TestResolvePhaseLabels(t *testing.T) {
	assert.Equal(t, nexusPhaseLabels, resolvePhaseLabels(""))
	assert.Equal(t, dimensiusPhaseLabels, resolvePhaseLabels("Dimensius"))
	assert.Equal(t, nexusPhaseLabels, resolvePhaseLabels("unheard-of"))
}

func TestSanitizeExtraCodes(t *testing.T) {
	codes := sanitizeExtraCodes("primary", []string{
		"",
		"primary",
		"https://www.warcraftlogs.com/reports/second",
		"second",
		"third",
	})
	assert.Equal(t, []string{"second", "third"}, codes)
}

func TestValidatePullSignatures(t *testing.T) {
	base := []fightSignature{
		{Name: "Dimensius", Kill: false, Duration: 300000},
		{Name: "Dimensius", Kill: true, Duration: 360000},
	}

	same := []fightSignature{
		{Name: "Dimensius", Kill: false, Duration: 310000},
		{Name: "Dimensius", Kill: true, Duration: 350000},
	}
	assert.NoError(t, validatePullSignatures(base, same))

	var sel *FightSelectionError

	short := same[:1]
	err := validatePullSignatures(base, short)
	require.Error(t, err)
	assert.ErrorAs(t, err, &sel)

	wrongKill := []fightSignature{
		{Name: "Dimensius", Kill: true, Duration: 300000},
		{Name: "Dimensius", Kill: true, Duration: 360000},
	}
	assert.Error(t, validatePullSignatures(base, wrongKill))

	drifted := []fightSignature{
		{Name: "Dimensius", Kill: false, Duration: 330000},
		{Name: "Dimensius", Kill: true, Duration: 360000},
	}
	assert.Error(t, validatePullSignatures(base, drifted))
}

func phaseDamageSource(amountsByPlayer map[string]float64) *fakeSource {
	src := &fakeSource{
		meta:    testMeta(),
		details: testRoster(),
		tables:  make(map[string][]TableEntry),
	}
	actorIDs := map[string]int{"Akame": 11, "Bela": 12, "Cree": 13, "Dara": 14}
	for _, fightID := range []int{1, 2} {
		var damage, healing []TableEntry
		for player, amount := range amountsByPlayer {
			entry := TableEntry{ID: ipt(actorIDs[player]), Name: player, Total: fpt(amount)}
			if player == "Bela" {
				healing = append(healing, entry)
			} else {
				damage = append(damage, entry)
			}
		}
		src.tables["DamageDone|"+strconv.Itoa(fightID)] = damage
		src.tables["Healing|"+strconv.Itoa(fightID)] = healing
	}
	return src
}

func TestFetchPhaseDamageSummarySingle(t *testing.T) {
	provider := &fakeProvider{sources: map[string]*fakeSource{
		"abc": phaseDamageSource(map[string]float64{
			"Akame": 1000, "Bela": 2000, "Cree": 3000, "Dara": 4000,
		}),
	}}

	summary, err := FetchPhaseDamageSummary(context.Background(), provider, &PhaseDamageOptions{
		Options: Options{ReportCode: "abc", FightName: "dimensius"},
		Phases:  []string{"full"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"full"}, summary.Phases)
	assert.Equal(t, 2, summary.PullCount)
	require.Len(t, summary.Entries, 4)

	// Role-priority order, both pulls counted per player.
	assert.Equal(t, "Akame", summary.Entries[0].Player)
	assert.Equal(t, RoleTank, summary.Entries[0].Role)
	assert.Equal(t, 2, summary.Entries[0].Pulls)
	require.Len(t, summary.Entries[0].Metrics, 1)
	assert.Equal(t, 2000.0, summary.Entries[0].Metrics[0].TotalAmount)
	assert.Equal(t, 1000.0, summary.Entries[0].Metrics[0].AveragePerPull)

	// The healer's metric comes from the Healing table.
	assert.Equal(t, "Bela", summary.Entries[1].Player)
	assert.Equal(t, 4000.0, summary.Entries[1].Metrics[0].TotalAmount)
}

func TestFetchPhaseDamageSummaryMergeTakesMaximum(t *testing.T) {
	provider := &fakeProvider{sources: map[string]*fakeSource{
		"abc": phaseDamageSource(map[string]float64{"Akame": 1000, "Dara": 4000}),
		"xyz": phaseDamageSource(map[string]float64{"Akame": 1500, "Dara": 3000}),
	}}

	summary, err := FetchPhaseDamageSummary(context.Background(), provider, &PhaseDamageOptions{
		Options:          Options{ReportCode: "abc", FightName: "dimensius"},
		Phases:           []string{"full"},
		ExtraReportCodes: []string{"xyz"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"abc", "xyz"}, summary.SourceReports)

	totals := make(map[string]float64)
	for _, entry := range summary.Entries {
		totals[entry.Player] = entry.Metrics[0].TotalAmount
	}
	// Per-player maximum across recordings, never the sum.
	assert.Equal(t, 3000.0, totals["Akame"])
	assert.Equal(t, 8000.0, totals["Dara"])
}

func TestFetchPhaseDamageSummaryMergeRejectsMismatch(t *testing.T) {
	mismatched := phaseDamageSource(map[string]float64{"Akame": 1000})
	mismatched.meta = &ReportMeta{
		Fights: []Fight{
			{ID: 1, Name: "Dimensius", Start: 0, End: 300000},
		},
		ActorNames: map[int]string{11: "Akame"},
		ActorClass: map[int]string{11: "Warrior"},
	}

	provider := &fakeProvider{sources: map[string]*fakeSource{
		"abc": phaseDamageSource(map[string]float64{"Akame": 1000}),
		"bad": mismatched,
	}}

	_, err := FetchPhaseDamageSummary(context.Background(), provider, &PhaseDamageOptions{
		Options:          Options{ReportCode: "abc", FightName: "dimensius"},
		Phases:           []string{"full"},
		ExtraReportCodes: []string{"bad"},
	})
	require.Error(t, err)
	var sel *FightSelectionError
	assert.ErrorAs(t, err, &sel)
}
