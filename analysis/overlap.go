package analysis

import (
	"context"
	"sort"
	"strings"
)

// Dimensius phase-one debuffs.
const (
	reverseGravityID = 1243577
	excessMassID     = 1228206
)

const (
	// A gap above this between applications starts a new set.
	earlySetGapMS = 1500.0

	defaultEarlyWindowMS = 1000.0
	minEarlyWindowMS     = 1000.0
	maxEarlyWindowMS     = 15000.0
)

var (
	applyEventTypes = map[string]bool{
		"applydebuff":      true,
		"applydebuffstack": true,
		"refreshdebuff":    true,
	}
	removeEventTypes = map[string]bool{
		"removedebuff":      true,
		"removedebuffstack": true,
	}
)

// Interval is a half-open [Start, End) debuff window on one player.
type Interval struct {
	Start float64
	End   float64
}

// collectDebuffIntervals builds per-player intervals from apply/remove
// events with stack bookkeeping: nested applies bump a counter, and the
// interval closes only when the stack returns to zero. Unterminated
// intervals close at the fight end, or at the death cutoff when that comes
// first.
func (rc *reportContext) collectDebuffIntervals(
	ctx context.Context,
	abilityID int,
	cutoffs map[int]float64,
) (map[int]map[string][]Interval, error) {
	intervalsByFight := make(map[int]map[string][]Interval, len(rc.chosen))

	for _, fight := range rc.chosen {
		events, err := rc.src.Events(ctx, EventQuery{
			DataType:  "Debuffs",
			Start:     fight.Start,
			End:       fight.End,
			AbilityID: abilityID,
		})
		if err != nil {
			return nil, err
		}

		closeAt := fight.End
		cutoff, haveCutoff := cutoffs[fight.ID]
		if haveCutoff && cutoff < closeAt {
			closeAt = cutoff
		}

		intervals := make(map[string][]Interval)
		activeStart := make(map[string]float64)
		stackCounts := make(map[string]int)

		for _, row := range events {
			et := eventType(row)
			if !applyEventTypes[et] && !removeEventTypes[et] {
				continue
			}
			ts, ok := eventTimestamp(row)
			if !ok {
				continue
			}
			if haveCutoff && ts >= cutoff {
				continue
			}
			target := eventTargetName(row)
			if target == "" {
				continue
			}

			if applyEventTypes[et] {
				current := stackCounts[target]
				stackCounts[target] = current + 1
				if current == 0 {
					activeStart[target] = ts
				}
				continue
			}

			current := stackCounts[target]
			if current <= 1 {
				start, active := activeStart[target]
				delete(activeStart, target)
				delete(stackCounts, target)
				if active && ts >= start {
					intervals[target] = append(intervals[target], Interval{Start: start, End: ts})
				}
			} else {
				stackCounts[target] = current - 1
			}
		}

		for player, start := range activeStart {
			intervals[player] = append(intervals[player], Interval{Start: start, End: closeAt})
		}
		for _, list := range intervals {
			sort.Slice(list, func(i, k int) bool { return list[i].Start < list[k].Start })
		}
		intervalsByFight[fight.ID] = intervals
	}

	return intervalsByFight, nil
}

// CountIntervalOverlaps counts pairwise overlaps between two sorted interval
// lists with a two-pointer sweep, advancing whichever interval ends first.
// Nested stacks collapsed into one interval upstream so nothing double
// counts.
func CountIntervalOverlaps(first, second []Interval) int {
	if len(first) == 0 || len(second) == 0 {
		return 0
	}
	count := 0
	i, k := 0, 0
	for i < len(first) && k < len(second) {
		start := first[i].Start
		if second[k].Start > start {
			start = second[k].Start
		}
		end := first[i].End
		if second[k].End < end {
			end = second[k].End
		}
		if start < end {
			count++
		}
		if first[i].End <= second[k].End {
			i++
		} else {
			k++
		}
	}
	return count
}

// clusterSetStarts reduces sorted application timestamps to the start of
// each burst: a new set begins whenever the gap since the previous
// application exceeds earlySetGapMS.
func clusterSetStarts(timestamps []float64) []float64 {
	if len(timestamps) == 0 {
		return nil
	}
	starts := []float64{timestamps[0]}
	prev := timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts-prev > earlySetGapMS {
			starts = append(starts, ts)
		}
		prev = ts
	}
	return starts
}

// clampEarlyWindow applies the default and the [1, 15] second bounds.
func clampEarlyWindow(windowMS float64) float64 {
	if windowMS <= 0 {
		windowMS = defaultEarlyWindowMS
	}
	if windowMS < minEarlyWindowMS {
		windowMS = minEarlyWindowMS
	}
	if windowMS > maxEarlyWindowMS {
		windowMS = maxEarlyWindowMS
	}
	return windowMS
}

// countEarlyPickups flags a player's pickups that land inside the window
// immediately preceding a set start. Each (player, set start) pair counts at
// most once.
func countEarlyPickups(pickups []float64, setStarts []float64, windowMS float64) int {
	if len(pickups) == 0 || len(setStarts) == 0 {
		return 0
	}
	counted := make(map[float64]bool, len(setStarts))
	for _, ts := range pickups {
		idx := sort.SearchFloat64s(setStarts, ts)
		if idx >= len(setStarts) {
			continue
		}
		start := setStarts[idx]
		if start == ts {
			// A pickup exactly at the set start is part of the set.
			continue
		}
		if start-ts <= windowMS && !counted[start] {
			counted[start] = true
		}
	}
	return len(counted)
}

// MetricDefinition labels one phase-one metric for the UI.
type MetricDefinition struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	PerPullLabel string `json:"perPullLabel"`
}

// MetricValue is a total plus its per-pull rate.
type MetricValue struct {
	Total   float64 `json:"total"`
	PerPull float64 `json:"perPull"`
}

// PhaseOneEntry is one player's phase-one metrics.
type PhaseOneEntry struct {
	Player     string                 `json:"player"`
	Role       Role                   `json:"role"`
	ClassName  string                 `json:"className,omitempty"`
	Pulls      int                    `json:"pulls"`
	Metrics    map[string]MetricValue `json:"metrics"`
	FuckupRate float64                `json:"fuckupRate"`
}

// PhaseOneSummary reports Reverse Gravity / Excess Mass overlaps and early
// Excess Mass pickups for the Dimensius opener.
type PhaseOneSummary struct {
	ReportCode string `json:"reportCode"`
	PullCount  int    `json:"pullCount"`

	Metrics      []MetricDefinition     `json:"metrics"`
	Entries      []PhaseOneEntry        `json:"entries"`
	MetricTotals map[string]MetricValue `json:"metricTotals"`

	CombinedPerPull float64 `json:"combinedPerPull"`

	PlayerClasses map[string]string `json:"playerClasses"`
	PlayerRoles   map[string]Role   `json:"playerRoles"`
	PlayerSpecs   map[string]string `json:"playerSpecs"`

	AbilityIDs map[string]int `json:"abilityIds"`
}

// PhaseOneOptions configures the phase-one summary.
type PhaseOneOptions struct {
	Options

	IncludeOverlap     bool
	IncludeEarlyPickup bool
	EarlyWindowMS      float64
	IgnoreAfterDeaths  int
}

// FetchPhaseOneSummary computes the phase-one mistake metrics: simultaneous
// Reverse Gravity + Excess Mass debuffs, and Excess Mass pickups that arrive
// early relative to the recurring set window.
func FetchPhaseOneSummary(ctx context.Context, src Source, opt *PhaseOneOptions) (*PhaseOneSummary, error) {
	rc, err := prepareReport(ctx, src, &opt.Options)
	if err != nil {
		return nil, err
	}

	cutoffs, err := rc.deathCutoffs(ctx, opt.IgnoreAfterDeaths)
	if err != nil {
		return nil, err
	}

	var metrics []MetricDefinition
	if opt.IncludeOverlap {
		metrics = append(metrics, MetricDefinition{
			ID:           "rg_em_overlap",
			Label:        "Reverse Gravity + Excess Mass",
			PerPullLabel: "Overlap / Pull",
		})
	}
	if opt.IncludeEarlyPickup {
		metrics = append(metrics, MetricDefinition{
			ID:           "early_em_pickup",
			Label:        "Early Excess Mass Pickup",
			PerPullLabel: "Early / Pull",
		})
	}

	overlapCounts := make(map[string]int)
	earlyCounts := make(map[string]int)

	var emIntervals map[int]map[string][]Interval
	needEM := opt.IncludeOverlap || opt.IncludeEarlyPickup
	if needEM {
		opt.progress("collecting debuff windows...")
		emIntervals, err = rc.collectDebuffIntervals(ctx, excessMassID, cutoffs)
		if err != nil {
			return nil, err
		}
	}

	if opt.IncludeOverlap {
		rgIntervals, err := rc.collectDebuffIntervals(ctx, reverseGravityID, cutoffs)
		if err != nil {
			return nil, err
		}
		for _, fight := range rc.chosen {
			fightRG := rgIntervals[fight.ID]
			fightEM := emIntervals[fight.ID]
			players := make(map[string]bool, len(fightRG)+len(fightEM))
			for player := range fightRG {
				players[player] = true
			}
			for player := range fightEM {
				players[player] = true
			}
			for player := range players {
				if overlaps := CountIntervalOverlaps(fightRG[player], fightEM[player]); overlaps > 0 {
					overlapCounts[player] += overlaps
				}
			}
		}
	}

	if opt.IncludeEarlyPickup {
		windowMS := clampEarlyWindow(opt.EarlyWindowMS)
		for _, fight := range rc.chosen {
			fightEM := emIntervals[fight.ID]

			pickupsByPlayer := make(map[string][]float64, len(fightEM))
			for player, intervals := range fightEM {
				for _, iv := range intervals {
					pickupsByPlayer[player] = append(pickupsByPlayer[player], iv.Start)
				}
			}

			// Each player is judged against the set starts formed by
			// everyone else; a player's own pickups never seed a cluster.
			for player, pickups := range pickupsByPlayer {
				var otherStarts []float64
				for other, list := range pickupsByPlayer {
					if other == player {
						continue
					}
					otherStarts = append(otherStarts, list...)
				}
				sort.Float64s(otherStarts)
				setStarts := clusterSetStarts(otherStarts)

				sort.Float64s(pickups)
				if early := countEarlyPickups(pickups, setStarts, windowMS); early > 0 {
					earlyCounts[player] += early
				}
			}
		}
	}

	pullCount := len(rc.chosen)

	allPlayers := make(map[string]bool)
	for player := range rc.rolesGlobal {
		allPlayers[player] = true
	}
	for player := range rc.pullsByPlayer {
		allPlayers[player] = true
	}
	for player := range overlapCounts {
		allPlayers[player] = true
	}
	for player := range earlyCounts {
		allPlayers[player] = true
	}
	if len(allPlayers) == 0 {
		for _, participants := range rc.participantsByFight {
			for _, player := range participants {
				allPlayers[player] = true
			}
		}
	}

	metricTotals := make(map[string]MetricValue)
	if opt.IncludeOverlap {
		var total float64
		for _, count := range overlapCounts {
			total += float64(count)
		}
		perPull := 0.0
		if pullCount > 0 {
			perPull = total / float64(pullCount)
		}
		metricTotals["rg_em_overlap"] = MetricValue{Total: total, PerPull: perPull}
	}
	if opt.IncludeEarlyPickup {
		var total float64
		for _, count := range earlyCounts {
			total += float64(count)
		}
		perPull := 0.0
		if pullCount > 0 {
			perPull = total / float64(pullCount)
		}
		metricTotals["early_em_pickup"] = MetricValue{Total: total, PerPull: perPull}
	}

	var combinedPerPull float64
	for _, value := range metricTotals {
		combinedPerPull += value.PerPull
	}

	playerClasses := make(map[string]string, len(allPlayers))
	playerRoles := make(map[string]Role, len(allPlayers))
	playerSpecs := make(map[string]string, len(allPlayers))
	entries := make([]PhaseOneEntry, 0, len(allPlayers))

	for player := range allPlayers {
		playerClasses[player] = rc.nameToClass[player]
		playerRoles[player] = rc.globalRole(player)
		playerSpecs[player] = rc.specsGlobal[player]

		pulls := rc.pullsFor(player)
		metricsMap := make(map[string]MetricValue, len(metrics))
		if opt.IncludeOverlap {
			total := float64(overlapCounts[player])
			metricsMap["rg_em_overlap"] = MetricValue{Total: total, PerPull: total / float64(pulls)}
		}
		if opt.IncludeEarlyPickup {
			total := float64(earlyCounts[player])
			metricsMap["early_em_pickup"] = MetricValue{Total: total, PerPull: total / float64(pulls)}
		}

		var fuckupRate float64
		for _, value := range metricsMap {
			fuckupRate += value.PerPull
		}

		entries = append(entries, PhaseOneEntry{
			Player:     player,
			Role:       playerRoles[player],
			ClassName:  playerClasses[player],
			Pulls:      pulls,
			Metrics:    metricsMap,
			FuckupRate: fuckupRate,
		})
	}

	sort.Slice(entries, func(i, k int) bool {
		pi, pk := rolePriority(entries[i].Role), rolePriority(entries[k].Role)
		if pi != pk {
			return pi < pk
		}
		if entries[i].FuckupRate != entries[k].FuckupRate {
			return entries[i].FuckupRate > entries[k].FuckupRate
		}
		if entries[i].Pulls != entries[k].Pulls {
			return entries[i].Pulls > entries[k].Pulls
		}
		return strings.ToLower(entries[i].Player) < strings.ToLower(entries[k].Player)
	})

	return &PhaseOneSummary{
		ReportCode:      opt.ReportCode,
		PullCount:       pullCount,
		Metrics:         metrics,
		Entries:         entries,
		MetricTotals:    metricTotals,
		CombinedPerPull: combinedPerPull,
		PlayerClasses:   playerClasses,
		PlayerRoles:     playerRoles,
		PlayerSpecs:     playerSpecs,
		AbilityIDs: map[string]int{
			"reverse_gravity": reverseGravityID,
			"excess_mass":     excessMassID,
		},
	}, nil
}
