package analysis

import (
	"context"
	"sort"
	"strings"
)

// Tracked Dimensius abilities. Oblivion deaths only count when one of the
// qualifying debuff/damage events hit the player shortly before.
const (
	oblivionID      = 1249077
	airborneID      = 1243609
	fistsOfVoidlord = 1227665
	devourID        = 1243373
	recentWindowMS  = 8000.0
)

var staticAbilityLabels = map[int]string{
	oblivionID:      "Oblivion",
	airborneID:      "Airborne",
	fistsOfVoidlord: "Fists of the Voidlord",
	devourID:        "Devour",
}

// DeathEvent is one counted player death with its killing ability. The
// bled-out report also emits consumable-usage rows through this type, with
// Label naming the consumable instead of "Death".
type DeathEvent struct {
	Player         string  `json:"player"`
	FightID        int     `json:"fightId"`
	FightName      string  `json:"fightName"`
	PullIndex      int     `json:"pullIndex"`
	Timestamp      float64 `json:"timestamp"`
	OffsetMS       float64 `json:"offsetMs"`
	AbilityID      int     `json:"abilityId,omitempty"`
	AbilityLabel   string  `json:"abilityLabel,omitempty"`
	Label          string  `json:"label,omitempty"`
	Description    string  `json:"description,omitempty"`
	PullDurationMS float64 `json:"pullDurationMs,omitempty"`
}

// DeathEntry is one player's death totals with the event drill-down.
type DeathEntry struct {
	Player    string       `json:"player"`
	Role      Role         `json:"role"`
	ClassName string       `json:"className,omitempty"`
	Pulls     int          `json:"pulls"`
	Deaths    int          `json:"deaths"`
	DeathRate float64      `json:"deathRate"`
	Events    []DeathEvent `json:"events"`
}

// DeathSummary is the per-player death report for one report code.
type DeathSummary struct {
	ReportCode        string `json:"reportCode"`
	PullCount         int    `json:"pullCount"`
	IgnoreAfterDeaths int    `json:"ignoreAfterDeaths,omitempty"`
	TotalDeaths       int    `json:"totalDeaths"`

	OblivionFilter string `json:"oblivionFilter,omitempty"`
	BledOutFilter  string `json:"bledOutFilter,omitempty"`
	BledOutMode    string `json:"bledOutMode,omitempty"`

	Entries []DeathEntry `json:"entries"`

	PlayerClasses map[string]string       `json:"playerClasses"`
	PlayerRoles   map[string]Role         `json:"playerRoles"`
	PlayerSpecs   map[string]string       `json:"playerSpecs"`
	PlayerEvents  map[string][]DeathEvent `json:"-"`
	AbilityLabels map[int]string          `json:"-"`
}

// DeathOptions configures a death summary fetch.
type DeathOptions struct {
	Options

	IgnoreAfterDeaths int
}

// eventTimes holds per-fight, per-player sorted timestamps of a tracked
// ability, used for the recent-event gate.
type eventTimes map[int]map[string][]float64

func (et eventTimes) hasRecent(fightID int, player string, ts float64) bool {
	fightEvents, ok := et[fightID]
	if !ok {
		return false
	}
	stamps := fightEvents[player]
	if len(stamps) == 0 {
		return false
	}
	cutoff := ts - recentWindowMS
	idx := sort.SearchFloat64s(stamps, cutoff)
	return idx < len(stamps) && stamps[idx] <= ts
}

func (rc *reportContext) collectTargetEventTimes(
	ctx context.Context,
	dataType string,
	abilityID int,
	allowedTypes map[string]bool,
	cutoffs map[int]float64,
) (eventTimes, error) {
	times := make(eventTimes, len(rc.chosen))
	for _, fight := range rc.chosen {
		events, err := rc.src.Events(ctx, EventQuery{
			DataType:  dataType,
			Start:     fight.Start,
			End:       fight.End,
			AbilityID: abilityID,
		})
		if err != nil {
			return nil, err
		}

		cutoff, haveCutoff := cutoffs[fight.ID]
		for _, row := range events {
			if allowedTypes != nil && !allowedTypes[eventType(row)] {
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
			if times[fight.ID] == nil {
				times[fight.ID] = make(map[string][]float64)
			}
			times[fight.ID][target] = append(times[fight.ID][target], ts)
		}
	}
	for _, fightMap := range times {
		for _, stamps := range fightMap {
			sort.Float64s(stamps)
		}
	}
	return times, nil
}

// killingAbilityID prefers the explicit killingAbilityGameID field.
func killingAbilityID(row RawEvent) (int, bool) {
	if n, ok := asInt(row["killingAbilityGameID"]); ok && row["killingAbilityGameID"] != nil && n != 0 {
		return n, true
	}
	return eventAbilityGameID(row)
}

// FetchDeathSummary counts per-player deaths with the Oblivion gate: a death
// to Oblivion only counts when the player took a qualifying Airborne, Fists
// of the Voidlord, or Devour event within the preceding window. Ability
// labels come from the report master data, seeded with static names.
func FetchDeathSummary(ctx context.Context, src Source, opt *DeathOptions) (*DeathSummary, error) {
	rc, err := prepareReport(ctx, src, &opt.Options)
	if err != nil {
		return nil, err
	}

	cutoffs, err := rc.deathCutoffs(ctx, opt.IgnoreAfterDeaths)
	if err != nil {
		return nil, err
	}

	debuffTypes := map[string]bool{
		"applydebuff":      true,
		"applydebuffstack": true,
		"refreshdebuff":    true,
	}
	airborneTimes, err := rc.collectTargetEventTimes(ctx, "Debuffs", airborneID, debuffTypes, cutoffs)
	if err != nil {
		return nil, err
	}
	fistsTimes, err := rc.collectTargetEventTimes(ctx, "DamageTaken", fistsOfVoidlord, nil, cutoffs)
	if err != nil {
		return nil, err
	}
	devourTimes, err := rc.collectTargetEventTimes(ctx, "DamageTaken", devourID, nil, cutoffs)
	if err != nil {
		return nil, err
	}

	abilityLabels := make(map[int]string, len(staticAbilityLabels))
	for id, label := range staticAbilityLabels {
		abilityLabels[id] = label
	}
	// Label resolution is best-effort; a failed master-data fetch only
	// degrades display names.
	if labels, err := src.AbilityLabels(ctx); err == nil {
		for id, label := range labels {
			if label != "" {
				abilityLabels[id] = label
			}
		}
	}

	eventsByPlayer := make(map[string][]DeathEvent)
	deathCounts := make(map[string]int)

	for _, fight := range rc.chosen {
		opt.progress("scanning deaths, pull %d / %d...", rc.pullIndexByFight[fight.ID], len(rc.chosen))

		events, err := src.Events(ctx, EventQuery{
			DataType: "Deaths",
			Start:    fight.Start,
			End:      fight.End,
		})
		if err != nil {
			return nil, err
		}

		cutoff, haveCutoff := cutoffs[fight.ID]
		for _, row := range events {
			ts, ok := eventTimestamp(row)
			if !ok {
				continue
			}
			// The Nth death itself still counts; only later deaths drop.
			if haveCutoff && ts > cutoff {
				continue
			}
			target := eventTargetName(row)
			if target == "" {
				continue
			}

			abilityID, haveAbility := killingAbilityID(row)
			label := ""
			if haveAbility {
				label = abilityLabels[abilityID]
				if label == "" {
					if nested, ok := row["ability"].(map[string]interface{}); ok {
						label = asString(nested["name"])
						if label != "" {
							abilityLabels[abilityID] = label
						}
					}
				}
			}

			if haveAbility && abilityID == oblivionID {
				qualified := airborneTimes.hasRecent(fight.ID, target, ts) ||
					fistsTimes.hasRecent(fight.ID, target, ts) ||
					devourTimes.hasRecent(fight.ID, target, ts)
				if !qualified {
					continue
				}
			}

			deathCounts[target]++
			eventsByPlayer[target] = append(eventsByPlayer[target], DeathEvent{
				Player:       target,
				FightID:      fight.ID,
				FightName:    fight.Name,
				PullIndex:    rc.pullIndexByFight[fight.ID],
				Timestamp:    ts,
				OffsetMS:     ts - fight.Start,
				AbilityID:    abilityID,
				AbilityLabel: label,
			})
		}
	}

	allPlayers := make(map[string]bool)
	for player := range rc.pullsByPlayer {
		allPlayers[player] = true
	}
	for player := range eventsByPlayer {
		allPlayers[player] = true
	}
	if len(allPlayers) == 0 {
		for _, participants := range rc.participantsByFight {
			for _, player := range participants {
				allPlayers[player] = true
			}
		}
	}

	playerClasses := make(map[string]string, len(allPlayers))
	playerRoles := make(map[string]Role, len(allPlayers))
	playerSpecs := make(map[string]string, len(allPlayers))

	entries := make([]DeathEntry, 0, len(allPlayers))
	totalDeaths := 0

	for player := range allPlayers {
		playerClasses[player] = rc.nameToClass[player]
		playerRoles[player] = rc.globalRole(player)
		playerSpecs[player] = rc.specsGlobal[player]

		pulls := rc.pullsFor(player)
		deaths := deathCounts[player]
		totalDeaths += deaths

		playerEvents := append([]DeathEvent(nil), eventsByPlayer[player]...)
		sort.Slice(playerEvents, func(i, k int) bool {
			return playerEvents[i].Timestamp < playerEvents[k].Timestamp
		})

		entries = append(entries, DeathEntry{
			Player:    player,
			Role:      playerRoles[player],
			ClassName: playerClasses[player],
			Pulls:     pulls,
			Deaths:    deaths,
			DeathRate: float64(deaths) / float64(pulls),
			Events:    playerEvents,
		})
	}

	sort.Slice(entries, func(i, k int) bool {
		pi, pk := rolePriority(entries[i].Role), rolePriority(entries[k].Role)
		if pi != pk {
			return pi < pk
		}
		if entries[i].Deaths != entries[k].Deaths {
			return entries[i].Deaths > entries[k].Deaths
		}
		return strings.ToLower(entries[i].Player) < strings.ToLower(entries[k].Player)
	})

	ignoreAfterDeaths := 0
	if opt.IgnoreAfterDeaths > 0 {
		ignoreAfterDeaths = opt.IgnoreAfterDeaths
	}

	return &DeathSummary{
		ReportCode:        opt.ReportCode,
		PullCount:         len(rc.chosen),
		IgnoreAfterDeaths: ignoreAfterDeaths,
		TotalDeaths:       totalDeaths,
		OblivionFilter:    "exclude_without_recent",
		Entries:           entries,
		PlayerClasses:     playerClasses,
		PlayerRoles:       playerRoles,
		PlayerSpecs:       playerSpecs,
		PlayerEvents:      eventsByPlayer,
		AbilityLabels:     abilityLabels,
	}, nil
}
