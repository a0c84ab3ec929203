package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Bled-out report: deaths to sustained damage where the player never used a
// consumable heal during the pull.
const darkEnergyID = 1231002

// Forgiveness modes for consumable usage. Lenient excludes a death when
// either consumable was used; the default requires both before forgiving.
const (
	BledOutNoForgiveness = "no_forgiveness"
	BledOutLenient       = "lenient"
)

var (
	bleedCauseNames = map[string]bool{
		"devour":           true,
		"cosmic radiation": true,
		"dark energy":      true,
		"fission":          true,
	}
	bleedCauseIDs = map[int]bool{
		devourID:     true,
		darkEnergyID: true,
	}

	consumableHealNames = []string{"Healthstone", "Invigorating Healing Potion"}
)

// BledOutOptions configures the bled-out death summary.
type BledOutOptions struct {
	Options

	IgnoreAfterDeaths int
	Mode              string
}

func matchesBleedCause(abilityID int, haveID bool, label string) bool {
	if haveID && bleedCauseIDs[abilityID] {
		return true
	}
	return label != "" && bleedCauseNames[strings.ToLower(label)]
}

// consumableUsage maps ability name to usage timestamps for one player.
type consumableUsage map[string][]float64

func shouldExcludeForConsumables(usage consumableUsage, mode string) bool {
	if len(usage) == 0 {
		return false
	}
	hasHealthstone := len(usage[consumableHealNames[0]]) > 0
	hasPotion := len(usage[consumableHealNames[1]]) > 0
	if mode == BledOutLenient {
		return hasHealthstone || hasPotion
	}
	return hasHealthstone && hasPotion
}

// collectConsumableHeals gathers per-fight, per-player usage timestamps of
// the tracked consumable heals.
func (rc *reportContext) collectConsumableHeals(ctx context.Context) (map[int]map[string]consumableUsage, error) {
	usageByFight := make(map[int]map[string]consumableUsage, len(rc.chosen))
	for _, abilityName := range consumableHealNames {
		for _, fight := range rc.chosen {
			events, err := rc.src.Events(ctx, EventQuery{
				DataType:    "Healing",
				Start:       fight.Start,
				End:         fight.End,
				AbilityName: abilityName,
			})
			if err != nil {
				return nil, err
			}
			for _, row := range events {
				ts, ok := eventTimestamp(row)
				if !ok {
					continue
				}
				target := eventTargetName(row)
				if target == "" {
					continue
				}
				if usageByFight[fight.ID] == nil {
					usageByFight[fight.ID] = make(map[string]consumableUsage)
				}
				if usageByFight[fight.ID][target] == nil {
					usageByFight[fight.ID][target] = make(consumableUsage)
				}
				usageByFight[fight.ID][target][abilityName] = append(usageByFight[fight.ID][target][abilityName], ts)
			}
		}
	}
	return usageByFight, nil
}

// appendConsumableEvents adds one drill-down row per tracked consumable so
// the report shows when each was used, or that it never was.
func appendConsumableEvents(
	eventsByPlayer map[string][]DeathEvent,
	player string,
	fight Fight,
	pullIndex int,
	referenceTS float64,
	usage consumableUsage,
) {
	pullDuration := fight.End - fight.Start
	for _, abilityName := range consumableHealNames {
		stamps := usage[abilityName]
		if len(stamps) == 0 {
			eventsByPlayer[player] = append(eventsByPlayer[player], DeathEvent{
				Player:         player,
				FightID:        fight.ID,
				FightName:      fight.Name,
				PullIndex:      pullIndex,
				Timestamp:      referenceTS,
				OffsetMS:       referenceTS - fight.Start,
				Label:          abilityName,
				Description:    "Not used during this pull.",
				PullDurationMS: pullDuration,
			})
			continue
		}
		for _, ts := range stamps {
			offset := ts - fight.Start
			eventsByPlayer[player] = append(eventsByPlayer[player], DeathEvent{
				Player:         player,
				FightID:        fight.ID,
				FightName:      fight.Name,
				PullIndex:      pullIndex,
				Timestamp:      ts,
				OffsetMS:       offset,
				Label:          abilityName,
				Description:    fmt.Sprintf("Used at %.2fs", offset/1000.0),
				PullDurationMS: pullDuration,
			})
		}
	}
}

// FetchBledOutSummary reports deaths to the tracked sustained-damage causes
// where the player's consumable-heal usage does not forgive the death, with
// per-consumable drill-down rows next to each counted death.
func FetchBledOutSummary(ctx context.Context, src Source, opt *BledOutOptions) (*DeathSummary, error) {
	mode := opt.Mode
	if mode == "" {
		mode = BledOutNoForgiveness
	}

	rc, err := prepareReport(ctx, src, &opt.Options)
	if err != nil {
		return nil, err
	}

	cutoffs, err := rc.deathCutoffs(ctx, opt.IgnoreAfterDeaths)
	if err != nil {
		return nil, err
	}

	consumables, err := rc.collectConsumableHeals(ctx)
	if err != nil {
		return nil, err
	}

	abilityLabels := make(map[int]string, len(staticAbilityLabels))
	for id, label := range staticAbilityLabels {
		abilityLabels[id] = label
	}
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
		opt.progress("scanning bled-out deaths, pull %d / %d...",
			rc.pullIndexByFight[fight.ID], len(rc.chosen))

		events, err := src.Events(ctx, EventQuery{
			DataType: "Deaths",
			Start:    fight.Start,
			End:      fight.End,
		})
		if err != nil {
			return nil, err
		}

		fightConsumables := consumables[fight.ID]
		cutoff, haveCutoff := cutoffs[fight.ID]
		for _, row := range events {
			ts, ok := eventTimestamp(row)
			if !ok {
				continue
			}
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
					}
				}
			}
			if !matchesBleedCause(abilityID, haveAbility, label) {
				continue
			}

			usage := fightConsumables[target]
			if shouldExcludeForConsumables(usage, mode) {
				continue
			}

			deathCounts[target]++
			eventsByPlayer[target] = append(eventsByPlayer[target], DeathEvent{
				Player:         target,
				FightID:        fight.ID,
				FightName:      fight.Name,
				PullIndex:      rc.pullIndexByFight[fight.ID],
				Timestamp:      ts,
				OffsetMS:       ts - fight.Start,
				AbilityID:      abilityID,
				AbilityLabel:   label,
				Label:          "Death",
				PullDurationMS: fight.End - fight.Start,
			})
			appendConsumableEvents(eventsByPlayer, target, fight, rc.pullIndexByFight[fight.ID], ts, usage)
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
		BledOutFilter:     "no_consumable_heals",
		BledOutMode:       mode,
		Entries:           entries,
		PlayerClasses:     playerClasses,
		PlayerRoles:       playerRoles,
		PlayerSpecs:       playerSpecs,
		PlayerEvents:      eventsByPlayer,
		AbilityLabels:     abilityLabels,
	}, nil
}
