package analysis

import (
	"context"
	"sort"
	"strings"
)

// Artoshion priority-target constants. Shooting Star damage is ambient and
// excluded from the comparison.
const (
	artoshionName       = "Artoshion"
	shootingStarName    = "Shooting Star"
	shootingStarID      = 1246948
	priorityPhaseFilter = `encounterPhase = 3 and target.name = "` + artoshionName + `"`
)

// PriorityDamageEntry is one player's damage on the priority target.
type PriorityDamageEntry struct {
	Player        string  `json:"player"`
	Role          Role    `json:"role"`
	ClassName     string  `json:"className,omitempty"`
	Pulls         int     `json:"pulls"`
	TotalDamage   float64 `json:"totalDamage"`
	AverageDamage float64 `json:"averageDamage"`
}

// PriorityDamageSummary reports phase-filtered damage on the priority
// target. Pulls only count when the phase actually occurred in that pull.
type PriorityDamageSummary struct {
	ReportCode string `json:"reportCode"`

	Entries []PriorityDamageEntry `json:"entries"`

	PlayerClasses map[string]string `json:"playerClasses"`
	PlayerRoles   map[string]Role   `json:"playerRoles"`
	PlayerSpecs   map[string]string `json:"playerSpecs"`

	PullCount        int     `json:"pullCount"`
	TotalDamage      float64 `json:"totalDamage"`
	AvgDamagePerPull float64 `json:"avgDamagePerPull"`

	TargetName    string `json:"targetName"`
	IgnoredSource string `json:"ignoredSource"`
}

// PriorityDamageOptions configures the priority-damage fetch.
type PriorityDamageOptions struct {
	Options
}

// eventDamageAmount totals every damage component on one event.
func eventDamageAmount(row RawEvent) float64 {
	var total float64
	for _, field := range [...]string{"amount", "absorbed", "overkill", "blocked", "resisted", "mitigated"} {
		if v, ok := asFloat(row[field]); ok && row[field] != nil {
			total += v
		}
	}
	return total
}

func isShootingStarEvent(sourceName string, abilityName string, abilityID int, haveAbilityID bool) bool {
	if sourceName == shootingStarName {
		return true
	}
	if haveAbilityID && abilityID == shootingStarID {
		return true
	}
	return abilityName != "" && strings.EqualFold(abilityName, shootingStarName)
}

// FetchPriorityDamageSummary sums each player's phase-three damage on the
// priority target, excluding Shooting Star. A pull contributes to a player's
// average only when they dealt damage during the phase; fights where the
// phase never started are excluded from the report-wide average.
func FetchPriorityDamageSummary(ctx context.Context, src Source, opt *PriorityDamageOptions) (*PriorityDamageSummary, error) {
	rc, err := prepareReport(ctx, src, &opt.Options)
	if err != nil {
		return nil, err
	}

	playerClasses := make(map[string]string, len(rc.nameToClass))
	for name, class := range rc.nameToClass {
		playerClasses[name] = class
	}
	playerRoles := make(map[string]Role, len(rc.rolesGlobal))
	for player, role := range rc.rolesGlobal {
		playerRoles[player] = role
	}
	playerSpecs := make(map[string]string, len(rc.specsGlobal))
	for player, spec := range rc.specsGlobal {
		playerSpecs[player] = spec
	}
	for _, fightRoles := range rc.rolesByFight {
		for player, role := range fightRoles {
			if existing, ok := playerRoles[player]; !ok || existing == RoleUnknown || existing == "" {
				playerRoles[player] = role
			}
			if _, ok := playerSpecs[player]; !ok {
				playerSpecs[player] = rc.specsGlobal[player]
			}
		}
	}

	damageTotals := make(map[string]float64)
	pullsByPlayer := make(map[string]int)
	fightsWithPhase := 0

	for _, fight := range rc.chosen {
		opt.progress("fetching priority damage, pull %d / %d...",
			rc.pullIndexByFight[fight.ID], len(rc.chosen))

		events, err := src.Events(ctx, EventQuery{
			DataType: "DamageDone",
			Start:    fight.Start,
			End:      fight.End,
			Filter:   priorityPhaseFilter,
		})
		if err != nil {
			return nil, err
		}

		damageMap := make(map[string]float64)
		var phaseStart float64
		havePhase := false

		for _, row := range events {
			sourceName, _ := resolveEventSourcePlayer(row, rc.meta.ActorNames, rc.meta.ActorOwners)
			if sourceName == "" {
				continue
			}
			abilityID, haveAbilityID := eventAbilityGameID(row)
			abilityName := asString(firstPresent(row, abilityKeys))
			if isShootingStarEvent(sourceName, abilityName, abilityID, haveAbilityID) {
				continue
			}
			amount := eventDamageAmount(row)
			if amount <= 0 {
				continue
			}
			if ts, ok := eventTimestamp(row); ok {
				if !havePhase || ts < phaseStart {
					phaseStart = ts
					havePhase = true
				}
			}
			damageMap[sourceName] += amount
		}

		if !havePhase {
			continue
		}
		fightsWithPhase++
		for player, total := range damageMap {
			if total <= 0 {
				continue
			}
			pullsByPlayer[player]++
			damageTotals[player] += total
		}
	}

	for player := range pullsByPlayer {
		if _, ok := playerRoles[player]; !ok {
			playerRoles[player] = RoleUnknown
		}
	}

	players := make([]string, 0, len(pullsByPlayer))
	for player := range pullsByPlayer {
		players = append(players, player)
	}
	sort.Slice(players, func(i, k int) bool {
		pi, pk := rolePriority(playerRoles[players[i]]), rolePriority(playerRoles[players[k]])
		if pi != pk {
			return pi < pk
		}
		return strings.ToLower(players[i]) < strings.ToLower(players[k])
	})

	var entries []PriorityDamageEntry
	var totalDamage float64
	for _, player := range players {
		pulls := pullsByPlayer[player]
		if pulls <= 0 {
			continue
		}
		damage := damageTotals[player]
		totalDamage += damage
		entries = append(entries, PriorityDamageEntry{
			Player:        player,
			Role:          playerRoles[player],
			ClassName:     playerClasses[player],
			Pulls:         pulls,
			TotalDamage:   damage,
			AverageDamage: damage / float64(pulls),
		})
	}

	avgPerPull := 0.0
	if fightsWithPhase > 0 {
		avgPerPull = totalDamage / float64(fightsWithPhase)
	}

	return &PriorityDamageSummary{
		ReportCode:       opt.ReportCode,
		Entries:          entries,
		PlayerClasses:    playerClasses,
		PlayerRoles:      playerRoles,
		PlayerSpecs:      playerSpecs,
		PullCount:        fightsWithPhase,
		TotalDamage:      totalDamage,
		AvgDamagePerPull: avgPerPull,
		TargetName:       artoshionName,
		IgnoredSource:    shootingStarName,
	}, nil
}
