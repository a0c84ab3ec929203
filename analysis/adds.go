package analysis

import (
	"context"
	"sort"
	"strings"

	"wcl_check/share/parallel"
)

// Living Mass add-damage constants. The first add set of a pull can be
// skipped so the comparison covers only the punishing later waves.
const (
	livingMassName      = "Living Mass"
	livingMassFilter    = `encounterPhase = 1 and target.name = "` + livingMassName + `"`
	initialAddSetSize   = 6
	addDamageFetchLimit = 10000
)

// AddDamageEntry is one player's Living Mass damage totals.
type AddDamageEntry struct {
	Player        string  `json:"player"`
	Role          Role    `json:"role"`
	ClassName     string  `json:"className,omitempty"`
	Pulls         int     `json:"pulls"`
	TotalDamage   float64 `json:"totalDamage"`
	AverageDamage float64 `json:"averageDamage"`
}

// AddDamageSummary reports per-player damage on the Living Mass adds,
// optionally merged across recordings of the same encounter.
type AddDamageSummary struct {
	ReportCode string `json:"reportCode"`

	Entries []AddDamageEntry `json:"entries"`

	PlayerClasses map[string]string `json:"playerClasses"`
	PlayerRoles   map[string]Role   `json:"playerRoles"`
	PlayerSpecs   map[string]string `json:"playerSpecs"`

	PullCount        int     `json:"pullCount"`
	TotalDamage      float64 `json:"totalDamage"`
	AvgDamagePerPull float64 `json:"avgDamagePerPull"`

	SourceReports     []string         `json:"sourceReports"`
	Signature         []fightSignature `json:"-"`
	IgnoreFirstAddSet bool             `json:"ignoreFirstAddSet"`
}

// AddDamageOptions configures the add-damage fetch.
type AddDamageOptions struct {
	Options

	IgnoreFirstAddSet bool
	ExtraReportCodes  []string
}

func fetchAddDamageSingle(ctx context.Context, src Source, opt *AddDamageOptions, reportCode string) (*AddDamageSummary, error) {
	baseOpt := opt.Options
	baseOpt.ReportCode = reportCode

	rc, err := prepareReport(ctx, src, &baseOpt)
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

	for _, fight := range rc.chosen {
		opt.progress("fetching add damage, pull %d / %d...",
			rc.pullIndexByFight[fight.ID], len(rc.chosen))

		events, err := src.Events(ctx, EventQuery{
			DataType: "DamageDone",
			Start:    fight.Start,
			End:      fight.End,
			Limit:    addDamageFetchLimit,
			Filter:   livingMassFilter,
		})
		if err != nil {
			return nil, err
		}

		ignoredTargets := make(map[targetIdentity]bool)
		targetOrder := 0
		unknownTargetsRemaining := initialAddSetSize

		for _, row := range events {
			if opt.IgnoreFirstAddSet {
				if key, ok := extractTargetKey(row); ok {
					if !ignoredTargets[key] && targetOrder < initialAddSetSize {
						targetOrder++
						ignoredTargets[key] = true
					}
					if ignoredTargets[key] {
						continue
					}
				} else if unknownTargetsRemaining > 0 {
					unknownTargetsRemaining--
					continue
				}
			}

			sourceName, ownerID := resolveEventSourcePlayer(row, rc.meta.ActorNames, rc.meta.ActorOwners)
			if sourceName == "" {
				continue
			}
			if ownerID != nil {
				if _, ok := playerClasses[sourceName]; !ok {
					playerClasses[sourceName] = rc.meta.ActorClass[*ownerID]
				}
			}
			if _, ok := playerRoles[sourceName]; !ok {
				playerRoles[sourceName] = rc.roleFor(fight.ID, sourceName)
			}

			amount, _ := asFloat(row["amount"])
			absorbed, _ := asFloat(row["absorbed"])
			overkill, _ := asFloat(row["overkill"])
			total := amount + absorbed - overkill
			if total <= 0 {
				continue
			}
			damageTotals[sourceName] += total
		}
	}

	pullCount := len(rc.chosen)

	allPlayers := make(map[string]bool)
	for player := range rc.pullsByPlayer {
		allPlayers[player] = true
	}
	for player := range damageTotals {
		allPlayers[player] = true
	}
	for player := range playerRoles {
		allPlayers[player] = true
	}

	names := make([]string, 0, len(allPlayers))
	for player := range allPlayers {
		names = append(names, player)
	}
	sort.Slice(names, func(i, k int) bool {
		pi, pk := rolePriority(playerRoles[names[i]]), rolePriority(playerRoles[names[k]])
		if pi != pk {
			return pi < pk
		}
		return strings.ToLower(names[i]) < strings.ToLower(names[k])
	})

	var entries []AddDamageEntry
	var totalDamageSum float64

	for _, player := range names {
		role := playerRoles[player]
		if role == "" {
			role = RoleUnknown
		}
		pulls := rc.pullsFor(player)
		damage := damageTotals[player]
		totalDamageSum += damage
		entries = append(entries, AddDamageEntry{
			Player:        player,
			Role:          role,
			ClassName:     playerClasses[player],
			Pulls:         pulls,
			TotalDamage:   damage,
			AverageDamage: damage / float64(pulls),
		})
	}

	avgPerPull := 0.0
	if pullCount > 0 {
		avgPerPull = totalDamageSum / float64(pullCount)
	}

	return &AddDamageSummary{
		ReportCode:        reportCode,
		Entries:           entries,
		PlayerClasses:     playerClasses,
		PlayerRoles:       playerRoles,
		PlayerSpecs:       playerSpecs,
		PullCount:         pullCount,
		TotalDamage:       totalDamageSum,
		AvgDamagePerPull:  avgPerPull,
		SourceReports:     []string{reportCode},
		Signature:         rc.signature(),
		IgnoreFirstAddSet: opt.IgnoreFirstAddSet,
	}, nil
}

// FetchAddDamageSummary computes the Living Mass damage report, merging any
// secondary recordings by per-player maximum after validating that the
// recordings cover the same attempt sequence.
func FetchAddDamageSummary(ctx context.Context, provider Provider, opt *AddDamageOptions) (*AddDamageSummary, error) {
	primaryCode, err := SanitizeReportCode(opt.ReportCode)
	if err != nil {
		return nil, err
	}

	primarySrc, err := provider.Open(ctx, primaryCode)
	if err != nil {
		return nil, err
	}
	primary, err := fetchAddDamageSingle(ctx, primarySrc, opt, primaryCode)
	if err != nil {
		return nil, err
	}

	extraCodes := sanitizeExtraCodes(primaryCode, opt.ExtraReportCodes)
	if len(extraCodes) == 0 {
		return primary, nil
	}

	summaries := make([]*AddDamageSummary, len(extraCodes)+1)
	summaries[0] = primary

	pl := parallel.New(extraFetchWorkers)
	pl.Reset(ctx)
	for i, code := range extraCodes {
		i, code := i, code
		pl.Add(func(ctx context.Context) error {
			src, err := provider.Open(ctx, code)
			if err != nil {
				return err
			}
			summary, err := fetchAddDamageSingle(ctx, src, opt, code)
			if err != nil {
				return err
			}
			summaries[i+1] = summary
			return nil
		})
	}
	if err := pl.Wait(); err != nil {
		return nil, err
	}
	for _, summary := range summaries[1:] {
		if err := validatePullSignatures(primary.Signature, summary.Signature); err != nil {
			return nil, err
		}
	}

	combinedTotals := make(map[playerRole]float64)
	combinedPulls := make(map[playerRole]int)
	combinedClasses := make(map[string]string)
	combinedRoles := make(map[string]Role)
	combinedSpecs := make(map[string]string)

	for _, summary := range summaries {
		for player, class := range summary.PlayerClasses {
			if combinedClasses[player] == "" {
				combinedClasses[player] = class
			}
		}
		for player, role := range summary.PlayerRoles {
			if existing, ok := combinedRoles[player]; !ok || existing == RoleUnknown || existing == "" {
				combinedRoles[player] = role
			}
		}
		for player, spec := range summary.PlayerSpecs {
			if combinedSpecs[player] == "" {
				combinedSpecs[player] = spec
			}
		}
		for _, entry := range summary.Entries {
			key := playerRole{Player: entry.Player, Role: entry.Role}
			if entry.Pulls > combinedPulls[key] {
				combinedPulls[key] = entry.Pulls
			}
			if entry.TotalDamage > combinedTotals[key] {
				combinedTotals[key] = entry.TotalDamage
			}
		}
	}

	mergedEntries := make([]AddDamageEntry, 0, len(combinedTotals))
	var totalDamageSum float64
	for key, damage := range combinedTotals {
		pulls := combinedPulls[key]
		if pulls <= 0 {
			pulls = primary.PullCount
		}
		average := 0.0
		if pulls > 0 {
			average = damage / float64(pulls)
		}
		totalDamageSum += damage
		mergedEntries = append(mergedEntries, AddDamageEntry{
			Player:        key.Player,
			Role:          key.Role,
			ClassName:     combinedClasses[key.Player],
			Pulls:         pulls,
			TotalDamage:   damage,
			AverageDamage: average,
		})
	}

	sort.Slice(mergedEntries, func(i, k int) bool {
		pi, pk := rolePriority(mergedEntries[i].Role), rolePriority(mergedEntries[k].Role)
		if pi != pk {
			return pi < pk
		}
		if mergedEntries[i].TotalDamage != mergedEntries[k].TotalDamage {
			return mergedEntries[i].TotalDamage > mergedEntries[k].TotalDamage
		}
		return strings.ToLower(mergedEntries[i].Player) < strings.ToLower(mergedEntries[k].Player)
	})

	avgPerPull := 0.0
	if primary.PullCount > 0 {
		avgPerPull = totalDamageSum / float64(primary.PullCount)
	}

	return &AddDamageSummary{
		ReportCode:        primaryCode,
		Entries:           mergedEntries,
		PlayerClasses:     combinedClasses,
		PlayerRoles:       combinedRoles,
		PlayerSpecs:       combinedSpecs,
		PullCount:         primary.PullCount,
		TotalDamage:       totalDamageSum,
		AvgDamagePerPull:  avgPerPull,
		SourceReports:     append([]string{primaryCode}, extraCodes...),
		Signature:         primary.Signature,
		IgnoreFirstAddSet: opt.IgnoreFirstAddSet,
	}, nil
}
