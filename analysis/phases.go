package analysis

import (
	"context"
	"sort"
	"strings"
)

// Default tracked abilities for the combined phase report.
const (
	defaultBesiegeAbilityID = 1227472
	defaultGhostAbilityID   = 1224737
)

// PhasePlayerEntry is one player-role row of the combined report.
type PhasePlayerEntry struct {
	Player         string  `json:"player"`
	Role           Role    `json:"role"`
	ClassName      string  `json:"className,omitempty"`
	Pulls          int     `json:"pulls"`
	BesiegeHits    int     `json:"besiegeHits"`
	BesiegePerPull float64 `json:"besiegePerPull"`
	GhostMisses    int     `json:"ghostMisses"`
	GhostPerPull   float64 `json:"ghostPerPull"`
	// FuckupRate is besiege_per_pull + ghost_per_pull, kept exactly for
	// compatibility with existing dashboards.
	FuckupRate float64 `json:"fuckupRate"`
}

// PhaseSummary merges the hit and ghost reports per player-role, with pulls
// attributed fight by fight so a role swap mid-night lands on the right row.
type PhaseSummary struct {
	ReportCode string `json:"reportCode"`
	PullCount  int    `json:"pullCount"`

	BesiegeAbilityID int `json:"besiegeAbilityId"`
	GhostAbilityID   int `json:"ghostAbilityId"`

	Entries []PhasePlayerEntry `json:"entries"`

	TotalBesieges      int     `json:"totalBesieges"`
	TotalGhosts        int     `json:"totalGhosts"`
	AvgBesiegesPerPull float64 `json:"avgBesiegesPerPull"`
	AvgGhostsPerPull   float64 `json:"avgGhostsPerPull"`
	CombinedPerPull    float64 `json:"combinedPerPull"`

	GhostEvents []GhostEvent `json:"ghostEvents"`

	PlayerClasses map[string]string `json:"playerClasses"`
	PlayerRoles   map[string]Role   `json:"playerRoles"`
	PlayerSpecs   map[string]string `json:"playerSpecs"`

	GhostMode GhostMissMode `json:"ghostMode"`
}

// PhaseOptions configures the combined report.
type PhaseOptions struct {
	Options

	BesiegeAbilityID int
	GhostAbilityID   int

	HitDataType       string
	HitDedupeMS       float64
	HitExcludeFinalMS float64
	IgnoreAfterDeaths int
	FirstHitOnly      bool

	GhostMode interface{}
}

// FetchPhaseSummary runs the hit and ghost reports and composes them into
// one per-player-role table. Merge policy for role/class/spec maps: the
// first known non-Unknown/non-empty value wins and is never overwritten by
// a later unknown.
func FetchPhaseSummary(ctx context.Context, src Source, opt *PhaseOptions) (*PhaseSummary, error) {
	if opt.BesiegeAbilityID == 0 {
		opt.BesiegeAbilityID = defaultBesiegeAbilityID
	}
	if opt.GhostAbilityID == 0 {
		opt.GhostAbilityID = defaultGhostAbilityID
	}
	if opt.HitDataType == "" {
		opt.HitDataType = "DamageTaken"
	}

	ghostMode, err := NormalizeGhostMissMode(opt.GhostMode)
	if err != nil {
		return nil, err
	}

	hitOpt := HitOptions{
		Options:           opt.Options,
		DataType:          opt.HitDataType,
		AbilityID:         opt.BesiegeAbilityID,
		DedupeMS:          opt.HitDedupeMS,
		ExcludeFinalMS:    opt.HitExcludeFinalMS,
		IgnoreAfterDeaths: opt.IgnoreAfterDeaths,
		FirstHitOnly:      opt.FirstHitOnly,
	}
	hits, err := FetchHitSummary(ctx, src, &hitOpt)
	if err != nil {
		return nil, err
	}

	ghostOpt := GhostOptions{
		Options:           opt.Options,
		AbilityID:         opt.GhostAbilityID,
		Mode:              ghostMode,
		IgnoreAfterDeaths: opt.IgnoreAfterDeaths,
	}
	ghosts, err := FetchGhostSummary(ctx, src, &ghostOpt)
	if err != nil {
		return nil, err
	}

	fights := hits.FightsConsidered
	if len(fights) == 0 {
		fights = ghosts.FightsConsidered
	}
	pullCount := len(fights)

	rolesByFight := make(map[int]map[string]Role, len(hits.RolesByFight))
	for fightID, mapping := range hits.RolesByFight {
		rolesByFight[fightID] = mapping
	}
	for fightID, mapping := range ghosts.RolesByFight {
		if existing, ok := rolesByFight[fightID]; ok {
			for player, role := range mapping {
				if _, ok := existing[player]; !ok {
					existing[player] = role
				}
			}
		} else {
			rolesByFight[fightID] = mapping
		}
	}

	hitsByFight := make(map[int]map[string]int)
	for key, count := range hits.HitsByPlayerFight {
		if hitsByFight[key.FightID] == nil {
			hitsByFight[key.FightID] = make(map[string]int)
		}
		hitsByFight[key.FightID][key.Player] = count
	}
	ghostsByFight := make(map[int]map[string]int)
	for key, count := range ghosts.CountsByPlayerFight {
		if ghostsByFight[key.FightID] == nil {
			ghostsByFight[key.FightID] = make(map[string]int)
		}
		ghostsByFight[key.FightID][key.Player] = count
	}

	players := make(map[string]bool)
	for player := range hits.TotalHits {
		players[player] = true
	}
	for player := range ghosts.PerPlayerMisses() {
		players[player] = true
	}
	for _, mapping := range rolesByFight {
		for player := range mapping {
			players[player] = true
		}
	}

	playerClasses := mergeStringMaps(hits.PlayerClasses, ghosts.PlayerClasses)
	playerSpecs := mergeStringMaps(hits.PlayerSpecs, ghosts.PlayerSpecs)
	playerRoles := make(map[string]Role, len(hits.PlayerRoles))
	for player, role := range hits.PlayerRoles {
		playerRoles[player] = role
	}
	for player, role := range ghosts.PlayerRoles {
		if _, ok := playerRoles[player]; !ok {
			playerRoles[player] = role
		}
	}

	pullsByKey := make(map[playerRole]int)
	besiegesByKey := make(map[playerRole]int)
	ghostsByKey := make(map[playerRole]int)

	for _, fight := range fights {
		fightRoles := rolesByFight[fight.ID]
		hitsMap := hitsByFight[fight.ID]
		ghostsMap := ghostsByFight[fight.ID]

		participants := make(map[string]bool, len(fightRoles))
		for player := range fightRoles {
			participants[player] = true
		}
		for player := range hitsMap {
			participants[player] = true
		}
		for player := range ghostsMap {
			participants[player] = true
		}
		if len(participants) == 0 {
			continue
		}

		for player := range participants {
			role := fightRoles[player]
			if role == "" {
				role = playerRoles[player]
			}
			if role == "" {
				role = RoleUnknown
			}
			key := playerRole{Player: player, Role: role}
			pullsByKey[key]++
			besiegesByKey[key] += hitsMap[player]
			ghostsByKey[key] += ghostsMap[player]
			players[player] = true
			if _, ok := playerRoles[player]; !ok {
				playerRoles[player] = role
			}
		}
	}

	for player := range players {
		if _, ok := playerRoles[player]; !ok {
			playerRoles[player] = RoleUnknown
		}
	}

	var entries []PhasePlayerEntry
	totalBesieges := 0
	totalGhosts := 0

	for key, pulls := range pullsByKey {
		if pulls <= 0 {
			continue
		}
		besiegeHits := besiegesByKey[key]
		ghostMisses := ghostsByKey[key]
		besiegePerPull := float64(besiegeHits) / float64(pulls)
		ghostPerPull := float64(ghostMisses) / float64(pulls)

		totalBesieges += besiegeHits
		totalGhosts += ghostMisses

		entries = append(entries, PhasePlayerEntry{
			Player:         key.Player,
			Role:           key.Role,
			ClassName:      playerClasses[key.Player],
			Pulls:          pulls,
			BesiegeHits:    besiegeHits,
			BesiegePerPull: besiegePerPull,
			GhostMisses:    ghostMisses,
			GhostPerPull:   ghostPerPull,
			FuckupRate:     besiegePerPull + ghostPerPull,
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

	var avgBesieges, avgGhosts, combined float64
	if pullCount > 0 {
		avgBesieges = float64(totalBesieges) / float64(pullCount)
		avgGhosts = float64(totalGhosts) / float64(pullCount)
		combined = float64(totalBesieges+totalGhosts) / float64(pullCount)
	}

	return &PhaseSummary{
		ReportCode:         opt.ReportCode,
		PullCount:          pullCount,
		BesiegeAbilityID:   opt.BesiegeAbilityID,
		GhostAbilityID:     opt.GhostAbilityID,
		Entries:            entries,
		TotalBesieges:      totalBesieges,
		TotalGhosts:        totalGhosts,
		AvgBesiegesPerPull: avgBesieges,
		AvgGhostsPerPull:   avgGhosts,
		CombinedPerPull:    combined,
		GhostEvents:        ghosts.Events,
		PlayerClasses:      playerClasses,
		PlayerRoles:        playerRoles,
		PlayerSpecs:        playerSpecs,
		GhostMode:          ghostMode,
	}, nil
}

// mergeStringMaps overlays later maps under the first: a value already set
// to something non-empty is never replaced.
func mergeStringMaps(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for key, value := range m {
			if existing, ok := merged[key]; !ok || existing == "" {
				merged[key] = value
			}
		}
	}
	return merged
}
