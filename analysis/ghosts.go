package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// GhostMissMode selects how repeated debuff applications are counted.
type GhostMissMode string

const (
	// GhostFirstPerSet counts a miss and then suppresses further misses on
	// the same player for ghostSetWindowMS after the last counted one.
	GhostFirstPerSet GhostMissMode = "first_per_set"
	// GhostFirstPerPull counts at most one miss per player per fight.
	GhostFirstPerPull GhostMissMode = "first_per_pull"
	// GhostAll counts every qualifying application.
	GhostAll GhostMissMode = "all"
)

const (
	DefaultGhostMissMode = GhostFirstPerSet

	ghostSetWindowMS = 5000.0
	// Applications in the first 15 s of a pull are opener noise, never misses.
	ghostOpenerSkipMS = 15000.0
)

var ghostModeAliases = map[string]GhostMissMode{
	"first_per_set":  GhostFirstPerSet,
	"firstperset":    GhostFirstPerSet,
	"per_set":        GhostFirstPerSet,
	"perset":         GhostFirstPerSet,
	"set_first":      GhostFirstPerSet,
	"setfirst":       GhostFirstPerSet,
	"first_set":      GhostFirstPerSet,
	"firstset":       GhostFirstPerSet,
	"first_per_pull": GhostFirstPerPull,
	"firstperpull":   GhostFirstPerPull,
	"per_pull":       GhostFirstPerPull,
	"perpull":        GhostFirstPerPull,
	"pull_first":     GhostFirstPerPull,
	"pullfirst":      GhostFirstPerPull,
	"first_pull":     GhostFirstPerPull,
	"firstpull":      GhostFirstPerPull,
	"all":            GhostAll,
	"all_hits":       GhostAll,
	"allhits":        GhostAll,
	"all_misses":     GhostAll,
	"allmisses":      GhostAll,
	"every":          GhostAll,
}

// NormalizeGhostMissMode maps every accepted encoding onto the canonical
// mode set: nil means the default, legacy booleans and 0/1 map to
// first_per_pull/all, and strings go through the alias family. Any other
// string is a caller bug and fails loud.
func NormalizeGhostMissMode(value interface{}) (GhostMissMode, error) {
	switch v := value.(type) {
	case nil:
		return DefaultGhostMissMode, nil
	case GhostMissMode:
		return NormalizeGhostMissMode(string(v))
	case bool:
		if v {
			return GhostFirstPerPull, nil
		}
		return GhostAll, nil
	case int:
		if v == 1 {
			return GhostFirstPerPull, nil
		}
		if v == 0 {
			return GhostAll, nil
		}
	case float64:
		if v == 1 {
			return GhostFirstPerPull, nil
		}
		if v == 0 {
			return GhostAll, nil
		}
	case string:
		cleaned := strings.ToLower(strings.TrimSpace(v))
		cleaned = strings.ReplaceAll(cleaned, "-", "_")
		cleaned = strings.ReplaceAll(cleaned, " ", "_")
		for strings.Contains(cleaned, "__") {
			cleaned = strings.ReplaceAll(cleaned, "__", "_")
		}
		if mode, ok := ghostModeAliases[cleaned]; ok {
			return mode, nil
		}
	}
	return "", fmt.Errorf("invalid ghost miss mode: %v", value)
}

// GhostEntry is one player's miss totals.
type GhostEntry struct {
	Player        string  `json:"player"`
	Pulls         int     `json:"pulls"`
	Misses        int     `json:"misses"`
	MissesPerPull float64 `json:"missesPerPull"`
}

// GhostEvent is one counted miss, retained verbatim for drill-down.
type GhostEvent struct {
	Player    string  `json:"player"`
	FightID   int     `json:"fightId"`
	FightName string  `json:"fightName"`
	PullIndex int     `json:"pullIndex"`
	Timestamp float64 `json:"timestamp"`
	OffsetMS  float64 `json:"offsetMs"`
}

// fightPlayer keys per-(fight, player) ghost counters.
type fightPlayer struct {
	FightID int
	Player  string
}

// GhostSummary is the recurring-debuff miss report for one report code.
type GhostSummary struct {
	ReportCode string        `json:"reportCode"`
	AbilityID  int           `json:"abilityId"`
	Mode       GhostMissMode `json:"mode"`

	FightsConsidered []Fight      `json:"fightsConsidered"`
	Entries          []GhostEntry `json:"entries"`
	Events           []GhostEvent `json:"events"`

	CountsByPlayerFight map[fightPlayer]int     `json:"-"`
	RolesByFight        map[int]map[string]Role `json:"-"`

	PlayerClasses map[string]string `json:"playerClasses"`
	PlayerRoles   map[string]Role   `json:"playerRoles"`
	PlayerSpecs   map[string]string `json:"playerSpecs"`

	IgnoreAfterDeaths int `json:"ignoreAfterDeaths,omitempty"`
}

// PullCount is the number of pulls the summary covers.
func (s *GhostSummary) PullCount() int {
	return len(s.FightsConsidered)
}

// TotalGhosts sums every player's counted misses.
func (s *GhostSummary) TotalGhosts() int {
	var total int
	for _, entry := range s.Entries {
		total += entry.Misses
	}
	return total
}

// PerPlayerMisses maps player names to miss counts.
func (s *GhostSummary) PerPlayerMisses() map[string]int {
	misses := make(map[string]int, len(s.Entries))
	for _, entry := range s.Entries {
		misses[entry.Player] = entry.Misses
	}
	return misses
}

// GhostOptions configures a ghost summary fetch.
type GhostOptions struct {
	Options

	AbilityID int
	// Mode accepts the legacy bool/int encodings and the string alias
	// family; it is normalized before use.
	Mode              interface{}
	IgnoreAfterDeaths int
}

// FetchGhostSummary counts recurring debuff applications ("ghost misses")
// per player with the configured counting mode. The first 15 s of each pull
// never count, and the death cutoff applies when set.
func FetchGhostSummary(ctx context.Context, src Source, opt *GhostOptions) (*GhostSummary, error) {
	mode, err := NormalizeGhostMissMode(opt.Mode)
	if err != nil {
		return nil, err
	}

	rc, err := prepareReport(ctx, src, &opt.Options)
	if err != nil {
		return nil, err
	}

	cutoffs, err := rc.deathCutoffs(ctx, opt.IgnoreAfterDeaths)
	if err != nil {
		return nil, err
	}

	ghostCounts := make(map[string]int)
	countsByFight := make(map[fightPlayer]int)
	var ghostEvents []GhostEvent

	for _, fight := range rc.chosen {
		pullIndex := rc.pullIndexByFight[fight.ID]
		opt.progress("scanning debuffs, pull %d / %d...", pullIndex, len(rc.chosen))

		events, err := src.Events(ctx, EventQuery{
			DataType: "Debuffs",
			Start:    fight.Start,
			End:      fight.End,
			Limit:    2000,
		})
		if err != nil {
			return nil, err
		}

		seenTargets := make(map[string]bool)
		lastCountedTS := make(map[string]float64)
		deathCutoff, haveDeath := cutoffs[fight.ID]

		for _, row := range events {
			et := eventType(row)
			if et != "applydebuff" && et != "applydebuffstack" {
				continue
			}
			ts, ok := eventTimestamp(row)
			if !ok {
				continue
			}
			if ts < fight.Start+ghostOpenerSkipMS {
				continue
			}
			if haveDeath && ts >= deathCutoff {
				continue
			}
			if id, ok := eventAbilityGameID(row); !ok || id != opt.AbilityID {
				continue
			}
			target := eventTargetName(row)
			if target == "" {
				continue
			}

			switch mode {
			case GhostFirstPerPull:
				if seenTargets[target] {
					continue
				}
				seenTargets[target] = true
			case GhostFirstPerSet:
				if last, ok := lastCountedTS[target]; ok && ts-last < ghostSetWindowMS {
					continue
				}
				lastCountedTS[target] = ts
			}

			ghostCounts[target]++
			countsByFight[fightPlayer{FightID: fight.ID, Player: target}]++
			ghostEvents = append(ghostEvents, GhostEvent{
				Player:    target,
				FightID:   fight.ID,
				FightName: fight.Name,
				PullIndex: pullIndex,
				Timestamp: ts,
				OffsetMS:  ts - fight.Start,
			})
		}
	}

	allPlayers := make(map[string]bool)
	for player := range rc.pullsByPlayer {
		allPlayers[player] = true
	}
	for player := range ghostCounts {
		allPlayers[player] = true
	}
	if len(allPlayers) == 0 {
		for player := range rc.rolesGlobal {
			allPlayers[player] = true
		}
	}

	playerClasses := make(map[string]string, len(allPlayers))
	playerRoles := make(map[string]Role, len(allPlayers))
	playerSpecs := make(map[string]string, len(allPlayers))
	entries := make([]GhostEntry, 0, len(allPlayers))

	for player := range allPlayers {
		playerClasses[player] = rc.nameToClass[player]
		playerRoles[player] = rc.globalRole(player)
		playerSpecs[player] = rc.specsGlobal[player]

		pulls := rc.pullsFor(player)
		misses := ghostCounts[player]
		entries = append(entries, GhostEntry{
			Player:        player,
			Pulls:         pulls,
			Misses:        misses,
			MissesPerPull: float64(misses) / float64(pulls),
		})
	}

	sort.Slice(entries, func(i, k int) bool {
		pi := rolePriority(playerRoles[entries[i].Player])
		pk := rolePriority(playerRoles[entries[k].Player])
		if pi != pk {
			return pi < pk
		}
		if entries[i].Misses != entries[k].Misses {
			return entries[i].Misses > entries[k].Misses
		}
		return strings.ToLower(entries[i].Player) < strings.ToLower(entries[k].Player)
	})

	ignoreAfterDeaths := 0
	if opt.IgnoreAfterDeaths > 0 {
		ignoreAfterDeaths = opt.IgnoreAfterDeaths
	}

	return &GhostSummary{
		ReportCode:          opt.ReportCode,
		AbilityID:           opt.AbilityID,
		Mode:                mode,
		FightsConsidered:    rc.chosen,
		Entries:             entries,
		Events:              ghostEvents,
		CountsByPlayerFight: countsByFight,
		RolesByFight:        rc.rolesByFight,
		PlayerClasses:       playerClasses,
		PlayerRoles:         playerRoles,
		PlayerSpecs:         playerSpecs,
		IgnoreAfterDeaths:   ignoreAfterDeaths,
	}, nil
}
