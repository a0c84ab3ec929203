package analysis

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// playerAbility keys the per-(player, ability) hit counters.
type playerAbility struct {
	Player  string
	Ability string
}

// playerFight keys per-(player, fight) counters.
type playerFight struct {
	Player  string
	FightID int
}

// HitFilter narrows CountHits to one ability and/or source. At most one of
// AbilityName / AbilityID / AbilityRegex is meaningfully active: exact id
// wins, then exact name, then regex search.
type HitFilter struct {
	AbilityName  string
	AbilityID    string
	AbilityRegex *regexp.Regexp
	SourceName   string
	DedupeMS     float64
}

// HitAggregate accumulates landed hits. Per-fight values always sum to the
// player's global total for the same metric.
type HitAggregate struct {
	HitsByPlayer        map[string]int
	HitsByPlayerAbility map[playerAbility]int
	HitsByPlayerFight   map[playerFight]int
	DamageByPlayer      map[string]float64
	FightTotalHits      map[int]int
	FightTotalDamage    map[int]float64
}

func newHitAggregate() *HitAggregate {
	return &HitAggregate{
		HitsByPlayer:        make(map[string]int),
		HitsByPlayerAbility: make(map[playerAbility]int),
		HitsByPlayerFight:   make(map[playerFight]int),
		DamageByPlayer:      make(map[string]float64),
		FightTotalHits:      make(map[int]int),
		FightTotalDamage:    make(map[int]float64),
	}
}

// CountHits runs the hit pipeline over raw events: normalize, filter, test
// the hit definition, apply the dedupe window, accumulate. Pure with respect
// to its inputs; feeding the same stream twice yields identical totals.
func CountHits(events []RawEvent, filter HitFilter) *HitAggregate {
	agg := newHitAggregate()
	lastHitTS := make(map[playerAbility]float64)

	for _, raw := range events {
		ev := NormalizeEvent(raw)

		if filter.SourceName != "" && ev.SourceName != filter.SourceName {
			continue
		}
		if filter.AbilityID != "" {
			if ev.AbilityID != filter.AbilityID {
				continue
			}
		}
		if filter.AbilityName != "" {
			if ev.AbilityName != filter.AbilityName {
				continue
			}
		} else if filter.AbilityRegex != nil {
			if ev.AbilityName == "" || !filter.AbilityRegex.MatchString(ev.AbilityName) {
				continue
			}
		}

		if !ev.IsHit() {
			continue
		}

		target := ev.TargetName
		if target == "" {
			target = "Unknown Target"
		}
		ability := ev.AbilityName
		if ability == "" {
			ability = "Unknown Ability"
		}

		key := playerAbility{Player: target, Ability: ability}
		if filter.DedupeMS > 0 && ev.Timestamp != nil {
			if last, ok := lastHitTS[key]; ok && *ev.Timestamp-last < filter.DedupeMS {
				continue
			}
		}

		agg.HitsByPlayer[target]++
		agg.HitsByPlayerAbility[key]++

		if ev.FightID != nil {
			agg.HitsByPlayerFight[playerFight{Player: target, FightID: *ev.FightID}]++
			agg.FightTotalHits[*ev.FightID]++
			if ev.Amount != nil {
				agg.FightTotalDamage[*ev.FightID] += *ev.Amount
			}
		}
		if ev.Amount != nil {
			agg.DamageByPlayer[target] += *ev.Amount
		}
		if ev.Timestamp != nil {
			lastHitTS[key] = *ev.Timestamp
		}
	}

	return agg
}

// AmountAggregate sums event amounts grouped by actor, preferring the
// numeric source id over the name, and by (actor, fight).
type AmountAggregate struct {
	AmountByActor      map[string]float64
	AmountByActorFight map[playerFight]float64
}

// AggregateAmounts totals numeric amounts per source actor. Events without a
// usable actor key or amount are skipped.
func AggregateAmounts(events []RawEvent) *AmountAggregate {
	agg := &AmountAggregate{
		AmountByActor:      make(map[string]float64),
		AmountByActorFight: make(map[playerFight]float64),
	}

	for _, raw := range events {
		ev := NormalizeEvent(raw)

		var actor string
		if ev.SourceID != nil {
			actor = "#" + strconv.Itoa(*ev.SourceID)
		} else if ev.SourceName != "" {
			actor = ev.SourceName
		} else {
			continue
		}

		if ev.Amount == nil {
			continue
		}
		agg.AmountByActor[actor] += *ev.Amount
		if ev.FightID != nil {
			agg.AmountByActorFight[playerFight{Player: actor, FightID: *ev.FightID}] += *ev.Amount
		}
	}

	return agg
}

// HitOptions configures a hit summary fetch on top of the common Options.
type HitOptions struct {
	Options

	DataType     string // defaults to DamageTaken
	Ability      string
	AbilityID    int
	AbilityRegex string
	Source       string
	Limit        int

	DedupeMS          float64
	ExcludeFinalMS    float64
	IgnoreAfterDeaths int
	FirstHitOnly      bool
}

// HitRow is one (player, ability) row of a hit summary, pre-sorted for
// display.
type HitRow struct {
	Player string  `json:"player"`
	Role   Role    `json:"role"`
	Hits   int     `json:"hits"`
	Damage float64 `json:"damage"`

	Ability string `json:"ability"`
}

// HitSummary is the hit/damage report for one report code.
type HitSummary struct {
	ReportCode string `json:"reportCode"`
	DataType   string `json:"dataType"`

	TotalHits         map[string]int        `json:"totalHits"`
	PerPlayerAbility  map[playerAbility]int `json:"-"`
	DamagePerPlayer   map[string]float64    `json:"damagePerPlayer"`
	FightTotalHits    map[int]int           `json:"fightTotalHits"`
	FightTotalDamage  map[int]float64       `json:"fightTotalDamage"`
	HitsByPlayerFight map[playerFight]int   `json:"-"`

	FightsConsidered []Fight `json:"fightsConsidered"`

	PlayerClasses map[string]string `json:"playerClasses"`
	PlayerRoles   map[string]Role   `json:"playerRoles"`
	PlayerSpecs   map[string]string `json:"playerSpecs"`

	RolesByFight map[int]map[string]Role `json:"-"`
}

// PullCount is the number of pulls the summary covers.
func (s *HitSummary) PullCount() int {
	return len(s.FightsConsidered)
}

// TotalDamage sums the per-player damage totals.
func (s *HitSummary) TotalDamage() float64 {
	var total float64
	for _, damage := range s.DamagePerPlayer {
		total += damage
	}
	return total
}

// AverageHitsPerPull divides total hits by pull count.
func (s *HitSummary) AverageHitsPerPull() float64 {
	pulls := s.PullCount()
	if pulls == 0 {
		pulls = 1
	}
	var total int
	for _, hits := range s.TotalHits {
		total += hits
	}
	return float64(total) / float64(pulls)
}

// PerPlayerRows flattens the per-(player, ability) counters into sorted
// display rows.
func (s *HitSummary) PerPlayerRows() []HitRow {
	rows := make([]HitRow, 0, len(s.PerPlayerAbility))
	for key, hits := range s.PerPlayerAbility {
		rows = append(rows, HitRow{
			Player:  key.Player,
			Ability: key.Ability,
			Hits:    hits,
			Damage:  s.DamagePerPlayer[key.Player],
			Role:    s.PlayerRoles[key.Player],
		})
	}
	sort.Slice(rows, func(i, k int) bool {
		pi, pk := strings.ToLower(rows[i].Player), strings.ToLower(rows[k].Player)
		if pi != pk {
			return pi < pk
		}
		if rows[i].Hits != rows[k].Hits {
			return rows[i].Hits > rows[k].Hits
		}
		return strings.ToLower(rows[i].Ability) < strings.ToLower(rows[k].Ability)
	})
	return rows
}

// FetchHitSummary computes the hit/damage report: per-player hit counts,
// per-ability breakdowns, damage sums, and per-fight totals, honoring the
// dedupe, first-hit-only, tail-exclusion, and death-cutoff policies.
func FetchHitSummary(ctx context.Context, src Source, opt *HitOptions) (*HitSummary, error) {
	if opt.DataType == "" {
		opt.DataType = "DamageTaken"
	}
	if opt.Limit <= 0 {
		opt.Limit = 5000
	}

	var abilityRe *regexp.Regexp
	if opt.AbilityRegex != "" {
		re, err := regexp.Compile(opt.AbilityRegex)
		if err != nil {
			return nil, err
		}
		abilityRe = re
	}

	rc, err := prepareReport(ctx, src, &opt.Options)
	if err != nil {
		return nil, err
	}

	cutoffs, err := rc.deathCutoffs(ctx, opt.IgnoreAfterDeaths)
	if err != nil {
		return nil, err
	}

	var stream []RawEvent
	for _, fight := range rc.chosen {
		opt.progress("fetching %s events, pull %d / %d...",
			opt.DataType, rc.pullIndexByFight[fight.ID], len(rc.chosen))

		events, err := src.Events(ctx, EventQuery{
			DataType:    opt.DataType,
			Start:       fight.Start,
			End:         fight.End,
			Limit:       opt.Limit,
			AbilityID:   opt.AbilityID,
			AbilityName: opt.Ability,
		})
		if err != nil {
			return nil, err
		}

		var tailCutoff float64
		haveTail := false
		if opt.ExcludeFinalMS > 0 {
			tailCutoff = fight.End - opt.ExcludeFinalMS
			haveTail = true
		}
		deathCutoff, haveDeath := cutoffs[fight.ID]
		seenTargets := make(map[string]bool)

		for _, row := range events {
			if haveTail {
				if ts, ok := eventTimestamp(row); ok && ts >= tailCutoff {
					continue
				}
			}
			if haveDeath {
				if ts, ok := eventTimestamp(row); ok && ts >= deathCutoff {
					continue
				}
			}
			if opt.FirstHitOnly {
				if target := eventTargetName(row); target != "" {
					if seenTargets[target] {
						continue
					}
					seenTargets[target] = true
				}
			}
			stream = append(stream, row)
		}
	}

	abilityID := ""
	if opt.AbilityID != 0 {
		abilityID = strconv.Itoa(opt.AbilityID)
	}
	agg := CountHits(stream, HitFilter{
		AbilityName:  opt.Ability,
		AbilityID:    abilityID,
		AbilityRegex: abilityRe,
		SourceName:   opt.Source,
		DedupeMS:     opt.DedupeMS,
	})

	playerClasses := make(map[string]string, len(agg.HitsByPlayer))
	playerRoles := make(map[string]Role, len(agg.HitsByPlayer))
	playerSpecs := make(map[string]string, len(agg.HitsByPlayer))
	for player := range agg.HitsByPlayer {
		playerClasses[player] = rc.nameToClass[player]
		playerRoles[player] = rc.globalRole(player)
		playerSpecs[player] = rc.specsGlobal[player]
	}

	return &HitSummary{
		ReportCode:        opt.ReportCode,
		DataType:          opt.DataType,
		TotalHits:         agg.HitsByPlayer,
		PerPlayerAbility:  agg.HitsByPlayerAbility,
		DamagePerPlayer:   agg.DamageByPlayer,
		FightTotalHits:    agg.FightTotalHits,
		FightTotalDamage:  agg.FightTotalDamage,
		HitsByPlayerFight: agg.HitsByPlayerFight,
		FightsConsidered:  rc.chosen,
		PlayerClasses:     playerClasses,
		PlayerRoles:       playerRoles,
		PlayerSpecs:       playerSpecs,
		RolesByFight:      rc.rolesByFight,
	}, nil
}
