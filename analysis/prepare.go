package analysis

import "context"

// Options is the common request surface every summary accepts: which report,
// which pulls, and an optional progress sink for the queue layer.
type Options struct {
	ReportCode string
	FightName  string
	FightIDs   []int

	Progress func(format string, args ...interface{})
}

func (opt *Options) progress(format string, args ...interface{}) {
	if opt.Progress != nil {
		opt.Progress(format, args...)
	}
}

// reportContext is the shared preamble of every summary: selected fights,
// actor maps, the global role inference, and the per-fight re-inference.
// Built once per computation and read-only afterwards.
type reportContext struct {
	src Source
	opt *Options

	meta   *ReportMeta
	chosen []Fight

	rolesGlobal map[string]Role
	specsGlobal map[string]string

	rolesByFight        map[int]map[string]Role
	pullsByPlayer       map[string]int
	participantsByFight map[int][]string
	pullIndexByFight    map[int]int

	nameToClass map[string]string
}

func prepareReport(ctx context.Context, src Source, opt *Options) (*reportContext, error) {
	opt.progress("fetching fight list for %s...", opt.ReportCode)

	meta, err := src.Meta(ctx)
	if err != nil {
		return nil, err
	}

	chosen, err := SelectFights(meta.Fights, opt.FightName, opt.FightIDs)
	if err != nil {
		return nil, err
	}

	fightIDs := make([]int, len(chosen))
	for i, fight := range chosen {
		fightIDs[i] = fight.ID
	}

	opt.progress("fetching roster for %d pulls...", len(chosen))
	details, err := src.PlayerDetails(ctx, fightIDs)
	if err != nil {
		return nil, err
	}
	rolesGlobal, specsGlobal := InferRoles(details)

	rc := &reportContext{
		src:                 src,
		opt:                 opt,
		meta:                meta,
		chosen:              chosen,
		rolesGlobal:         rolesGlobal,
		specsGlobal:         specsGlobal,
		rolesByFight:        make(map[int]map[string]Role, len(chosen)),
		pullsByPlayer:       make(map[string]int),
		participantsByFight: make(map[int][]string, len(chosen)),
		pullIndexByFight:    make(map[int]int, len(chosen)),
		nameToClass:         make(map[string]string),
	}

	for idx, fight := range chosen {
		rc.pullIndexByFight[fight.ID] = idx + 1

		fightDetails, err := src.PlayerDetails(ctx, []int{fight.ID})
		if err != nil {
			return nil, err
		}
		fightRoles, _ := InferRoles(fightDetails)
		if len(fightRoles) > 0 {
			rc.rolesByFight[fight.ID] = fightRoles
		}

		participants := playersFromDetails(fightDetails)
		rc.participantsByFight[fight.ID] = participants
		seen := make(map[string]bool, len(participants))
		for _, name := range participants {
			if !seen[name] {
				seen[name] = true
				rc.pullsByPlayer[name]++
			}
		}
	}

	for actorID, name := range meta.ActorNames {
		if name != "" {
			rc.nameToClass[name] = meta.ActorClass[actorID]
		}
	}

	return rc, nil
}

// roleFor resolves a player's role for a specific fight, falling back to the
// global inference and then Unknown.
func (rc *reportContext) roleFor(fightID int, player string) Role {
	if roles, ok := rc.rolesByFight[fightID]; ok {
		if role, ok := roles[player]; ok && role != "" {
			return role
		}
	}
	if role, ok := rc.rolesGlobal[player]; ok && role != "" {
		return role
	}
	return RoleUnknown
}

func (rc *reportContext) globalRole(player string) Role {
	if role, ok := rc.rolesGlobal[player]; ok && role != "" {
		return role
	}
	return RoleUnknown
}

// pullsFor returns the number of pulls a player participated in, defaulting
// to the full pull count for names that never appeared in a roster block.
func (rc *reportContext) pullsFor(player string) int {
	pulls := rc.pullsByPlayer[player]
	if pulls <= 0 {
		pulls = len(rc.chosen)
	}
	if pulls <= 0 {
		pulls = 1
	}
	return pulls
}

// fightSignature summarizes a pull for cross-report validation: name,
// outcome, and duration in ms.
type fightSignature struct {
	Name     string `json:"name"`
	Kill     bool   `json:"kill"`
	Duration int    `json:"duration"`
}

func (rc *reportContext) signature() []fightSignature {
	sig := make([]fightSignature, len(rc.chosen))
	for i, fight := range rc.chosen {
		sig[i] = fightSignature{
			Name:     fight.Name,
			Kill:     fight.Kill,
			Duration: int(fight.End - fight.Start),
		}
	}
	return sig
}

// deathCutoffs computes, per fight, the timestamp of the Nth death-type
// event. Deaths are counted in delivery order; the cutoff is the minimum
// timestamp among deaths at or past the threshold. Fights with fewer than N
// deaths get no entry. maxDeaths <= 0 disables the cutoff entirely.
func (rc *reportContext) deathCutoffs(ctx context.Context, maxDeaths int) (map[int]float64, error) {
	cutoffs := make(map[int]float64)
	if maxDeaths <= 0 {
		return cutoffs, nil
	}

	for _, fight := range rc.chosen {
		events, err := rc.src.Events(ctx, EventQuery{
			DataType: "Deaths",
			Start:    fight.Start,
			End:      fight.End,
			Limit:    1000,
		})
		if err != nil {
			return nil, err
		}

		totalDeaths := 0
		var cutoff float64
		haveCutoff := false
		for _, row := range events {
			et := eventType(row)
			if et != "death" && et != "instakill" {
				continue
			}
			ts, ok := eventTimestamp(row)
			if !ok {
				continue
			}
			totalDeaths++
			if totalDeaths >= maxDeaths {
				if !haveCutoff || ts < cutoff {
					cutoff = ts
					haveCutoff = true
				}
			}
		}
		if haveCutoff {
			cutoffs[fight.ID] = cutoff
		}
	}

	return cutoffs, nil
}
