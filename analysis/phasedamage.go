package analysis

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"wcl_check/share/parallel"
)

// extraFetchWorkers bounds the concurrent fetch of secondary recordings.
const extraFetchWorkers = 4

// Phase id to label tables per encounter. "full" always means the whole
// pull.
var (
	nexusPhaseLabels = map[string]string{
		"full": "Full Fight",
		"1":    "Stage One: Oath Breakers",
		"2":    "Stage Two: Rider's of the Dark",
		"3":    "Intermission One: Nexus Descent",
		"4":    "Intermission Two: King's Hunger",
		"5":    "Stage Three: World in Twilight",
	}
	dimensiusPhaseLabels = map[string]string{
		"full": "Full Fight",
		"1":    "Stage One: Critical Mass",
		"2":    "Intermission: Event Horizon",
		"3":    "Stage Two: The Dark Heart",
		"4":    "Stage Three: Singularity",
	}
	phaseLabelPresets = map[string]map[string]string{
		"nexus":     nexusPhaseLabels,
		"dimensius": dimensiusPhaseLabels,
	}
)

const defaultPhaseProfile = "nexus"

// Tolerance when matching pull durations across recordings of the same
// encounter.
const mergeDurationToleranceMS = 15000

func resolvePhaseLabels(profile string) map[string]string {
	key := strings.ToLower(strings.TrimSpace(profile))
	if key == "" {
		key = defaultPhaseProfile
	}
	labels, ok := phaseLabelPresets[key]
	if !ok {
		labels = phaseLabelPresets[defaultPhaseProfile]
	}
	return labels
}

// normalizePhaseIDs dedupes and validates requested phase ids against the
// label table. Unknown ids are dropped silently: an unknown phase number
// means "not applicable to this encounter", not a caller bug. An empty
// result falls back to "full".
func normalizePhaseIDs(phases []string, phaseLabels map[string]string) []string {
	var normalized []string
	seen := make(map[string]bool)

	for _, raw := range phases {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lowered := strings.ToLower(text)

		var key string
		if lowered == "full" || lowered == "all" {
			if _, ok := phaseLabels["full"]; !ok {
				continue
			}
			key = "full"
		} else {
			n, err := strconv.Atoi(lowered)
			if err != nil {
				continue
			}
			key = strconv.Itoa(n)
		}
		if _, ok := phaseLabels[key]; !ok || seen[key] {
			continue
		}
		normalized = append(normalized, key)
		seen[key] = true
	}

	if len(normalized) == 0 {
		if _, ok := phaseLabels["full"]; ok {
			normalized = append(normalized, "full")
		} else {
			keys := make([]string, 0, len(phaseLabels))
			for key := range phaseLabels {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			if len(keys) > 0 {
				normalized = append(normalized, keys[0])
			}
		}
	}
	return normalized
}

// PhaseMetric is one phase's total and per-pull average for a player.
type PhaseMetric struct {
	PhaseID        string  `json:"phaseId"`
	PhaseLabel     string  `json:"phaseLabel"`
	TotalAmount    float64 `json:"totalAmount"`
	AveragePerPull float64 `json:"averagePerPull"`
}

// PhaseDamageEntry is one player's phase breakdown.
type PhaseDamageEntry struct {
	Player    string        `json:"player"`
	Role      Role          `json:"role"`
	ClassName string        `json:"className,omitempty"`
	Pulls     int           `json:"pulls"`
	Metrics   []PhaseMetric `json:"metrics"`
}

// PhaseDamageSummary buckets damage and healing totals by boss phase,
// optionally merged across recordings of the same encounter.
type PhaseDamageSummary struct {
	ReportCode string `json:"reportCode"`

	Phases      []string          `json:"phases"`
	PhaseLabels map[string]string `json:"phaseLabels"`

	Entries []PhaseDamageEntry `json:"entries"`

	PlayerClasses map[string]string `json:"playerClasses"`
	PlayerRoles   map[string]Role   `json:"playerRoles"`
	PlayerSpecs   map[string]string `json:"playerSpecs"`

	PullCount     int              `json:"pullCount"`
	SourceReports []string         `json:"sourceReports"`
	Signature     []fightSignature `json:"-"`
}

// PhaseDamageOptions configures a phase-damage fetch.
type PhaseDamageOptions struct {
	Options

	Phases       []string
	PhaseProfile string
	// ExtraReportCodes name secondary recordings of the same attempt
	// sequence to merge with the primary report.
	ExtraReportCodes []string
}

// playerRole keys per-(player, role) accumulation.
type playerRole struct {
	Player string
	Role   Role
}

var (
	damageBucketRoles  = map[Role]bool{RoleTank: true, RoleMelee: true, RoleRanged: true, RoleUnknown: true}
	healingBucketRoles = map[Role]bool{RoleHealer: true}
)

func fetchPhaseDamageSingle(
	ctx context.Context,
	src Source,
	opt *PhaseDamageOptions,
	reportCode string,
	phaseLabels map[string]string,
) (*PhaseDamageSummary, error) {
	baseOpt := opt.Options
	baseOpt.ReportCode = reportCode

	rc, err := prepareReport(ctx, src, &baseOpt)
	if err != nil {
		return nil, err
	}

	selectedPhases := normalizePhaseIDs(opt.Phases, phaseLabels)

	validPlayers := make(map[string]bool, len(rc.rolesGlobal))
	for player := range rc.rolesGlobal {
		validPlayers[player] = true
	}
	for _, fightRoles := range rc.rolesByFight {
		for player := range fightRoles {
			if player != "" {
				validPlayers[player] = true
			}
		}
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

	fightIDsByPlayerRole := make(map[playerRole]map[int]bool)
	for _, fight := range rc.chosen {
		for player, role := range rc.rolesByFight[fight.ID] {
			key := playerRole{Player: player, Role: role}
			if fightIDsByPlayerRole[key] == nil {
				fightIDsByPlayerRole[key] = make(map[int]bool)
			}
			fightIDsByPlayerRole[key][fight.ID] = true
		}
	}

	phaseTotals := make(map[playerRole]map[string]float64)

	consumeEntries := func(fight Fight, phaseID string, entries []TableEntry, allowedRoles map[Role]bool) {
		for i := range entries {
			entry := &entries[i]
			if entry.ID == nil {
				continue
			}
			total := entry.Amount()
			if total <= 0 {
				continue
			}

			ownerID := ResolveOwner(*entry.ID, rc.meta.ActorOwners)
			ownerName := rc.meta.ActorNames[ownerID]
			if ownerName == "" {
				ownerName = rc.meta.ActorNames[*entry.ID]
			}
			if ownerName == "" {
				ownerName = entry.Name
			}
			if ownerName == "" {
				continue
			}

			role := rc.roleFor(fight.ID, ownerName)
			if !allowedRoles[role] {
				continue
			}

			key := playerRole{Player: ownerName, Role: role}
			if phaseTotals[key] == nil {
				phaseTotals[key] = make(map[string]float64)
			}
			phaseTotals[key][phaseID] += total

			if _, ok := playerClasses[ownerName]; !ok {
				playerClasses[ownerName] = rc.meta.ActorClass[ownerID]
			}
			if _, ok := playerRoles[ownerName]; !ok {
				playerRoles[ownerName] = role
			}
			validPlayers[ownerName] = true
		}
	}

	for _, phaseID := range selectedPhases {
		filterExpr := ""
		if phaseID != "full" {
			if n, err := strconv.Atoi(phaseID); err == nil {
				filterExpr = "encounterPhase = " + strconv.Itoa(n)
			}
		}

		for _, fight := range rc.chosen {
			opt.progress("fetching phase %s tables, pull %d / %d...",
				phaseID, rc.pullIndexByFight[fight.ID], len(rc.chosen))

			damageEntries, err := src.Table(ctx, "DamageDone", fight, filterExpr)
			if err != nil {
				return nil, err
			}
			consumeEntries(fight, phaseID, damageEntries, damageBucketRoles)

			healingEntries, err := src.Table(ctx, "Healing", fight, filterExpr)
			if err != nil {
				return nil, err
			}
			consumeEntries(fight, phaseID, healingEntries, healingBucketRoles)
		}
	}

	// Players who pulled but never produced a positive total still get a
	// zero-filled row.
	for key := range fightIDsByPlayerRole {
		if !validPlayers[key.Player] {
			continue
		}
		if phaseTotals[key] == nil {
			phaseTotals[key] = make(map[string]float64)
		}
		if _, ok := playerRoles[key.Player]; !ok {
			playerRoles[key.Player] = key.Role
		}
	}

	keys := make([]playerRole, 0, len(phaseTotals))
	for key := range phaseTotals {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, k int) bool {
		pi, pk := rolePriority(keys[i].Role), rolePriority(keys[k].Role)
		if pi != pk {
			return pi < pk
		}
		return strings.ToLower(keys[i].Player) < strings.ToLower(keys[k].Player)
	})

	var entries []PhaseDamageEntry
	for _, key := range keys {
		if !validPlayers[key.Player] {
			continue
		}
		pulls := len(fightIDsByPlayerRole[key])
		if pulls <= 0 {
			continue
		}
		totals := phaseTotals[key]
		metrics := make([]PhaseMetric, 0, len(selectedPhases))
		for _, phaseID := range selectedPhases {
			total := totals[phaseID]
			metrics = append(metrics, PhaseMetric{
				PhaseID:        phaseID,
				PhaseLabel:     phaseLabels[phaseID],
				TotalAmount:    total,
				AveragePerPull: total / float64(pulls),
			})
		}
		entries = append(entries, PhaseDamageEntry{
			Player:    key.Player,
			Role:      key.Role,
			ClassName: playerClasses[key.Player],
			Pulls:     pulls,
			Metrics:   metrics,
		})
	}

	labels := make(map[string]string, len(selectedPhases))
	for _, phaseID := range selectedPhases {
		labels[phaseID] = phaseLabels[phaseID]
	}

	return &PhaseDamageSummary{
		ReportCode:    reportCode,
		Phases:        selectedPhases,
		PhaseLabels:   labels,
		Entries:       entries,
		PlayerClasses: playerClasses,
		PlayerRoles:   playerRoles,
		PlayerSpecs:   playerSpecs,
		PullCount:     len(rc.chosen),
		SourceReports: []string{reportCode},
		Signature:     rc.signature(),
	}, nil
}

// validateMergeSignatures checks that a secondary recording covers the same
// attempt sequence as the primary: identical phase selection and pull count,
// and positionally matching name, outcome, and duration (within tolerance).
func validateMergeSignatures(primary, other *PhaseDamageSummary) error {
	if len(primary.Phases) != len(other.Phases) {
		return newFightSelectionError("additional report uses a different phase configuration than the primary report")
	}
	for i := range primary.Phases {
		if primary.Phases[i] != other.Phases[i] {
			return newFightSelectionError("additional report uses a different phase configuration than the primary report")
		}
	}
	return validatePullSignatures(primary.Signature, other.Signature)
}

func validatePullSignatures(base, other []fightSignature) error {
	if len(base) != len(other) {
		return newFightSelectionError("additional report does not contain the same number of pulls as the primary report")
	}
	for i := range base {
		if base[i].Name != other[i].Name || base[i].Kill != other[i].Kill {
			return newFightSelectionError("additional report pull #%d does not match the primary report (encounter mismatch)", i+1)
		}
		delta := base[i].Duration - other[i].Duration
		if delta < 0 {
			delta = -delta
		}
		if delta > mergeDurationToleranceMS {
			return newFightSelectionError("additional report pull #%d duration differs significantly from the primary report", i+1)
		}
	}
	return nil
}

// sanitizeExtraCodes cleans and dedupes secondary report codes against the
// primary. Unusable codes are dropped, not errors.
func sanitizeExtraCodes(primary string, raw []string) []string {
	var codes []string
	for _, candidate := range raw {
		if candidate == "" {
			continue
		}
		code, err := SanitizeReportCode(candidate)
		if err != nil {
			continue
		}
		if code == primary {
			continue
		}
		duplicate := false
		for _, existing := range codes {
			if existing == code {
				duplicate = true
				break
			}
		}
		if !duplicate {
			codes = append(codes, code)
		}
	}
	return codes
}

// FetchPhaseDamageSummary computes the per-phase damage/healing report,
// merging in any secondary recordings by taking the per-metric maximum,
// which guards against one recording having gaps.
func FetchPhaseDamageSummary(ctx context.Context, provider Provider, opt *PhaseDamageOptions) (*PhaseDamageSummary, error) {
	phaseLabels := resolvePhaseLabels(opt.PhaseProfile)

	primaryCode, err := SanitizeReportCode(opt.ReportCode)
	if err != nil {
		return nil, err
	}

	primarySrc, err := provider.Open(ctx, primaryCode)
	if err != nil {
		return nil, err
	}
	primary, err := fetchPhaseDamageSingle(ctx, primarySrc, opt, primaryCode, phaseLabels)
	if err != nil {
		return nil, err
	}

	extraCodes := sanitizeExtraCodes(primaryCode, opt.ExtraReportCodes)
	if len(extraCodes) == 0 {
		return primary, nil
	}

	summaries := make([]*PhaseDamageSummary, len(extraCodes)+1)
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
			summary, err := fetchPhaseDamageSingle(ctx, src, opt, code, phaseLabels)
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
		if err := validateMergeSignatures(primary, summary); err != nil {
			return nil, err
		}
	}

	return mergePhaseDamageSummaries(primaryCode, extraCodes, summaries), nil
}

func mergePhaseDamageSummaries(primaryCode string, extraCodes []string, summaries []*PhaseDamageSummary) *PhaseDamageSummary {
	primary := summaries[0]
	phaseIDs := primary.Phases
	phaseLabels := primary.PhaseLabels

	combinedTotals := make(map[playerRole]map[string]float64)
	combinedPulls := make(map[playerRole]int)
	combinedClasses := make(map[string]string)
	combinedRoles := make(map[string]Role)
	combinedSpecs := make(map[string]string)

	phaseIDSet := make(map[string]bool, len(phaseIDs))
	for _, phaseID := range phaseIDs {
		phaseIDSet[phaseID] = true
	}

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
			if existing, ok := combinedRoles[entry.Player]; !ok || existing == RoleUnknown || existing == "" {
				combinedRoles[entry.Player] = entry.Role
			}
			if combinedTotals[key] == nil {
				combinedTotals[key] = make(map[string]float64)
			}
			totals := combinedTotals[key]
			for _, metric := range entry.Metrics {
				if !phaseIDSet[metric.PhaseID] {
					continue
				}
				if metric.TotalAmount > totals[metric.PhaseID] {
					totals[metric.PhaseID] = metric.TotalAmount
				}
			}
		}
	}

	mergedEntries := make([]PhaseDamageEntry, 0, len(combinedTotals))
	for key, totals := range combinedTotals {
		pulls := combinedPulls[key]
		if pulls <= 0 {
			pulls = primary.PullCount
		}
		metrics := make([]PhaseMetric, 0, len(phaseIDs))
		for _, phaseID := range phaseIDs {
			total := totals[phaseID]
			average := 0.0
			if pulls > 0 {
				average = total / float64(pulls)
			}
			metrics = append(metrics, PhaseMetric{
				PhaseID:        phaseID,
				PhaseLabel:     phaseLabels[phaseID],
				TotalAmount:    total,
				AveragePerPull: average,
			})
		}
		mergedEntries = append(mergedEntries, PhaseDamageEntry{
			Player:    key.Player,
			Role:      key.Role,
			ClassName: combinedClasses[key.Player],
			Pulls:     pulls,
			Metrics:   metrics,
		})
	}

	sort.Slice(mergedEntries, func(i, k int) bool {
		pi, pk := rolePriority(mergedEntries[i].Role), rolePriority(mergedEntries[k].Role)
		if pi != pk {
			return pi < pk
		}
		return strings.ToLower(mergedEntries[i].Player) < strings.ToLower(mergedEntries[k].Player)
	})

	return &PhaseDamageSummary{
		ReportCode:    primaryCode,
		Phases:        phaseIDs,
		PhaseLabels:   phaseLabels,
		Entries:       mergedEntries,
		PlayerClasses: combinedClasses,
		PlayerRoles:   combinedRoles,
		PlayerSpecs:   combinedSpecs,
		PullCount:     primary.PullCount,
		SourceReports: append([]string{primaryCode}, extraCodes...),
		Signature:     primary.Signature,
	}
}
