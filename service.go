package main

import (
	"context"
	"net/http"

	"wcl_check/analysis"

	"github.com/pkg/errors"
)

// runAnalysis opens the report and dispatches to the configured service.
// Progress callbacks pass through to the caller untouched.
func runAnalysis(ctx context.Context, rd *RequestData, progress func(format string, args ...interface{})) (interface{}, error) {
	src, err := svcProvider.Open(ctx, rd.Report)
	if err != nil {
		return nil, err
	}

	opt := analysis.Options{
		ReportCode: rd.Report,
		FightName:  rd.FightName,
		FightIDs:   rd.FightIDs,
		Progress:   progress,
	}

	switch rd.Service {
	case "hits":
		return analysis.FetchHitSummary(ctx, src, &analysis.HitOptions{
			Options:           opt,
			DataType:          rd.DataType,
			Ability:           rd.Ability,
			AbilityID:         rd.AbilityID,
			AbilityRegex:      rd.AbilityRegex,
			Source:            rd.Source,
			DedupeMS:          rd.DedupeMS,
			ExcludeFinalMS:    rd.ExcludeFinalMS,
			IgnoreAfterDeaths: rd.IgnoreAfterDeaths,
			FirstHitOnly:      rd.FirstHitOnly,
		})

	case "ghosts":
		return analysis.FetchGhostSummary(ctx, src, &analysis.GhostOptions{
			Options:           opt,
			AbilityID:         rd.GhostAbilityID,
			Mode:              rd.GhostMode,
			IgnoreAfterDeaths: rd.IgnoreAfterDeaths,
		})

	case "phase":
		return analysis.FetchPhaseSummary(ctx, src, &analysis.PhaseOptions{
			Options:           opt,
			BesiegeAbilityID:  rd.AbilityID,
			GhostAbilityID:    rd.GhostAbilityID,
			HitDataType:       rd.DataType,
			HitDedupeMS:       rd.DedupeMS,
			HitExcludeFinalMS: rd.ExcludeFinalMS,
			IgnoreAfterDeaths: rd.IgnoreAfterDeaths,
			FirstHitOnly:      rd.FirstHitOnly,
			GhostMode:         rd.GhostMode,
		})

	case "phase_one":
		return analysis.FetchPhaseOneSummary(ctx, src, &analysis.PhaseOneOptions{
			Options:            opt,
			IncludeOverlap:     rd.overlapEnabled(),
			IncludeEarlyPickup: rd.earlyPickupEnabled(),
			EarlyWindowMS:      rd.EarlyWindowMS,
			IgnoreAfterDeaths:  rd.IgnoreAfterDeaths,
		})

	case "deaths":
		return analysis.FetchDeathSummary(ctx, src, &analysis.DeathOptions{
			Options:           opt,
			IgnoreAfterDeaths: rd.IgnoreAfterDeaths,
		})

	case "bled_out":
		return analysis.FetchBledOutSummary(ctx, src, &analysis.BledOutOptions{
			Options:           opt,
			IgnoreAfterDeaths: rd.IgnoreAfterDeaths,
			Mode:              rd.BledOutMode,
		})

	case "phase_damage":
		return analysis.FetchPhaseDamageSummary(ctx, svcProvider, &analysis.PhaseDamageOptions{
			Options:          opt,
			Phases:           rd.Phases,
			PhaseProfile:     rd.PhaseProfile,
			ExtraReportCodes: rd.ExtraReports,
		})

	case "priority_damage":
		return analysis.FetchPriorityDamageSummary(ctx, src, &analysis.PriorityDamageOptions{
			Options: opt,
		})

	case "add_damage":
		return analysis.FetchAddDamageSummary(ctx, svcProvider, &analysis.AddDamageOptions{
			Options:           opt,
			IgnoreFirstAddSet: rd.IgnoreFirstAddSet,
			ExtraReportCodes:  rd.ExtraReports,
		})
	}

	return nil, errors.Errorf("unknown service %q", rd.Service)
}

// statusOfError maps analysis errors onto HTTP statuses for the REST
// surface.
func statusOfError(err error) int {
	var tokenErr *analysis.TokenError
	if errors.As(err, &tokenErr) {
		return http.StatusUnauthorized
	}
	var selErr *analysis.FightSelectionError
	if errors.As(err, &selErr) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
