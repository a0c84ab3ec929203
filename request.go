package main

import (
	"fmt"
	"hash"
	"hash/fnv"
	"sort"
	"strings"

	"wcl_check/analysis"
	"wcl_check/share"
)

// Service kinds, sorted for the membership check.
var serviceKinds = []string{
	"add_damage",
	"bled_out",
	"deaths",
	"ghosts",
	"hits",
	"phase",
	"phase_damage",
	"phase_one",
	"priority_damage",
}

// RequestData is one analysis request as received from a client. Fields
// irrelevant to the chosen service are ignored.
type RequestData struct {
	Service string `json:"service"`

	Report    string `json:"report"`
	FightName string `json:"fight_name"`
	FightIDs  []int  `json:"fight_ids"`

	ExtraReports []string `json:"extra_reports"`

	DataType          string  `json:"data_type"`
	Ability           string  `json:"ability"`
	AbilityID         int     `json:"ability_id"`
	AbilityRegex      string  `json:"ability_regex"`
	Source            string  `json:"source"`
	DedupeMS          float64 `json:"dedupe_ms"`
	ExcludeFinalMS    float64 `json:"exclude_final_ms"`
	FirstHitOnly      bool    `json:"first_hit_only"`
	IgnoreAfterDeaths int     `json:"ignore_after_deaths"`

	GhostAbilityID int         `json:"ghost_ability_id"`
	GhostMode      interface{} `json:"ghost_mode"`

	IncludeOverlap     *bool   `json:"include_overlap"`
	IncludeEarlyPickup *bool   `json:"include_early_pickup"`
	EarlyWindowMS      float64 `json:"early_window_ms"`

	Phases       []string `json:"phases"`
	PhaseProfile string   `json:"phase_profile"`

	IgnoreFirstAddSet bool   `json:"ignore_first_add_set"`
	BledOutMode       string `json:"bled_out_mode"`
}

// CheckOptionValidation normalizes the request in place and reports whether
// it is servable. Report codes come out sanitized.
func (rd *RequestData) CheckOptionValidation() bool {
	rd.Service = strings.TrimSpace(strings.ToLower(rd.Service))
	rd.FightName = strings.TrimSpace(rd.FightName)

	if !share.StringInSortedSlice(serviceKinds, rd.Service) {
		return false
	}

	code, err := analysis.SanitizeReportCode(rd.Report)
	if err != nil {
		return false
	}
	rd.Report = code

	switch {
	case len(rd.FightIDs) > 50:
		return false
	case len(rd.ExtraReports) > 5:
		return false
	case len(rd.Phases) > 10:
		return false
	}

	for i, extra := range rd.ExtraReports {
		code, err := analysis.SanitizeReportCode(extra)
		if err != nil {
			return false
		}
		rd.ExtraReports[i] = code
	}

	if rd.Service == "ghosts" || rd.Service == "phase" {
		if _, err := analysis.NormalizeGhostMissMode(rd.GhostMode); err != nil {
			return false
		}
	}

	switch rd.BledOutMode {
	case "", analysis.BledOutNoForgiveness, analysis.BledOutLenient:
	default:
		return false
	}

	return true
}

// Hash keys the result cache. Two requests that would compute the same
// report hash identically.
func (rd *RequestData) Hash() hash.Hash {
	sort.Ints(rd.FightIDs)
	sort.Strings(rd.ExtraReports)

	h := fnv.New128a()

	write := func(s string) {
		h.Write(share.S2b(strings.ToLower(s)))
		h.Write([]byte{'|'})
	}

	write(rd.Service)
	write(rd.Report)
	write(rd.FightName)
	write(rd.DataType)
	write(rd.Ability)
	write(rd.AbilityRegex)
	write(rd.Source)
	write(rd.PhaseProfile)
	write(rd.BledOutMode)
	for _, extra := range rd.ExtraReports {
		write(extra)
	}
	for _, phase := range rd.Phases {
		write(phase)
	}

	fmt.Fprint(
		h,
		rd.FightIDs, "|",
		rd.AbilityID, "|",
		rd.GhostAbilityID, "|",
		rd.GhostMode, "|",
		rd.DedupeMS, "|",
		rd.ExcludeFinalMS, "|",
		rd.FirstHitOnly, "|",
		rd.IgnoreAfterDeaths, "|",
		rd.overlapEnabled(), "|",
		rd.earlyPickupEnabled(), "|",
		rd.EarlyWindowMS, "|",
		rd.IgnoreFirstAddSet, "|",
	)

	return h
}

// Both phase-one metrics default to on when the request sets neither.
func (rd *RequestData) overlapEnabled() bool {
	if rd.IncludeOverlap == nil {
		return true
	}
	return *rd.IncludeOverlap
}

func (rd *RequestData) earlyPickupEnabled() bool {
	if rd.IncludeEarlyPickup == nil {
		return true
	}
	return *rd.IncludeEarlyPickup
}
