package analysis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// fakeSource serves canned report data to the summary functions.
type fakeSource struct {
	meta     *ReportMeta
	details  *PlayerDetails
	eventsFn func(q EventQuery) []RawEvent
	tables   map[string][]TableEntry // keyed dataType "|" fightID
	labels   map[int]string
}

func (s *fakeSource) Meta(ctx context.Context) (*ReportMeta, error) {
	return s.meta, nil
}

func (s *fakeSource) PlayerDetails(ctx context.Context, fightIDs []int) (*PlayerDetails, error) {
	return s.details, nil
}

func (s *fakeSource) Events(ctx context.Context, q EventQuery) ([]RawEvent, error) {
	if s.eventsFn == nil {
		return nil, nil
	}
	return s.eventsFn(q), nil
}

func (s *fakeSource) Table(ctx context.Context, dataType string, fight Fight, filter string) ([]TableEntry, error) {
	return s.tables[dataType+"|"+strconv.Itoa(fight.ID)], nil
}

func (s *fakeSource) AbilityLabels(ctx context.Context) (map[int]string, error) {
	return s.labels, nil
}

// fakeProvider maps report codes to fake sources.
type fakeProvider struct {
	sources map[string]*fakeSource
}

func (p *fakeProvider) Open(ctx context.Context, reportCode string) (Source, error) {
	src, ok := p.sources[reportCode]
	if !ok {
		return nil, fmt.Errorf("no such report: %s", reportCode)
	}
	return src, nil
}

func rosterEntry(name, class, spec string) PlayerDetailEntry {
	entry := PlayerDetailEntry{Name: name, Type: class}
	if spec != "" {
		entry.Specs = []struct {
			Spec string `json:"spec"`
		}{{Spec: spec}}
	}
	return entry
}

// testRoster is the roster most summary tests share: one tank, one healer,
// one melee dps, one ranged dps.
func testRoster() *PlayerDetails {
	return &PlayerDetails{
		Tanks:   []PlayerDetailEntry{rosterEntry("Akame", "Warrior", "Protection")},
		Healers: []PlayerDetailEntry{rosterEntry("Bela", "Priest", "Holy")},
		DPS: []PlayerDetailEntry{
			rosterEntry("Cree", "Rogue", "Assassination"),
			rosterEntry("Dara", "Mage", "Arcane"),
		},
	}
}

// testMeta builds a two-pull report on the same boss.
func testMeta() *ReportMeta {
	return &ReportMeta{
		Fights: []Fight{
			{ID: 1, Name: "Dimensius", Start: 0, End: 300000, Kill: false},
			{ID: 2, Name: "Dimensius", Start: 400000, End: 760000, Kill: true},
		},
		ActorNames:  map[int]string{11: "Akame", 12: "Bela", 13: "Cree", 14: "Dara", 30: "Shadowfiend"},
		ActorClass:  map[int]string{11: "Warrior", 12: "Priest", 13: "Rogue", 14: "Mage"},
		ActorOwners: map[int]int{30: 12},
	}
}

func fpt(v float64) *float64 { return &v }
func ipt(v int) *int         { return &v }

func damageEvent(ts float64, target, ability string) RawEvent {
	return RawEvent{
		"timestamp":   ts,
		"type":        "damage",
		"targetName":  target,
		"abilityName": ability,
	}
}

func eventsByDataType(byType map[string][]RawEvent) func(q EventQuery) []RawEvent {
	return func(q EventQuery) []RawEvent {
		var out []RawEvent
		for _, row := range byType[q.DataType] {
			ts, ok := asFloat(row["timestamp"])
			if ok && (ts < q.Start || ts >= q.End) {
				continue
			}
			out = append(out, row)
		}
		return out
	}
}

func entryPlayers(entries interface{}) string {
	var names []string
	switch typed := entries.(type) {
	case []GhostEntry:
		for _, e := range typed {
			names = append(names, e.Player)
		}
	case []DeathEntry:
		for _, e := range typed {
			names = append(names, e.Player)
		}
	case []PhaseOneEntry:
		for _, e := range typed {
			names = append(names, e.Player)
		}
	}
	return strings.Join(names, ",")
}
