package analysis

import "strings"

// Role is a player's combat role for one fight. Roles are computed per fight
// and reconciled into a best-effort global role; nothing may assume a single
// role per player across all pulls.
type Role string

const (
	RoleTank    Role = "Tank"
	RoleHealer  Role = "Healer"
	RoleMelee   Role = "Melee"
	RoleRanged  Role = "Ranged"
	RoleUnknown Role = "Unknown"
)

// RolePriority orders report rows: tanks first, unknowns last.
var RolePriority = map[Role]int{
	RoleTank:    0,
	RoleHealer:  1,
	RoleMelee:   2,
	RoleRanged:  3,
	RoleUnknown: 4,
}

func rolePriority(r Role) int {
	p, ok := RolePriority[r]
	if !ok {
		return RolePriority[RoleUnknown]
	}
	return p
}

type classSpec struct {
	Class string
	Spec  string
}

var specRoleByClass = map[classSpec]Role{
	{"DeathKnight", "Blood"}:     RoleTank,
	{"DeathKnight", "Frost"}:     RoleMelee,
	{"DeathKnight", "Unholy"}:    RoleMelee,
	{"DemonHunter", "Havoc"}:     RoleMelee,
	{"DemonHunter", "Vengeance"}: RoleTank,
	{"Druid", "Balance"}:         RoleRanged,
	{"Druid", "Feral"}:           RoleMelee,
	{"Druid", "Guardian"}:        RoleTank,
	{"Druid", "Restoration"}:     RoleHealer,
	{"Evoker", "Devastation"}:    RoleRanged,
	{"Evoker", "Preservation"}:   RoleHealer,
	{"Evoker", "Augmentation"}:   RoleRanged,
	{"Hunter", "Beast Mastery"}:  RoleRanged,
	{"Hunter", "Marksmanship"}:   RoleRanged,
	{"Hunter", "Survival"}:       RoleMelee,
	{"Mage", "Arcane"}:           RoleRanged,
	{"Mage", "Fire"}:             RoleRanged,
	{"Mage", "Frost"}:            RoleRanged,
	{"Monk", "Brewmaster"}:       RoleTank,
	{"Monk", "Mistweaver"}:       RoleHealer,
	{"Monk", "Windwalker"}:       RoleMelee,
	{"Paladin", "Holy"}:          RoleHealer,
	{"Paladin", "Protection"}:    RoleTank,
	{"Paladin", "Retribution"}:   RoleMelee,
	{"Priest", "Discipline"}:     RoleHealer,
	{"Priest", "Holy"}:           RoleHealer,
	{"Priest", "Shadow"}:         RoleRanged,
	{"Rogue", "Assassination"}:   RoleMelee,
	{"Rogue", "Outlaw"}:          RoleMelee,
	{"Rogue", "Subtlety"}:        RoleMelee,
	{"Shaman", "Elemental"}:      RoleRanged,
	{"Shaman", "Enhancement"}:    RoleMelee,
	{"Shaman", "Restoration"}:    RoleHealer,
	{"Warlock", "Affliction"}:    RoleRanged,
	{"Warlock", "Demonology"}:    RoleRanged,
	{"Warlock", "Destruction"}:   RoleRanged,
	{"Warrior", "Arms"}:          RoleMelee,
	{"Warrior", "Fury"}:          RoleMelee,
	{"Warrior", "Protection"}:    RoleTank,
}

var classDefaultRole = map[string]Role{
	"Mage":        RoleRanged,
	"Warlock":     RoleRanged,
	"Hunter":      RoleRanged,
	"Priest":      RoleRanged,
	"Shaman":      RoleRanged,
	"Evoker":      RoleRanged,
	"DemonHunter": RoleMelee,
	"DeathKnight": RoleMelee,
	"Druid":       RoleMelee,
	"Monk":        RoleMelee,
	"Paladin":     RoleMelee,
	"Rogue":       RoleMelee,
	"Warrior":     RoleMelee,
}

// PlayerDetailEntry is one roster row from the upstream playerDetails block.
type PlayerDetailEntry struct {
	Name  string `json:"name"`
	Type  string `json:"type"` // class name
	Icon  string `json:"icon"`
	Specs []struct {
		Spec string `json:"spec"`
	} `json:"specs"`
}

// PlayerDetails is the roster block for a fight-id set, split into the three
// trusted role groups the upstream reports.
type PlayerDetails struct {
	Tanks   []PlayerDetailEntry `json:"tanks"`
	Healers []PlayerDetailEntry `json:"healers"`
	DPS     []PlayerDetailEntry `json:"dps"`
}

// extractSpec prefers the explicit specs[].spec field and falls back to
// parsing the icon identifier, which looks like "Class-Spec_Name".
func extractSpec(entry *PlayerDetailEntry) string {
	for _, s := range entry.Specs {
		if s.Spec != "" {
			return s.Spec
		}
	}
	if idx := strings.IndexByte(entry.Icon, '-'); idx >= 0 {
		return strings.ReplaceAll(entry.Icon[idx+1:], "_", " ")
	}
	return ""
}

// InferRoles derives role and spec per player name from a roster block.
// Tanks and healers are trusted labels; dps roles go through the
// (class, spec) table, then the per-class default, then Unknown.
func InferRoles(details *PlayerDetails) (map[string]Role, map[string]string) {
	roles := make(map[string]Role)
	specs := make(map[string]string)

	register := func(entry *PlayerDetailEntry, role Role) {
		if entry.Name == "" {
			return
		}
		specs[entry.Name] = extractSpec(entry)
		roles[entry.Name] = role
	}

	for i := range details.Tanks {
		register(&details.Tanks[i], RoleTank)
	}
	for i := range details.Healers {
		register(&details.Healers[i], RoleHealer)
	}

	for i := range details.DPS {
		entry := &details.DPS[i]
		if entry.Name == "" {
			continue
		}
		spec := extractSpec(entry)

		role := RoleUnknown
		if spec != "" && entry.Type != "" {
			if r, ok := specRoleByClass[classSpec{entry.Type, spec}]; ok {
				role = r
			}
		}
		if role == RoleUnknown && entry.Type != "" {
			if r, ok := classDefaultRole[entry.Type]; ok {
				role = r
			}
		}
		register(entry, role)
	}

	return roles, specs
}

// playersFromDetails lists every named participant in roster order.
func playersFromDetails(details *PlayerDetails) []string {
	var players []string
	for _, group := range [][]PlayerDetailEntry{details.Tanks, details.Healers, details.DPS} {
		for i := range group {
			if group[i].Name != "" {
				players = append(players, group[i].Name)
			}
		}
	}
	return players
}
