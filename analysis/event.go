package analysis

import (
	"strconv"
	"strings"
)

// RawEvent is one record as delivered by the upstream API or a local export.
// Key names vary between export formats; NormalizeEvent flattens them.
type RawEvent map[string]interface{}

// Event is the canonical post-normalization event shape. Optional numeric
// fields stay nil when the raw record is missing or malformed; nothing here
// ever fails hard.
type Event struct {
	AbilityName string
	AbilityID   string
	TargetName  string
	SourceName  string
	EventType   string
	Amount      *float64
	IsMiss      bool
	FightID     *int
	Timestamp   *float64
	SourceID    *int
	TargetID    *int
}

var (
	abilityKeys = []string{
		"ability.name",
		"abilityName",
		"spellName",
		"spell",
		"Ability",
		"Ability Name",
		"ability",
	}
	abilityIDKeys = []string{
		"ability.guid",
		"abilityGuid",
		"abilityId",
		"Ability ID",
		"AbilityID",
		"abilityGameID",
		"spellId",
		"spellID",
	}
	timestampKeys = []string{
		"timestamp",
		"time",
	}
	targetKeys = []string{
		"target.name",
		"targetName",
		"victim",
		"destName",
		"Target",
		"target",
	}
	sourceKeys = []string{
		"source.name",
		"sourceName",
		"source",
		"srcName",
		"Source",
	}
	typeKeys = []string{
		"type",
		"eventType",
		"resultType",
		"result",
	}
	amountKeys = []string{
		"amount",
		"value",
		"damage",
	}

	missHints = []string{"miss", "evade", "parry", "dodge", "immune", "resist", "absorb"}

	hitTypeKeys = []string{"hitType", "result", "Result", "HitType"}

	damageEventTypes = map[string]bool{
		"damage":       true,
		"spell_damage": true,
		"range":        true,
		"melee":        true,
		"swing":        true,
	}
)

func getDeep(row RawEvent, dotted string) interface{} {
	if !strings.Contains(dotted, ".") {
		return row[dotted]
	}

	var cur interface{} = map[string]interface{}(row)
	for _, part := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func firstPresent(row RawEvent, keys []string) interface{} {
	for _, key := range keys {
		v := getDeep(row, key)
		if v == nil || v == "" {
			continue
		}
		return v
	}
	return nil
}

func asString(v interface{}) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case float64:
		return strconv.FormatFloat(e, 'f', -1, 64)
	case int:
		return strconv.Itoa(e)
	case int64:
		return strconv.FormatInt(e, 10)
	case bool:
		return strconv.FormatBool(e)
	}
	return ""
}

func asFloat(v interface{}) (float64, bool) {
	switch e := v.(type) {
	case float64:
		return e, true
	case float32:
		return float64(e), true
	case int:
		return float64(e), true
	case int64:
		return float64(e), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(e), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asInt(v interface{}) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// NormalizeEvent maps a raw record into the canonical Event. Field resolution
// walks the alias lists in order; the first present non-empty value wins.
// Malformed inputs produce sparse fields, never an error.
func NormalizeEvent(row RawEvent) Event {
	var ev Event

	ev.AbilityName = asString(firstPresent(row, abilityKeys))
	ev.TargetName = asString(firstPresent(row, targetKeys))
	ev.SourceName = asString(firstPresent(row, sourceKeys))
	ev.EventType = asString(firstPresent(row, typeKeys))

	// Ability ids are kept as strings so numeric GUIDs and string providers
	// share one identity. Integer-looking values are reduced through the
	// parse so "1224737" and 1224737.0 compare equal.
	if rawID := firstPresent(row, abilityIDKeys); rawID != nil {
		if n, ok := asInt(rawID); ok {
			ev.AbilityID = strconv.Itoa(n)
		} else {
			ev.AbilityID = asString(rawID)
		}
	}

	if v := firstPresent(row, amountKeys); v != nil {
		if f, ok := asFloat(v); ok {
			ev.Amount = &f
		}
	}
	if v := firstPresent(row, timestampKeys); v != nil {
		if f, ok := asFloat(v); ok {
			ev.Timestamp = &f
		}
	}
	if v, ok := row["fight"]; ok {
		if n, ok := asInt(v); ok {
			ev.FightID = &n
		}
	}

	et := strings.ToLower(ev.EventType)
	for _, hint := range missHints {
		if et != "" && strings.Contains(et, hint) {
			ev.IsMiss = true
			break
		}
	}
	if !ev.IsMiss {
		for _, key := range hitTypeKeys {
			v := asString(row[key])
			if v == "" {
				continue
			}
			v = strings.ToLower(strings.TrimSpace(v))
			for _, hint := range missHints {
				if v == hint {
					ev.IsMiss = true
					break
				}
			}
			if ev.IsMiss {
				break
			}
		}
	}

	ev.SourceID = actorIDField(row, "sourceID", "source")
	ev.TargetID = actorIDField(row, "targetID", "target")

	return ev
}

func actorIDField(row RawEvent, flatKey string, nestedKey string) *int {
	if n, ok := asInt(row[flatKey]); ok && row[flatKey] != nil {
		return &n
	}
	if nested, ok := row[nestedKey].(map[string]interface{}); ok {
		if n, ok := asInt(nested["id"]); ok && nested["id"] != nil {
			return &n
		}
	}
	return nil
}

// IsHit reports whether the event counts as a landed hit: not classified as
// a miss, and either a structured damage-like type or (for loosely-typed
// inputs) both an ability name and a target name.
func (ev *Event) IsHit() bool {
	if ev.IsMiss {
		return false
	}
	if damageEventTypes[strings.ToLower(ev.EventType)] {
		return true
	}
	return ev.AbilityName != "" && ev.TargetName != ""
}

// eventTimestamp pulls a usable timestamp straight off the raw record,
// for filters that run before normalization.
func eventTimestamp(row RawEvent) (float64, bool) {
	v := firstPresent(row, timestampKeys)
	if v == nil {
		return 0, false
	}
	return asFloat(v)
}

// eventTargetName resolves targetName with the nested-object fallback used
// by the fight-window filters.
func eventTargetName(row RawEvent) string {
	if s := asString(row["targetName"]); s != "" {
		return s
	}
	if nested, ok := row["target"].(map[string]interface{}); ok {
		return asString(nested["name"])
	}
	return ""
}

func eventType(row RawEvent) string {
	return strings.ToLower(asString(row["type"]))
}

// eventAbilityGameID matches a raw event against a tracked ability id,
// checking abilityGameID first and the nested ability object second.
func eventAbilityGameID(row RawEvent) (int, bool) {
	if n, ok := asInt(row["abilityGameID"]); ok && row["abilityGameID"] != nil {
		return n, true
	}
	if nested, ok := row["ability"].(map[string]interface{}); ok {
		if n, ok := asInt(nested["id"]); ok && nested["id"] != nil {
			return n, true
		}
		if n, ok := asInt(nested["gameID"]); ok && nested["gameID"] != nil {
			return n, true
		}
	}
	return 0, false
}
