package analysis

// ResolveOwner walks the pet/summon owner chain up to the controlling actor.
// The walk is iterative with a visited set; it stops at the first missing,
// zero, or repeated owner, so pet-of-pet cycles cannot loop.
func ResolveOwner(actorID int, owners map[int]int) int {
	current := actorID
	seen := make(map[int]bool)
	for {
		owner, ok := owners[current]
		if !ok || owner == 0 || seen[owner] {
			return current
		}
		seen[current] = true
		current = owner
	}
}

// resolveEventSourcePlayer maps a raw event's source to the controlling
// player: prefer the nested source object's guid/id, then the flat sourceID,
// walk the owner chain, and use the report's name for the resolved actor.
// Falls back to whatever name the event carried when no id resolves.
func resolveEventSourcePlayer(row RawEvent, actorNames map[int]string, actorOwners map[int]int) (string, *int) {
	var rawName string
	var rawID *int

	if source, ok := row["source"].(map[string]interface{}); ok {
		rawName = asString(source["name"])
		if n, ok := asInt(source["guid"]); ok && source["guid"] != nil {
			rawID = &n
		} else if n, ok := asInt(source["id"]); ok && source["id"] != nil {
			rawID = &n
		}
	}
	if rawID == nil {
		if n, ok := asInt(row["sourceID"]); ok && row["sourceID"] != nil {
			rawID = &n
		}
	}
	if rawName == "" {
		rawName = asString(row["sourceName"])
	}

	resolvedID := rawID
	if rawID != nil {
		owner := ResolveOwner(*rawID, actorOwners)
		resolvedID = &owner
	}

	resolvedName := rawName
	if resolvedID != nil {
		if name, ok := actorNames[*resolvedID]; ok && name != "" {
			resolvedName = name
		}
	}

	return resolvedName, resolvedID
}

// targetIdentity distinguishes add instances that share a display name.
// Numeric ids are authoritative; the tuple is only usable when at least one
// component is present.
type targetIdentity struct {
	GUID       int
	TargetID   int
	Instance   int
	InstanceID int
}

func extractTargetKey(row RawEvent) (targetIdentity, bool) {
	var key targetIdentity
	found := false

	if target, ok := row["target"].(map[string]interface{}); ok {
		if n, ok := asInt(target["guid"]); ok && target["guid"] != nil {
			key.GUID = n
			found = true
		} else if n, ok := asInt(target["id"]); ok && target["id"] != nil {
			key.GUID = n
			found = true
		}
		if n, ok := asInt(target["instance"]); ok && target["instance"] != nil {
			key.Instance = n
			found = true
		}
	}
	if n, ok := asInt(row["targetID"]); ok && row["targetID"] != nil {
		key.TargetID = n
		found = true
	}
	if n, ok := asInt(row["targetInstance"]); ok && row["targetInstance"] != nil {
		key.InstanceID = n
		found = true
	} else if n, ok := asInt(row["targetInstanceID"]); ok && row["targetInstanceID"] != nil {
		key.InstanceID = n
		found = true
	}

	return key, found
}
