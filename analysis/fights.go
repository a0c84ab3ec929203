package analysis

import (
	"strings"

	"github.com/pkg/errors"
)

// Fight is one pull: a bounded timestamp window for every event that belongs
// to it. Immutable once fetched.
type Fight struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Kill  bool    `json:"kill"`
}

// SelectFights filters by case-insensitive name substring first, then by an
// explicit id set, preserving the original order. Everything downstream
// divides by pull count, so an empty result is a hard FightSelectionError.
func SelectFights(fights []Fight, nameFilter string, fightIDs []int) ([]Fight, error) {
	chosen := fights
	if nameFilter != "" {
		needle := strings.ToLower(nameFilter)
		chosen = nil
		for _, fight := range fights {
			if strings.Contains(strings.ToLower(fight.Name), needle) {
				chosen = append(chosen, fight)
			}
		}
	}

	if len(fightIDs) > 0 {
		idSet := make(map[int]bool, len(fightIDs))
		for _, id := range fightIDs {
			idSet[id] = true
		}
		filtered := chosen[:0:0]
		for _, fight := range chosen {
			if idSet[fight.ID] {
				filtered = append(filtered, fight)
			}
		}
		chosen = filtered
	}

	if len(chosen) == 0 {
		return nil, newFightSelectionError("no fights matched the supplied criteria")
	}
	return chosen, nil
}

// SanitizeReportCode accepts a bare report code or a full report URL and
// returns the code part.
func SanitizeReportCode(value string) (string, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return "", errors.New("report code cannot be empty")
	}
	if idx := strings.Index(strings.ToLower(text), "/reports/"); idx >= 0 {
		remainder := text[idx+len("/reports/"):]
		if cut := strings.IndexByte(remainder, '/'); cut >= 0 {
			remainder = remainder[:cut]
		}
		if cut := strings.IndexByte(remainder, '?'); cut >= 0 {
			remainder = remainder[:cut]
		}
		remainder = strings.TrimSpace(remainder)
		if remainder != "" {
			return remainder, nil
		}
	}
	return text, nil
}
