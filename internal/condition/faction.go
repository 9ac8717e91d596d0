package condition

import (
	"fmt"

	"github.com/dotcommander/parley/internal/domain"
)

// FactionMode selects how the target faction's count is judged.
type FactionMode string

const (
	FactionMajority FactionMode = "majority"
	FactionMinority FactionMode = "minority"
	FactionAtLeast  FactionMode = "at_least"
	FactionExactly  FactionMode = "exactly"
	FactionMoreThan FactionMode = "more_than"
	FactionLessThan FactionMode = "less_than"
)

// NoFaction is the faction ID of unaffiliated characters.
const NoFaction = ""

// CountFactions tallies distinct cast characters per faction ID.
func CountFactions(cast domain.Cast) map[string]int {
	counts := make(map[string]int)
	for _, ch := range cast.Characters() {
		counts[ch.FactionID]++
	}
	return counts
}

// Faction judges the cast's faction composition.
// Unaffiliated characters never count as a competing faction. Minority holds
// when the faction is absent or smaller than every rival, so it also holds
// when there are no rivals. Count modes compare plainly, even on an empty cast.
type Faction struct {
	FactionID string
	Mode      FactionMode
	Count     int
}

// Evaluate implements domain.Condition.
func (c Faction) Evaluate(cast domain.Cast, _ domain.RelationshipReader, _ domain.ContextReader) bool {
	counts := CountFactions(cast)
	target := counts[c.FactionID]

	switch c.Mode {
	case FactionMajority:
		if target == 0 {
			return false
		}
		for id, n := range counts {
			if id == c.FactionID || id == NoFaction {
				continue
			}
			if n >= target {
				return false
			}
		}
		return true
	case FactionMinority:
		if target == 0 {
			return true
		}
		for id, n := range counts {
			if id == c.FactionID || id == NoFaction {
				continue
			}
			if n <= target {
				return false
			}
		}
		return true
	case FactionAtLeast:
		return target >= c.Count
	case FactionExactly:
		return target == c.Count
	case FactionMoreThan:
		return target > c.Count
	case FactionLessThan:
		return target < c.Count
	default:
		return false
	}
}

// Describe implements domain.Condition.
func (c Faction) Describe() string {
	switch c.Mode {
	case FactionMajority, FactionMinority:
		return fmt.Sprintf("Faction '%s' is %s", c.FactionID, c.Mode)
	default:
		return fmt.Sprintf("Faction '%s' count %s %d", c.FactionID, c.Mode, c.Count)
	}
}
