package domain

import "sort"

// Cast maps role IDs to the characters filling them for one scene instance.
// A Cast is immutable; NewCast copies its input.
type Cast struct {
	members map[string]*Character
}

// NewCast builds a Cast from roleID -> character. Nil characters are dropped.
func NewCast(members map[string]*Character) Cast {
	m := make(map[string]*Character, len(members))
	for role, c := range members {
		if c != nil {
			m[role] = c
		}
	}
	return Cast{members: m}
}

// Get returns the character filling roleID.
func (c Cast) Get(roleID string) (*Character, bool) {
	ch, ok := c.members[roleID]
	return ch, ok && ch != nil
}

// Has reports whether roleID is filled.
func (c Cast) Has(roleID string) bool {
	_, ok := c.Get(roleID)
	return ok
}

// Len returns the number of filled roles.
func (c Cast) Len() int { return len(c.members) }

// Roles returns the filled role IDs in sorted order.
func (c Cast) Roles() []string {
	roles := make([]string, 0, len(c.members))
	for r := range c.members {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Characters returns the distinct characters in the cast, ordered by role ID.
// A character filling several roles appears once.
func (c Cast) Characters() []*Character {
	seen := make(map[string]bool, len(c.members))
	var out []*Character
	for _, role := range c.Roles() {
		ch := c.members[role]
		if seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		out = append(out, ch)
	}
	return out
}
