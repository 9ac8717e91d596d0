package core

import (
	"fmt"

	"github.com/dotcommander/parley/internal/domain"
)

// AutoCast fills the template's roles in declared order. Each role gets the
// unused character it accepts with the highest affinity; ties go to the
// earlier character in the list.
func AutoCast(template *domain.SceneTemplate, characters []*domain.Character) (domain.Cast, error) {
	if template == nil {
		return domain.Cast{}, fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}

	used := make(map[string]bool, len(characters))
	members := make(map[string]*domain.Character, len(template.Roles))

	for i := range template.Roles {
		role := &template.Roles[i]

		var best *domain.Character
		var bestAffinity float64
		for _, c := range characters {
			if c == nil || used[c.ID] || !role.Accepts(c) {
				continue
			}
			a := role.Affinity(c)
			if best == nil || a > bestAffinity {
				best, bestAffinity = c, a
			}
		}
		if best == nil {
			return domain.Cast{}, fmt.Errorf("%w: %s", ErrRoleUnfilled, role.ID)
		}

		used[best.ID] = true
		members[role.ID] = best
	}

	return domain.NewCast(members), nil
}
