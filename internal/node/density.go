package node

import "github.com/Zhanna110/worldsmith-v3/internal/state"

// densityForTier maps an entity's importance tier to how much content it
// warrants. Tier 1 entities anchor the world and get the deepest treatment;
// everything past tier 5 is a stub with room to grow.
func densityForTier(tier int) state.Density {
	switch {
	case tier <= 1:
		return state.Density{
			Label:       "TIER 1 FOUNDATION",
			TargetWords: 3500,
			Description: "exhaustive treatment: full history, internal factions, notable figures, and open tensions",
		}
	case tier <= 3:
		return state.Density{
			Label:       "TIER 2-3 MAJOR",
			TargetWords: 2500,
			Description: "thorough treatment: origins, current role, key relationships, and one unresolved thread",
		}
	case tier <= 5:
		return state.Density{
			Label:       "TIER 4-5 SUPPORTING",
			TargetWords: 1500,
			Description: "focused treatment: what it is, why it matters, and how it connects to established entries",
		}
	default:
		return state.Density{
			Label:       "TIER 6+ PERIPHERAL",
			TargetWords: 1200,
			Description: "brief treatment: a grounded sketch leaving space for later expansion",
		}
	}
}
