package populate

import (
	"slices"

	"github.com/questboard/scheduler/internal/game"
)

// ResolveOffsets walks the four-tier inheritance ladder — game, template,
// channel, guild — and returns the first tier that is set, falling back to
// the hard-coded defaults. A set-but-empty tier means "no reminders" and
// wins like any other value; tiers are never merged.
//
// The result is normalized: deduplicated, non-negative, sorted descending so
// the earliest-firing reminder comes first.
func ResolveOffsets(g *game.Game, fallback []int) []int {
	for _, tier := range [][]int{
		g.ReminderOffsets,
		g.TemplateOffsets,
		g.ChannelOffsets,
		g.GuildOffsets,
	} {
		if tier != nil {
			return normalize(tier)
		}
	}
	return normalize(fallback)
}

func normalize(offsets []int) []int {
	seen := make(map[int]struct{}, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if o < 0 {
			continue
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b int) int { return b - a })
	return out
}
