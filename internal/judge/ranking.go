package judge

import (
	"sort"

	"github.com/mkanda/typerace/internal/domain/types"
)

// Rankings returns the current standings for a phrase: completed contestants
// first by ascending completion time, then the rest by descending progress.
// Ties among equal progress keep registration order.
func (e *Engine) Rankings(phrase string) []types.Standing {
	e.mu.RLock()
	rd := e.rounds[phrase]
	if rd == nil {
		e.mu.RUnlock()
		return nil
	}

	type row struct {
		stats       types.PlayerStats
		completedAt int64
		order       int
	}
	rows := make([]row, 0, len(rd.order))
	for _, p := range rd.order {
		rows = append(rows, row{
			stats:       e.statsLocked(p),
			completedAt: p.completedAt.UnixNano(),
			order:       p.order,
		})
	}
	e.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.stats.Completed != b.stats.Completed {
			return a.stats.Completed
		}
		if a.stats.Completed {
			return a.completedAt < b.completedAt
		}
		if a.stats.Progress != b.stats.Progress {
			return a.stats.Progress > b.stats.Progress
		}
		return a.order < b.order
	})

	standings := make([]types.Standing, len(rows))
	for i, r := range rows {
		standings[i] = types.Standing{
			Rank:         i + 1,
			ContestantID: r.stats.ContestantID,
			Progress:     r.stats.Progress,
			Errors:       r.stats.Errors,
			Completed:    r.stats.Completed,
			Winner:       r.stats.Winner,
			Elapsed:      r.stats.Elapsed,
			Score:        r.stats.Score,
		}
	}
	return standings
}
