package judge

import (
	"time"

	"github.com/mkanda/typerace/internal/domain/types"
)

// TeamResult projects one team's members through their progress for a phrase.
// The team is complete only when every member has completed; its completion
// time is the slowest member's, because the team is not done until its last
// member finishes.
func (e *Engine) TeamResult(phrase, team string) (types.TeamResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	members, ok := e.teams[team]
	if !ok {
		return types.TeamResult{}, false
	}
	return e.teamResultLocked(phrase, team, members), true
}

func (e *Engine) teamResultLocked(phrase, team string, members []string) types.TeamResult {
	result := types.TeamResult{
		TeamID:       team,
		TotalMembers: len(members),
	}

	rd := e.rounds[phrase]
	var latest time.Time
	for _, member := range members {
		if rd == nil {
			continue
		}
		p := rd.byContestant[member]
		if p == nil || !p.completed {
			continue
		}
		result.CompletedMembers++
		if p.completedAt.After(latest) {
			latest = p.completedAt
		}
	}

	if result.TotalMembers > 0 && result.CompletedMembers == result.TotalMembers {
		result.Complete = true
		result.CompletionTime = latest
	}
	return result
}

// WinningTeam returns the fully complete team with the smallest completion
// time. Partially complete teams never win.
func (e *Engine) WinningTeam(phrase string) (types.TeamResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var best types.TeamResult
	found := false
	for team, members := range e.teams {
		result := e.teamResultLocked(phrase, team, members)
		if !result.Complete {
			continue
		}
		if !found || result.CompletionTime.Before(best.CompletionTime) {
			best = result
			found = true
		}
	}
	return best, found
}
