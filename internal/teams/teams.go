// Package teams partitions a group's members into the two rosters used by
// challenge-mode scoring.
package teams

import (
	"math/rand"

	"prediction-poll-service/internal/domain"
)

// AssignRandom shuffles the candidate pool (members minus excludeUserID) and
// splits it into two contiguous halves, the first holding ceil(n/2) members.
// The pool must have at least two members so both teams are non-empty.
func AssignRandom(memberIDs []string, excludeUserID string, rnd *rand.Rand) (domain.TeamAssignment, error) {
	pool := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != excludeUserID {
			pool = append(pool, id)
		}
	}
	if len(pool) < 2 {
		return domain.TeamAssignment{}, domain.ErrInsufficientMembers
	}

	rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	half := (len(pool) + 1) / 2
	return domain.TeamAssignment{
		TeamA: pool[:half],
		TeamB: pool[half:],
	}, nil
}

// AssignManual validates an explicit two-team split: teams must be non-empty,
// disjoint, and together cover exactly allMembers minus excludeUserID. A
// roster entry outside the eligible pool counts as an incomplete assignment.
func AssignManual(teamA, teamB, allMembers []string, excludeUserID string) (domain.TeamAssignment, error) {
	if len(teamA) == 0 || len(teamB) == 0 {
		return domain.TeamAssignment{}, domain.ErrTeamEmpty
	}

	assigned := make(map[string]int, len(teamA)+len(teamB))
	for _, id := range append(append([]string{}, teamA...), teamB...) {
		assigned[id]++
		if assigned[id] > 1 {
			return domain.TeamAssignment{}, domain.ErrOverlapDetected
		}
	}

	eligible := make(map[string]bool, len(allMembers))
	for _, id := range allMembers {
		if id != excludeUserID {
			eligible[id] = true
		}
	}
	for id := range eligible {
		if assigned[id] == 0 {
			return domain.TeamAssignment{}, domain.ErrIncompleteAssignment
		}
	}
	for id := range assigned {
		if !eligible[id] {
			return domain.TeamAssignment{}, domain.ErrIncompleteAssignment
		}
	}

	return domain.TeamAssignment{TeamA: teamA, TeamB: teamB}, nil
}
