// Package ranking computes leaderboards for completed quiz groups. Compute is
// a pure function of its inputs so recomputation is always idempotent.
package ranking

import (
	"math"
	"sort"

	"prediction-poll-service/internal/domain"
)

// Titles assigned to individual positions, first place down.
var titles = []string{"Mestre da Previsão", "Vidente", "Profeta", "Adivinho"}

// TitleFor returns the display title for a 1-based leaderboard position.
func TitleFor(position int) string {
	if position <= len(titles) {
		return titles[position-1]
	}
	return titles[len(titles)-1]
}

// Compute builds the ranking snapshot for a quiz group. questions must hold
// every question referenced by group.QuestionIDs; names maps user IDs to
// display names (missing entries fall back to the ID). The result depends only
// on the arguments, never on wall-clock time or iteration order of maps.
func Compute(group domain.QuizGroup, questions map[string]domain.Question, names map[string]string) domain.Ranking {
	if group.Mode == domain.ModeChallenge && group.Challenge != nil {
		return domain.Ranking{
			Kind:  domain.RankingTeams,
			Teams: computeTeams(group, questions, names),
		}
	}
	return domain.Ranking{
		Kind:        domain.RankingIndividual,
		Individuals: computeIndividuals(group, questions, names),
	}
}

type tally struct {
	correct int
	total   int
}

// computeIndividuals ranks users who answered every question in the group.
// Partial respondents are excluded entirely, not penalized.
func computeIndividuals(group domain.QuizGroup, questions map[string]domain.Question, names map[string]string) []domain.IndividualEntry {
	// Users in first-vote-seen order: question order, then arrival order
	// within each question. This order is the stable tie-break.
	var order []string
	seen := make(map[string]bool)
	counts := make(map[string]*tally)

	for _, qid := range group.QuestionIDs {
		q, ok := questions[qid]
		if !ok || q.CorrectOption == nil {
			continue
		}
		for _, userID := range q.VoterOrder {
			if !seen[userID] {
				seen[userID] = true
				order = append(order, userID)
				counts[userID] = &tally{}
			}
			t := counts[userID]
			t.total++
			if q.Votes[userID] == *q.CorrectOption {
				t.correct++
			}
		}
	}

	entries := make([]domain.IndividualEntry, 0, len(order))
	for _, userID := range order {
		t := counts[userID]
		if t.total != len(group.QuestionIDs) {
			continue
		}
		entries = append(entries, domain.IndividualEntry{
			UserID:      userID,
			DisplayName: displayName(names, userID),
			Correct:     t.correct,
			Total:       t.total,
			Accuracy:    accuracy(t.correct, t.total),
			Points:      t.correct,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Correct > entries[j].Correct
	})
	for i := range entries {
		entries[i].Position = i + 1
		entries[i].Title = TitleFor(i + 1)
	}
	return entries
}

// computeTeams aggregates per-team correct and vote counts over resolved
// questions. Teams sort by correct count descending; ties keep team order.
func computeTeams(group domain.QuizGroup, questions map[string]domain.Question, names map[string]string) []domain.TeamEntry {
	rosters := [][]string{group.Challenge.Teams.TeamA, group.Challenge.Teams.TeamB}
	entries := make([]domain.TeamEntry, 0, len(rosters))

	for teamIdx, roster := range rosters {
		entry := domain.TeamEntry{Team: teamIdx + 1}
		for _, memberID := range roster {
			entry.Members = append(entry.Members, domain.Member{
				ID:          memberID,
				DisplayName: displayName(names, memberID),
			})
			for _, qid := range group.QuestionIDs {
				q, ok := questions[qid]
				if !ok || q.CorrectOption == nil {
					continue
				}
				vote, voted := q.Votes[memberID]
				if !voted {
					continue
				}
				entry.TotalVotes++
				if vote == *q.CorrectOption {
					entry.Correct++
				}
			}
		}
		entry.Accuracy = accuracy(entry.Correct, entry.TotalVotes)
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Correct > entries[j].Correct
	})
	for i := range entries {
		entries[i].Position = i + 1
		entries[i].IsWinner = i == 0
	}
	return entries
}

func accuracy(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

func displayName(names map[string]string, userID string) string {
	if name, ok := names[userID]; ok && name != "" {
		return name
	}
	return userID
}
