package ranking_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prediction-poll-service/internal/domain"
	"prediction-poll-service/internal/ranking"
)

func TestIndividualRankingBasicScenario(t *testing.T) {
	// Two questions, correct answers [0, 1]. A answers both right, B one,
	// C votes only on the first question and must be excluded entirely.
	group := newGroup("qg-1", []string{"q1", "q2"}, domain.ModeNormal, nil)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 3, 0, vote{"a", 0}, vote{"b", 0}, vote{"c", 0}),
		"q2": newQuestion("q2", 3, 1, vote{"a", 1}, vote{"b", 0}),
	}
	names := map[string]string{"a": "Alice", "b": "Bob", "c": "Carol"}

	result := ranking.Compute(group, questions, names)

	require.Equal(t, domain.RankingIndividual, result.Kind)
	require.Len(t, result.Individuals, 2)

	first := result.Individuals[0]
	assert.Equal(t, "a", first.UserID)
	assert.Equal(t, "Alice", first.DisplayName)
	assert.Equal(t, 2, first.Correct)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 100, first.Accuracy)
	assert.Equal(t, 2, first.Points)
	assert.Equal(t, "Mestre da Previsão", first.Title)
	assert.Equal(t, 1, first.Position)

	second := result.Individuals[1]
	assert.Equal(t, "b", second.UserID)
	assert.Equal(t, 1, second.Correct)
	assert.Equal(t, 50, second.Accuracy)
	assert.Equal(t, "Vidente", second.Title)
	assert.Equal(t, 2, second.Position)
}

func TestIndividualEligibilityFilter(t *testing.T) {
	// Answering 2 of 3 questions excludes a user regardless of correctness.
	group := newGroup("qg-1", []string{"q1", "q2", "q3"}, domain.ModeNormal, nil)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 2, 0, vote{"partial", 0}, vote{"full", 0}),
		"q2": newQuestion("q2", 2, 0, vote{"partial", 0}, vote{"full", 1}),
		"q3": newQuestion("q3", 2, 0, vote{"full", 0}),
	}

	result := ranking.Compute(group, questions, nil)

	require.Len(t, result.Individuals, 1)
	assert.Equal(t, "full", result.Individuals[0].UserID)
	assert.Equal(t, 2, result.Individuals[0].Correct)
}

func TestIndividualStableTieBreak(t *testing.T) {
	// Equal scores keep first-vote-seen order: b voted before a on q1.
	group := newGroup("qg-1", []string{"q1", "q2"}, domain.ModeGhost, nil)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 2, 0, vote{"b", 0}, vote{"a", 0}),
		"q2": newQuestion("q2", 2, 1, vote{"a", 1}, vote{"b", 1}),
	}

	result := ranking.Compute(group, questions, nil)

	require.Len(t, result.Individuals, 2)
	assert.Equal(t, "b", result.Individuals[0].UserID)
	assert.Equal(t, "a", result.Individuals[1].UserID)
}

func TestIndividualTitlesBeyondThird(t *testing.T) {
	group := newGroup("qg-1", []string{"q1"}, domain.ModeNormal, nil)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 2, 0, vote{"a", 0}, vote{"b", 0}, vote{"c", 1}, vote{"d", 1}, vote{"e", 1}),
	}

	result := ranking.Compute(group, questions, nil)

	require.Len(t, result.Individuals, 5)
	titles := make([]string, 0, 5)
	for _, entry := range result.Individuals {
		titles = append(titles, entry.Title)
	}
	assert.Equal(t, []string{"Mestre da Previsão", "Vidente", "Profeta", "Adivinho", "Adivinho"}, titles)
}

func TestTeamRankingRawCorrectBeatsAccuracy(t *testing.T) {
	// Team1 = [u1, u2], Team2 = [u3]. Correct answers [0, 0]. Team1 ends at
	// 3 correct of 4 votes (75%), Team2 at 1 of 1 (100%). Raw correct count
	// wins, so Team1 takes position 1.
	challenge := &domain.ChallengeConfig{
		Selection: domain.SelectionManual,
		Teams:     domain.TeamAssignment{TeamA: []string{"u1", "u2"}, TeamB: []string{"u3"}},
	}
	group := newGroup("qg-1", []string{"q1", "q2"}, domain.ModeChallenge, challenge)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 2, 0, vote{"u1", 0}, vote{"u2", 0}, vote{"u3", 0}),
		"q2": newQuestion("q2", 2, 0, vote{"u1", 1}, vote{"u2", 0}),
	}

	result := ranking.Compute(group, questions, nil)

	require.Equal(t, domain.RankingTeams, result.Kind)
	require.Len(t, result.Teams, 2)

	team1 := result.Teams[0]
	assert.Equal(t, 1, team1.Team)
	assert.Equal(t, 3, team1.Correct)
	assert.Equal(t, 4, team1.TotalVotes)
	assert.Equal(t, 75, team1.Accuracy)
	assert.Equal(t, 1, team1.Position)
	assert.True(t, team1.IsWinner)

	team2 := result.Teams[1]
	assert.Equal(t, 2, team2.Team)
	assert.Equal(t, 1, team2.Correct)
	assert.Equal(t, 100, team2.Accuracy)
	assert.Equal(t, 2, team2.Position)
	assert.False(t, team2.IsWinner)
}

func TestTeamRankingTieKeepsTeamOrder(t *testing.T) {
	challenge := &domain.ChallengeConfig{
		Selection: domain.SelectionManual,
		Teams:     domain.TeamAssignment{TeamA: []string{"u1"}, TeamB: []string{"u2"}},
	}
	group := newGroup("qg-1", []string{"q1"}, domain.ModeChallenge, challenge)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 2, 0, vote{"u2", 0}, vote{"u1", 0}),
	}

	result := ranking.Compute(group, questions, nil)

	require.Len(t, result.Teams, 2)
	assert.Equal(t, 1, result.Teams[0].Team)
	assert.True(t, result.Teams[0].IsWinner)
	assert.Equal(t, 2, result.Teams[1].Team)
}

func TestTeamWithoutVotesHasZeroAccuracy(t *testing.T) {
	challenge := &domain.ChallengeConfig{
		Selection: domain.SelectionManual,
		Teams:     domain.TeamAssignment{TeamA: []string{"u1"}, TeamB: []string{"u2"}},
	}
	group := newGroup("qg-1", []string{"q1"}, domain.ModeChallenge, challenge)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 2, 0, vote{"u1", 0}),
	}

	result := ranking.Compute(group, questions, nil)

	require.Len(t, result.Teams, 2)
	assert.Equal(t, 0, result.Teams[1].TotalVotes)
	assert.Equal(t, 0, result.Teams[1].Accuracy)
}

func TestComputeIsIdempotent(t *testing.T) {
	group := newGroup("qg-1", []string{"q1", "q2"}, domain.ModeNormal, nil)
	questions := map[string]domain.Question{
		"q1": newQuestion("q1", 3, 0, vote{"a", 0}, vote{"b", 1}, vote{"c", 0}),
		"q2": newQuestion("q2", 3, 2, vote{"b", 2}, vote{"a", 2}, vote{"c", 0}),
	}
	names := map[string]string{"a": "Alice", "b": "Bob", "c": "Carol"}

	first, err := json.Marshal(ranking.Compute(group, questions, names))
	require.NoError(t, err)
	second, err := json.Marshal(ranking.Compute(group, questions, names))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

type vote struct {
	userID string
	option int
}

func newGroup(id string, questionIDs []string, mode domain.Mode, challenge *domain.ChallengeConfig) domain.QuizGroup {
	correct := make(map[string]int, len(questionIDs))
	for _, qid := range questionIDs {
		correct[qid] = 0
	}
	return domain.QuizGroup{
		ID:             id,
		GroupID:        "group-1",
		CreatorID:      "creator",
		QuestionIDs:    questionIDs,
		Kind:           domain.KindOpen,
		Mode:           mode,
		EndTime:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Challenge:      challenge,
		CorrectAnswers: correct,
		Status:         domain.StatusCompleted,
	}
}

func newQuestion(id string, options int, correct int, votes ...vote) domain.Question {
	q := domain.Question{
		ID:            id,
		QuizGroupID:   "qg-1",
		Options:       make([]string, options),
		Votes:         make(map[string]int),
		VoterIndex:    make(map[int][]string),
		CorrectOption: &correct,
		Status:        domain.StatusCompleted,
	}
	for i := range q.Options {
		q.Options[i] = string(rune('A' + i))
	}
	for _, v := range votes {
		q.Votes[v.userID] = v.option
		q.VoterOrder = append(q.VoterOrder, v.userID)
		q.VoterIndex[v.option] = append(q.VoterIndex[v.option], v.userID)
	}
	return q
}
