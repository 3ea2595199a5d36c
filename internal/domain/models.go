package domain

import "time"

// Status is shared by questions and quiz groups. Transitions are one-way:
// active -> completed.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Mode controls what voters see while a quiz group runs. Only ModeChallenge
// changes scoring mechanics (two-team ranking).
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeGhost     Mode = "ghost"
	ModeSurprise  Mode = "surprise"
	ModeChallenge Mode = "challenge"
)

// Kind discriminates how a quiz group gets its correct answers.
type Kind string

const (
	// KindOpen groups are resolved later by an authorized party.
	KindOpen Kind = "1"
	// KindPreset groups carry sealed answers fixed at creation time.
	KindPreset Kind = "2"
)

// Selection is the team-building strategy for challenge mode.
type Selection string

const (
	SelectionRandom Selection = "random"
	SelectionManual Selection = "manual"
)

// Member is a membership fact consumed from the surrounding system.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Question is one multiple-choice poll inside a quiz group.
//
// Votes is the source of truth (key uniqueness enforces at-most-one vote per
// user). VoterIndex is a denormalized option -> voters projection kept for
// display; VoterOrder records the order votes arrived in and is what the
// ranking tie-break iterates.
type Question struct {
	ID            string           `json:"id"`
	QuizGroupID   string           `json:"quizGroupId"`
	Prompt        string           `json:"prompt"`
	Options       []string         `json:"options"`
	Votes         map[string]int   `json:"votes"`
	VoterIndex    map[int][]string `json:"voterIndex"`
	VoterOrder    []string         `json:"voterOrder"`
	CorrectOption *int             `json:"correctOption"`
	Status        Status           `json:"status"`
}

// TeamAssignment holds the two disjoint team rosters for challenge mode.
type TeamAssignment struct {
	TeamA []string `json:"teamA"`
	TeamB []string `json:"teamB"`
}

// ChallengeConfig is present only when Mode == ModeChallenge. Structure is
// frozen at authoring time.
type ChallengeConfig struct {
	Selection      Selection      `json:"selection"`
	Teams          TeamAssignment `json:"teams"`
	IncludeCreator bool           `json:"includeCreator"`
}

// QuizGroup bundles questions that share lifecycle, mode, and one computed
// ranking. CorrectAnswers mirrors each question's CorrectOption so "are we
// done" checks need a single read.
type QuizGroup struct {
	ID             string           `json:"id"`
	GroupID        string           `json:"groupId"`
	CreatorID      string           `json:"creatorId"`
	QuestionIDs    []string         `json:"questionIds"`
	Kind           Kind             `json:"kind"`
	Mode           Mode             `json:"mode"`
	EndTime        time.Time        `json:"endTime"`
	ResolutionOpen bool             `json:"resolutionOpen"`
	Challenge      *ChallengeConfig `json:"challenge,omitempty"`
	PresetAnswers  map[string]int   `json:"presetAnswers,omitempty"`
	CorrectAnswers map[string]int   `json:"correctAnswers"`
	Ranking        *Ranking         `json:"ranking"`
	Status         Status           `json:"status"`
}

// AllResolved reports whether every question in the group has a mirrored
// correct answer.
func (g *QuizGroup) AllResolved() bool {
	for _, id := range g.QuestionIDs {
		if _, ok := g.CorrectAnswers[id]; !ok {
			return false
		}
	}
	return true
}

// RankingKind tags which branch produced a ranking.
type RankingKind string

const (
	RankingIndividual RankingKind = "individual"
	RankingTeams      RankingKind = "teams"
)

// IndividualEntry is one leaderboard row in individual mode.
type IndividualEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Correct     int    `json:"correct"`
	Total       int    `json:"total"`
	Accuracy    int    `json:"accuracy"`
	Points      int    `json:"points"`
	Title       string `json:"title"`
	Position    int    `json:"position"`
}

// TeamEntry is one leaderboard row in challenge mode.
type TeamEntry struct {
	Team       int      `json:"team"`
	Members    []Member `json:"members"`
	Correct    int      `json:"correct"`
	TotalVotes int      `json:"totalVotes"`
	Accuracy   int      `json:"accuracy"`
	Position   int      `json:"position"`
	IsWinner   bool     `json:"isWinner"`
}

// Ranking is the immutable snapshot written onto a quiz group when it
// completes. Exactly one of Individuals/Teams is populated, per Kind.
type Ranking struct {
	Kind        RankingKind       `json:"kind"`
	Individuals []IndividualEntry `json:"individuals,omitempty"`
	Teams       []TeamEntry       `json:"teams,omitempty"`
}
