package app

import (
	"context"
	"fmt"

	"prediction-poll-service/internal/domain"
)

// OptionResult is the per-option slice of a question's results. Voters is nil
// when the quiz group's mode hides voter identities.
type OptionResult struct {
	Index  int      `json:"index"`
	Label  string   `json:"label"`
	Count  int      `json:"count"`
	Voters []string `json:"voters,omitempty"`
}

// QuestionResults is the mode-filtered view of one question's votes.
type QuestionResults struct {
	QuestionID    string         `json:"questionId"`
	Prompt        string         `json:"prompt"`
	Options       []OptionResult `json:"options"`
	CorrectOption *int           `json:"correctOption"`
	// Hidden is set for surprise mode while the group is still active; counts
	// and voters are withheld until completion.
	Hidden bool `json:"hidden"`
}

// QuestionResults returns tallies for a question, filtered by the owning quiz
// group's mode: ghost hides voter identities, surprise hides everything until
// the group completes. Voter lists are reconstructed from the votes mapping,
// the source of truth, rather than trusted from the denormalized index.
func (s *PollService) QuestionResults(ctx context.Context, questionID, requestingUserID string) (QuestionResults, error) {
	q, _, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return QuestionResults{}, err
	}
	group, _, err := s.loadQuizGroup(ctx, q.QuizGroupID)
	if err != nil {
		return QuestionResults{}, err
	}
	if requestingUserID != group.CreatorID {
		member, err := s.members.IsMember(ctx, group.GroupID, requestingUserID)
		if err != nil {
			return QuestionResults{}, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return QuestionResults{}, domain.ErrForbidden
		}
	}

	results := QuestionResults{
		QuestionID:    q.ID,
		Prompt:        q.Prompt,
		CorrectOption: q.CorrectOption,
	}

	if group.Mode == domain.ModeSurprise && group.Status == domain.StatusActive {
		results.Hidden = true
		for i, label := range q.Options {
			results.Options = append(results.Options, OptionResult{Index: i, Label: label})
		}
		return results, nil
	}

	showVoters := group.Mode != domain.ModeGhost
	voters := votersByOption(q)
	for i, label := range q.Options {
		opt := OptionResult{Index: i, Label: label, Count: len(voters[i])}
		if showVoters {
			opt.Voters = voters[i]
		}
		results.Options = append(results.Options, opt)
	}
	return results, nil
}

// votersByOption rebuilds the option -> voters projection from the primary
// votes mapping, in vote arrival order.
func votersByOption(q domain.Question) map[int][]string {
	out := make(map[int][]string, len(q.Options))
	for _, userID := range q.VoterOrder {
		idx, ok := q.Votes[userID]
		if !ok {
			continue
		}
		out[idx] = append(out[idx], userID)
	}
	return out
}

// Ranking returns the persisted ranking snapshot, or nil while the quiz group
// is still active.
func (s *PollService) Ranking(ctx context.Context, quizGroupID string) (*domain.Ranking, error) {
	group, _, err := s.loadQuizGroup(ctx, quizGroupID)
	if err != nil {
		return nil, err
	}
	return group.Ranking, nil
}

// QuizGroup returns the current quiz group document.
func (s *PollService) QuizGroup(ctx context.Context, quizGroupID string) (domain.QuizGroup, error) {
	group, _, err := s.loadQuizGroup(ctx, quizGroupID)
	return group, err
}

// Question returns the current question document.
func (s *PollService) Question(ctx context.Context, questionID string) (domain.Question, error) {
	q, _, err := s.loadQuestion(ctx, questionID)
	return q, err
}

// Subscribe returns a channel receiving live events for a quiz group. The
// caller must invoke the returned cancel function to avoid leaks.
func (s *PollService) Subscribe(ctx context.Context, quizGroupID string) (<-chan Event, func(), error) {
	if _, _, err := s.loadQuizGroup(ctx, quizGroupID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(quizGroupID)
	return ch, cancel, nil
}
