package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prediction-poll-service/internal/domain"
	"prediction-poll-service/internal/teams"
)

// QuestionInput describes one question at authoring time.
type QuestionInput struct {
	Prompt  string
	Options []string
}

// ChallengeInput configures two-team scoring for challenge mode.
type ChallengeInput struct {
	Selection      domain.Selection
	TeamA          []string
	TeamB          []string
	IncludeCreator bool
}

// CreateQuizGroupInput is the single authoring step that creates a quiz group
// together with its questions. Structure is immutable afterwards.
type CreateQuizGroupInput struct {
	GroupID        string
	CreatorID      string
	Questions      []QuestionInput
	Kind           domain.Kind
	Mode           domain.Mode
	EndTime        time.Time
	ResolutionOpen bool
	// PresetAnswers holds one correct option index per question, required for
	// kind "2" and rejected otherwise.
	PresetAnswers []int
	Challenge     *ChallengeInput
}

// CreateQuizGroup validates the input, builds challenge teams when requested,
// and persists all question records followed by the quiz group record.
func (s *PollService) CreateQuizGroup(ctx context.Context, input CreateQuizGroupInput) (*domain.QuizGroup, error) {
	if err := s.validateAuthoring(input); err != nil {
		return nil, err
	}

	group := domain.QuizGroup{
		ID:             s.newID(),
		GroupID:        input.GroupID,
		CreatorID:      input.CreatorID,
		Kind:           input.Kind,
		Mode:           input.Mode,
		EndTime:        input.EndTime,
		ResolutionOpen: input.ResolutionOpen,
		CorrectAnswers: make(map[string]int),
		Status:         domain.StatusActive,
	}

	if input.Mode == domain.ModeChallenge {
		challenge, err := s.buildChallenge(ctx, input)
		if err != nil {
			return nil, err
		}
		group.Challenge = challenge
	}

	questions := make([]domain.Question, 0, len(input.Questions))
	for i, in := range input.Questions {
		q := domain.Question{
			ID:          s.newID(),
			QuizGroupID: group.ID,
			Prompt:      in.Prompt,
			Options:     append([]string(nil), in.Options...),
			Votes:       make(map[string]int),
			VoterIndex:  make(map[int][]string),
			Status:      domain.StatusActive,
		}
		questions = append(questions, q)
		group.QuestionIDs = append(group.QuestionIDs, q.ID)
		if input.Kind == domain.KindPreset {
			if group.PresetAnswers == nil {
				group.PresetAnswers = make(map[string]int)
			}
			group.PresetAnswers[q.ID] = input.PresetAnswers[i]
		}
	}

	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("encode question: %w", err)
		}
		if err := s.records.Create(ctx, questionKeyPrefix+q.ID, data); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("encode quiz group: %w", err)
	}
	if err := s.records.Create(ctx, quizGroupKeyPrefix+group.ID, data); err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *PollService) validateAuthoring(input CreateQuizGroupInput) error {
	if input.GroupID == "" || input.CreatorID == "" {
		return fmt.Errorf("missing group or creator id")
	}
	if len(input.Questions) == 0 {
		return fmt.Errorf("need at least one question")
	}
	for i, q := range input.Questions {
		if len(q.Options) < 2 || len(q.Options) > 6 {
			return fmt.Errorf("question %d must have 2 to 6 options", i)
		}
	}
	if !input.EndTime.After(s.now()) {
		return fmt.Errorf("end time must be in the future")
	}

	switch input.Kind {
	case domain.KindOpen:
		if len(input.PresetAnswers) != 0 {
			return fmt.Errorf("preset answers only apply to kind %q", domain.KindPreset)
		}
	case domain.KindPreset:
		if len(input.PresetAnswers) != len(input.Questions) {
			return fmt.Errorf("need one preset answer per question")
		}
		for i, answer := range input.PresetAnswers {
			if answer < 0 || answer >= len(input.Questions[i].Options) {
				return fmt.Errorf("preset answer of question %d: %w", i, domain.ErrInvalidOption)
			}
		}
	default:
		return fmt.Errorf("unknown kind %q", input.Kind)
	}

	switch input.Mode {
	case domain.ModeNormal, domain.ModeGhost, domain.ModeSurprise:
		if input.Challenge != nil {
			return fmt.Errorf("challenge config requires mode %q", domain.ModeChallenge)
		}
	case domain.ModeChallenge:
		if input.Challenge == nil {
			return fmt.Errorf("mode %q requires a challenge config", domain.ModeChallenge)
		}
	default:
		return fmt.Errorf("unknown mode %q", input.Mode)
	}
	return nil
}

func (s *PollService) buildChallenge(ctx context.Context, input CreateQuizGroupInput) (*domain.ChallengeConfig, error) {
	members, err := s.members.ListMembers(ctx, input.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}

	exclude := input.CreatorID
	if input.Challenge.IncludeCreator {
		exclude = ""
	}

	var assignment domain.TeamAssignment
	switch input.Challenge.Selection {
	case domain.SelectionRandom:
		// rand.Rand is not safe for concurrent use.
		s.rndMu.Lock()
		assignment, err = teams.AssignRandom(memberIDs, exclude, s.rnd)
		s.rndMu.Unlock()
	case domain.SelectionManual:
		assignment, err = teams.AssignManual(input.Challenge.TeamA, input.Challenge.TeamB, memberIDs, exclude)
	default:
		return nil, fmt.Errorf("unknown team selection %q", input.Challenge.Selection)
	}
	if err != nil {
		return nil, err
	}
	return &domain.ChallengeConfig{
		Selection:      input.Challenge.Selection,
		Teams:          assignment,
		IncludeCreator: input.Challenge.IncludeCreator,
	}, nil
}

// DeleteQuizGroup removes a quiz group and cascades to its questions. Only
// the creator may delete.
func (s *PollService) DeleteQuizGroup(ctx context.Context, quizGroupID, requestingUserID string) error {
	group, _, err := s.loadQuizGroup(ctx, quizGroupID)
	if err != nil {
		return err
	}
	if group.CreatorID != requestingUserID {
		return domain.ErrForbidden
	}
	for _, qid := range group.QuestionIDs {
		if err := s.records.Delete(ctx, questionKeyPrefix+qid); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return s.records.Delete(ctx, quizGroupKeyPrefix+quizGroupID)
}
