// Package app contains the prediction poll use cases: authoring quiz groups,
// casting votes, marking correct answers, and the completion lifecycle that
// turns a fully resolved group into an immutable ranking snapshot.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"prediction-poll-service/internal/domain"
	"prediction-poll-service/internal/ranking"
)

// casAttempts bounds how often vote/resolution writes re-read and retry after
// losing a conditional update. Validation errors surface immediately; only a
// lost race loops.
const casAttempts = 3

const (
	questionKeyPrefix  = "question:"
	quizGroupKeyPrefix = "quizgroup:"
)

// PollService is stateless business logic over a RecordStore. All mutation
// goes through conditional updates; concurrent writers are resolved by
// re-reading and re-validating, never by in-process locking.
type PollService struct {
	records RecordStore
	members MembershipProvider
	feed    *Feed
	now     func() time.Time
	rndMu   sync.Mutex
	rnd     *rand.Rand
	newID   func() string
}

func NewPollService(records RecordStore, members MembershipProvider) *PollService {
	return &PollService{
		records: records,
		members: members,
		feed:    NewFeed(),
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:   uuid.NewString,
	}
}

// NewPollServiceWithClock is test-only for deterministic deadlines.
func NewPollServiceWithClock(records RecordStore, members MembershipProvider, now func() time.Time) *PollService {
	s := NewPollService(records, members)
	s.now = now
	return s
}

// CastVote records a single vote for userID on a question. At most one vote
// per (question, user) ever succeeds: losing a conditional update re-reads
// current state, so a racing duplicate surfaces as ErrAlreadyVoted.
func (s *PollService) CastVote(ctx context.Context, questionID, userID string, optionIndex int) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		q, version, err := s.loadQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		group, _, err := s.loadQuizGroup(ctx, q.QuizGroupID)
		if err != nil {
			return err
		}

		if optionIndex < 0 || optionIndex >= len(q.Options) {
			return domain.ErrInvalidOption
		}
		if q.Status != domain.StatusActive || group.Status != domain.StatusActive {
			return domain.ErrQuestionClosed
		}
		if !s.now().Before(group.EndTime) {
			return domain.ErrDeadlineExpired
		}
		if _, ok := q.Votes[userID]; ok {
			return domain.ErrAlreadyVoted
		}
		if userID != group.CreatorID {
			member, err := s.members.IsMember(ctx, group.GroupID, userID)
			if err != nil {
				return fmt.Errorf("check membership: %w", err)
			}
			if !member {
				return domain.ErrForbidden
			}
		}

		if q.Votes == nil {
			q.Votes = make(map[string]int)
		}
		if q.VoterIndex == nil {
			q.VoterIndex = make(map[int][]string)
		}
		q.Votes[userID] = optionIndex
		q.VoterOrder = append(q.VoterOrder, userID)
		if !containsString(q.VoterIndex[optionIndex], userID) {
			q.VoterIndex[optionIndex] = append(q.VoterIndex[optionIndex], userID)
		}

		err = s.storeQuestion(ctx, q, version)
		if errors.Is(err, domain.ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return err
		}
		s.feed.publish(q.QuizGroupID, Event{Type: EventVote, QuizGroupID: q.QuizGroupID, QuestionID: q.ID})
		return nil
	}
	return domain.ErrConcurrentModification
}

// CanMarkCorrect reports whether userID may resolve questions of this quiz
// group: the creator always may; anyone else only when resolution is open to
// everyone and they voted on every question in the group.
func (s *PollService) CanMarkCorrect(ctx context.Context, group domain.QuizGroup, userID string) (bool, error) {
	if userID == group.CreatorID {
		return true, nil
	}
	if !group.ResolutionOpen {
		return false, nil
	}
	for _, qid := range group.QuestionIDs {
		q, _, err := s.loadQuestion(ctx, qid)
		if err != nil {
			return false, err
		}
		if _, voted := q.Votes[userID]; !voted {
			return false, nil
		}
	}
	return true, nil
}

// MarkCorrect sets the write-once correct option of a question, mirrors it
// into the quiz group's answer cache, and completes the group once every
// question is resolved.
func (s *PollService) MarkCorrect(ctx context.Context, quizGroupID, questionID string, optionIndex int, requestingUserID string) error {
	group, _, err := s.loadQuizGroup(ctx, quizGroupID)
	if err != nil {
		return err
	}
	if group.Status != domain.StatusActive {
		return domain.ErrAlreadyResolved
	}
	// Preset groups keep their answers sealed until RevealAnswers.
	if group.Kind == domain.KindPreset {
		return domain.ErrForbidden
	}
	if !containsString(group.QuestionIDs, questionID) {
		return domain.ErrNotFound
	}
	allowed, err := s.CanMarkCorrect(ctx, group, requestingUserID)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrForbidden
	}

	err = s.resolveQuestion(ctx, questionID, optionIndex)
	if errors.Is(err, domain.ErrAlreadyResolved) {
		// The question may have been resolved by an earlier attempt whose
		// mirror write lost its race. Re-mirror a matching answer so the
		// group cache catches up and completion can still fire.
		if healErr := s.healUnmirroredResolution(ctx, quizGroupID, questionID, optionIndex); healErr != nil {
			return healErr
		}
		return domain.ErrAlreadyResolved
	}
	if err != nil {
		return err
	}
	return s.recordResolution(ctx, quizGroupID, questionID, optionIndex)
}

// healUnmirroredResolution repairs a question whose CorrectOption is set but
// was never mirrored into the group's answer cache. It only acts when the
// stored answer equals optionIndex; a lost race on the repair itself means
// another writer just updated the group, so it is not an error.
func (s *PollService) healUnmirroredResolution(ctx context.Context, quizGroupID, questionID string, optionIndex int) error {
	q, _, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if q.CorrectOption == nil || *q.CorrectOption != optionIndex {
		return nil
	}
	group, _, err := s.loadQuizGroup(ctx, quizGroupID)
	if err != nil {
		return err
	}
	if _, mirrored := group.CorrectAnswers[questionID]; mirrored {
		return nil
	}
	if err := s.recordResolution(ctx, quizGroupID, questionID, optionIndex); err != nil && !errors.Is(err, domain.ErrConcurrentModification) {
		return err
	}
	return nil
}

// resolveQuestion applies the write-once marking on the question record. A
// concurrent resolver loses the conditional update, re-reads, and fails with
// ErrAlreadyResolved.
func (s *PollService) resolveQuestion(ctx context.Context, questionID string, optionIndex int) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		q, version, err := s.loadQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		if q.CorrectOption != nil {
			return domain.ErrAlreadyResolved
		}
		if optionIndex < 0 || optionIndex >= len(q.Options) {
			return domain.ErrInvalidOption
		}

		idx := optionIndex
		q.CorrectOption = &idx
		q.Status = domain.StatusCompleted

		err = s.storeQuestion(ctx, q, version)
		if errors.Is(err, domain.ErrConcurrentModification) {
			continue
		}
		return err
	}
	return domain.ErrConcurrentModification
}

// recordResolution mirrors a resolved answer into the group's cache and, when
// that makes the group fully resolved, completes it: ranking and status land
// in the same conditional update, so no reader ever observes a completed
// group without its ranking. The completion guard retries a lost race once;
// if another caller completed the group first, the persisted ranking stands.
func (s *PollService) recordResolution(ctx context.Context, quizGroupID, questionID string, optionIndex int) error {
	retried := false
	for {
		group, version, err := s.loadQuizGroup(ctx, quizGroupID)
		if err != nil {
			return err
		}
		if group.Status == domain.StatusCompleted {
			return nil
		}

		if group.CorrectAnswers == nil {
			group.CorrectAnswers = make(map[string]int)
		}
		if existing, ok := group.CorrectAnswers[questionID]; ok && existing == optionIndex && !group.AllResolved() {
			// Already mirrored and nothing to complete yet.
			return nil
		}
		group.CorrectAnswers[questionID] = optionIndex

		completed := group.AllResolved()
		if completed {
			snapshot, err := s.computeRanking(ctx, group)
			if err != nil {
				return err
			}
			group.Ranking = &snapshot
			group.Status = domain.StatusCompleted
		}

		err = s.storeQuizGroup(ctx, group, version)
		if errors.Is(err, domain.ErrConcurrentModification) {
			if retried {
				return err
			}
			retried = true
			continue
		}
		if err != nil {
			return err
		}
		if completed {
			s.feed.publish(group.ID, Event{Type: EventCompleted, QuizGroupID: group.ID, Ranking: group.Ranking})
		}
		return nil
	}
}

// EndQuizGroupEarly lets the creator close a group before every question is
// resolved. A ranking is computed only if all questions already happen to be
// resolved at that moment.
func (s *PollService) EndQuizGroupEarly(ctx context.Context, quizGroupID, requestingUserID string) error {
	retried := false
	for {
		group, version, err := s.loadQuizGroup(ctx, quizGroupID)
		if err != nil {
			return err
		}
		if group.CreatorID != requestingUserID {
			return domain.ErrForbidden
		}
		if group.Status == domain.StatusCompleted {
			return nil
		}

		if group.AllResolved() {
			snapshot, err := s.computeRanking(ctx, group)
			if err != nil {
				return err
			}
			group.Ranking = &snapshot
		}
		group.Status = domain.StatusCompleted

		err = s.storeQuizGroup(ctx, group, version)
		if errors.Is(err, domain.ErrConcurrentModification) {
			if retried {
				return err
			}
			retried = true
			continue
		}
		if err != nil {
			return err
		}
		s.feed.publish(group.ID, Event{Type: EventCompleted, QuizGroupID: group.ID, Ranking: group.Ranking})
		return nil
	}
}

// RevealAnswers applies the sealed preset answers of a kind "2" group to all
// its questions, which drives the normal completion path. The creator may
// reveal at any time; any group member may once the end time has passed.
func (s *PollService) RevealAnswers(ctx context.Context, quizGroupID, requestingUserID string) error {
	group, _, err := s.loadQuizGroup(ctx, quizGroupID)
	if err != nil {
		return err
	}
	if group.Kind != domain.KindPreset {
		return domain.ErrForbidden
	}
	if group.Status != domain.StatusActive {
		return domain.ErrAlreadyResolved
	}
	if requestingUserID != group.CreatorID {
		if s.now().Before(group.EndTime) {
			return domain.ErrForbidden
		}
		member, err := s.members.IsMember(ctx, group.GroupID, requestingUserID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return domain.ErrForbidden
		}
	}

	for _, qid := range group.QuestionIDs {
		answer, ok := group.PresetAnswers[qid]
		if !ok {
			return fmt.Errorf("question %s: %w", qid, domain.ErrNotFound)
		}
		err := s.resolveQuestion(ctx, qid, answer)
		if err != nil && !errors.Is(err, domain.ErrAlreadyResolved) {
			return err
		}
		if err := s.recordResolution(ctx, quizGroupID, qid, answer); err != nil {
			return err
		}
	}
	return nil
}

// computeRanking assembles the pure ranking input (questions and display
// names) and delegates to the ranking package.
func (s *PollService) computeRanking(ctx context.Context, group domain.QuizGroup) (domain.Ranking, error) {
	questions := make(map[string]domain.Question, len(group.QuestionIDs))
	for _, qid := range group.QuestionIDs {
		q, _, err := s.loadQuestion(ctx, qid)
		if err != nil {
			return domain.Ranking{}, err
		}
		questions[qid] = q
	}

	members, err := s.members.ListMembers(ctx, group.GroupID)
	if err != nil {
		return domain.Ranking{}, fmt.Errorf("list members: %w", err)
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	return ranking.Compute(group, questions, names), nil
}

func (s *PollService) loadQuestion(ctx context.Context, id string) (domain.Question, int64, error) {
	rec, err := s.records.Get(ctx, questionKeyPrefix+id)
	if err != nil {
		return domain.Question{}, 0, err
	}
	var q domain.Question
	if err := json.Unmarshal(rec.Data, &q); err != nil {
		return domain.Question{}, 0, fmt.Errorf("decode question %s: %w", id, err)
	}
	return q, rec.Version, nil
}

func (s *PollService) storeQuestion(ctx context.Context, q domain.Question, expectedVersion int64) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode question %s: %w", q.ID, err)
	}
	return s.records.ConditionalUpdate(ctx, questionKeyPrefix+q.ID, expectedVersion, data)
}

func (s *PollService) loadQuizGroup(ctx context.Context, id string) (domain.QuizGroup, int64, error) {
	rec, err := s.records.Get(ctx, quizGroupKeyPrefix+id)
	if err != nil {
		return domain.QuizGroup{}, 0, err
	}
	var g domain.QuizGroup
	if err := json.Unmarshal(rec.Data, &g); err != nil {
		return domain.QuizGroup{}, 0, fmt.Errorf("decode quiz group %s: %w", id, err)
	}
	return g, rec.Version, nil
}

func (s *PollService) storeQuizGroup(ctx context.Context, g domain.QuizGroup, expectedVersion int64) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode quiz group %s: %w", g.ID, err)
	}
	return s.records.ConditionalUpdate(ctx, quizGroupKeyPrefix+g.ID, expectedVersion, data)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
