package app

import (
	"sync"

	"prediction-poll-service/internal/domain"
)

// EventType tags feed events sent to live subscribers.
type EventType string

const (
	// EventVote signals that a vote was recorded on a question.
	EventVote EventType = "vote"
	// EventCompleted signals that the quiz group completed. Ranking may be
	// nil when the group was ended early with unresolved questions.
	EventCompleted EventType = "completed"
)

// Event is a feed notification for one quiz group.
type Event struct {
	Type        EventType       `json:"type"`
	QuizGroupID string          `json:"quizGroupId"`
	QuestionID  string          `json:"questionId,omitempty"`
	Ranking     *domain.Ranking `json:"ranking,omitempty"`
}

// Feed fans out quiz group events to in-process subscribers (the websocket
// transport). It carries no business state; missing an event never changes
// what a reader sees in the record store.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel receiving events for one quiz group. The caller
// must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(quizGroupID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	f.mu.Lock()
	if f.subscribers[quizGroupID] == nil {
		f.subscribers[quizGroupID] = make(map[chan Event]struct{})
	}
	f.subscribers[quizGroupID][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if subs, ok := f.subscribers[quizGroupID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(f.subscribers, quizGroupID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *Feed) publish(quizGroupID string, ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subscribers[quizGroupID] {
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event so slow clients never block.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
