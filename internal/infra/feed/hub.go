package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"mcq-queue-service/internal/domain"
)

// Event types pushed to subscribers.
const (
	EventQuiz         = "quiz"
	EventAnnouncement = "announcement"
)

// recentLimit bounds how many delivered quizzes stay answerable.
const recentLimit = 64

// Event is one message on the live feed. Quiz events never carry the correct option;
// subscribers learn it by answering.
type Event struct {
	Type     string    `json:"type"`
	Ref      string    `json:"ref,omitempty"`
	MCQID    int64     `json:"mcqId,omitempty"`
	Question string    `json:"question,omitempty"`
	Options  []string  `json:"options,omitempty"`
	Text     string    `json:"text,omitempty"`
	SentAt   time.Time `json:"sentAt"`
}

// AnswerResult is returned to a subscriber answering a quiz.
type AnswerResult struct {
	Ref          string `json:"ref"`
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correctIndex"`
	Answers      int    `json:"answers"`
	CorrectCount int    `json:"correctCount"`
}

type deliveredQuiz struct {
	quiz    domain.Quiz
	answers int
	correct int
}

// Hub is an in-process broadcast DeliveryPort. Each delivered quiz gets a random UUID receipt and
// fans out to every websocket subscriber. Delivery fails with domain.ErrNoSubscribers when nobody
// is listening, which leaves the record pending for the next tick.
type Hub struct {
	now   func() time.Time
	newID func() string

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	recent      map[string]*deliveredQuiz
	order       []string
}

func NewHub() *Hub {
	return NewHubWithClock(time.Now)
}

// NewHubWithClock is used by tests for deterministic timestamps.
func NewHubWithClock(now func() time.Time) *Hub {
	return &Hub{
		now:         now,
		newID:       uuid.NewString,
		subscribers: make(map[chan Event]struct{}),
		recent:      make(map[string]*deliveredQuiz),
	}
}

func (h *Hub) SendQuiz(_ context.Context, _ string, quiz domain.Quiz) (domain.Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subscribers) == 0 {
		return domain.Receipt{}, domain.ErrNoSubscribers
	}

	ref := h.newID()
	h.rememberLocked(ref, quiz)
	h.broadcastLocked(Event{
		Type:     EventQuiz,
		Ref:      ref,
		MCQID:    quiz.ID,
		Question: quiz.Question,
		Options:  append([]string(nil), quiz.Options...),
		SentAt:   h.now().UTC(),
	})
	return domain.Receipt{Ref: ref}, nil
}

func (h *Hub) SendAnnouncement(_ context.Context, _ string, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subscribers) == 0 {
		return domain.ErrNoSubscribers
	}
	h.broadcastLocked(Event{Type: EventAnnouncement, Text: text, SentAt: h.now().UTC()})
	return nil
}

// Subscribe registers a listener. The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Answer checks an option against a recently delivered quiz and updates its tally.
func (h *Hub) Answer(ref string, option int) (AnswerResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.recent[ref]
	if !ok {
		return AnswerResult{}, fmt.Errorf("quiz %s: %w", ref, domain.ErrNotFound)
	}
	if option < 0 || option >= len(d.quiz.Options) {
		return AnswerResult{}, domain.NewValidationError("option", fmt.Sprintf("must be between 0 and %d", len(d.quiz.Options)-1), option)
	}
	correct := option == d.quiz.CorrectIndex
	d.answers++
	if correct {
		d.correct++
	}
	return AnswerResult{
		Ref:          ref,
		Correct:      correct,
		CorrectIndex: d.quiz.CorrectIndex,
		Answers:      d.answers,
		CorrectCount: d.correct,
	}, nil
}

func (h *Hub) rememberLocked(ref string, quiz domain.Quiz) {
	h.recent[ref] = &deliveredQuiz{quiz: quiz}
	h.order = append(h.order, ref)
	if len(h.order) > recentLimit {
		delete(h.recent, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *Hub) broadcastLocked(ev Event) {
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest event to make room.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
