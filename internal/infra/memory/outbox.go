package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"mcq-queue-service/internal/domain"
)

// SentQuiz is one quiz accepted by the Outbox.
type SentQuiz struct {
	Destination string
	Quiz        domain.Quiz
	Ref         string
}

// Outbox is a delivery port that records instead of sending. It backs the "log" delivery
// driver (dry runs) and scheduler tests, where failures can be scripted with FailNext.
type Outbox struct {
	logger *zap.Logger

	mu            sync.Mutex
	sent          []SentQuiz
	announcements []string
	calls         int
	failures      []error
}

func NewOutbox(logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{logger: logger}
}

func (o *Outbox) SendQuiz(_ context.Context, destination string, quiz domain.Quiz) (domain.Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls++
	if len(o.failures) > 0 {
		err := o.failures[0]
		o.failures = o.failures[1:]
		return domain.Receipt{}, err
	}

	ref := fmt.Sprintf("log-%d-%d", quiz.ID, o.calls)
	o.sent = append(o.sent, SentQuiz{Destination: destination, Quiz: quiz, Ref: ref})
	o.logger.Info("quiz poll",
		zap.String("destination", destination),
		zap.Int64("mcq_id", quiz.ID),
		zap.String("question", quiz.Question),
		zap.Strings("options", quiz.Options),
		zap.Int("correct_index", quiz.CorrectIndex))
	return domain.Receipt{Ref: ref}, nil
}

func (o *Outbox) SendAnnouncement(_ context.Context, destination, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.announcements = append(o.announcements, text)
	o.logger.Info("announcement", zap.String("destination", destination), zap.String("text", text))
	return nil
}

// FailNext queues errors returned by the next SendQuiz calls, in order.
func (o *Outbox) FailNext(errs ...error) {
	o.mu.Lock()
	o.failures = append(o.failures, errs...)
	o.mu.Unlock()
}

func (o *Outbox) Sent() []SentQuiz {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]SentQuiz, len(o.sent))
	copy(out, o.sent)
	return out
}

func (o *Outbox) Announcements() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.announcements...)
}

// Calls counts SendQuiz invocations, failed ones included.
func (o *Outbox) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}
