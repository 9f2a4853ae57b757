package app

import (
	"context"

	"mcq-queue-service/internal/domain"
)

// DocumentBackend persists the queue document as one opaque blob (file, Redis key, table row, object...).
// Load returns domain.ErrDocumentNotFound when nothing has been saved yet.
// Save must replace the previous document atomically: readers see either the old or the new bytes.
type DocumentBackend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// DeliveryPort renders one MCQ as an interactive quiz poll on a remote destination.
type DeliveryPort interface {
	SendQuiz(ctx context.Context, destination string, quiz domain.Quiz) (domain.Receipt, error)
}

// Announcer is implemented by delivery ports that can also broadcast plain text.
type Announcer interface {
	SendAnnouncement(ctx context.Context, destination, text string) error
}

// DeliveryListener observes the outcome of delivery attempts (metrics, events).
// Implementations must not block for long; they run on the scheduler goroutine.
type DeliveryListener interface {
	OnDelivered(ctx context.Context, item domain.MCQ)
	OnDeliveryFailed(ctx context.Context, item domain.MCQ, err error)
}

// DeliveryQueue is the part of the store the scheduler drives.
type DeliveryQueue interface {
	NextPending(ctx context.Context) (*domain.MCQ, error)
	MarkPosted(ctx context.Context, id int64, ref string) (domain.MCQ, error)
	RecordFailure(ctx context.Context, id int64, cause error, maxAttempts int) (domain.MCQ, error)
	CountPending(ctx context.Context) (int, error)
}

// QueueStore is the part of the store the admission side needs.
type QueueStore interface {
	Append(ctx context.Context, question string, options []string, correctIndex int, uploader string) (domain.MCQ, error)
	NextPending(ctx context.Context) (*domain.MCQ, error)
	CountPending(ctx context.Context) (int, error)
	Get(ctx context.Context, id int64) (domain.MCQ, error)
	List(ctx context.Context, filter ListFilter) ([]domain.MCQ, error)
	Remove(ctx context.Context, id int64) error
}

// Resumer wakes the delivery loop after new work arrives.
type Resumer interface {
	Resume() bool
}
