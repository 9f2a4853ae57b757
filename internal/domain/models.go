package domain

import "time"

const (
	// MinOptions is the smallest number of answer options a quiz poll accepts.
	MinOptions = 2
	// MaxOptions is the largest number of answer options a quiz poll accepts.
	MaxOptions = 10
)

// MCQ is a single multiple-choice question waiting for (or done with) delivery.
type MCQ struct {
	ID           int64      `json:"id"`
	Question     string     `json:"question"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correct_index"`
	Uploader     string     `json:"uploader,omitempty"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	PostedAt     *time.Time `json:"posted_at"`
	DeliveryRef  string     `json:"delivery_ref,omitempty"`

	Attempts  int        `json:"attempts,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	ParkedAt  *time.Time `json:"parked_at,omitempty"`
}

// Pending reports whether the record still waits for a successful delivery.
func (m MCQ) Pending() bool {
	return m.PostedAt == nil
}

// Parked reports whether the retry policy gave up on the record.
func (m MCQ) Parked() bool {
	return m.ParkedAt != nil
}

// Deliverable reports whether the scheduler may pick the record up.
func (m MCQ) Deliverable() bool {
	return m.Pending() && !m.Parked()
}

// Quiz is the payload handed to a delivery port.
func (m MCQ) Quiz() Quiz {
	options := make([]string, len(m.Options))
	copy(options, m.Options)
	return Quiz{
		ID:           m.ID,
		Question:     m.Question,
		Options:      options,
		CorrectIndex: m.CorrectIndex,
	}
}

// Document is the whole persisted queue. It is always read and written in one piece.
type Document struct {
	NextID int64 `json:"next_id"`
	Items  []MCQ `json:"items"`
}

// NewDocument returns an empty document ready for the first append.
func NewDocument() *Document {
	return &Document{NextID: 1, Items: []MCQ{}}
}

// Submission is a fully parsed upload, as produced by a front end.
type Submission struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Uploader     string   `json:"uploader,omitempty"`
}

// Quiz is what gets rendered as an interactive quiz poll.
type Quiz struct {
	ID           int64
	Question     string
	Options      []string
	CorrectIndex int
}

// Receipt is returned by a delivery port after a successful send.
type Receipt struct {
	Ref string
}

// SchedulerState is the run state of the delivery loop.
type SchedulerState string

const (
	StatePaused  SchedulerState = "PAUSED"
	StateRunning SchedulerState = "RUNNING"
)

// Outcome summarizes a single delivery attempt.
type Outcome string

const (
	// OutcomeNone is reported until the first attempt has run.
	OutcomeNone      Outcome = ""
	OutcomeIdle      Outcome = "idle"
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

// Status is a read-only snapshot used by health and status endpoints.
type Status struct {
	State       SchedulerState `json:"state"`
	Pending     int            `json:"pending"`
	Interval    string         `json:"interval"`
	LastOutcome Outcome        `json:"last_outcome,omitempty"`
	LastAttempt *time.Time     `json:"last_attempt,omitempty"`
	Time        time.Time      `json:"time"`
}

// Clone returns a copy whose item slice can be mutated without touching d.
func (d *Document) Clone() *Document {
	items := make([]MCQ, len(d.Items))
	copy(items, d.Items)
	return &Document{NextID: d.NextID, Items: items}
}
