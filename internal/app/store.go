package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"mcq-queue-service/internal/domain"
)

// ListFilter narrows Store.List results.
type ListFilter string

const (
	ListAll     ListFilter = ""
	ListPending ListFilter = "pending"
	ListPosted  ListFilter = "posted"
	ListParked  ListFilter = "parked"
)

// Store owns the queue document. Every call loads the whole document, applies one change and
// writes the whole document back before returning; all calls are serialized by one mutex.
type Store struct {
	backend DocumentBackend
	logger  *zap.Logger
	now     func() time.Time
	cache   bool

	mu  sync.Mutex
	doc *domain.Document // last committed document, only kept when cache is on
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for degraded reads.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock is used by tests for deterministic timestamps.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWriteThroughCache keeps the last committed document in memory instead of reloading it
// on every call. Only safe when this process is the single writer of the backend.
func WithWriteThroughCache() StoreOption {
	return func(s *Store) { s.cache = true }
}

func NewStore(backend DocumentBackend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append validates and enqueues a new record, returning it with its assigned id.
func (s *Store) Append(ctx context.Context, question string, options []string, correctIndex int, uploader string) (domain.MCQ, error) {
	if err := domain.ValidateMCQ(question, options, correctIndex); err != nil {
		return domain.MCQ{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, true)
	if err != nil {
		return domain.MCQ{}, err
	}

	opts := make([]string, len(options))
	copy(opts, options)
	item := domain.MCQ{
		ID:           doc.NextID,
		Question:     question,
		Options:      opts,
		CorrectIndex: correctIndex,
		Uploader:     uploader,
		UploadedAt:   s.now().UTC(),
	}
	doc.NextID++
	doc.Items = append(doc.Items, item)

	if err := s.saveLocked(ctx, doc); err != nil {
		return domain.MCQ{}, err
	}
	return item, nil
}

// NextPending returns the deliverable record with the smallest id, or nil when there is none.
func (s *Store) NextPending(ctx context.Context) (*domain.MCQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, false)
	if err != nil {
		return nil, err
	}
	var next *domain.MCQ
	for i := range doc.Items {
		item := doc.Items[i]
		if !item.Deliverable() {
			continue
		}
		if next == nil || item.ID < next.ID {
			next = &item
		}
	}
	return next, nil
}

// MarkPosted records a successful delivery. Calling it again for a posted record keeps the
// original posted_at and delivery_ref.
func (s *Store) MarkPosted(ctx context.Context, id int64, ref string) (domain.MCQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, true)
	if err != nil {
		return domain.MCQ{}, err
	}
	idx := indexOf(doc, id)
	if idx < 0 {
		return domain.MCQ{}, domain.ErrNotFound
	}
	item := &doc.Items[idx]
	if !item.Pending() {
		return *item, nil
	}

	postedAt := s.now().UTC()
	item.PostedAt = &postedAt
	item.DeliveryRef = ref
	item.LastError = ""
	if err := s.saveLocked(ctx, doc); err != nil {
		return domain.MCQ{}, err
	}
	return doc.Items[idx], nil
}

// RecordFailure bumps the failed-attempt counter of a pending record. When maxAttempts is positive
// and reached, the record is parked and no longer returned by NextPending.
func (s *Store) RecordFailure(ctx context.Context, id int64, cause error, maxAttempts int) (domain.MCQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, true)
	if err != nil {
		return domain.MCQ{}, err
	}
	idx := indexOf(doc, id)
	if idx < 0 {
		return domain.MCQ{}, domain.ErrNotFound
	}
	item := &doc.Items[idx]
	if !item.Pending() {
		return *item, nil
	}

	item.Attempts++
	if cause != nil {
		item.LastError = cause.Error()
	}
	if maxAttempts > 0 && item.Attempts >= maxAttempts && item.ParkedAt == nil {
		parkedAt := s.now().UTC()
		item.ParkedAt = &parkedAt
	}
	if err := s.saveLocked(ctx, doc); err != nil {
		return domain.MCQ{}, err
	}
	return doc.Items[idx], nil
}

// Remove deletes a record. Unknown ids return domain.ErrNotFound and change nothing.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, true)
	if err != nil {
		return err
	}
	idx := indexOf(doc, id)
	if idx < 0 {
		return domain.ErrNotFound
	}
	doc.Items = append(doc.Items[:idx], doc.Items[idx+1:]...)
	return s.saveLocked(ctx, doc)
}

// CountPending returns the number of records the scheduler will still try to deliver.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, false)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, item := range doc.Items {
		if item.Deliverable() {
			count++
		}
	}
	return count, nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.MCQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, false)
	if err != nil {
		return domain.MCQ{}, err
	}
	idx := indexOf(doc, id)
	if idx < 0 {
		return domain.MCQ{}, domain.ErrNotFound
	}
	return doc.Items[idx], nil
}

// List returns records in insertion order.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]domain.MCQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx, false)
	if err != nil {
		return nil, err
	}
	items := make([]domain.MCQ, 0, len(doc.Items))
	for _, item := range doc.Items {
		switch filter {
		case ListPending:
			if !item.Deliverable() {
				continue
			}
		case ListPosted:
			if item.Pending() {
				continue
			}
		case ListParked:
			if !item.Pending() || !item.Parked() {
				continue
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// loadLocked returns a private copy of the current document. Missing or corrupt documents load
// as empty. Backend failures degrade to an empty view for reads but abort writes, so an outage
// never gets an empty document written over real data.
func (s *Store) loadLocked(ctx context.Context, forWrite bool) (*domain.Document, error) {
	if s.cache && s.doc != nil {
		return s.doc.Clone(), nil
	}

	raw, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return domain.NewDocument(), nil
	case err != nil:
		if forWrite {
			return nil, &domain.PersistenceError{Op: "load", Err: err}
		}
		s.logger.Warn("queue document unreadable, serving empty view", zap.Error(err))
		return domain.NewDocument(), nil
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		s.logger.Warn("queue document corrupt, starting from empty document", zap.Error(err))
		return domain.NewDocument(), nil
	}
	if s.cache {
		s.doc = doc.Clone()
	}
	return doc, nil
}

func (s *Store) saveLocked(ctx context.Context, doc *domain.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}
	if err := s.backend.Save(ctx, raw); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	if s.cache {
		s.doc = doc.Clone()
	}
	return nil
}

func decodeDocument(raw []byte) (*domain.Document, error) {
	if len(raw) == 0 {
		return domain.NewDocument(), nil
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode queue document: %w", err)
	}
	if doc.Items == nil {
		doc.Items = []domain.MCQ{}
	}
	// next_id must stay ahead of every id ever handed out.
	for _, item := range doc.Items {
		if item.ID >= doc.NextID {
			doc.NextID = item.ID + 1
		}
	}
	if doc.NextID < 1 {
		doc.NextID = 1
	}
	return &doc, nil
}

func indexOf(doc *domain.Document, id int64) int {
	for i := range doc.Items {
		if doc.Items[i].ID == id {
			return i
		}
	}
	return -1
}
