package app

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"mcq-queue-service/internal/domain"
)

// AdmissionService is the entry point front ends use to enqueue and inspect MCQs.
type AdmissionService struct {
	store       QueueStore
	scheduler   Resumer
	announcer   Announcer
	destination string
	logger      *zap.Logger
}

func NewAdmissionService(store QueueStore, scheduler Resumer, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{store: store, scheduler: scheduler, logger: logger}
}

// WithAnnouncer enables Announce for ports that can broadcast plain text.
func (a *AdmissionService) WithAnnouncer(announcer Announcer, destination string) *AdmissionService {
	a.announcer = announcer
	a.destination = destination
	return a
}

// Submit validates and enqueues an MCQ, then wakes a paused scheduler.
func (a *AdmissionService) Submit(ctx context.Context, sub domain.Submission) (domain.MCQ, error) {
	sub = sub.Normalize()
	if err := sub.Validate(); err != nil {
		a.logger.Debug("submission rejected", zap.String("uploader", sub.Uploader), zap.Error(err))
		return domain.MCQ{}, err
	}

	item, err := a.store.Append(ctx, sub.Question, sub.Options, sub.CorrectIndex, sub.Uploader)
	if err != nil {
		if !domain.IsValidation(err) {
			a.logger.Error("append mcq", zap.Error(err))
		}
		return domain.MCQ{}, err
	}
	a.logger.Info("mcq queued", zap.Int64("mcq_id", item.ID), zap.String("uploader", item.Uploader))

	if a.scheduler != nil {
		a.scheduler.Resume()
	}
	return item, nil
}

// Preview returns the record that will be delivered next, or nil.
func (a *AdmissionService) Preview(ctx context.Context) (*domain.MCQ, error) {
	return a.store.NextPending(ctx)
}

func (a *AdmissionService) Pending(ctx context.Context) (int, error) {
	return a.store.CountPending(ctx)
}

func (a *AdmissionService) Get(ctx context.Context, id int64) (domain.MCQ, error) {
	return a.store.Get(ctx, id)
}

func (a *AdmissionService) List(ctx context.Context, filter ListFilter) ([]domain.MCQ, error) {
	return a.store.List(ctx, filter)
}

// Remove drops a record, typically a stuck head of the queue.
func (a *AdmissionService) Remove(ctx context.Context, id int64) error {
	if err := a.store.Remove(ctx, id); err != nil {
		return err
	}
	a.logger.Info("mcq removed", zap.Int64("mcq_id", id))
	return nil
}

// Announce sends a plain-text message to the delivery destination.
func (a *AdmissionService) Announce(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.NewValidationError("text", "is required", text)
	}
	if a.announcer == nil {
		return domain.ErrAnnouncementsUnsupported
	}
	if err := a.announcer.SendAnnouncement(ctx, a.destination, text); err != nil {
		if errors.Is(err, domain.ErrAnnouncementsUnsupported) {
			return err
		}
		a.logger.Warn("announcement failed", zap.Error(err))
		return err
	}
	return nil
}
