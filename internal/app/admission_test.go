package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/domain"
	"mcq-queue-service/internal/infra/memory"
)

type countingResumer struct {
	calls int
}

func (r *countingResumer) Resume() bool {
	r.calls++
	return true
}

func TestSubmitNormalizesAndResumes(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	resumer := &countingResumer{}
	svc := app.NewAdmissionService(store, resumer, nil)

	item, err := svc.Submit(ctx, domain.Submission{
		Question:     "  Capital of France?  ",
		Options:      []string{" Paris ", "Rome"},
		CorrectIndex: 0,
		Uploader:     " alice ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", item.Question)
	assert.Equal(t, []string{"Paris", "Rome"}, item.Options)
	assert.Equal(t, "alice", item.Uploader)
	assert.Equal(t, 1, resumer.calls)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestSubmitRejectsInvalidWithoutResuming(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore()
	resumer := &countingResumer{}
	svc := app.NewAdmissionService(store, resumer, nil)

	cases := []domain.Submission{
		{Question: "Q", Options: []string{"only"}, CorrectIndex: 0},
		{Question: "Q", Options: []string{"a", "b"}, CorrectIndex: 2},
		{Question: "   ", Options: []string{"a", "b"}, CorrectIndex: 0},
		{Question: "Q", Options: []string{"a", " "}, CorrectIndex: 0},
	}
	for _, sub := range cases {
		_, err := svc.Submit(ctx, sub)
		assert.True(t, domain.IsValidation(err), "expected validation error for %+v, got %v", sub, err)
	}
	assert.Zero(t, resumer.calls)
	assert.Zero(t, backend.Saves())
}

func TestSubmitSurfacesPersistenceFailure(t *testing.T) {
	store, backend := newTestStore()
	resumer := &countingResumer{}
	svc := app.NewAdmissionService(store, resumer, nil)
	backend.FailSaves(errors.New("disk full"))

	_, err := svc.Submit(context.Background(), domain.Submission{Question: "Q", Options: []string{"a", "b"}})
	require.Error(t, err)
	assert.True(t, domain.IsPersistence(err))
	assert.Zero(t, resumer.calls)
}

func TestPreviewGetAndRemove(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	svc := app.NewAdmissionService(store, nil, nil)

	preview, err := svc.Preview(ctx)
	require.NoError(t, err)
	assert.Nil(t, preview)

	first, err := svc.Submit(ctx, domain.Submission{Question: "first", Options: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, domain.Submission{Question: "second", Options: []string{"a", "b"}})
	require.NoError(t, err)

	preview, err = svc.Preview(ctx)
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.Equal(t, first.ID, preview.ID)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Question)

	require.NoError(t, svc.Remove(ctx, first.ID))
	_, err = svc.Get(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, first.ID), domain.ErrNotFound)

	items, err := svc.List(ctx, app.ListPending)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "second", items[0].Question)
}

func TestAnnounce(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	svc := app.NewAdmissionService(store, nil, nil)
	assert.ErrorIs(t, svc.Announce(ctx, "hello"), domain.ErrAnnouncementsUnsupported)

	outbox := memory.NewOutbox(nil)
	svc.WithAnnouncer(outbox, "@quiz")
	assert.True(t, domain.IsValidation(svc.Announce(ctx, "   ")))
	require.NoError(t, svc.Announce(ctx, " Quiz starts in 5 minutes "))
	assert.Equal(t, []string{"Quiz starts in 5 minutes"}, outbox.Announcements())
}
