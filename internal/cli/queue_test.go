package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/config"
	"mcq-queue-service/internal/domain"
	"mcq-queue-service/internal/infra/memory"
)

func TestPrintQueue(t *testing.T) {
	ctx := context.Background()
	store := app.NewStore(memory.NewDocumentStore())

	var out bytes.Buffer
	require.NoError(t, printQueue(ctx, &out, store, ""))
	assert.Equal(t, "pending: 0\nnext: none\n", out.String())

	_, err := store.Append(ctx, "2+2=?", []string{"3", "4"}, 1, "user1")
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, printQueue(ctx, &out, store, "all"))
	assert.Contains(t, out.String(), "pending: 1\nnext: #1 2+2=?\n")
	assert.Contains(t, out.String(), `"question": "2+2=?"`)
}

func TestPrintQueueRejectsUnknownListFilter(t *testing.T) {
	ctx := context.Background()
	store := app.NewStore(memory.NewDocumentStore())
	_, err := store.Append(ctx, "2+2=?", []string{"3", "4"}, 1, "user1")
	require.NoError(t, err)

	var out bytes.Buffer
	err = printQueue(ctx, &out, store, "bogus")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, out.String())

	require.NoError(t, printQueue(ctx, &out, store, app.ListPosted))
	assert.Contains(t, out.String(), "[]")
}

func TestBuildStoreFromFileConfig(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "mcqs.json")
	cfg.Store.Cache = true

	var cl closers
	defer cl.close()
	store, err := buildStore(ctx, cfg, zap.NewNop(), &cl)
	require.NoError(t, err)

	_, err = store.Append(ctx, "Q", []string{"a", "b"}, 0, "")
	require.NoError(t, err)
	_, err = os.Stat(cfg.Store.Path)
	assert.NoError(t, err)
}

func TestBuildDeliveryDrivers(t *testing.T) {
	cfg := config.Default()

	cfg.Delivery.Driver = "feed"
	d, err := buildDelivery(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, d.hub)

	cfg.Delivery.Driver = "log"
	d, err = buildDelivery(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, d.hub)
	assert.NotNil(t, d.announcer)

	cfg.Delivery.Driver = "telegram"
	_, err = buildDelivery(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestBuildEventsDrivers(t *testing.T) {
	cfg := config.Default()
	var cl closers
	defer cl.close()

	listener, consume, err := buildEvents(cfg, zap.NewNop(), &cl)
	require.NoError(t, err)
	assert.Nil(t, listener)
	assert.Nil(t, consume)

	cfg.Events.Driver = "gochannel"
	listener, consume, err = buildEvents(cfg, zap.NewNop(), &cl)
	require.NoError(t, err)
	assert.NotNil(t, listener)
	assert.NotNil(t, consume)
}
