package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/config"
	"mcq-queue-service/internal/domain"
)

// NewQueueCmd prints the queue state of the configured store without starting anything.
func NewQueueCmd(configPath *string) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show pending count and the next MCQ from the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			var cl closers
			defer cl.close()
			store, err := buildStore(cmd.Context(), cfg, logger, &cl)
			if err != nil {
				return err
			}
			return printQueue(cmd.Context(), cmd.OutOrStdout(), store, app.ListFilter(status))
		},
	}
	cmd.Flags().StringVar(&status, "list", "", "also list records: pending, posted, parked or all")
	return cmd
}

func printQueue(ctx context.Context, w io.Writer, store app.QueueStore, list app.ListFilter) error {
	show := list != ""
	switch list {
	case "", app.ListPending, app.ListPosted, app.ListParked:
	case "all":
		list = app.ListAll
	default:
		return domain.NewValidationError("list", "must be one of pending, posted, parked, all", string(list))
	}

	pending, err := store.CountPending(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "pending: %d\n", pending)

	next, err := store.NextPending(ctx)
	if err != nil {
		return err
	}
	if next == nil {
		fmt.Fprintln(w, "next: none")
	} else {
		fmt.Fprintf(w, "next: #%d %s\n", next.ID, next.Question)
	}

	if !show {
		return nil
	}
	items, err := store.List(ctx, list)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}
