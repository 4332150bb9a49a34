// Command refresh_profiles re-resolves contact snapshots for the conversations of one connection.
// By default only conversations still showing a placeholder name are refreshed.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/processor"
	"whatsapp-inbox/internal/profile"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	ownerID      string
	connectionID string
	all          bool
	concurrency  int
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "refresh_profiles",
		Short:        "Refresh WhatsApp profile snapshots of stored conversations",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ownerID, "owner", "", "tenant owner id")
	cmd.Flags().StringVar(&opts.connectionID, "connection", "", "WhatsApp connection id")
	cmd.Flags().BoolVar(&opts.all, "all", false, "refresh every conversation, not only placeholder names")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "parallel bridge lookups")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("connection")
	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := cfg.NewLogger(os.Stderr)

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	store := database.NewStore(db, log)
	inbox := processor.FromConfig(cfg, store, whatsapp.NewClient(cfg, log), log)

	convs, err := inbox.ListConversations(ctx, opts.ownerID, opts.connectionID)
	if err != nil {
		return err
	}
	jids := lo.FilterMap(convs, func(c models.Conversation, _ int) (string, bool) {
		return c.ChatID, opts.all || profile.IsPlaceholder(c.DisplayName)
	})
	log.Info("refreshing profiles", "conversations", len(convs), "selected", len(jids))

	var refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))
	for _, jid := range jids {
		g.Go(func() error {
			if inbox.RefreshContactInfo(gctx, opts.ownerID, opts.connectionID, jid) {
				refreshed.Add(1)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("profiles refreshed", "refreshed", refreshed.Load(), "skipped", int64(len(jids))-refreshed.Load())
	return nil
}
