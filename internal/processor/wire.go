package processor

import (
	"log/slog"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/conversation"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/message"
	"whatsapp-inbox/internal/profile"
	"whatsapp-inbox/internal/retry"
	"whatsapp-inbox/internal/whatsapp"
)

// FromConfig assembles the pipeline over one store and one bridge client.
func FromConfig(cfg *config.Config, store *database.Store, client *whatsapp.Client, log *slog.Logger) *Processor {
	policy := retry.Policy{
		MaxAttempts: cfg.ProfileRetryAttempts,
		Backoff:     retry.Linear(cfg.ProfileRetryDelay),
	}
	resolver := profile.NewResolver(profile.BridgeSessions(client), store, policy, nil, log.With("component", "profile"))
	registry := conversation.NewRegistry(store, resolver, log.With("component", "conversation"))
	ingestor := message.NewIngestor(store, log.With("component", "message"))
	return New(registry, ingestor, resolver, store, log, Options{GroupSyncConcurrency: cfg.GroupSyncConcurrency})
}
