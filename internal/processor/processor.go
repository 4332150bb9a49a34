// Package processor exposes the message pipeline to transports. No operation returns a raw
// error or panics; failures come back tagged in a Result.
package processor

import (
	"context"
	"log/slog"
	"time"

	"whatsapp-inbox/internal/conversation"
	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/message"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/profile"
	wire "whatsapp-inbox/pkg/models"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Result struct {
	Success        bool                `json:"success"`
	ConversationID string              `json:"conversation_id,omitempty"`
	DisplayName    string              `json:"display_name,omitempty"`
	ContactInfo    *models.ContactInfo `json:"contact_info,omitempty"`
	MessageID      string              `json:"message_id,omitempty"`
	// Duplicate is set when the message id was already stored and nothing was written.
	Duplicate bool         `json:"duplicate,omitempty"`
	Error     string       `json:"error,omitempty"`
	Kind      failure.Kind `json:"kind,omitempty"`
}

func failed(err error) Result {
	kind := failure.KindOf(err)
	if kind == failure.KindNone {
		kind = failure.KindStore
	}
	return Result{Error: err.Error(), Kind: kind}
}

// MessageStore is the read side of the message table used for redelivery checks.
type MessageStore interface {
	MessageExists(ctx context.Context, ownerID, connectionID, messageID string) (bool, error)
}

type Processor struct {
	registry       *conversation.Registry
	ingestor       *message.Ingestor
	resolver       *profile.Resolver
	messages       MessageStore
	log            *slog.Logger
	syncConcurrent int
	now            func() time.Time
}

type Options struct {
	// GroupSyncConcurrency bounds how many group conversations SyncGroups updates at once.
	GroupSyncConcurrency int
}

func New(registry *conversation.Registry, ingestor *message.Ingestor, resolver *profile.Resolver, messages MessageStore, log *slog.Logger, opts Options) *Processor {
	return &Processor{
		registry:       registry,
		ingestor:       ingestor,
		resolver:       resolver,
		messages:       messages,
		log:            log,
		syncConcurrent: max(opts.GroupSyncConcurrency, 1),
		now:            time.Now,
	}
}

// ProcessIncoming stores one envelope pushed by the session bridge.
func (p *Processor) ProcessIncoming(ctx context.Context, ownerID, connectionID string, raw wire.RawEnvelope) Result {
	env, err := message.Decode(raw)
	if err != nil {
		p.log.Warn("envelope rejected", "connection_id", connectionID, "error", err)
		return failed(err)
	}
	key := models.ConversationKey{OwnerID: ownerID, ConnectionID: connectionID, ChatID: env.ChatID}
	log := p.log.With("chat_id", env.ChatID, "message_id", env.MessageID)
	log.Debug("processing incoming message", "direction", env.Direction.String())

	if env.MessageID != "" {
		seen, err := p.messages.MessageExists(ctx, ownerID, connectionID, env.MessageID)
		if err != nil {
			return failed(err)
		}
		if seen {
			log.Info("redelivered message skipped")
			return p.duplicate(ctx, key, env.MessageID)
		}
	}

	conv, err := p.registry.Open(ctx, key, env)
	if err != nil {
		return failed(err)
	}
	return p.ingest(ctx, key, env, conv)
}

// ProcessOutgoing records an agent send on an existing conversation.
func (p *Processor) ProcessOutgoing(ctx context.Context, ownerID, connectionID, jid, text string, isAI bool) Result {
	return p.processOutgoing(ctx, ownerID, connectionID, message.NewOutgoing(jid, text, isAI, p.now()))
}

// ProcessSent is ProcessOutgoing for a send the bridge already acknowledged with a message id.
func (p *Processor) ProcessSent(ctx context.Context, ownerID, connectionID, jid, text string, isAI bool, messageID string) Result {
	env := message.NewOutgoing(jid, text, isAI, p.now())
	env.MessageID = messageID
	return p.processOutgoing(ctx, ownerID, connectionID, env)
}

func (p *Processor) processOutgoing(ctx context.Context, ownerID, connectionID string, env message.Envelope) Result {
	if _, _, err := profile.ParseJID(env.ChatID); err != nil {
		return failed(err)
	}
	key := models.ConversationKey{OwnerID: ownerID, ConnectionID: connectionID, ChatID: env.ChatID}

	conv, err := p.registry.Lookup(ctx, key)
	if err != nil {
		return failed(err)
	}
	if conv == nil {
		p.log.Warn("outgoing message for unknown conversation", "chat_id", env.ChatID)
		return Result{Error: "conversation not found", Kind: failure.KindValidation}
	}
	return p.ingest(ctx, key, env, conv)
}

// ingest stores env and then records it on conv. Activity is only recorded for a new row, so a
// failed insert or a redelivery leaves preview and unread count untouched.
func (p *Processor) ingest(ctx context.Context, key models.ConversationKey, env message.Envelope, conv *models.Conversation) Result {
	env = p.ingestor.WithID(env)
	inserted, err := p.ingestor.Ingest(ctx, key, env, conv)
	if err != nil {
		return failed(err)
	}
	if inserted {
		if conv, err = p.registry.Touch(ctx, conv, env); err != nil {
			return failed(err)
		}
	}
	return Result{
		Success:        true,
		ConversationID: conv.ID,
		DisplayName:    conv.DisplayName,
		ContactInfo:    conv.Contact(),
		MessageID:      env.MessageID,
		Duplicate:      !inserted,
	}
}

func (p *Processor) duplicate(ctx context.Context, key models.ConversationKey, messageID string) Result {
	res := Result{Success: true, Duplicate: true, MessageID: messageID}
	if conv, err := p.registry.Lookup(ctx, key); err == nil && conv != nil {
		res.ConversationID = conv.ID
		res.DisplayName = conv.DisplayName
		res.ContactInfo = conv.Contact()
	}
	return res
}

// DisplayName always returns a name: the stored one, a freshly resolved one, or a placeholder.
func (p *Processor) DisplayName(ctx context.Context, ownerID, connectionID, jid string) string {
	key := models.ConversationKey{OwnerID: ownerID, ConnectionID: connectionID, ChatID: jid}
	conv, err := p.registry.Lookup(ctx, key)
	if err == nil && conv != nil && conv.DisplayName != "" {
		return conv.DisplayName
	}
	if name := profile.DisplayName(p.resolver.Resolve(ctx, connectionID, jid)); name != "" {
		return name
	}
	return profile.PlaceholderFor(jid)
}

func (p *Processor) RefreshContactInfo(ctx context.Context, ownerID, connectionID, jid string) bool {
	key := models.ConversationKey{OwnerID: ownerID, ConnectionID: connectionID, ChatID: jid}
	ok, err := p.registry.RefreshProfile(ctx, key)
	if err != nil {
		return false
	}
	if ok {
		p.log.Info("contact info refreshed", "chat_id", jid)
	}
	return ok
}

func (p *Processor) PromoteDisplayName(ctx context.Context, ownerID, connectionID, jid, candidate string) bool {
	key := models.ConversationKey{OwnerID: ownerID, ConnectionID: connectionID, ChatID: jid}
	ok, err := p.registry.PromoteDisplayName(ctx, key, candidate)
	return err == nil && ok
}

// Conversation returns the stored conversation, nil when there is none.
func (p *Processor) Conversation(ctx context.Context, ownerID, connectionID, jid string) (*models.Conversation, error) {
	return p.registry.Lookup(ctx, models.ConversationKey{OwnerID: ownerID, ConnectionID: connectionID, ChatID: jid})
}

func (p *Processor) ListConversations(ctx context.Context, ownerID, connectionID string) ([]models.Conversation, error) {
	return p.registry.List(ctx, ownerID, connectionID)
}

// SyncGroups refreshes every stored group conversation of the connection from the groups the
// session participates in. It returns how many conversations were updated.
func (p *Processor) SyncGroups(ctx context.Context, ownerID, connectionID string) (int, error) {
	groups, err := p.resolver.ParticipatingGroups(ctx, connectionID)
	if err != nil {
		p.log.Warn("group sync failed", "connection_id", connectionID, "error", err)
		return 0, err
	}

	updated := make([]bool, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.syncConcurrent)
	for i, group := range groups {
		g.Go(func() error {
			key := models.ConversationKey{OwnerID: ownerID, ConnectionID: connectionID, ChatID: group.ID}
			ok, err := p.registry.ApplyGroupMetadata(gctx, key, group.ContactInfo())
			if err != nil {
				return err
			}
			updated[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := lo.Count(updated, true)
	p.log.Info("groups synced", "connection_id", connectionID, "groups", len(groups), "updated", count)
	return count, nil
}
