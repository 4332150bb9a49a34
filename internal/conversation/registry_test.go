package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/message"
	"whatsapp-inbox/internal/models"

	"github.com/stretchr/testify/require"
)

const chatJID = "5511999999999@s.whatsapp.net"

var key = models.ConversationKey{OwnerID: "owner", ConnectionID: "conn", ChatID: chatJID}

type fakeResolver struct {
	info     *models.ContactInfo
	resolves int
	saved    []*models.ContactInfo
}

func (f *fakeResolver) Resolve(_ context.Context, _, _ string) *models.ContactInfo {
	f.resolves++
	if f.info == nil {
		return nil
	}
	info := *f.info
	return &info
}

func (f *fakeResolver) SaveNewContact(_ context.Context, info *models.ContactInfo, _ string) (bool, error) {
	f.saved = append(f.saved, info)
	return true, nil
}

func newStore(t *testing.T) *database.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return database.NewStore(db, slog.Default())
}

func newRegistry(t *testing.T, resolver *fakeResolver) (*Registry, *database.Store) {
	t.Helper()
	store := newStore(t)
	return NewRegistry(store, resolver, slog.Default()), store
}

func inboundText(text string, at time.Time) message.Envelope {
	return message.Envelope{ChatID: chatJID, Direction: message.Inbound, Timestamp: at, Body: message.Text{Text: text}}
}

func TestCreateOrUpdate_FirstMessageWithUnresolvableProfile(t *testing.T) {
	req := require.New(t)
	resolver := &fakeResolver{}
	registry, store := newRegistry(t, resolver)

	conv, err := registry.CreateOrUpdate(context.Background(), key, inboundText("oi", time.Now()))
	req.NoError(err)
	req.Equal("Contato 5511999999999", conv.DisplayName)
	req.Equal(1, conv.UnreadCount)
	req.Equal("5511999999999", conv.Phone)
	req.Equal("5511999999999", conv.BusinessName)
	req.Empty(resolver.saved)

	stored, err := store.FindConversation(context.Background(), key)
	req.NoError(err)
	req.Equal("Contato 5511999999999", stored.DisplayName)
	req.Equal(1, stored.UnreadCount)
	req.Equal("oi", stored.LastMessagePreview)
	req.Nil(stored.Contact())
}

func TestCreateOrUpdate_SecondMessageKeepsName(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry, store := newRegistry(t, &fakeResolver{})

	_, err := registry.CreateOrUpdate(ctx, key, inboundText("oi", time.Now()))
	req.NoError(err)
	conv, err := registry.CreateOrUpdate(ctx, key, inboundText("tem alguém aí?", time.Now()))
	req.NoError(err)
	req.Equal(2, conv.UnreadCount)
	req.Equal("Contato 5511999999999", conv.DisplayName)

	stored, err := store.FindConversation(ctx, key)
	req.NoError(err)
	req.Equal(2, stored.UnreadCount)
	req.Equal("Contato 5511999999999", stored.DisplayName)
	req.Equal("tem alguém aí?", stored.LastMessagePreview)
}

func TestCreateOrUpdate_DisplayNameFrozenAcrossMessages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	resolver := &fakeResolver{info: &models.ContactInfo{Phone: "5511999999999", JID: chatJID, WppName: "Ana", FullName: "Ana Souza"}}
	registry, store := newRegistry(t, resolver)

	first, err := registry.CreateOrUpdate(ctx, key, inboundText("oi", time.Now()))
	req.NoError(err)
	req.Equal("Ana", first.DisplayName)
	req.Equal("Ana", first.BusinessName)
	req.Len(resolver.saved, 1)

	resolver.info.WppName = "Someone Else"
	base := time.Now()
	for i := range 10 {
		env := inboundText(fmt.Sprintf("mensagem %d", i), base.Add(time.Duration(i)*time.Second))
		if i%3 == 0 {
			env = message.NewOutgoing(chatJID, "resposta", i%2 == 0, base.Add(time.Duration(i)*time.Second))
		}
		conv, err := registry.CreateOrUpdate(ctx, key, env)
		req.NoError(err)
		req.Equal("Ana", conv.DisplayName)
	}
	req.Equal(1, resolver.resolves)

	stored, err := store.FindConversation(ctx, key)
	req.NoError(err)
	req.Equal("Ana", stored.DisplayName)
	req.Equal(1+6, stored.UnreadCount)
}

func TestCreateOrUpdate_OutboundFirstMessage(t *testing.T) {
	req := require.New(t)
	registry, _ := newRegistry(t, &fakeResolver{})

	conv, err := registry.CreateOrUpdate(context.Background(), key, message.NewOutgoing(chatJID, "Olá!", false, time.Now()))
	req.NoError(err)
	req.Equal(0, conv.UnreadCount)
	req.Equal("Olá!", conv.LastMessagePreview)
}

func TestCreateOrUpdate_IsGroupFollowsSuffix(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry, _ := newRegistry(t, &fakeResolver{})

	for _, jid := range []string{"120363@g.us", "5511@s.whatsapp.net", "99887766@lid"} {
		k := models.ConversationKey{OwnerID: "owner", ConnectionID: "conn", ChatID: jid}
		conv, err := registry.CreateOrUpdate(ctx, k, message.Envelope{ChatID: jid, Body: message.Text{Text: "oi"}})
		req.NoError(err)
		req.Equal(jid == "120363@g.us", conv.IsGroup, jid)
	}

	conv, err := registry.Lookup(ctx, models.ConversationKey{OwnerID: "owner", ConnectionID: "conn", ChatID: "120363@g.us"})
	req.NoError(err)
	req.Equal("Grupo 120363", conv.DisplayName)
}

func TestCreateOrUpdate_RejectsMalformedEndpoint(t *testing.T) {
	registry, _ := newRegistry(t, &fakeResolver{})
	bad := models.ConversationKey{OwnerID: "owner", ConnectionID: "conn", ChatID: "garbage"}

	_, err := registry.CreateOrUpdate(context.Background(), bad, message.Envelope{Body: message.Text{Text: "oi"}})
	require.Equal(t, failure.KindValidation, failure.KindOf(err))
}

func TestPromoteDisplayName(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry, store := newRegistry(t, &fakeResolver{})

	ok, err := registry.PromoteDisplayName(ctx, key, "Ana")
	req.NoError(err)
	req.False(ok, "no conversation yet")

	_, err = registry.CreateOrUpdate(ctx, key, inboundText("oi", time.Now()))
	req.NoError(err)

	ok, err = registry.PromoteDisplayName(ctx, key, "Contato 123")
	req.NoError(err)
	req.False(ok)

	ok, err = registry.PromoteDisplayName(ctx, key, "Ana")
	req.NoError(err)
	req.True(ok)

	ok, err = registry.PromoteDisplayName(ctx, key, "Bruno")
	req.NoError(err)
	req.False(ok)

	stored, err := store.FindConversation(ctx, key)
	req.NoError(err)
	req.Equal("Ana", stored.DisplayName)
	req.Equal("Ana", stored.BusinessName)
}

func TestRefreshProfile_FailedRefreshKeepsName(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	resolver := &fakeResolver{info: &models.ContactInfo{Phone: "5511999999999", JID: chatJID, WppName: "Ana"}}
	registry, store := newRegistry(t, resolver)

	_, err := registry.CreateOrUpdate(ctx, key, inboundText("oi", time.Now()))
	req.NoError(err)

	resolver.info = nil
	ok, err := registry.RefreshProfile(ctx, key)
	req.NoError(err)
	req.False(ok)

	resolver.info = &models.ContactInfo{Phone: "5511999999999", JID: chatJID}
	ok, err = registry.RefreshProfile(ctx, key)
	req.NoError(err)
	req.True(ok)

	stored, err := store.FindConversation(ctx, key)
	req.NoError(err)
	req.Equal("Ana", stored.DisplayName)
	req.Empty(stored.Contact().WppName)
}

func TestRefreshProfile_PromotesPlaceholderAndReplacesSnapshot(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	resolver := &fakeResolver{}
	registry, store := newRegistry(t, resolver)

	_, err := registry.CreateOrUpdate(ctx, key, inboundText("oi", time.Now()))
	req.NoError(err)

	resolver.info = &models.ContactInfo{
		Phone:      "5511999999999",
		JID:        chatJID,
		IsBusiness: true,
		Business:   models.BusinessInfo{Name: "Acme Corp"},
	}
	ok, err := registry.RefreshProfile(ctx, key)
	req.NoError(err)
	req.True(ok)
	req.Len(resolver.saved, 1)

	stored, err := store.FindConversation(ctx, key)
	req.NoError(err)
	req.Equal("Acme Corp", stored.DisplayName)
	req.True(stored.Contact().IsBusiness)
}

func TestApplyGroupMetadata(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry, store := newRegistry(t, &fakeResolver{})
	group := models.ConversationKey{OwnerID: "owner", ConnectionID: "conn", ChatID: "120363@g.us"}

	ok, err := registry.ApplyGroupMetadata(ctx, group, &models.ContactInfo{Phone: "120363", IsGroup: true})
	req.NoError(err)
	req.False(ok)

	_, err = registry.CreateOrUpdate(ctx, group, message.Envelope{ChatID: group.ChatID, Body: message.Text{Text: "oi"}})
	req.NoError(err)

	info := &models.ContactInfo{Phone: "120363", JID: group.ChatID, IsGroup: true, WppName: "Família", Group: models.GroupInfo{Subject: "Família", Participants: 5}}
	ok, err = registry.ApplyGroupMetadata(ctx, group, info)
	req.NoError(err)
	req.True(ok)

	stored, err := store.FindConversation(ctx, group)
	req.NoError(err)
	req.Equal("Família", stored.DisplayName)
	req.Equal(5, stored.Contact().Group.Participants)
}

// racingStore hides the conversation from the first lookup, as if another writer inserted it
// between this writer's lookup and insert.
type racingStore struct {
	*database.Store
	missesLeft int
}

func (s *racingStore) FindConversation(ctx context.Context, k models.ConversationKey) (*models.Conversation, error) {
	if s.missesLeft > 0 {
		s.missesLeft--
		return nil, failure.ErrNotFound
	}
	return s.Store.FindConversation(ctx, k)
}

func TestCreateOrUpdate_LosingCreateRaceAppliesUpdate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newStore(t)
	winner := NewRegistry(store, &fakeResolver{info: &models.ContactInfo{Phone: "5511999999999", WppName: "Ana"}}, slog.Default())
	_, err := winner.CreateOrUpdate(ctx, key, inboundText("primeira", time.Now()))
	req.NoError(err)

	loser := NewRegistry(&racingStore{Store: store, missesLeft: 1}, &fakeResolver{info: &models.ContactInfo{Phone: "5511999999999", WppName: "Other"}}, slog.Default())
	conv, err := loser.CreateOrUpdate(ctx, key, inboundText("segunda", time.Now()))
	req.NoError(err)
	req.Equal("Ana", conv.DisplayName)
	req.Equal(2, conv.UnreadCount)

	convs, err := store.ListConversations(ctx, "owner", "conn")
	req.NoError(err)
	req.Len(convs, 1)
	req.Equal(2, convs[0].UnreadCount)
	req.Equal("segunda", convs[0].LastMessagePreview)
}

func TestOpen_CreatesWithoutCountingTheMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry, store := newRegistry(t, &fakeResolver{})

	conv, err := registry.Open(ctx, key, inboundText("oi", time.Now()))
	req.NoError(err)
	req.Zero(conv.UnreadCount)
	req.Equal("Contato 5511999999999", conv.DisplayName)

	again, err := registry.Open(ctx, key, inboundText("oi", time.Now()))
	req.NoError(err)
	req.Equal(conv.ID, again.ID)

	touched, err := registry.Touch(ctx, again, inboundText("oi", time.Now()))
	req.NoError(err)
	req.Equal(1, touched.UnreadCount)

	stored, err := store.FindConversation(ctx, key)
	req.NoError(err)
	req.Equal(1, stored.UnreadCount)
}

type brokenStore struct {
	*database.Store
}

func (brokenStore) FindConversation(context.Context, models.ConversationKey) (*models.Conversation, error) {
	return nil, failure.Store("find conversation", errors.New("connection refused"))
}

func TestLookup_PropagatesStoreFailure(t *testing.T) {
	req := require.New(t)
	resolver := &fakeResolver{}
	registry := NewRegistry(brokenStore{newStore(t)}, resolver, slog.Default())

	conv, err := registry.Lookup(context.Background(), key)
	req.Nil(conv)
	req.Equal(failure.KindStore, failure.KindOf(err))

	_, err = registry.CreateOrUpdate(context.Background(), key, inboundText("oi", time.Now()))
	req.Equal(failure.KindStore, failure.KindOf(err))
	req.Zero(resolver.resolves)
}
