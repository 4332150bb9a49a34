package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/processor"
	"whatsapp-inbox/internal/whatsapp"
	"whatsapp-inbox/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeInbox struct {
	convs     map[string]*models.Conversation
	promoted  []string
	refreshOK bool
	syncErr   error
	sent      []string
}

func (f *fakeInbox) Conversation(_ context.Context, _, _, jid string) (*models.Conversation, error) {
	return f.convs[jid], nil
}

func (f *fakeInbox) ListConversations(_ context.Context, _, _ string) ([]models.Conversation, error) {
	return nil, nil
}

func (f *fakeInbox) DisplayName(_ context.Context, _, _, jid string) string {
	if c, ok := f.convs[jid]; ok {
		return c.DisplayName
	}
	return "Contato " + strings.TrimSuffix(jid, "@s.whatsapp.net")
}

func (f *fakeInbox) RefreshContactInfo(_ context.Context, _, _, _ string) bool {
	return f.refreshOK
}

func (f *fakeInbox) PromoteDisplayName(_ context.Context, _, _, jid, candidate string) bool {
	f.promoted = append(f.promoted, jid+"="+candidate)
	return true
}

func (f *fakeInbox) SyncGroups(_ context.Context, _, _ string) (int, error) {
	return 2, f.syncErr
}

func (f *fakeInbox) ProcessSent(_ context.Context, _, _, jid, text string, _ bool, messageID string) processor.Result {
	f.sent = append(f.sent, jid+":"+text+":"+messageID)
	return processor.Result{Success: true, ConversationID: f.convs[jid].ID, MessageID: messageID}
}

type recordingHub struct {
	events []ws.Event
}

func (r *recordingHub) Publish(event ws.Event) {
	r.events = append(r.events, event)
}

type fakeSender struct {
	err error
}

func (f fakeSender) SendText(_ context.Context, _, _, _ string) (*whatsapp.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &whatsapp.SentMessage{ID: "3EB0SENT"}, nil
}

type fakeStore struct {
	contacts []models.Contact
	messages []models.Message
}

func (f fakeStore) ListContacts(_ context.Context, _ string) ([]models.Contact, error) {
	return f.contacts, nil
}

func (f fakeStore) ListMessages(_ context.Context, ownerID, _ string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	for _, m := range f.messages {
		if m.OwnerID == ownerID && len(msgs) < limit {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

const jid = "5511999999999@s.whatsapp.net"

func newInbox() *fakeInbox {
	return &fakeInbox{convs: map[string]*models.Conversation{
		jid: {ID: "conv-1", ChatID: jid, DisplayName: "Maria"},
	}}
}

func newRouter(inbox *fakeInbox, sender Sender, store fakeStore, hub *recordingHub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	log := slog.Default()
	convs := NewConversationHandler(inbox, store, hub, log)
	send := NewSendHandler(sender, inbox, hub, log)
	contacts := NewContactHandler(store, log)
	r.GET("/api/conversations", convs.GetConversations)
	r.GET("/api/conversations/:id/messages", convs.GetMessages)
	r.GET("/api/conversations/display-name", convs.GetDisplayName)
	r.POST("/api/conversations/display-name", convs.PromoteDisplayName)
	r.POST("/api/conversations/refresh", convs.RefreshContactInfo)
	r.POST("/api/groups/sync", convs.SyncGroups)
	r.POST("/api/send", send.SendMessage)
	r.GET("/api/contacts", contacts.GetContacts)
	r.GET("/api/contacts/export", contacts.ExportContacts)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetConversations(t *testing.T) {
	req := require.New(t)
	r := newRouter(newInbox(), fakeSender{}, fakeStore{}, &recordingHub{})

	w := do(r, http.MethodGet, "/api/conversations?owner_id=o&connection_id=c", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[]`, w.Body.String())

	req.Equal(http.StatusBadRequest, do(r, http.MethodGet, "/api/conversations?owner_id=o", "").Code)
}

func TestGetMessages_Limit(t *testing.T) {
	req := require.New(t)
	store := fakeStore{messages: []models.Message{{OwnerID: "o", MessageID: "A"}, {OwnerID: "o", MessageID: "B"}}}
	r := newRouter(newInbox(), fakeSender{}, store, &recordingHub{})

	w := do(r, http.MethodGet, "/api/conversations/conv-1/messages?owner_id=o&limit=1", "")
	req.Equal(http.StatusOK, w.Code)
	var msgs []models.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &msgs))
	req.Len(msgs, 1)
	req.Equal("A", msgs[0].MessageID)

	req.Equal(http.StatusBadRequest, do(r, http.MethodGet, "/api/conversations/conv-1/messages?owner_id=o&limit=0", "").Code)
}

func TestGetMessages_ScopedToOwner(t *testing.T) {
	req := require.New(t)
	store := fakeStore{messages: []models.Message{{OwnerID: "o", MessageID: "A"}}}
	r := newRouter(newInbox(), fakeSender{}, store, &recordingHub{})

	req.Equal(http.StatusBadRequest, do(r, http.MethodGet, "/api/conversations/conv-1/messages", "").Code)

	w := do(r, http.MethodGet, "/api/conversations/conv-1/messages?owner_id=intruder", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[]`, w.Body.String())
}

func TestDisplayName(t *testing.T) {
	req := require.New(t)
	r := newRouter(newInbox(), fakeSender{}, fakeStore{}, &recordingHub{})

	w := do(r, http.MethodGet, "/api/conversations/display-name?owner_id=o&connection_id=c&jid="+jid, "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"jid":"`+jid+`","display_name":"Maria"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/conversations/display-name?owner_id=o&connection_id=c&jid=5511888@s.whatsapp.net", "")
	req.JSONEq(`{"jid":"5511888@s.whatsapp.net","display_name":"Contato 5511888"}`, w.Body.String())
}

func TestPromoteDisplayName_PublishesUpdate(t *testing.T) {
	req := require.New(t)
	inbox := newInbox()
	hub := &recordingHub{}
	r := newRouter(inbox, fakeSender{}, fakeStore{}, hub)

	body := `{"owner_id":"o","connection_id":"c","jid":"` + jid + `","display_name":"Maria Silva"}`
	w := do(r, http.MethodPost, "/api/conversations/display-name", body)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"promoted":true}`, w.Body.String())
	req.Equal([]string{jid + "=Maria Silva"}, inbox.promoted)
	req.Len(hub.events, 1)
	req.Equal(ws.EventConversationUpdated, hub.events[0].Type)
	req.Equal("conv-1", hub.events[0].ConversationID)

	req.Equal(http.StatusBadRequest, do(r, http.MethodPost, "/api/conversations/display-name", `{"owner_id":"o"}`).Code)
}

func TestRefreshContactInfo_NoEventWhenUnchanged(t *testing.T) {
	req := require.New(t)
	hub := &recordingHub{}
	r := newRouter(newInbox(), fakeSender{}, fakeStore{}, hub)

	w := do(r, http.MethodPost, "/api/conversations/refresh", `{"owner_id":"o","connection_id":"c","jid":"`+jid+`"}`)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"refreshed":false}`, w.Body.String())
	req.Empty(hub.events)
}

func TestSyncGroups(t *testing.T) {
	req := require.New(t)
	inbox := newInbox()
	r := newRouter(inbox, fakeSender{}, fakeStore{}, &recordingHub{})

	w := do(r, http.MethodPost, "/api/groups/sync", `{"owner_id":"o","connection_id":"c"}`)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"updated":2}`, w.Body.String())

	inbox.syncErr = errors.New("bridge down")
	req.Equal(http.StatusBadGateway, do(r, http.MethodPost, "/api/groups/sync", `{"owner_id":"o","connection_id":"c"}`).Code)
}

func TestSendMessage(t *testing.T) {
	req := require.New(t)
	inbox := newInbox()
	hub := &recordingHub{}
	r := newRouter(inbox, fakeSender{}, fakeStore{}, hub)

	w := do(r, http.MethodPost, "/api/send", `{"owner_id":"o","connection_id":"c","jid":"`+jid+`","text":"Olá"}`)
	req.Equal(http.StatusOK, w.Code)
	req.Equal([]string{jid + ":Olá:3EB0SENT"}, inbox.sent)
	req.Len(hub.events, 1)
	req.Equal(ws.EventNewMessage, hub.events[0].Type)

	var res processor.Result
	req.NoError(json.Unmarshal(w.Body.Bytes(), &res))
	req.Equal("3EB0SENT", res.MessageID)
}

func TestSendMessage_UnknownConversation(t *testing.T) {
	req := require.New(t)
	inbox := newInbox()
	r := newRouter(inbox, fakeSender{}, fakeStore{}, &recordingHub{})

	w := do(r, http.MethodPost, "/api/send", `{"owner_id":"o","connection_id":"c","jid":"5511888@s.whatsapp.net","text":"Olá"}`)
	req.Equal(http.StatusNotFound, w.Code)
	req.Empty(inbox.sent)
}

func TestSendMessage_BridgeFailure(t *testing.T) {
	req := require.New(t)
	inbox := newInbox()
	hub := &recordingHub{}
	r := newRouter(inbox, fakeSender{err: &whatsapp.APIError{StatusCode: 503, Body: "offline"}}, fakeStore{}, hub)

	w := do(r, http.MethodPost, "/api/send", `{"owner_id":"o","connection_id":"c","jid":"`+jid+`","text":"Olá"}`)
	req.Equal(http.StatusBadGateway, w.Code)
	req.Empty(inbox.sent)
	req.Empty(hub.events)
}

func TestExportContacts(t *testing.T) {
	req := require.New(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := fakeStore{contacts: []models.Contact{
		{Phone: "5511999999999", Name: "Maria, filial", WppName: "Maria", IsBusiness: true, Tags: "[]", CreatedAt: created},
	}}
	r := newRouter(newInbox(), fakeSender{}, store, &recordingHub{})

	w := do(r, http.MethodGet, "/api/contacts/export?owner_id=o", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal("text/csv", w.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	req.NoError(err)
	req.Len(rows, 2)
	req.Equal(exportHeader, rows[0])
	req.Equal("Maria, filial", rows[1][1])
	req.Equal("true", rows[1][6])
	req.Equal("2024-03-01T12:00:00Z", rows[1][8])

	req.Equal(http.StatusBadRequest, do(r, http.MethodGet, "/api/contacts/export", "").Code)
}

func TestGetContacts_EmptyArray(t *testing.T) {
	r := newRouter(newInbox(), fakeSender{}, fakeStore{}, &recordingHub{})
	w := do(r, http.MethodGet, "/api/contacts?owner_id=o", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}
