package whatsapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsapp-inbox/internal/config"

	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(&config.Config{BridgeURL: srv.URL + "/", BridgeToken: "tok", BridgeTimeout: time.Second}, slog.Default())
	session, ok := client.Session("conn-1")
	require.True(t, ok)
	return session
}

func TestSession_GetContactInfo(t *testing.T) {
	req := require.New(t)
	session := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("Bearer tok", r.Header.Get("Authorization"))
		req.Equal("/sessions/conn-1/contacts/5511999999999@s.whatsapp.net", r.URL.Path)
		_, _ = w.Write([]byte(`{"pushName":"Ana","status":"hey"}`))
	})

	details, err := session.GetContactInfo(context.Background(), "5511999999999@s.whatsapp.net")
	req.NoError(err)
	req.Equal("Ana", details.PushName)
	req.Equal("hey", details.Status)
}

func TestSession_GetBusinessProfile_NotBusiness(t *testing.T) {
	req := require.New(t)
	session := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not a business", http.StatusNotFound)
	})

	profile, err := session.GetBusinessProfile(context.Background(), "5511@s.whatsapp.net")
	req.NoError(err)
	req.Nil(profile)
}

func TestSession_GetBusinessProfile_BlankReplyIsNotBusiness(t *testing.T) {
	for name, body := range map[string]string{
		"empty":  "",
		"null":   "null",
		"object": "{}",
		"zeroed": `{"name":"","website":[],"verified":false}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			session := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			profile, err := session.GetBusinessProfile(context.Background(), "5511@s.whatsapp.net")
			req.NoError(err)
			req.Nil(profile)
		})
	}
}

func TestSession_GetBusinessProfile_Found(t *testing.T) {
	req := require.New(t)
	session := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/sessions/conn-1/contacts/5511@s.whatsapp.net/business", r.URL.Path)
		_, _ = w.Write([]byte(`{"name":"Acme","website":["https://acme.example"]}`))
	})

	profile, err := session.GetBusinessProfile(context.Background(), "5511@s.whatsapp.net")
	req.NoError(err)
	req.NotNil(profile)
	req.Equal("Acme", profile.Name)
	req.Equal([]string{"https://acme.example"}, profile.Website)
}

func TestSession_GetBusinessProfile_ServerError(t *testing.T) {
	req := require.New(t)
	session := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "socket closed", http.StatusBadGateway)
	})

	profile, err := session.GetBusinessProfile(context.Background(), "5511@s.whatsapp.net")
	req.Nil(profile)
	var apiErr *APIError
	req.ErrorAs(err, &apiErr)
	req.Equal(http.StatusBadGateway, apiErr.StatusCode)
	req.Equal("socket closed", apiErr.Body)
}

func TestSession_GroupFetchAllParticipating(t *testing.T) {
	req := require.New(t)
	session := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/sessions/conn-1/groups", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]GroupMetadata{
			"123@g.us": {ID: "123@g.us", Subject: "Família", Participants: []Participant{{ID: "a"}, {ID: "b"}}},
		})
	})

	groups, err := session.GroupFetchAllParticipating(context.Background())
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal("Família", groups["123@g.us"].Subject)
	req.Len(groups["123@g.us"].Participants, 2)
}

func TestSession_SendText(t *testing.T) {
	req := require.New(t)
	session := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("oi", body["text"])
		_, _ = w.Write([]byte(`{"id":"3EB0ABC","timestamp":1700000000}`))
	})

	sent, err := session.SendText(context.Background(), "5511@s.whatsapp.net", "oi")
	req.NoError(err)
	req.Equal("3EB0ABC", sent.ID)
}

func TestClient_SessionRequiresConnection(t *testing.T) {
	client := NewClient(&config.Config{BridgeURL: "http://bridge"}, slog.Default())
	_, ok := client.Session("")
	require.False(t, ok)
}
