package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"whatsapp-inbox/internal/config"
)

// Client talks to the session bridge, the process that owns the live WhatsApp sockets.
// Every lookup is scoped to one connection through a Session.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Log     *slog.Logger
}

func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(cfg.BridgeURL, "/"),
		Token:   cfg.BridgeToken,
		HTTP:    &http.Client{Timeout: cfg.BridgeTimeout},
		Log:     log,
	}
}

// --- Bridge Structures ---

type ContactDetails struct {
	PushName   string `json:"pushName,omitempty"`
	Name       string `json:"name,omitempty"`
	PictureURL string `json:"pictureUrl,omitempty"`
	Status     string `json:"status,omitempty"`
}

type BusinessProfile struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Email       string   `json:"email,omitempty"`
	Website     []string `json:"website,omitempty"`
	Verified    bool     `json:"verified,omitempty"`
	Category    string   `json:"category,omitempty"`
}

type Participant struct {
	ID    string `json:"id"`
	Admin string `json:"admin,omitempty"`
}

type GroupMetadata struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	Desc         string        `json:"desc,omitempty"`
	Participants []Participant `json:"participants"`
	Owner        string        `json:"owner,omitempty"`
	Creation     int64         `json:"creation,omitempty"`
}

type SentMessage struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// APIError is returned for any non-2xx bridge response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge error: %d - %s", e.StatusCode, e.Body)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Session returns the bridge view of one connection. An empty connection id has no session.
func (c *Client) Session(connectionID string) (*Session, bool) {
	if connectionID == "" || c.BaseURL == "" {
		return nil, false
	}
	return &Session{client: c, prefix: "/sessions/" + url.PathEscape(connectionID)}, true
}

// Session is a connection-scoped handle. It implements the profile lookups the resolver needs.
type Session struct {
	client *Client
	prefix string
}

func (s *Session) GetContactInfo(ctx context.Context, jid string) (*ContactDetails, error) {
	var details ContactDetails
	if err := s.client.sendRequest(ctx, http.MethodGet, s.prefix+"/contacts/"+url.PathEscape(jid), nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetBusinessProfile returns nil without error when the account is not a business account.
// The bridge signals that with a 404 or with an empty, null or blank profile.
func (s *Session) GetBusinessProfile(ctx context.Context, jid string) (*BusinessProfile, error) {
	var profile *BusinessProfile
	err := s.client.sendRequest(ctx, http.MethodGet, s.prefix+"/contacts/"+url.PathEscape(jid)+"/business", nil, &profile)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if profile.Empty() {
		return nil, nil
	}
	return profile, nil
}

// Empty reports whether p carries no business data at all.
func (p *BusinessProfile) Empty() bool {
	if p == nil {
		return true
	}
	return p.Name == "" && p.Description == "" && p.Email == "" && len(p.Website) == 0 &&
		!p.Verified && p.Category == ""
}

func (s *Session) GroupMetadata(ctx context.Context, jid string) (*GroupMetadata, error) {
	var meta GroupMetadata
	if err := s.client.sendRequest(ctx, http.MethodGet, s.prefix+"/groups/"+url.PathEscape(jid), nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Session) GroupFetchAllParticipating(ctx context.Context) (map[string]GroupMetadata, error) {
	groups := map[string]GroupMetadata{}
	if err := s.client.sendRequest(ctx, http.MethodGet, s.prefix+"/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SendText asks the bridge to deliver a text message and returns the id WhatsApp assigned.
func (s *Session) SendText(ctx context.Context, jid, text string) (*SentMessage, error) {
	req := map[string]string{"jid": jid, "text": text}
	var sent SentMessage
	if err := s.client.sendRequest(ctx, http.MethodPost, s.prefix+"/messages", req, &sent); err != nil {
		return nil, err
	}
	s.client.Log.Debug("message sent through bridge", "jid", jid, "message_id", sent.ID)
	return &sent, nil
}

// SendText sends through the session of connectionID.
func (c *Client) SendText(ctx context.Context, connectionID, jid, text string) (*SentMessage, error) {
	session, ok := c.Session(connectionID)
	if !ok {
		return nil, fmt.Errorf("no bridge session for connection %q", connectionID)
	}
	return session.SendText(ctx, jid, text)
}
