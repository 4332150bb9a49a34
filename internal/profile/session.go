//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session.go -package=mocks
package profile

import (
	"context"

	"whatsapp-inbox/internal/whatsapp"
)

// SessionClient is the slice of a live WhatsApp session the resolver reads identities from.
type SessionClient interface {
	GetContactInfo(ctx context.Context, jid string) (*whatsapp.ContactDetails, error)
	// GetBusinessProfile returns (nil, nil) for accounts that are not business accounts.
	GetBusinessProfile(ctx context.Context, jid string) (*whatsapp.BusinessProfile, error)
	GroupMetadata(ctx context.Context, jid string) (*whatsapp.GroupMetadata, error)
	GroupFetchAllParticipating(ctx context.Context) (map[string]whatsapp.GroupMetadata, error)
}

// Sessions maps a connection id to its live session.
type Sessions interface {
	Session(connectionID string) (SessionClient, bool)
}

type SessionsFunc func(connectionID string) (SessionClient, bool)

func (f SessionsFunc) Session(connectionID string) (SessionClient, bool) {
	return f(connectionID)
}

// BridgeSessions serves sessions from the bridge client.
func BridgeSessions(client *whatsapp.Client) Sessions {
	return SessionsFunc(func(connectionID string) (SessionClient, bool) {
		session, ok := client.Session(connectionID)
		if !ok {
			return nil, false
		}
		return session, true
	})
}
