package profile

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/retry"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ContactStore persists the long-lived contact projection of a resolved identity.
type ContactStore interface {
	FindContact(ctx context.Context, ownerID, phone string) (*models.Contact, error)
	CreateContact(ctx context.Context, contact *models.Contact) (bool, error)
	UpdateContact(ctx context.Context, id string, fields map[string]any) error
}

// Resolver turns remote identity lookups into a models.ContactInfo. Only the business
// profile lookup is retried; every other remote failure degrades the result.
type Resolver struct {
	sessions Sessions
	contacts ContactStore
	policy   retry.Policy
	clock    retry.Clock
	log      *slog.Logger
}

func NewResolver(sessions Sessions, contacts ContactStore, policy retry.Policy, clock retry.Clock, log *slog.Logger) *Resolver {
	if clock == nil {
		clock = retry.RealClock{}
	}
	return &Resolver{
		sessions: sessions,
		contacts: contacts,
		policy:   policy,
		clock:    clock,
		log:      log,
	}
}

// Resolve never fails. It returns nil only for a malformed endpoint id or an unknown connection,
// and a partially filled value when remote lookups fail.
func (r *Resolver) Resolve(ctx context.Context, connectionID, jid string) *models.ContactInfo {
	phone, isGroup, err := ParseJID(jid)
	if err != nil {
		r.log.Warn("cannot resolve profile", "jid", jid, "error", err)
		return nil
	}
	session, ok := r.sessions.Session(connectionID)
	if !ok {
		r.log.Warn("no session for connection", "connection_id", connectionID, "jid", jid)
		return nil
	}

	info := &models.ContactInfo{Phone: phone, JID: jid, IsGroup: isGroup}
	if isGroup {
		r.resolveGroup(ctx, session, info)
	} else {
		r.resolveIndividual(ctx, session, info)
	}
	return info
}

func (r *Resolver) resolveGroup(ctx context.Context, session SessionClient, info *models.ContactInfo) {
	meta, err := session.GroupMetadata(ctx, info.JID)
	if err != nil {
		r.log.Warn("group metadata lookup failed", "jid", info.JID, "error", failure.RemoteLookup("group metadata", err))
		return
	}
	applyGroup(info, meta)
}

func applyGroup(info *models.ContactInfo, meta *whatsapp.GroupMetadata) {
	info.WppName = meta.Subject
	info.Group = models.GroupInfo{
		Subject:      meta.Subject,
		Description:  meta.Desc,
		Participants: len(meta.Participants),
		Owner:        meta.Owner,
	}
}

func (r *Resolver) resolveIndividual(ctx context.Context, session SessionClient, info *models.ContactInfo) {
	details, err := session.GetContactInfo(ctx, info.JID)
	if err != nil {
		r.log.Warn("contact lookup failed", "jid", info.JID, "error", failure.RemoteLookup("contact info", err))
	} else if details != nil {
		info.WppName = lo.CoalesceOrEmpty(details.PushName, details.Name)
		info.FullName = details.Name
		info.ProfilePictureURL = details.PictureURL
		info.Status = details.Status
	}

	business, err := retry.Do(ctx, r.policy, r.clock, func(ctx context.Context, attempt int) (*whatsapp.BusinessProfile, error) {
		profile, err := session.GetBusinessProfile(ctx, info.JID)
		if err != nil {
			r.log.Debug("business profile attempt failed", "jid", info.JID, "attempt", attempt, "error", err)
		}
		return profile, err
	})
	if err != nil {
		r.log.Warn("business profile lookup gave up", "jid", info.JID, "error", failure.RemoteLookup("business profile", err))
		return
	}
	if business.Empty() {
		return
	}
	info.IsBusiness = true
	info.Business = models.BusinessInfo{
		Name:        business.Name,
		Description: business.Description,
		Email:       business.Email,
		Verified:    business.Verified,
		Category:    business.Category,
	}
	if len(business.Website) > 0 {
		info.Business.Website = business.Website[0]
	}
}

// SaveNewContact projects info into the contact book of ownerID. An existing contact only has
// its empty fields filled.
func (r *Resolver) SaveNewContact(ctx context.Context, info *models.ContactInfo, ownerID string) (bool, error) {
	if info == nil || info.Phone == "" {
		return false, failure.Validation("save contact", "contact info without phone")
	}

	existing, err := r.contacts.FindContact(ctx, ownerID, info.Phone)
	if err != nil && !failure.IsNotFound(err) {
		r.log.Error("contact lookup failed", "phone", info.Phone, "error", err)
		return false, err
	}

	if existing == nil {
		contact := newContact(info, ownerID)
		created, err := r.contacts.CreateContact(ctx, contact)
		if err != nil {
			r.log.Error("contact insert failed", "phone", info.Phone, "error", err)
			return false, err
		}
		if created {
			r.log.Info("contact saved", "phone", info.Phone, "name", contact.Name)
			return true, nil
		}
		// Lost the insert to a concurrent writer; fill its row instead.
		existing, err = r.contacts.FindContact(ctx, ownerID, info.Phone)
		if err != nil {
			r.log.Error("contact lookup failed", "phone", info.Phone, "error", err)
			return false, err
		}
	}

	fields := missingFields(existing, info)
	if err := r.contacts.UpdateContact(ctx, existing.ID, fields); err != nil {
		r.log.Error("contact update failed", "phone", info.Phone, "error", err)
		return false, err
	}
	if len(fields) > 0 {
		r.log.Info("contact completed", "phone", info.Phone, "fields", len(fields))
	}
	return true, nil
}

func newContact(info *models.ContactInfo, ownerID string) *models.Contact {
	return &models.Contact{
		ID:                  uuid.NewString(),
		OwnerID:             ownerID,
		Phone:               info.Phone,
		Name:                lo.CoalesceOrEmpty(info.WppName, info.FullName, Placeholder(info.Phone, info.IsGroup)),
		WppName:             info.WppName,
		WhatsAppName:        info.FullName,
		BusinessName:        info.Business.Name,
		BusinessDescription: info.Business.Description,
		BusinessEmail:       info.Business.Email,
		BusinessWebsite:     info.Business.Website,
		BusinessCategory:    info.Business.Category,
		Verified:            info.Business.Verified,
		GroupSubject:        info.Group.Subject,
		GroupDescription:    info.Group.Description,
		GroupParticipants:   info.Group.Participants,
		GroupOwner:          info.Group.Owner,
		ProfilePicURL:       info.ProfilePictureURL,
		Status:              info.Status,
		IsGroup:             info.IsGroup,
		IsBusiness:          info.IsBusiness,
	}
}

// missingFields lists the columns that are empty on the stored contact and known in info.
func missingFields(c *models.Contact, info *models.ContactInfo) map[string]any {
	fields := map[string]any{}
	fill := func(column, current, candidate string) {
		if current == "" && candidate != "" {
			fields[column] = candidate
		}
	}
	fill("name", c.Name, lo.CoalesceOrEmpty(info.WppName, info.FullName))
	fill("wpp_name", c.WppName, info.WppName)
	fill("whats_app_name", c.WhatsAppName, info.FullName)
	fill("business_name", c.BusinessName, info.Business.Name)
	fill("business_description", c.BusinessDescription, info.Business.Description)
	fill("business_email", c.BusinessEmail, info.Business.Email)
	fill("business_website", c.BusinessWebsite, info.Business.Website)
	fill("business_category", c.BusinessCategory, info.Business.Category)
	fill("group_subject", c.GroupSubject, info.Group.Subject)
	fill("group_description", c.GroupDescription, info.Group.Description)
	fill("group_owner", c.GroupOwner, info.Group.Owner)
	fill("profile_pic_url", c.ProfilePicURL, info.ProfilePictureURL)
	fill("status", c.Status, info.Status)

	if c.GroupParticipants == 0 && info.Group.Participants > 0 {
		fields["group_participants"] = info.Group.Participants
	}
	if !c.Verified && info.Business.Verified {
		fields["verified"] = true
	}
	if !c.IsBusiness && info.IsBusiness {
		fields["is_business"] = true
	}
	if !c.IsGroup && info.IsGroup {
		fields["is_group"] = true
	}
	return fields
}

// Group is one group the connection currently participates in.
type Group struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Description  string    `json:"description,omitempty"`
	Participants int       `json:"participants"`
	Owner        string    `json:"owner,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// ContactInfo renders the group as the snapshot a conversation stores.
func (g Group) ContactInfo() *models.ContactInfo {
	phone, _, _ := strings.Cut(g.ID, "@")
	info := &models.ContactInfo{Phone: phone, JID: g.ID, IsGroup: true}
	applyGroup(info, &whatsapp.GroupMetadata{
		Subject:      g.Subject,
		Desc:         g.Description,
		Owner:        g.Owner,
		Participants: make([]whatsapp.Participant, g.Participants),
	})
	return info
}

// ParticipatingGroups lists every group of the connection, ordered by id.
func (r *Resolver) ParticipatingGroups(ctx context.Context, connectionID string) ([]Group, error) {
	session, ok := r.sessions.Session(connectionID)
	if !ok {
		return nil, failure.Validation("participating groups", "no session for connection %q", connectionID)
	}
	all, err := session.GroupFetchAllParticipating(ctx)
	if err != nil {
		return nil, failure.RemoteLookup("participating groups", err)
	}

	groups := make([]Group, 0, len(all))
	for id, meta := range all {
		group := Group{
			ID:           lo.CoalesceOrEmpty(meta.ID, id),
			Subject:      meta.Subject,
			Description:  meta.Desc,
			Participants: len(meta.Participants),
			Owner:        meta.Owner,
		}
		if meta.Creation > 0 {
			group.CreatedAt = time.Unix(meta.Creation, 0).UTC()
		}
		groups = append(groups, group)
	}
	slices.SortFunc(groups, func(a, b Group) int { return strings.Compare(a.ID, b.ID) })
	return groups, nil
}
