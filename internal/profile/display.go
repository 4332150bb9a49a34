package profile

import (
	"strings"

	"whatsapp-inbox/internal/failure"
	"whatsapp-inbox/internal/models"

	"github.com/samber/lo"
)

const (
	GroupSuffix      = "@g.us"
	IndividualSuffix = "@s.whatsapp.net"
)

// ParseJID splits an endpoint id into its phone (or group id) part and reports whether it
// addresses a group. A device suffix such as ":12" is dropped from the phone.
func ParseJID(jid string) (phone string, isGroup bool, err error) {
	user, server, ok := strings.Cut(jid, "@")
	if !ok || server == "" {
		return "", false, failure.Validation("parse jid", "malformed endpoint id %q", jid)
	}
	user, _, _ = strings.Cut(user, ":")
	if user == "" {
		return "", false, failure.Validation("parse jid", "endpoint id %q has no user part", jid)
	}
	return user, strings.HasSuffix(jid, GroupSuffix), nil
}

func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, GroupSuffix)
}

func Placeholder(phone string, isGroup bool) string {
	if isGroup {
		return models.PlaceholderGroupPrefix + phone
	}
	return models.PlaceholderContactPrefix + phone
}

// PlaceholderFor derives the placeholder straight from an endpoint id, malformed or not.
func PlaceholderFor(jid string) string {
	phone, isGroup, err := ParseJID(jid)
	if err != nil {
		phone, _, _ = strings.Cut(jid, "@")
		isGroup = IsGroupJID(jid)
	}
	return Placeholder(phone, isGroup)
}

// IsPlaceholder reports whether name is empty or was generated because no identity resolved.
func IsPlaceholder(name string) bool {
	return name == "" ||
		strings.HasPrefix(name, models.PlaceholderContactPrefix) ||
		strings.HasPrefix(name, models.PlaceholderGroupPrefix)
}

// DisplayName picks the human-facing name for a resolved identity.
// Groups use their subject; individuals prefer push name, then business name, then full name.
func DisplayName(info *models.ContactInfo) string {
	if info == nil {
		return ""
	}
	if info.IsGroup {
		return lo.CoalesceOrEmpty(info.Group.Subject, Placeholder(info.Phone, true))
	}
	return lo.CoalesceOrEmpty(info.WppName, info.Business.Name, info.FullName, Placeholder(info.Phone, false))
}

// BusinessName is the name mirrored into the conversation business_name column.
func BusinessName(info *models.ContactInfo) string {
	if info == nil {
		return ""
	}
	return lo.CoalesceOrEmpty(info.WppName, info.FullName, info.Phone)
}
