package domain

import "time"

// ChannelType controls who may observe and post in a channel.
type ChannelType string

const (
	ChannelTypePublic  ChannelType = "public"
	ChannelTypePrivate ChannelType = "private"
)

// MemberRole enumerates membership roles inside a private channel.
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// Channel is a chat room. Membership only matters for private channels.
type Channel struct {
	ID          string
	Name        string
	Description string
	Type        ChannelType
	CreatedAt   time.Time
}

// IsPublic reports whether the channel is open to everyone.
func (c Channel) IsPublic() bool {
	return c.Type == ChannelTypePublic
}

// ChannelMember links a user to a private channel.
type ChannelMember struct {
	ID        string
	ChannelID string
	UserID    string
	Role      MemberRole
	CreatedAt time.Time
}
