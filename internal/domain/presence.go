package domain

import "time"

// PresenceRecord tracks liveness of one identity inside one channel. Exactly
// one of UserID/AnonKey is set. At most one record exists per
// (channel, identity) pair; writers upsert, never duplicate-insert.
type PresenceRecord struct {
	ID           string
	ChannelID    string
	UserID       *string
	AnonKey      *string
	LastActiveAt time.Time
	TypingAt     *time.Time
}

// Identity reconstructs the identity the record belongs to.
func (r PresenceRecord) Identity() Identity {
	if r.UserID != nil && *r.UserID != "" {
		return AuthenticatedIdentity(*r.UserID)
	}
	if r.AnonKey != nil && *r.AnonKey != "" {
		return AnonymousIdentity(*r.AnonKey)
	}
	return NoIdentity()
}

// LiveAt reports whether the record counts as online at the given instant.
func (r PresenceRecord) LiveAt(now time.Time, ttl time.Duration) bool {
	return !r.LastActiveAt.Before(now.Add(-ttl))
}

// TypingLiveAt reports whether the record counts as typing at the given
// instant. Records without a typing timestamp never do.
func (r PresenceRecord) TypingLiveAt(now time.Time, ttl time.Duration) bool {
	return r.TypingAt != nil && !r.TypingAt.Before(now.Add(-ttl))
}
