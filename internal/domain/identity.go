package domain

// IdentityKind discriminates how a caller is known to the presence subsystem.
type IdentityKind string

const (
	IdentityAuthenticated IdentityKind = "AUTHENTICATED"
	IdentityAnonymous     IdentityKind = "ANONYMOUS"
	IdentityNone          IdentityKind = "NONE"
)

// Identity is either an authenticated user id or an anonymous session key,
// never both. The zero value is IdentityNone.
type Identity struct {
	Kind    IdentityKind
	UserID  string
	AnonKey string
}

// AuthenticatedIdentity builds an identity for a logged-in user.
func AuthenticatedIdentity(userID string) Identity {
	return Identity{Kind: IdentityAuthenticated, UserID: userID}
}

// AnonymousIdentity builds an identity for an anonymous client key.
func AnonymousIdentity(anonKey string) Identity {
	return Identity{Kind: IdentityAnonymous, AnonKey: anonKey}
}

// NoIdentity represents an unresolvable caller; presence writes for it are
// silently skipped rather than rejected.
func NoIdentity() Identity {
	return Identity{Kind: IdentityNone}
}

// IsNone reports whether the identity could not be resolved.
func (i Identity) IsNone() bool {
	return i.Kind == IdentityNone || i.Kind == ""
}

// IsAuthenticated reports whether the identity belongs to a logged-in user.
func (i Identity) IsAuthenticated() bool {
	return i.Kind == IdentityAuthenticated && i.UserID != ""
}

// IsAnonymous reports whether the identity is an anonymous session key.
func (i Identity) IsAnonymous() bool {
	return i.Kind == IdentityAnonymous && i.AnonKey != ""
}

// Key returns the canonical store key for the identity within a channel.
func (i Identity) Key() string {
	switch {
	case i.IsAuthenticated():
		return "u:" + i.UserID
	case i.IsAnonymous():
		return "a:" + i.AnonKey
	default:
		return ""
	}
}
