package dto

// HeartbeatRequest payload for presence heartbeats. AnonKey is only honored
// for unauthenticated callers.
type HeartbeatRequest struct {
	AnonKey string `json:"anon_key,omitempty"`
}

// LeaveRequest payload for leave signals. UserID is an explicit identity
// override for teardown, when the caller's live session context may already
// be gone.
type LeaveRequest struct {
	AnonKey string `json:"anon_key,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// TypingRequest payload for typing beats.
type TypingRequest struct {
	Typing bool `json:"typing"`
}

// RosterUserResponse is one named roster entry.
type RosterUserResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RosterResponse is the online roster for a channel.
type RosterResponse struct {
	Users     []RosterUserResponse `json:"users"`
	Anonymous int                  `json:"anonymous"`
}

// TypingResponse lists the users currently typing.
type TypingResponse struct {
	Users []RosterUserResponse `json:"users"`
}
