package session

import "slices"

// Session defines a public type used by kaijuauth APIs.
//
// A Session with an empty UserID is anonymous. Changed marks in-memory
// mutations that have not been persisted; Stored marks sessions that exist
// in the backing store and must be deleted on logout.
type Session struct {
	ID          string
	UserID      string
	Permissions []string

	// UserAgent is creation metadata only; it is never written back to the
	// store once the record exists.
	UserAgent string

	CreatedAt int64
	ExpiresAt int64

	Changed bool
	Stored  bool
}

// Anonymous reports whether the session carries no authenticated identity.
func (s *Session) Anonymous() bool {
	return s.UserID == ""
}

// HasPermission describes the haspermission operation and its observable behavior.
func (s *Session) HasPermission(perm string) bool {
	return slices.Contains(s.Permissions, perm)
}

// Authenticate binds an authenticated identity onto the session and flags it
// as changed. It never flips Stored; persistence is the caller's decision.
func (s *Session) Authenticate(userID string, permissions []string) {
	s.UserID = userID
	s.Permissions = permissions
	s.Changed = true
}

// Clear drops the authenticated identity, returning the session to the
// anonymous state.
func (s *Session) Clear() {
	s.UserID = ""
	s.Permissions = nil
	s.Changed = true
}
