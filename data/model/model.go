package model

import (
	"fmt"
	"time"
)

// UserKind is the closed set of identity kinds known to the realtime core.
// Raw role strings from a credential token are mapped into this enum at the
// gate; unknown roles never produce a UserKind.
type UserKind string

const (
	UserKindStudent UserKind = "Student"
	UserKindAdmin   UserKind = "Admin"
)

func (k UserKind) Valid() bool {
	switch k {
	case UserKindStudent, UserKindAdmin:
		return true
	}

	return false
}

// BlanketGroup returns the role-scoped broadcast group every connection of
// this kind joins.
func (k UserKind) BlanketGroup() string {
	if k == UserKindAdmin {
		return "admins"
	}

	return "students"
}

// Party identifies one side of a conversation or call.
type Party struct {
	UserID   string   `json:"user_id" bson:"user_id"`
	UserKind UserKind `json:"user_kind" bson:"user_kind"`
}

// Group returns the identity-scoped broadcast group for this party.
func (p Party) Group() string {
	if p.UserKind == UserKindAdmin {
		return fmt.Sprintf("admin_%s", p.UserID)
	}

	return fmt.Sprintf("student_%s", p.UserID)
}

// Tag returns a stable "<kind>:<id>" key for counters and ephemeral-store keys.
func (p Party) Tag() string {
	return fmt.Sprintf("%s:%s", string(p.UserKind), p.UserID)
}

func (p Party) Zero() bool {
	return p.UserID == "" || !p.UserKind.Valid()
}

// ConnectionIdentity binds a live connection to an authenticated party. It is
// created once at authentication and never mutated afterwards.
type ConnectionIdentity struct {
	ConnectionID string
	Actor        Party
}

// PresenceRecord is the value written under the presence key in the ephemeral
// store. A record self-expires, so a crashed process can never leave a user
// online forever.
type PresenceRecord struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen"`
}
