package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CallStatus string

const (
	CallStatusInitiated CallStatus = "INITIATED"
	CallStatusRinging   CallStatus = "RINGING"
	CallStatusAccepted  CallStatus = "ACCEPTED"
	CallStatusEnded     CallStatus = "ENDED"
	CallStatusRejected  CallStatus = "REJECTED"
)

// Terminal reports whether no further transition may leave this status.
func (s CallStatus) Terminal() bool {
	return s == CallStatusEnded || s == CallStatusRejected
}

// CallSession is the durable signaling record of one call attempt between
// exactly two distinct parties. Status transitions are its only mutation;
// SDP and ICE blobs never live here, they pass through the ephemeral store.
type CallSession struct {
	ID             primitive.ObjectID `json:"id" bson:"_id"`
	ConversationID primitive.ObjectID `json:"conversation_id" bson:"conversation_id"`
	Participants   []Party            `json:"participants" bson:"participants"`
	Status         CallStatus         `json:"status" bson:"status"`
	StartedAt      time.Time          `json:"started_at" bson:"started_at"`
	EndedAt        *time.Time         `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
}

func (cs CallSession) HasParticipant(p Party) bool {
	for _, m := range cs.Participants {
		if m == p {
			return true
		}
	}

	return false
}

// Counterpart returns the other participant of the session.
func (cs CallSession) Counterpart(p Party) (Party, bool) {
	for _, m := range cs.Participants {
		if m != p {
			return m, true
		}
	}

	return Party{}, false
}
