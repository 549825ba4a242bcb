package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationKind string

const (
	NotificationKindInApp   NotificationKind = "IN_APP"
	NotificationKindChat    NotificationKind = "CHAT"
	NotificationKindWebPush NotificationKind = "WEB_PUSH"
	NotificationKindFCMPush NotificationKind = "FCM_PUSH"
)

// Notification is a dispatch job handed to the delivery collaborator.
// Delivery itself (email, web push, FCM) happens outside this service.
type Notification struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Target    Party              `json:"target" bson:"target"`
	Kind      NotificationKind   `json:"kind" bson:"kind"`
	Title     string             `json:"title" bson:"title"`
	Body      string             `json:"body" bson:"body"`
	Read      bool               `json:"read" bson:"read"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`

	ConversationID *primitive.ObjectID `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
	CallID         *primitive.ObjectID `json:"call_id,omitempty" bson:"call_id,omitempty"`
}

type UserProfile struct {
	ID          string   `json:"id" bson:"_id"`
	DisplayName string   `json:"display_name" bson:"display_name"`
	Kind        UserKind `json:"kind" bson:"-"`
}
