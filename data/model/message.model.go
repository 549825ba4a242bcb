package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
)

// ChatMessage is the durable record of one end-to-end-encrypted message. The
// server never sees plaintext: the sender encrypts the body once for each
// side of the conversation and both ciphertexts are stored opaquely.
type ChatMessage struct {
	ID             primitive.ObjectID `json:"id" bson:"_id"`
	ConversationID primitive.ObjectID `json:"conversation_id" bson:"conversation_id"`
	Sender         Party              `json:"sender" bson:"sender"`
	Recipient      Party              `json:"recipient" bson:"recipient"`

	// CiphertextForRecipient is encrypted to the recipient's key,
	// CiphertextForSender to the sender's own key (for device sync).
	CiphertextForRecipient string `json:"ciphertext_for_recipient" bson:"ciphertext_for_recipient"`
	CiphertextForSender    string `json:"ciphertext_for_sender" bson:"ciphertext_for_sender"`

	Status    MessageStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
}

// Conversation holds exactly two participants.
type Conversation struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id"`
	Participants  []Party             `json:"participants" bson:"participants"`
	LastMessageID *primitive.ObjectID `json:"last_message_id,omitempty" bson:"last_message_id,omitempty"`
	LastMessageAt *time.Time          `json:"last_message_at,omitempty" bson:"last_message_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
}

// Includes reports whether p is a member of the conversation.
func (c Conversation) Includes(p Party) bool {
	for _, m := range c.Participants {
		if m == p {
			return true
		}
	}

	return false
}

// ExactMembers reports whether the conversation's membership is exactly {a, b}.
func (c Conversation) ExactMembers(a, b Party) bool {
	return len(c.Participants) == 2 && c.Includes(a) && c.Includes(b) && a != b
}
