package instance

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

type CollectionName string

const (
	CollectionNameStudents      CollectionName = "students"
	CollectionNameAdmins        CollectionName = "admins"
	CollectionNameConversations CollectionName = "conversations"
	CollectionNameMessages      CollectionName = "messages"
	CollectionNameCallSessions  CollectionName = "call_sessions"
	CollectionNameNotifications CollectionName = "notifications"
)

type Mongo interface {
	Ping(ctx context.Context) error
	Collection(name CollectionName) *mongo.Collection
	RawDatabase() *mongo.Database
}
