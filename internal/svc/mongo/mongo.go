package mongo

import (
	"context"

	"github.com/deskhive/api/internal/instance"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Options struct {
	URI    string
	DB     string
	Direct bool
}

func New(ctx context.Context, o Options) (instance.Mongo, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(o.URI).SetDirect(o.Direct))
	if err != nil {
		return nil, err
	}

	if err = cli.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	return &mongoInst{
		cli: cli,
		db:  cli.Database(o.DB),
	}, nil
}

type mongoInst struct {
	cli *mongo.Client
	db  *mongo.Database
}

func (m *mongoInst) Ping(ctx context.Context) error {
	return m.cli.Ping(ctx, readpref.Primary())
}

func (m *mongoInst) Collection(name instance.CollectionName) *mongo.Collection {
	return m.db.Collection(string(name))
}

func (m *mongoInst) RawDatabase() *mongo.Database {
	return m.db
}
