package mutate

import (
	"github.com/deskhive/api/data/query"
	"github.com/deskhive/api/internal/instance"
)

type Mutate struct {
	mongo instance.Mongo
	redis instance.Redis
	query *query.Query
}

func New(opt InstanceOptions) *Mutate {
	return &Mutate{
		mongo: opt.Mongo,
		redis: opt.Redis,
		query: opt.Query,
	}
}

type InstanceOptions struct {
	Mongo instance.Mongo
	Redis instance.Redis
	Query *query.Query
}
