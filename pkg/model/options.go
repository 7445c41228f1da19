package model

import (
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultListLimit caps List when the caller gives no limit.
const DefaultListLimit = 1000

// FindOptions shapes a multi-document query. Zero values mean "not set".
type FindOptions struct {
	Sort       any
	Skip       int64
	Limit      int64
	Projection any
}

func (o FindOptions) driver() *options.FindOptions {
	opts := options.Find()
	if o.Sort != nil {
		opts.SetSort(o.Sort)
	}
	if o.Skip > 0 {
		opts.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		opts.SetLimit(o.Limit)
	}
	if o.Projection != nil {
		opts.SetProjection(o.Projection)
	}
	return opts
}
