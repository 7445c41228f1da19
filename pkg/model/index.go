package model

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gogotex/mongomodel/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index declares one index on a record type's collection.
type Index struct {
	// Keys in order, each with 1 / -1 or a special type such as "text".
	Keys bson.D
	// Name defaults to the server's naming: key_direction pairs joined by "_".
	Name        string
	Unique      bool
	Sparse      bool
	ExpireAfter time.Duration
}

// Indexed is implemented by record types that declare indexes.
type Indexed interface {
	Indexes() []Index
}

// maxExpireAfter is the longest TTL an index can carry: the server stores
// expireAfterSeconds as a 32-bit integer.
const maxExpireAfter = math.MaxInt32 * time.Second

// IndexView is the part of the driver's index API the synchronizer needs.
// mongo.IndexView satisfies it.
type IndexView interface {
	CreateMany(ctx context.Context, models []mongo.IndexModel, opts ...*options.CreateIndexesOptions) ([]string, error)
	List(ctx context.Context, opts ...*options.ListIndexesOptions) (*mongo.Cursor, error)
}

// IndexName returns the name the server gives an index with these keys.
func IndexName(keys bson.D) string {
	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, k.Key, fmt.Sprint(k.Value))
	}
	return strings.Join(parts, "_")
}

func (ix Index) indexModel() mongo.IndexModel {
	name := ix.Name
	if name == "" {
		name = IndexName(ix.Keys)
	}
	opts := options.Index().SetName(name)
	if ix.Unique {
		opts.SetUnique(true)
	}
	if ix.Sparse {
		opts.SetSparse(true)
	}
	if ix.ExpireAfter > 0 {
		opts.SetExpireAfterSeconds(int32(ix.ExpireAfter / time.Second))
	}
	return mongo.IndexModel{Keys: ix.Keys, Options: opts}
}

// SyncIndexes creates the declared indexes on view. Creating an index that
// already exists with the same definition is not an error. A conflicting
// definition is logged and returned as a StoreError matching
// ErrIndexConflict; nothing is dropped or rebuilt.
func SyncIndexes(ctx context.Context, model string, view IndexView, specs []Index) ([]string, error) {
	const op = "create_indexes"
	if len(specs) == 0 {
		return nil, nil
	}
	models := make([]mongo.IndexModel, 0, len(specs))
	for i, ix := range specs {
		if len(ix.Keys) == 0 {
			return nil, Invalid(op, model, "index %d has no keys", i)
		}
		if ix.ExpireAfter > maxExpireAfter {
			return nil, Invalid(op, model, "index %d: expiry %s exceeds %s", i, ix.ExpireAfter, maxExpireAfter)
		}
		models = append(models, ix.indexModel())
	}
	names, err := view.CreateMany(ctx, models)
	if err != nil {
		if isAlreadyExists(err) {
			logger.Debugf("indexes for %q already exist: %v", model, err)
			return indexNames(models), nil
		}
		werr := Wrap(op, model, err)
		logger.Errorf("error creating %q indexes: %v", model, werr)
		return nil, werr
	}
	logger.Debugf("indexes created for %q: %v", model, names)
	return names, nil
}

// ListIndexNames returns the names of all indexes on view, _id_ included.
func ListIndexNames(ctx context.Context, view IndexView) ([]string, error) {
	cur, err := view.List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var names []string
	for cur.Next(ctx) {
		var spec struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&spec); err != nil {
			return nil, err
		}
		names = append(names, spec.Name)
	}
	return names, cur.Err()
}

func indexNames(models []mongo.IndexModel) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m.Options != nil && m.Options.Name != nil {
			out = append(out, *m.Options.Name)
		}
	}
	return out
}
