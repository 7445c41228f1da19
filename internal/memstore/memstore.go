// Package memstore is an in-process document store with the method set of
// *mongo.Collection. It backs the service when no MongoDB URI is configured
// and lets tests exercise models without a server. Errors have the same
// shape as the driver's: duplicate keys are mongo.WriteException with code
// 11000, missing documents are mongo.ErrNoDocuments.
package memstore

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a named set of collections.
type Store struct {
	name string
	mu   sync.Mutex
	cols map[string]*Collection
}

func New(name string) *Store {
	if name == "" {
		name = "memstore"
	}
	return &Store{name: name, cols: make(map[string]*Collection)}
}

func (s *Store) Name() string { return s.name }

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cols[name]
	if !ok {
		c = newCollection(s.name, name)
		s.cols[name] = c
	}
	return c
}

// CollectionNames lists the collections created so far, sorted.
func (s *Store) CollectionNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.cols))
	for n := range s.cols {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Collection holds documents in insertion order.
type Collection struct {
	db   string
	name string

	mu      sync.RWMutex
	docs    []bson.M
	indexes []indexSpec
}

// NewCollection returns an empty collection outside any Store.
func NewCollection(name string) *Collection {
	return newCollection("memstore", name)
}

func newCollection(db, name string) *Collection {
	return &Collection{
		db:   db,
		name: name,
		indexes: []indexSpec{{
			name:   idIndexName,
			keys:   bson.D{{Key: "_id", Value: int32(1)}},
			unique: true,
		}},
	}
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Indexes() IndexView { return IndexView{c: c} }

// Len is the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *Collection) InsertOne(ctx context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := asStored(document)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUnique(doc, -1); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc["_id"]}, nil
}

// InsertMany inserts in order. Ordered inserts stop at the first failure;
// unordered inserts keep going. Failures are reported together as a
// mongo.BulkWriteException.
func (c *Collection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, mongo.ErrEmptySlice
	}
	ordered := true
	for _, o := range opts {
		if o != nil && o.Ordered != nil {
			ordered = *o.Ordered
		}
	}
	docs := make([]bson.M, 0, len(documents))
	for _, d := range documents {
		doc, err := asStored(d)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res := &mongo.InsertManyResult{}
	var failed []mongo.BulkWriteError
	for i, doc := range docs {
		if err := c.checkUnique(doc, -1); err != nil {
			we := err.(mongo.WriteException).WriteErrors[0]
			we.Index = i
			failed = append(failed, mongo.BulkWriteError{WriteError: we})
			if ordered {
				break
			}
			continue
		}
		c.docs = append(c.docs, doc)
		res.InsertedIDs = append(res.InsertedIDs, doc["_id"])
	}
	if len(failed) > 0 {
		return res, mongo.BulkWriteException{WriteErrors: failed}
	}
	return res, nil
}

func (c *Collection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	q := query{limit: 1}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			q.sort = o.Sort
		}
		if o.Skip != nil {
			q.skip = *o.Skip
		}
		if o.Projection != nil {
			q.projection = o.Projection
		}
	}
	docs, err := c.run(ctx, filter, q)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	if len(docs) == 0 {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(docs[0], nil, nil)
}

func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	var q query
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			q.sort = o.Sort
		}
		if o.Skip != nil {
			q.skip = *o.Skip
		}
		if o.Limit != nil {
			q.limit = *o.Limit
		}
		if o.Projection != nil {
			q.projection = o.Projection
		}
	}
	docs, err := c.run(ctx, filter, q)
	if err != nil {
		return nil, err
	}
	return cursor(docs)
}

func (c *Collection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	var q query
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Skip != nil {
			q.skip = *o.Skip
		}
		if o.Limit != nil {
			q.limit = *o.Limit
		}
	}
	docs, err := c.run(ctx, filter, q)
	return int64(len(docs)), err
}

func (c *Collection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := asDocument(filter)
	if err != nil {
		return nil, err
	}
	repl, err := asDocument(replacement)
	if err != nil {
		return nil, err
	}
	for _, e := range repl {
		if len(e.Key) > 0 && e.Key[0] == '$' {
			return nil, writeErr(codeBadValue, "replacement document cannot contain keys beginning with '$'")
		}
	}
	upsert := false
	for _, o := range opts {
		if o != nil && o.Upsert != nil {
			upsert = *o.Upsert
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pos, err := c.matching(f, 1)
	if err != nil {
		return nil, err
	}
	next := toM(repl)
	if len(pos) == 0 {
		if !upsert {
			return &mongo.UpdateResult{}, nil
		}
		seed := seedFromFilter(f)
		for k, v := range next {
			seed[k] = v
		}
		return c.upsert(seed)
	}
	i := pos[0]
	old := c.docs[i]
	if id, ok := next["_id"]; ok && !equal(id, old["_id"]) {
		return nil, writeErr(codeImmutableField, "the (immutable) field '_id' was found to have been altered")
	}
	next["_id"] = old["_id"]
	if err := c.checkUnique(next, i); err != nil {
		return nil, err
	}
	c.docs[i] = next
	res := &mongo.UpdateResult{MatchedCount: 1}
	if canonical(old) != canonical(next) {
		res.ModifiedCount = 1
	}
	return res, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update(ctx, filter, update, 1, opts)
}

func (c *Collection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update(ctx, filter, update, 0, opts)
}

func (c *Collection) update(ctx context.Context, filter, update interface{}, limit int64, opts []*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := asDocument(filter)
	if err != nil {
		return nil, err
	}
	u, err := asDocument(update)
	if err != nil {
		return nil, err
	}
	if err := checkUpdate(u); err != nil {
		return nil, err
	}
	upsert := false
	for _, o := range opts {
		if o != nil && o.Upsert != nil {
			upsert = *o.Upsert
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pos, err := c.matching(f, limit)
	if err != nil {
		return nil, err
	}
	if len(pos) == 0 {
		if !upsert {
			return &mongo.UpdateResult{}, nil
		}
		doc, err := applyUpdate(seedFromFilter(f), u, true)
		if err != nil {
			return nil, err
		}
		return c.upsert(doc)
	}
	return c.applyAt(pos, u)
}

// applyAt updates the documents at pos. Either all updates apply or, on the
// first error, none do.
func (c *Collection) applyAt(pos []int, u bson.D) (*mongo.UpdateResult, error) {
	staged := make(map[int]bson.M, len(pos))
	res := &mongo.UpdateResult{MatchedCount: int64(len(pos))}
	for _, i := range pos {
		next, err := applyUpdate(c.docs[i], u, false)
		if err != nil {
			return nil, err
		}
		if err := c.checkUnique(next, i); err != nil {
			return nil, err
		}
		for j, other := range staged {
			for _, ix := range c.indexes {
				if !ix.unique {
					continue
				}
				a, okA := ix.key(next)
				b, okB := ix.key(other)
				if okA && okB && a == b && j != i {
					return nil, c.dupError(ix)
				}
			}
		}
		if canonical(c.docs[i]) != canonical(next) {
			res.ModifiedCount++
		}
		staged[i] = next
	}
	for i, d := range staged {
		c.docs[i] = d
	}
	return res, nil
}

func (c *Collection) upsert(doc bson.M) (*mongo.UpdateResult, error) {
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	if err := c.checkUnique(doc, -1); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, doc)
	return &mongo.UpdateResult{UpsertedCount: 1, UpsertedID: doc["_id"]}, nil
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	fail := func(err error) *mongo.SingleResult {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	f, err := asDocument(filter)
	if err != nil {
		return fail(err)
	}
	u, err := asDocument(update)
	if err != nil {
		return fail(err)
	}
	if err := checkUpdate(u); err != nil {
		return fail(err)
	}
	after, upsert := false, false
	var sortSpec interface{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.ReturnDocument != nil {
			after = *o.ReturnDocument == options.After
		}
		if o.Upsert != nil {
			upsert = *o.Upsert
		}
		if o.Sort != nil {
			sortSpec = o.Sort
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var pos []int
	if sortSpec != nil {
		pos, err = c.sortedMatching(f, sortSpec)
		if len(pos) > 1 {
			pos = pos[:1]
		}
	} else {
		pos, err = c.matching(f, 1)
	}
	if err != nil {
		return fail(err)
	}
	if len(pos) == 0 {
		if !upsert {
			return fail(mongo.ErrNoDocuments)
		}
		doc, err := applyUpdate(seedFromFilter(f), u, true)
		if err != nil {
			return fail(err)
		}
		if _, err := c.upsert(doc); err != nil {
			return fail(err)
		}
		if !after {
			return fail(mongo.ErrNoDocuments)
		}
		return mongo.NewSingleResultFromDocument(clone(doc), nil, nil)
	}
	before := clone(c.docs[pos[0]])
	if _, err := c.applyAt(pos, u); err != nil {
		return fail(err)
	}
	if after {
		return mongo.NewSingleResultFromDocument(clone(c.docs[pos[0]]), nil, nil)
	}
	return mongo.NewSingleResultFromDocument(before, nil, nil)
}

func (c *Collection) DeleteOne(ctx context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return c.delete(ctx, filter, 1)
}

func (c *Collection) DeleteMany(ctx context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return c.delete(ctx, filter, 0)
}

func (c *Collection) delete(ctx context.Context, filter interface{}, limit int64) (*mongo.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := asDocument(filter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, err := c.matching(f, limit)
	if err != nil {
		return nil, err
	}
	drop := make(map[int]bool, len(pos))
	for _, i := range pos {
		drop[i] = true
	}
	kept := c.docs[:0]
	for i, d := range c.docs {
		if !drop[i] {
			kept = append(kept, d)
		}
	}
	for i := len(kept); i < len(c.docs); i++ {
		c.docs[i] = nil
	}
	c.docs = kept
	return &mongo.DeleteResult{DeletedCount: int64(len(pos))}, nil
}

type query struct {
	sort       interface{}
	skip       int64
	limit      int64
	projection interface{}
}

// run evaluates a read query and returns copies of the selected documents.
func (c *Collection) run(ctx context.Context, filter interface{}, q query) ([]bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := asDocument(filter)
	if err != nil {
		return nil, err
	}
	var proj bson.D
	if q.projection != nil {
		if proj, err = asDocument(q.projection); err != nil {
			return nil, err
		}
	}
	c.mu.RLock()
	var pos []int
	if q.sort != nil {
		pos, err = c.sortedMatching(f, q.sort)
	} else {
		pos, err = c.matching(f, 0)
	}
	out := make([]bson.M, 0, len(pos))
	for _, i := range pos {
		out = append(out, clone(c.docs[i]))
	}
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if q.skip < 0 {
		return nil, mongo.CommandError{Code: codeBadValue, Name: "BadValue", Message: "skip value must be non-negative"}
	}
	if q.skip >= int64(len(out)) {
		out = out[:0]
	} else {
		out = out[q.skip:]
	}
	limit := q.limit
	if limit < 0 {
		limit = -limit
	}
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	if len(proj) > 0 {
		for i, d := range out {
			p, err := project(d, proj)
			if err != nil {
				return nil, badValue(err)
			}
			out[i] = p
		}
	}
	return out, nil
}

// matching returns the positions of up to limit matching documents in
// insertion order; limit 0 means all. Callers hold the lock.
func (c *Collection) matching(f bson.D, limit int64) ([]int, error) {
	var pos []int
	for i, d := range c.docs {
		ok, err := matches(d, f)
		if err != nil {
			return nil, badValue(err)
		}
		if ok {
			pos = append(pos, i)
			if limit > 0 && int64(len(pos)) == limit {
				break
			}
		}
	}
	return pos, nil
}

func (c *Collection) sortedMatching(f bson.D, sortSpec interface{}) ([]int, error) {
	spec, err := asDocument(sortSpec)
	if err != nil {
		return nil, err
	}
	pos, err := c.matching(f, 0)
	if err != nil {
		return nil, err
	}
	for _, s := range spec {
		if _, ok := toFloat(s.Value); !ok {
			return nil, badValue(errBadFilter("sort direction for " + s.Key + " must be 1 or -1"))
		}
	}
	sort.SliceStable(pos, func(a, b int) bool {
		for _, s := range spec {
			dir, _ := toFloat(s.Value)
			x, _ := lookup(c.docs[pos[a]], s.Key)
			y, _ := lookup(c.docs[pos[b]], s.Key)
			r := compare(x, y)
			if dir < 0 {
				r = -r
			}
			if r != 0 {
				return r < 0
			}
		}
		return false
	})
	return pos, nil
}

// seedFromFilter collects the equality conditions of filter into the
// starting document of an upsert.
func seedFromFilter(f bson.D) bson.M {
	seed := bson.M{}
	for _, e := range f {
		if len(e.Key) > 0 && e.Key[0] == '$' {
			continue
		}
		if d, ok := e.Value.(bson.D); ok && isOperatorDoc(d) {
			if d[0].Key == "$eq" {
				setPath(seed, e.Key, d[0].Value)
			}
			continue
		}
		setPath(seed, e.Key, e.Value)
	}
	return seed
}

func badValue(err error) error {
	if bf, ok := err.(errBadFilter); ok {
		return mongo.CommandError{Code: codeBadValue, Name: "BadValue", Message: string(bf)}
	}
	return err
}

// asDocument converts any marshalable document into bson.D. nil is the empty
// document.
func asDocument(v interface{}) (bson.D, error) {
	if v == nil {
		return bson.D{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bson.D
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// asStored converts a document for storage and assigns an ObjectID when it
// has no _id, as the driver does before sending an insert.
func asStored(v interface{}) (bson.M, error) {
	if v == nil {
		return nil, mongo.ErrNilDocument
	}
	d, err := asDocument(v)
	if err != nil {
		return nil, err
	}
	doc := toM(d)
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	return doc, nil
}

func cursor(docs []bson.M) (*mongo.Cursor, error) {
	items := make([]interface{}, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	return mongo.NewCursorFromDocuments(items, nil, nil)
}
