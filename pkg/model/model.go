package model

import (
	"context"
	"errors"
	"iter"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/gogotex/mongomodel/pkg/logger"
	"github.com/gogotex/mongomodel/pkg/metrics"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// Collection is the document store boundary. *mongo.Collection satisfies it.
type Collection interface {
	Name() string
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

// Source hands out the shared database handle. database.Pool implements it.
type Source interface {
	Database(ctx context.Context) (*mongo.Database, error)
}

// UpdateResult reports the effect of an update. No match is not an error.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// Option customizes a Model.
type Option func(*settings)

type settings struct {
	name string
	now  func() time.Time
	log  *zerolog.Logger
}

// WithName overrides the logical name (and therefore the collection name).
func WithName(name string) Option { return func(s *settings) { s.name = name } }

// WithClock replaces Now for timestamping.
func WithClock(now func() time.Time) Option { return func(s *settings) { s.now = now } }

// WithLogger sends the model's failure logs to l instead of the package logger.
func WithLogger(l zerolog.Logger) Option { return func(s *settings) { s.log = &l } }

// Model exposes CRUD, pagination, aggregation and index management for one
// record type T. P is *T and must implement Record.
type Model[T any, P interface {
	*T
	Record
}] struct {
	name       string
	collection string
	timestamps bool
	indexes    []Index
	fields     []string
	now        func() time.Time
	log        *zerolog.Logger

	src Source
	col Collection
	idx IndexView
}

// New binds T to a collection resolved from src on each call.
func New[T any, P interface {
	*T
	Record
}](src Source, opts ...Option) *Model[T, P] {
	m := newModel[T, P](opts)
	m.src = src
	return m
}

// NewWithCollection binds T to an explicit collection and index view.
func NewWithCollection[T any, P interface {
	*T
	Record
}](col Collection, idx IndexView, opts ...Option) *Model[T, P] {
	m := newModel[T, P](opts)
	m.col = col
	m.idx = idx
	return m
}

func newModel[T any, P interface {
	*T
	Record
}](opts []Option) *Model[T, P] {
	s := settings{now: Now}
	for _, o := range opts {
		o(&s)
	}
	zero := any(P(new(T)))
	m := &Model[T, P]{now: s.now, log: s.log}
	switch {
	case s.name != "":
		m.name = s.name
	default:
		if n, ok := zero.(Namer); ok {
			m.name = n.ModelName()
		} else {
			m.name = NameOf[T]()
		}
	}
	m.collection = CollectionName(m.name)
	_, m.timestamps = zero.(Timestamped)
	if ix, ok := zero.(Indexed); ok {
		m.indexes = ix.Indexes()
	}
	for _, k := range documentKeys(reflect.TypeOf(zero)) {
		if k != FieldID && k != FieldCreatedAt && k != FieldUpdatedAt {
			m.fields = append(m.fields, k)
		}
	}
	return m
}

// Name is the logical record type name.
func (m *Model[T, P]) Name() string { return m.name }

// CollectionName is the collection the records live in.
func (m *Model[T, P]) CollectionName() string { return m.collection }

// Timestamped reports whether T opted into timestamp bookkeeping.
func (m *Model[T, P]) Timestamped() bool { return m.timestamps }

func (m *Model[T, P]) store(ctx context.Context) (Collection, IndexView, error) {
	if m.col != nil {
		return m.col, m.idx, nil
	}
	if m.src == nil {
		return nil, nil, &Error{Kind: KindConnectionFailure, Model: m.name, Message: "no store configured"}
	}
	db, err := m.src.Database(ctx)
	if err != nil {
		return nil, nil, &Error{Kind: KindConnectionFailure, Model: m.name, Message: err.Error()}
	}
	c := db.Collection(m.collection)
	return c, c.Indexes(), nil
}

// fail classifies err, logs it and records the outcome.
func (m *Model[T, P]) fail(op string, start time.Time, err error) error {
	werr := Wrap(op, m.name, err)
	kind := KindOf(werr)
	switch {
	case m.log != nil:
		lvl := zerolog.ErrorLevel
		if kind == KindNotFound {
			lvl = zerolog.DebugLevel
		}
		m.log.WithLevel(lvl).Str("model", m.name).Str("op", op).Str("kind", kind.String()).Msg(werr.Error())
	case kind == KindNotFound:
		logger.Debugf("%s %q: %v", op, m.name, werr)
	default:
		logger.Errorf("error in %s on %q documents: %v", op, m.name, werr)
	}
	metrics.ObserveOperation(m.collection, op, kind.String(), time.Since(start))
	return werr
}

func (m *Model[T, P]) done(op string, start time.Time) {
	metrics.ObserveOperation(m.collection, op, "ok", time.Since(start))
}

func (m *Model[T, P]) stamp(rec P, now time.Time) {
	if !m.timestamps {
		return
	}
	if ts, ok := any(rec).(Timestamped); ok {
		ts.GetTimestamps().Stamp(now)
	}
}

// CreateIndexes applies the indexes T declares. It is safe to call repeatedly.
func (m *Model[T, P]) CreateIndexes(ctx context.Context) error {
	const op = "create_indexes"
	start := time.Now()
	if len(m.indexes) == 0 {
		return nil
	}
	_, idx, err := m.store(ctx)
	if err != nil {
		return m.fail(op, start, err)
	}
	if idx == nil {
		return m.fail(op, start, Invalid(op, m.name, "no index view configured"))
	}
	if _, err := SyncIndexes(ctx, m.name, idx, m.indexes); err != nil {
		metrics.ObserveOperation(m.collection, op, KindOf(err).String(), time.Since(start))
		return err
	}
	m.done(op, start)
	return nil
}

// IndexNames lists the indexes currently on the collection.
func (m *Model[T, P]) IndexNames(ctx context.Context) ([]string, error) {
	const op = "list_indexes"
	start := time.Now()
	_, idx, err := m.store(ctx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	if idx == nil {
		return nil, m.fail(op, start, Invalid(op, m.name, "no index view configured"))
	}
	names, err := ListIndexNames(ctx, idx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	m.done(op, start)
	return names, nil
}

// Default returns a zero record with a fresh identifier and, when T opts in,
// both timestamps set to now.
func (m *Model[T, P]) Default() P {
	rec := P(new(T))
	rec.SetID(GenerateID())
	m.stamp(rec, m.now())
	return rec
}

// Save inserts rec when its identifier is not stored yet and overwrites the
// stored document otherwise, in a single upsert. A missing identifier is
// generated. created_at is only written when the document is inserted, so
// the stored creation time survives saving a record that lacks it; rec is
// updated with the stored timestamps.
func (m *Model[T, P]) Save(ctx context.Context, rec P) (P, error) {
	const op = "save"
	start := time.Now()
	if rec == nil {
		return nil, m.fail(op, start, Invalid(op, m.name, "nil record"))
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	if rec.GetID() == "" {
		rec.SetID(GenerateID())
	}
	m.stamp(rec, m.now())
	u, err := m.saveUpdate(op, rec)
	if err != nil {
		return nil, m.fail(op, start, err)
	}

	stored := P(new(T))
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := col.FindOneAndUpdate(ctx, bson.D{{Key: FieldID, Value: rec.GetID()}}, u, opts).Decode(stored); err != nil {
		return nil, m.fail(op, start, err)
	}
	adoptTimestamps(rec, stored)
	m.done(op, start)
	return rec, nil
}

// saveUpdate turns rec into an upsert: every field T declares is set, or
// unset when rec omits it; created_at is set on insert only and updated_at
// never moves backwards.
func (m *Model[T, P]) saveUpdate(op string, rec P) (bson.D, error) {
	doc, err := toDocument(rec)
	if err != nil {
		return nil, Invalid(op, m.name, "record is not a document: %v", err)
	}
	set, present := bson.D{}, map[string]bool{}
	var created, updated any
	for _, e := range doc {
		present[e.Key] = true
		switch {
		case e.Key == FieldID:
		case m.timestamps && e.Key == FieldCreatedAt:
			created = e.Value
		case m.timestamps && e.Key == FieldUpdatedAt:
			updated = e.Value
		default:
			set = append(set, e)
		}
	}
	unset := bson.D{}
	for _, k := range m.fields {
		if !present[k] {
			unset = append(unset, bson.E{Key: k, Value: ""})
		}
	}
	if len(set) == 0 {
		set = bson.D{{Key: FieldID, Value: rec.GetID()}}
	}
	u := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		u = append(u, bson.E{Key: "$unset", Value: unset})
	}
	if created != nil {
		u = append(u, bson.E{Key: "$setOnInsert", Value: bson.D{{Key: FieldCreatedAt, Value: created}}})
	}
	if updated != nil {
		u = append(u, bson.E{Key: "$max", Value: bson.D{{Key: FieldUpdatedAt, Value: updated}}})
	}
	return u, nil
}

// adoptTimestamps copies the stored timestamps into rec. A store that
// returns none leaves rec as stamped.
func adoptTimestamps(rec, stored any) {
	dst, ok := rec.(Timestamped)
	src, ok2 := stored.(Timestamped)
	if !ok || !ok2 || src.GetTimestamps().CreatedAt.IsZero() {
		return
	}
	*dst.GetTimestamps() = *src.GetTimestamps()
}

// InsertMany inserts recs in one unordered batch and returns their
// identifiers. Identifiers and timestamps are filled in first.
func (m *Model[T, P]) InsertMany(ctx context.Context, recs []P) ([]string, error) {
	const op = "insert_many"
	start := time.Now()
	if len(recs) == 0 {
		return nil, m.fail(op, start, Invalid(op, m.name, "no records"))
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	now := m.now()
	docs := make([]interface{}, 0, len(recs))
	ids := make([]string, 0, len(recs))
	for i, rec := range recs {
		if rec == nil {
			return nil, m.fail(op, start, Invalid(op, m.name, "nil record at %d", i))
		}
		if rec.GetID() == "" {
			rec.SetID(GenerateID())
		}
		m.stamp(rec, now)
		docs = append(docs, rec)
		ids = append(ids, rec.GetID())
	}
	if _, err := col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return nil, m.fail(op, start, err)
	}
	m.done(op, start)
	return ids, nil
}

// FindOne returns the first document matching filter or a NotFound error.
func (m *Model[T, P]) FindOne(ctx context.Context, filter any) (P, error) {
	const op = "find_one"
	start := time.Now()
	f, err := m.filter(op, filter)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	rec := P(new(T))
	if err := col.FindOne(ctx, f).Decode(rec); err != nil {
		return nil, m.fail(op, start, err)
	}
	m.done(op, start)
	return rec, nil
}

// FindByID is FindOne on the identifier.
func (m *Model[T, P]) FindByID(ctx context.Context, id string) (P, error) {
	if id == "" {
		return nil, m.fail("find_one", time.Now(), Invalid("find_one", m.name, "empty id"))
	}
	return m.FindOne(ctx, bson.D{{Key: FieldID, Value: id}})
}

// FindMany returns the matching documents as a lazy sequence. Each range over
// the sequence runs the query again. Iteration stops after the first error.
func (m *Model[T, P]) FindMany(ctx context.Context, filter any, opts FindOptions) iter.Seq2[P, error] {
	const op = "find_many"
	return func(yield func(P, error) bool) {
		start := time.Now()
		cur, err := m.find(ctx, op, filter, opts)
		if err != nil {
			yield(nil, m.fail(op, start, err))
			return
		}
		defer cur.Close(ctx)
		// One observation per range: ok unless the cursor or a decode fails.
		for cur.Next(ctx) {
			rec := P(new(T))
			if err := cur.Decode(rec); err != nil {
				yield(nil, m.fail(op, start, err))
				return
			}
			if !yield(rec, nil) {
				m.done(op, start)
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, m.fail(op, start, err))
			return
		}
		m.done(op, start)
	}
}

// List collects the matching documents. Without a limit at most
// DefaultListLimit documents are returned.
func (m *Model[T, P]) List(ctx context.Context, filter any, opts FindOptions) ([]P, error) {
	const op = "list"
	start := time.Now()
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	cur, err := m.find(ctx, op, filter, opts)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	out := []P{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, m.fail(op, start, err)
	}
	m.done(op, start)
	return out, nil
}

func (m *Model[T, P]) find(ctx context.Context, op string, filter any, opts FindOptions) (*mongo.Cursor, error) {
	if opts.Skip < 0 || opts.Limit < 0 {
		return nil, Invalid(op, m.name, "negative skip or limit")
	}
	f, err := m.filter(op, filter)
	if err != nil {
		return nil, err
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return nil, err
	}
	return col.Find(ctx, f, opts.driver())
}

// UpdateOne applies update to the first match. Bare fields are treated as
// $set and updated_at is refreshed in the same write.
func (m *Model[T, P]) UpdateOne(ctx context.Context, filter, update any) (UpdateResult, error) {
	return m.update(ctx, "update_one", filter, update, false)
}

// UpdateMany applies update to every match.
func (m *Model[T, P]) UpdateMany(ctx context.Context, filter, update any) (UpdateResult, error) {
	return m.update(ctx, "update_many", filter, update, true)
}

func (m *Model[T, P]) update(ctx context.Context, op string, filter, update any, many bool) (UpdateResult, error) {
	start := time.Now()
	f, err := m.filter(op, filter)
	if err != nil {
		return UpdateResult{}, m.fail(op, start, err)
	}
	u, err := m.normalizeUpdate(op, update)
	if err != nil {
		return UpdateResult{}, m.fail(op, start, err)
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return UpdateResult{}, m.fail(op, start, err)
	}
	var res *mongo.UpdateResult
	if many {
		res, err = col.UpdateMany(ctx, f, u)
	} else {
		res, err = col.UpdateOne(ctx, f, u)
	}
	if err != nil {
		return UpdateResult{}, m.fail(op, start, err)
	}
	m.done(op, start)
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// FindOneAndUpdate updates the first match and returns it as stored after
// the update, or NotFound when nothing matched.
func (m *Model[T, P]) FindOneAndUpdate(ctx context.Context, filter, update any) (P, error) {
	const op = "find_one_and_update"
	start := time.Now()
	f, err := m.filter(op, filter)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	u, err := m.normalizeUpdate(op, update)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	rec := P(new(T))
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := col.FindOneAndUpdate(ctx, f, u, opts).Decode(rec); err != nil {
		return nil, m.fail(op, start, err)
	}
	m.done(op, start)
	return rec, nil
}

// DeleteOne removes the first match and reports how many were removed.
func (m *Model[T, P]) DeleteOne(ctx context.Context, filter any) (int64, error) {
	return m.delete(ctx, "delete_one", filter, false)
}

// DeleteMany removes every match.
func (m *Model[T, P]) DeleteMany(ctx context.Context, filter any) (int64, error) {
	return m.delete(ctx, "delete_many", filter, true)
}

func (m *Model[T, P]) delete(ctx context.Context, op string, filter any, many bool) (int64, error) {
	start := time.Now()
	f, err := m.filter(op, filter)
	if err != nil {
		return 0, m.fail(op, start, err)
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return 0, m.fail(op, start, err)
	}
	var res *mongo.DeleteResult
	if many {
		res, err = col.DeleteMany(ctx, f)
	} else {
		res, err = col.DeleteOne(ctx, f)
	}
	if err != nil {
		return 0, m.fail(op, start, err)
	}
	m.done(op, start)
	return res.DeletedCount, nil
}

// Count returns the number of documents matching filter.
func (m *Model[T, P]) Count(ctx context.Context, filter any) (int64, error) {
	const op = "count"
	start := time.Now()
	f, err := m.filter(op, filter)
	if err != nil {
		return 0, m.fail(op, start, err)
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return 0, m.fail(op, start, err)
	}
	n, err := col.CountDocuments(ctx, f)
	if err != nil {
		return 0, m.fail(op, start, err)
	}
	m.done(op, start)
	return n, nil
}

// Paginate returns page (1-based) of pageSize documents ordered by sort,
// together with the total match count. Without a sort the order of pages
// across calls is unspecified. A page past the end has no data.
func (m *Model[T, P]) Paginate(ctx context.Context, filter any, page, pageSize int64, sort any) (*Page[P], error) {
	const op = "paginate"
	start := time.Now()
	if page < 1 || pageSize < 1 {
		return nil, m.fail(op, start, Invalid(op, m.name, "page must be >= 1 and page size > 0, got %d/%d", page, pageSize))
	}
	f, err := m.filter(op, filter)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	skip, limit, inRange := pageBounds(page, pageSize)
	out := &Page[P]{Data: []P{}, Page: page, PageSize: pageSize}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := col.CountDocuments(gctx, f)
		out.Total = n
		return err
	})
	if inRange {
		g.Go(func() error {
			cur, err := col.Find(gctx, f, FindOptions{Sort: sort, Skip: skip, Limit: limit}.driver())
			if err != nil {
				return err
			}
			return cur.All(gctx, &out.Data)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, m.fail(op, start, err)
	}
	out.TotalPages = totalPages(out.Total, pageSize)
	m.done(op, start)
	return out, nil
}

// Aggregate runs pipeline against the collection and returns the raw result
// documents.
func (m *Model[T, P]) Aggregate(ctx context.Context, pipeline any) ([]bson.M, error) {
	return AggregateAs[bson.M](ctx, m, pipeline)
}

// AggregateAs runs pipeline and decodes each result into R.
func AggregateAs[R any, T any, P interface {
	*T
	Record
}](ctx context.Context, m *Model[T, P], pipeline any) ([]R, error) {
	const op = "aggregate"
	start := time.Now()
	if !isSlice(pipeline) {
		return nil, m.fail(op, start, Invalid(op, m.name, "pipeline must be a list of stages, got %T", pipeline))
	}
	col, _, err := m.store(ctx)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, m.fail(op, start, err)
	}
	out := []R{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, m.fail(op, start, err)
	}
	m.done(op, start)
	return out, nil
}

// CreateView creates a read-only view named after T over source. It needs a
// database-backed model.
func (m *Model[T, P]) CreateView(ctx context.Context, source string, pipeline any) error {
	const op = "create_view"
	start := time.Now()
	if m.src == nil {
		return m.fail(op, start, Invalid(op, m.name, "views need a database-backed model"))
	}
	if source == "" || !isSlice(pipeline) {
		return m.fail(op, start, Invalid(op, m.name, "view needs a source collection and a pipeline"))
	}
	db, err := m.src.Database(ctx)
	if err != nil {
		return m.fail(op, start, &Error{Kind: KindConnectionFailure, Message: err.Error()})
	}
	if err := db.CreateView(ctx, m.collection, source, pipeline); err != nil {
		return m.fail(op, start, err)
	}
	m.done(op, start)
	return nil
}

// filter checks that filter can be sent as a query document.
func (m *Model[T, P]) filter(op string, filter any) (any, error) {
	switch filter.(type) {
	case nil:
		return bson.D{}, nil
	case bson.D, bson.M, map[string]interface{}, bson.Raw:
		return filter, nil
	}
	if _, err := bson.Marshal(filter); err != nil {
		return nil, Invalid(op, m.name, "filter %T is not a document: %v", filter, err)
	}
	return filter, nil
}

// normalizeUpdate turns update into operator form: bare fields and any
// explicit $set are merged into one $set, other operators are kept, and
// updated_at is set when T is timestamped.
func (m *Model[T, P]) normalizeUpdate(op string, update any) (bson.D, error) {
	doc, err := toDocument(update)
	if err != nil {
		return nil, Invalid(op, m.name, "update %T is not a document: %v", update, err)
	}
	if len(doc) == 0 {
		return nil, Invalid(op, m.name, "empty update")
	}
	set := bson.D{}
	ops := bson.D{}
	for _, e := range doc {
		switch {
		case e.Key == "$set":
			inner, err := toDocument(e.Value)
			if err != nil {
				return nil, Invalid(op, m.name, "$set is not a document: %v", err)
			}
			set = append(set, inner...)
		case strings.HasPrefix(e.Key, "$"):
			ops = append(ops, e)
		default:
			set = append(set, e)
		}
	}
	if m.timestamps {
		kept := set[:0]
		for _, e := range set {
			if e.Key != FieldUpdatedAt {
				kept = append(kept, e)
			}
		}
		set = append(kept, bson.E{Key: FieldUpdatedAt, Value: m.now()})
	}
	if len(set) == 0 {
		return ops, nil
	}
	return append(bson.D{{Key: "$set", Value: set}}, ops...), nil
}

func toDocument(v any) (bson.D, error) {
	switch d := v.(type) {
	case nil:
		return nil, errors.New("nil document")
	case bson.D:
		return d, nil
	case bson.M:
		return sortedDoc(d), nil
	case map[string]interface{}:
		return sortedDoc(d), nil
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

func sortedDoc(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}

// documentKeys lists the top-level keys a struct type encodes to with the
// default bson codec: the tag name or the lower-cased field name, with
// inline structs flattened.
func documentKeys(t reflect.Type) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("bson"), ",")
		if name == "-" && opts == "" {
			continue
		}
		if strings.Contains(","+opts+",", ",inline,") {
			keys = append(keys, documentKeys(f.Type)...)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		keys = append(keys, name)
	}
	return keys
}

func isSlice(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
