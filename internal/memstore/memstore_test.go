package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type person struct {
	ID    string `bson:"_id"`
	Email string `bson:"email"`
	Age   int    `bson:"age"`
}

func seed(t *testing.T, c *Collection) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []person{
		{ID: "a", Email: "a@x.io", Age: 30},
		{ID: "b", Email: "b@x.io", Age: 20},
		{ID: "c", Email: "c@x.io", Age: 40},
	} {
		_, err := c.InsertOne(ctx, p)
		require.NoError(t, err)
	}
}

func TestCollectionCRUD(t *testing.T) {
	ctx := context.Background()
	c := New("test").Collection("people")
	seed(t, c)
	require.Equal(t, 3, c.Len())

	var got person
	require.NoError(t, c.FindOne(ctx, bson.M{"email": "b@x.io"}).Decode(&got))
	require.Equal(t, "b", got.ID)

	err := c.FindOne(ctx, bson.M{"email": "nobody"}).Decode(&got)
	require.ErrorIs(t, err, mongo.ErrNoDocuments)

	res, err := c.UpdateOne(ctx, bson.M{"_id": "a"}, bson.M{"$inc": bson.M{"age": 1}})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.MatchedCount)
	require.Equal(t, int64(1), res.ModifiedCount)
	require.NoError(t, c.FindOne(ctx, bson.M{"_id": "a"}).Decode(&got))
	require.Equal(t, 31, got.Age)

	res, err = c.UpdateOne(ctx, bson.M{"_id": "missing"}, bson.M{"$set": bson.M{"age": 1}})
	require.NoError(t, err)
	require.Zero(t, res.MatchedCount)

	del, err := c.DeleteMany(ctx, bson.M{"age": bson.M{"$gte": 31}})
	require.NoError(t, err)
	require.Equal(t, int64(2), del.DeletedCount)
	n, err := c.CountDocuments(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestFindSortSkipLimit(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("people")
	seed(t, c)

	cur, err := c.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "age", Value: -1}}).SetSkip(1).SetLimit(1))
	require.NoError(t, err)
	var out []person
	require.NoError(t, cur.All(ctx, &out))
	require.Len(t, out, 1)
	require.Equal(t, "a", out[0].ID)

	cur, err = c.Find(ctx, bson.M{"$or": bson.A{bson.M{"age": 20}, bson.M{"age": 40}}}, options.Find().SetSort(bson.M{"age": 1}))
	require.NoError(t, err)
	out = nil
	require.NoError(t, cur.All(ctx, &out))
	require.Equal(t, []string{"b", "c"}, []string{out[0].ID, out[1].ID})
}

func TestUniqueIndex(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("people")
	names, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_1"),
	}})
	require.NoError(t, err)
	require.Equal(t, []string{"email_1"}, names)
	seed(t, c)

	_, err = c.InsertOne(ctx, person{ID: "d", Email: "a@x.io"})
	require.True(t, mongo.IsDuplicateKeyError(err))
	var we mongo.WriteException
	require.True(t, errors.As(err, &we))
	require.Equal(t, 11000, we.WriteErrors[0].Code)

	_, err = c.InsertOne(ctx, person{ID: "a", Email: "new@x.io"})
	require.True(t, mongo.IsDuplicateKeyError(err), "_id is always unique")

	_, err = c.UpdateOne(ctx, bson.M{"_id": "b"}, bson.M{"$set": bson.M{"email": "c@x.io"}})
	require.True(t, mongo.IsDuplicateKeyError(err))

	res, err := c.InsertMany(ctx, []interface{}{
		person{ID: "e", Email: "e@x.io"},
		person{ID: "f", Email: "b@x.io"},
		person{ID: "g", Email: "g@x.io"},
	}, options.InsertMany().SetOrdered(false))
	require.True(t, mongo.IsDuplicateKeyError(err))
	require.Len(t, res.InsertedIDs, 2)
	require.Equal(t, 5, c.Len())
}

func TestCreateIndexesIdempotentAndConflicts(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("people")
	model := mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_1")}
	_, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{model})
	require.NoError(t, err)
	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{model})
	require.NoError(t, err)

	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_1")}})
	var ce mongo.CommandError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, int32(85), ce.Code)

	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{{Keys: bson.D{{Key: "age", Value: 1}}, Options: options.Index().SetName("email_1")}})
	require.True(t, errors.As(err, &ce))
	require.Equal(t, int32(86), ce.Code)

	cur, err := c.Indexes().List(ctx)
	require.NoError(t, err)
	var specs []bson.M
	require.NoError(t, cur.All(ctx, &specs))
	require.Len(t, specs, 2)
	require.Equal(t, "_id_", specs[0]["name"])
	require.Equal(t, "email_1", specs[1]["name"])
}

func TestUniqueIndexOverDuplicates(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("people")
	_, err := c.InsertMany(ctx, []interface{}{person{ID: "a", Age: 1}, person{ID: "b", Age: 1}})
	require.NoError(t, err)
	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{{Keys: bson.D{{Key: "age", Value: 1}}, Options: options.Index().SetUnique(true)}})
	require.True(t, mongo.IsDuplicateKeyError(err))
}

func TestFindOneAndUpdateAndUpsert(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("people")
	seed(t, c)

	var got person
	err := c.FindOneAndUpdate(ctx, bson.M{"_id": "b"}, bson.M{"$set": bson.M{"age": 21}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&got)
	require.NoError(t, err)
	require.Equal(t, 21, got.Age)

	err = c.FindOneAndUpdate(ctx, bson.M{"_id": "zz"}, bson.M{"$set": bson.M{"age": 1}}).Decode(&got)
	require.ErrorIs(t, err, mongo.ErrNoDocuments)

	res, err := c.UpdateOne(ctx, bson.M{"_id": "zz"}, bson.M{"$set": bson.M{"age": 5}, "$setOnInsert": bson.M{"email": "zz@x.io"}},
		options.Update().SetUpsert(true))
	require.NoError(t, err)
	require.Equal(t, int64(1), res.UpsertedCount)
	require.NoError(t, c.FindOne(ctx, bson.M{"email": "zz@x.io"}).Decode(&got))
	require.Equal(t, "zz", got.ID)
}

func TestReplaceOne(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("people")
	seed(t, c)

	res, err := c.ReplaceOne(ctx, bson.M{"_id": "a"}, person{ID: "a", Email: "a2@x.io", Age: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.MatchedCount)
	require.Equal(t, int64(1), res.ModifiedCount)

	res, err = c.ReplaceOne(ctx, bson.M{"_id": "nope"}, person{ID: "nope"})
	require.NoError(t, err)
	require.Zero(t, res.MatchedCount)
	require.Equal(t, 3, c.Len())
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("people")
	seed(t, c)

	cur, err := c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 25}}}}}},
		{{Key: "$count", Value: "n"}},
	})
	require.NoError(t, err)
	var rows []bson.M
	require.NoError(t, cur.All(ctx, &rows))
	require.Len(t, rows, 1)
	require.EqualValues(t, 2, rows[0]["n"])

	cur, err = c.Aggregate(ctx, []bson.M{{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$age"}}}})
	require.NoError(t, err)
	rows = nil
	require.NoError(t, cur.All(ctx, &rows))
	require.EqualValues(t, 90, rows[0]["total"])

	_, err = c.Aggregate(ctx, []bson.M{{"$bogus": 1}})
	var ce mongo.CommandError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, int32(40324), ce.Code)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCollection("people")
	_, err := c.InsertOne(ctx, person{ID: "a"})
	require.ErrorIs(t, err, context.Canceled)
	_, err = c.Find(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStoreCollections(t *testing.T) {
	s := New("")
	require.Equal(t, "memstore", s.Name())
	a := s.Collection("b_things")
	require.Same(t, a, s.Collection("b_things"))
	s.Collection("a_things")
	require.Equal(t, []string{"a_things", "b_things"}, s.CollectionNames())
}
