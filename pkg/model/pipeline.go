package model

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Pipeline assembles aggregation stages.
func Pipeline(stages ...bson.D) mongo.Pipeline {
	return mongo.Pipeline(stages)
}

func Match(filter any) bson.D { return bson.D{{Key: "$match", Value: filter}} }

func Project(spec any) bson.D { return bson.D{{Key: "$project", Value: spec}} }

func AddFields(spec any) bson.D { return bson.D{{Key: "$addFields", Value: spec}} }

func Sort(spec any) bson.D { return bson.D{{Key: "$sort", Value: spec}} }

func Limit(n int64) bson.D { return bson.D{{Key: "$limit", Value: n}} }

func Skip(n int64) bson.D { return bson.D{{Key: "$skip", Value: n}} }

func Unwind(path string) bson.D {
	return bson.D{{Key: "$unwind", Value: bson.D{{Key: "path", Value: path}}}}
}

// Lookup joins documents from another collection into field as.
func Lookup(from, localField, foreignField, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: from},
		{Key: "localField", Value: localField},
		{Key: "foreignField", Value: foreignField},
		{Key: "as", Value: as},
	}}}
}
