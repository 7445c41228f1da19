package memstore

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const codeUnrecognizedStage = 40324

// Aggregate runs a pipeline of $match, $sort, $skip, $limit, $project,
// $count, $unwind and $group stages. $group supports $sum, $avg, $min, $max,
// $first and $push accumulators over field paths or constants.
func (c *Collection) Aggregate(ctx context.Context, pipeline interface{}, _ ...*options.AggregateOptions) (*mongo.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stages, err := asStages(pipeline)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	docs := make([]bson.M, 0, len(c.docs))
	for _, d := range c.docs {
		docs = append(docs, clone(d))
	}
	c.mu.RUnlock()

	for _, st := range stages {
		if len(st) != 1 {
			return nil, mongo.CommandError{Code: codeFailedToParse, Name: "FailedToParse", Message: "A pipeline stage specification object must contain exactly one field."}
		}
		if docs, err = runStage(docs, st[0]); err != nil {
			return nil, badValue(err)
		}
	}
	return cursor(docs)
}

func runStage(docs []bson.M, st bson.E) ([]bson.M, error) {
	switch st.Key {
	case "$match":
		f, ok := st.Value.(bson.D)
		if !ok {
			return nil, errBadFilter("$match needs a document")
		}
		out := docs[:0]
		for _, d := range docs {
			ok, err := matches(d, f)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, d)
			}
		}
		return out, nil
	case "$sort":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, errBadFilter("$sort needs a document")
		}
		return docs, sortDocs(docs, spec)
	case "$skip":
		n, ok := toFloat(st.Value)
		if !ok || n < 0 {
			return nil, errBadFilter("$skip needs a non-negative number")
		}
		if int(n) >= len(docs) {
			return docs[:0], nil
		}
		return docs[int(n):], nil
	case "$limit":
		n, ok := toFloat(st.Value)
		if !ok || n <= 0 {
			return nil, errBadFilter("$limit needs a positive number")
		}
		if int(n) < len(docs) {
			return docs[:int(n)], nil
		}
		return docs, nil
	case "$project":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, errBadFilter("$project needs a document")
		}
		for i, d := range docs {
			p, err := project(d, spec)
			if err != nil {
				return nil, err
			}
			docs[i] = p
		}
		return docs, nil
	case "$count":
		name, ok := st.Value.(string)
		if !ok || name == "" || strings.HasPrefix(name, "$") {
			return nil, errBadFilter("$count needs a field name")
		}
		if len(docs) == 0 {
			return docs, nil
		}
		return []bson.M{{name: int32(len(docs))}}, nil
	case "$unwind":
		path, ok := st.Value.(string)
		if d, isDoc := st.Value.(bson.D); isDoc {
			path, ok = d.Map()["path"].(string)
		}
		if !ok || !strings.HasPrefix(path, "$") {
			return nil, errBadFilter("$unwind needs a field path")
		}
		path = path[1:]
		var out []bson.M
		for _, d := range docs {
			v, present := lookup(d, path)
			arr, isArr := v.(bson.A)
			switch {
			case !present || v == nil:
			case !isArr:
				out = append(out, d)
			default:
				for _, it := range arr {
					cp := clone(d)
					setPath(cp, path, it)
					out = append(out, cp)
				}
			}
		}
		return out, nil
	case "$group":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, errBadFilter("$group needs a document")
		}
		return group(docs, spec)
	}
	return nil, mongo.CommandError{Code: codeUnrecognizedStage, Name: "Location40324", Message: "Unrecognized pipeline stage name: '" + st.Key + "'"}
}

// eval resolves "$path" references against doc; anything else is a constant.
func eval(doc bson.M, expr interface{}) interface{} {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		v, _ := lookup(doc, s[1:])
		return v
	}
	return expr
}

func group(docs []bson.M, spec bson.D) ([]bson.M, error) {
	var idExpr interface{}
	hasID := false
	var accs bson.D
	for _, e := range spec {
		if e.Key == "_id" {
			idExpr, hasID = e.Value, true
			continue
		}
		acc, ok := e.Value.(bson.D)
		if !ok || len(acc) != 1 {
			return nil, errBadFilter("accumulator for " + e.Key + " must be a single-operator document")
		}
		accs = append(accs, e)
	}
	if !hasID {
		return nil, errBadFilter("a group specification must include an _id")
	}

	type bucket struct {
		id   interface{}
		vals map[string][]interface{}
	}
	var order []string
	buckets := map[string]*bucket{}
	for _, d := range docs {
		id := eval(d, idExpr)
		k := canonical(id)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{id: id, vals: map[string][]interface{}{}}
			buckets[k] = b
			order = append(order, k)
		}
		for _, a := range accs {
			op := a.Value.(bson.D)[0]
			b.vals[a.Key] = append(b.vals[a.Key], eval(d, op.Value))
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		row := bson.M{"_id": b.id}
		for _, a := range accs {
			op := a.Value.(bson.D)[0]
			v, err := accumulate(op.Key, b.vals[a.Key])
			if err != nil {
				return nil, err
			}
			row[a.Key] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func accumulate(op string, vals []interface{}) (interface{}, error) {
	switch op {
	case "$sum", "$avg":
		var sum float64
		n := 0
		allInt := true
		for _, v := range vals {
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			if _, isF := v.(float64); isF {
				allInt = false
			}
			sum += f
			n++
		}
		if op == "$avg" {
			if n == 0 {
				return nil, nil
			}
			return sum / float64(n), nil
		}
		if allInt {
			if sum >= -1<<31 && sum < 1<<31 {
				return int32(sum), nil
			}
			return int64(sum), nil
		}
		return sum, nil
	case "$min", "$max":
		var best interface{}
		for _, v := range vals {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := compare(v, best)
			if (op == "$min" && c < 0) || (op == "$max" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "$first":
		if len(vals) == 0 {
			return nil, nil
		}
		return vals[0], nil
	case "$push":
		return bson.A(vals), nil
	}
	return nil, errBadFilter(fmt.Sprintf("unknown group operator '%s'", op))
}

// asStages accepts mongo.Pipeline, []bson.D, []bson.M or any other array of
// documents.
func asStages(pipeline interface{}) ([]bson.D, error) {
	raw, err := bson.Marshal(bson.D{{Key: "pipeline", Value: pipeline}})
	if err != nil {
		return nil, err
	}
	var out struct {
		Pipeline []bson.D `bson:"pipeline"`
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, mongo.CommandError{Code: codeFailedToParse, Name: "FailedToParse", Message: "pipeline must be an array of documents"}
	}
	return out.Pipeline, nil
}
