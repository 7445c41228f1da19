package memstore

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server codes reported by update validation.
const (
	codeBadValue       = 2
	codeFailedToParse  = 9
	codeImmutableField = 66
)

var errNotOperators = errors.New("update document must contain key beginning with '$'")

func writeErr(code int, msg string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: code, Message: msg}}}
}

// checkUpdate validates the shape of an update document before any write.
func checkUpdate(update bson.D) error {
	if len(update) == 0 {
		return errNotOperators
	}
	for _, e := range update {
		if !strings.HasPrefix(e.Key, "$") {
			return errNotOperators
		}
		if _, ok := e.Value.(bson.D); !ok {
			return writeErr(codeFailedToParse, "Modifiers operate on fields but we found type "+e.Key+" instead")
		}
	}
	return nil
}

// applyUpdate runs update operators against a copy of doc. inserting is
// true when the document is being created by an upsert.
func applyUpdate(doc bson.M, update bson.D, inserting bool) (bson.M, error) {
	out := clone(doc)
	for _, op := range update {
		fields := op.Value.(bson.D)
		for _, f := range fields {
			if f.Key == "_id" && op.Key != "$setOnInsert" && !inserting {
				if cur, _ := lookup(out, "_id"); op.Key != "$set" || !equal(cur, f.Value) {
					return nil, writeErr(codeImmutableField, "Performing an update on the path '_id' would modify the immutable field '_id'")
				}
			}
			if err := applyOp(out, op.Key, f.Key, f.Value, inserting); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func applyOp(doc bson.M, op, path string, v interface{}, inserting bool) error {
	switch op {
	case "$set":
		setPath(doc, path, v)
	case "$setOnInsert":
		if inserting {
			setPath(doc, path, v)
		}
	case "$unset":
		unsetPath(doc, path)
	case "$inc":
		delta, ok := toFloat(v)
		if !ok {
			return writeErr(codeBadValue, "Cannot increment with non-numeric argument")
		}
		cur, present := lookup(doc, path)
		if !present {
			setPath(doc, path, v)
			return nil
		}
		base, ok := toFloat(cur)
		if !ok {
			return writeErr(codeBadValue, "Cannot apply $inc to a value of non-numeric type")
		}
		setPath(doc, path, addNumbers(cur, v, base+delta))
	case "$min", "$max":
		cur, present := lookup(doc, path)
		c := compare(v, cur)
		if !present || (op == "$min" && c < 0) || (op == "$max" && c > 0) {
			setPath(doc, path, v)
		}
	case "$push", "$addToSet":
		cur, present := lookup(doc, path)
		arr := bson.A{}
		if present {
			a, ok := cur.(bson.A)
			if !ok {
				return writeErr(codeBadValue, "The field '"+path+"' must be an array")
			}
			arr = append(arr, a...)
		}
		items := bson.A{v}
		if d, ok := v.(bson.D); ok && len(d) > 0 && d[0].Key == "$each" {
			each, ok := d[0].Value.(bson.A)
			if !ok {
				return writeErr(codeBadValue, "$each needs an array")
			}
			items = each
		}
		for _, it := range items {
			if op == "$addToSet" && containsValue(arr, it) {
				continue
			}
			arr = append(arr, it)
		}
		setPath(doc, path, arr)
	case "$pull":
		cur, present := lookup(doc, path)
		a, ok := cur.(bson.A)
		if !present || !ok {
			return nil
		}
		kept := bson.A{}
		for _, it := range a {
			if !equal(it, v) {
				kept = append(kept, it)
			}
		}
		setPath(doc, path, kept)
	default:
		return writeErr(codeFailedToParse, "Unknown modifier: "+op)
	}
	return nil
}

// addNumbers keeps the integer width when both operands are integers.
func addNumbers(cur, delta interface{}, sum float64) interface{} {
	_, curF := cur.(float64)
	_, deltaF := delta.(float64)
	if curF || deltaF {
		return sum
	}
	_, cur32 := cur.(int32)
	_, delta32 := delta.(int32)
	if cur32 && delta32 && sum >= -1<<31 && sum < 1<<31 {
		return int32(sum)
	}
	return int64(sum)
}

func containsValue(arr bson.A, v interface{}) bool {
	for _, it := range arr {
		if equal(it, v) {
			return true
		}
	}
	return false
}

func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			if d, isD := cur[p].(bson.D); isD {
				next = toM(d)
			} else {
				next = bson.M{}
			}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = normalize(v)
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// project applies an inclusion or exclusion projection on top-level and
// dotted fields. _id is kept unless excluded explicitly.
func project(doc bson.M, spec bson.D) (bson.M, error) {
	if len(spec) == 0 {
		return doc, nil
	}
	include := -1
	keepID := true
	for _, e := range spec {
		on := truthy(e.Value)
		if e.Key == "_id" {
			keepID = on
			continue
		}
		mode := 0
		if on {
			mode = 1
		}
		if include >= 0 && include != mode {
			return nil, errBadFilter("cannot mix inclusion and exclusion in a projection")
		}
		include = mode
	}
	var out bson.M
	if include == 1 {
		out = bson.M{}
		for _, e := range spec {
			if e.Key == "_id" {
				continue
			}
			if v, ok := lookup(doc, e.Key); ok {
				setPath(out, e.Key, v)
			}
		}
		if keepID {
			if id, ok := doc["_id"]; ok {
				out["_id"] = id
			}
		}
		return out, nil
	}
	out = clone(doc)
	for _, e := range spec {
		if e.Key != "_id" {
			unsetPath(out, e.Key)
		}
	}
	if !keepID {
		delete(out, "_id")
	}
	return out, nil
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

// clone deep-copies a stored document.
func clone(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = normalize(v)
	}
	return out
}

// normalize copies v, turning embedded documents into bson.M so stored
// documents have one shape.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case bson.M:
		return clone(x)
	case bson.D:
		return toM(x)
	case bson.A:
		out := make(bson.A, len(x))
		for i, it := range x {
			out[i] = normalize(it)
		}
		return out
	}
	return v
}

func toM(d bson.D) bson.M {
	out := make(bson.M, len(d))
	for _, e := range d {
		out[e.Key] = normalize(e.Value)
	}
	return out
}
