package memstore

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	codeDuplicateKey          = 11000
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
	idIndexName               = "_id_"
)

type indexSpec struct {
	name        string
	keys        bson.D
	unique      bool
	sparse      bool
	expireAfter int32
	hasExpire   bool
}

func (s indexSpec) sameKeys(o indexSpec) bool {
	if len(s.keys) != len(o.keys) {
		return false
	}
	for i := range s.keys {
		if s.keys[i].Key != o.keys[i].Key || !equal(s.keys[i].Value, o.keys[i].Value) {
			return false
		}
	}
	return true
}

func (s indexSpec) sameOptions(o indexSpec) bool {
	return s.unique == o.unique && s.sparse == o.sparse &&
		s.hasExpire == o.hasExpire && s.expireAfter == o.expireAfter
}

func (s indexSpec) document() bson.D {
	d := bson.D{{Key: "v", Value: int32(2)}, {Key: "key", Value: s.keys}, {Key: "name", Value: s.name}}
	if s.unique {
		d = append(d, bson.E{Key: "unique", Value: true})
	}
	if s.sparse {
		d = append(d, bson.E{Key: "sparse", Value: true})
	}
	if s.hasExpire {
		d = append(d, bson.E{Key: "expireAfterSeconds", Value: s.expireAfter})
	}
	return d
}

// key returns the index key for doc and whether the document is indexed at
// all. Sparse indexes skip documents that have none of the keyed fields.
func (s indexSpec) key(doc bson.M) (string, bool) {
	parts := make([]string, 0, len(s.keys))
	present := 0
	for _, k := range s.keys {
		v, ok := lookup(doc, k.Key)
		if ok {
			present++
		}
		parts = append(parts, canonical(v))
	}
	if s.sparse && present == 0 {
		return "", false
	}
	return strings.Join(parts, "\x00"), true
}

// canonical renders v so that values the server considers equal render the
// same.
func canonical(v interface{}) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + x
	case bson.M, bson.D:
		var b strings.Builder
		b.WriteString("{")
		for _, e := range asD(x) {
			b.WriteString(e.Key)
			b.WriteString(":")
			b.WriteString(canonical(e.Value))
			b.WriteString(",")
		}
		b.WriteString("}")
		return b.String()
	case bson.A:
		parts := make([]string, len(x))
		for i, it := range x {
			parts[i] = canonical(it)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func specFromModel(m mongo.IndexModel) (indexSpec, error) {
	keys, err := asDocument(m.Keys)
	if err != nil || len(keys) == 0 {
		return indexSpec{}, mongo.CommandError{Code: codeBadValue, Name: "BadValue", Message: "index keys must be a nonempty document"}
	}
	s := indexSpec{keys: keys}
	if o := m.Options; o != nil {
		if o.Name != nil {
			s.name = *o.Name
		}
		if o.Unique != nil {
			s.unique = *o.Unique
		}
		if o.Sparse != nil {
			s.sparse = *o.Sparse
		}
		if o.ExpireAfterSeconds != nil {
			s.expireAfter = *o.ExpireAfterSeconds
			s.hasExpire = true
		}
	}
	if s.name == "" {
		parts := make([]string, 0, len(keys)*2)
		for _, k := range keys {
			parts = append(parts, k.Key, fmt.Sprint(k.Value))
		}
		s.name = strings.Join(parts, "_")
	}
	return s, nil
}

// checkUnique reports the first unique index doc would violate. skip is the
// position of the document being replaced, or -1.
func (c *Collection) checkUnique(doc bson.M, skip int) error {
	for _, ix := range c.indexes {
		if !ix.unique {
			continue
		}
		k, ok := ix.key(doc)
		if !ok {
			continue
		}
		for i, other := range c.docs {
			if i == skip {
				continue
			}
			if ok2, ok3 := ix.key(other); ok3 && ok2 == k {
				return c.dupError(ix)
			}
		}
	}
	return nil
}

func (c *Collection) dupError(ix indexSpec) error {
	msg := fmt.Sprintf("E11000 duplicate key error collection: %s.%s index: %s", c.db, c.name, ix.name)
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: codeDuplicateKey, Message: msg}}}
}

// IndexView manages the indexes of one Collection. It has the same
// CreateMany and List signatures as mongo.IndexView.
type IndexView struct {
	c *Collection
}

// CreateMany creates the given indexes. An index identical to an existing
// one is a no-op. The whole call fails without changes when any index
// conflicts or existing documents violate a new unique index.
func (v IndexView) CreateMany(ctx context.Context, models []mongo.IndexModel, _ ...*options.CreateIndexesOptions) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, mongo.ErrEmptySlice
	}
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []indexSpec
	names := make([]string, 0, len(models))
	for _, m := range models {
		s, err := specFromModel(m)
		if err != nil {
			return nil, err
		}
		names = append(names, s.name)
		exists := false
		for _, cur := range append(append([]indexSpec(nil), c.indexes...), added...) {
			switch {
			case cur.name == s.name && !cur.sameKeys(s):
				return nil, mongo.CommandError{Code: codeIndexKeySpecsConflict, Name: "IndexKeySpecsConflict",
					Message: fmt.Sprintf("An existing index has the same name as the requested index: %s", s.name)}
			case cur.sameKeys(s) && (cur.name != s.name || !cur.sameOptions(s)):
				return nil, mongo.CommandError{Code: codeIndexOptionsConflict, Name: "IndexOptionsConflict",
					Message: fmt.Sprintf("Index already exists with a different name or options: %s", cur.name)}
			case cur.name == s.name:
				exists = true
			}
		}
		if exists {
			continue
		}
		if s.unique {
			seen := map[string]bool{}
			for _, d := range c.docs {
				k, ok := s.key(d)
				if !ok {
					continue
				}
				if seen[k] {
					return nil, c.dupError(s)
				}
				seen[k] = true
			}
		}
		added = append(added, s)
	}
	c.indexes = append(c.indexes, added...)
	return names, nil
}

// List returns one document per index, _id_ first.
func (v IndexView) List(ctx context.Context, _ ...*options.ListIndexesOptions) (*mongo.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := v.c
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := make([]interface{}, 0, len(c.indexes))
	for _, ix := range c.indexes {
		docs = append(docs, ix.document())
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}
