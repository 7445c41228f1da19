package memstore

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// errBadFilter is reported as a server-side BadValue (code 2).
type errBadFilter string

func (e errBadFilter) Error() string { return string(e) }

// lookup resolves a dotted path. The second result is false when any
// segment is missing.
func lookup(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case bson.M:
			v, ok := c[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			v, ok := c.Map()[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// matches reports whether doc satisfies filter.
func matches(doc bson.M, filter bson.D) (bool, error) {
	for _, e := range filter {
		ok, err := matchElem(doc, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElem(doc bson.M, e bson.E) (bool, error) {
	switch e.Key {
	case "$and", "$or", "$nor":
		subs, ok := e.Value.(bson.A)
		if !ok || len(subs) == 0 {
			return false, errBadFilter(e.Key + " must be a nonempty array")
		}
		hits := 0
		for _, s := range subs {
			sd, ok := s.(bson.D)
			if !ok {
				return false, errBadFilter(e.Key + " entries must be documents")
			}
			ok, err := matches(doc, sd)
			if err != nil {
				return false, err
			}
			if ok {
				hits++
			}
		}
		switch e.Key {
		case "$and":
			return hits == len(subs), nil
		case "$or":
			return hits > 0, nil
		}
		return hits == 0, nil
	}
	if strings.HasPrefix(e.Key, "$") {
		return false, errBadFilter("unknown top level operator: " + e.Key)
	}

	val, present := lookup(doc, e.Key)
	if cond, ok := e.Value.(bson.D); ok && isOperatorDoc(cond) {
		for _, c := range cond {
			ok, err := matchOp(val, present, c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return equalsOrContains(val, present, e.Value), nil
}

func isOperatorDoc(d bson.D) bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

func matchOp(val interface{}, present bool, c bson.E) (bool, error) {
	switch c.Key {
	case "$eq":
		return equalsOrContains(val, present, c.Value), nil
	case "$ne":
		return !equalsOrContains(val, present, c.Value), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		return anyElem(val, func(v interface{}) bool {
			if typeRank(v) != typeRank(c.Value) {
				return false
			}
			r := compare(v, c.Value)
			switch c.Key {
			case "$gt":
				return r > 0
			case "$gte":
				return r >= 0
			case "$lt":
				return r < 0
			}
			return r <= 0
		}), nil
	case "$in", "$nin":
		list, ok := c.Value.(bson.A)
		if !ok {
			return false, errBadFilter(c.Key + " needs an array")
		}
		hit := false
		for _, want := range list {
			if equalsOrContains(val, present, want) {
				hit = true
				break
			}
		}
		if c.Key == "$in" {
			return hit, nil
		}
		return !hit, nil
	case "$exists":
		want, _ := c.Value.(bool)
		return present == want, nil
	case "$regex":
		pattern, ok := c.Value.(string)
		if !ok {
			if re, isRe := c.Value.(primitive.Regex); isRe {
				pattern = re.Pattern
				if re.Options != "" {
					pattern = "(?" + re.Options + ")" + pattern
				}
			} else {
				return false, errBadFilter("$regex needs a string")
			}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, errBadFilter(err.Error())
		}
		return anyElem(val, func(v interface{}) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	case "$options":
		return true, nil
	case "$not":
		sub, ok := c.Value.(bson.D)
		if !ok {
			return false, errBadFilter("$not needs a document")
		}
		for _, s := range sub {
			ok, err := matchOp(val, present, s)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}
		}
		return false, nil
	case "$size":
		arr, ok := val.(bson.A)
		if !ok {
			return false, nil
		}
		n, ok := toFloat(c.Value)
		return ok && float64(len(arr)) == n, nil
	}
	return false, errBadFilter("unknown operator: " + c.Key)
}

// equalsOrContains is equality with array membership. A missing field equals
// null.
func equalsOrContains(val interface{}, present bool, want interface{}) bool {
	if !present {
		return want == nil
	}
	if equal(val, want) {
		return true
	}
	if arr, ok := val.(bson.A); ok {
		for _, v := range arr {
			if equal(v, want) {
				return true
			}
		}
	}
	return false
}

func anyElem(val interface{}, pred func(interface{}) bool) bool {
	if arr, ok := val.(bson.A); ok {
		for _, v := range arr {
			if pred(v) {
				return true
			}
		}
		return false
	}
	return pred(val)
}

func equal(a, b interface{}) bool {
	if typeRank(a) != typeRank(b) {
		return false
	}
	return compare(a, b) == 0
}

// typeRank follows the server's cross-type sort order.
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return 1
	case int, int32, int64, float64, primitive.Decimal128:
		return 2
	case string, primitive.Symbol:
		return 3
	case bson.M, bson.D:
		return 4
	case bson.A:
		return 5
	case primitive.Binary, []byte:
		return 6
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime:
		return 9
	case primitive.Timestamp:
		return 10
	case primitive.Regex:
		return 11
	}
	return 12
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compare orders two values the way the server sorts them.
func compare(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case 1:
		return 0
	case 2:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		case math.IsNaN(x) && !math.IsNaN(y):
			return -1
		}
		return 0
	case 3:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	case 4:
		da, db := asD(a), asD(b)
		for i := 0; i < len(da) && i < len(db); i++ {
			if c := strings.Compare(da[i].Key, db[i].Key); c != 0 {
				return c
			}
			if c := compare(da[i].Value, db[i].Value); c != 0 {
				return c
			}
		}
		return cmpInt(len(da), len(db))
	case 5:
		xa, xb := a.(bson.A), b.(bson.A)
		for i := 0; i < len(xa) && i < len(xb); i++ {
			if c := compare(xa[i], xb[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(xa), len(xb))
	case 6:
		return bytes.Compare(binData(a), binData(b))
	case 7:
		x, y := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(x[:], y[:])
	case 8:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case 9:
		return cmpInt64(int64(a.(primitive.DateTime)), int64(b.(primitive.DateTime)))
	case 10:
		x, y := a.(primitive.Timestamp), b.(primitive.Timestamp)
		if c := cmpInt64(int64(x.T), int64(y.T)); c != 0 {
			return c
		}
		return cmpInt64(int64(x.I), int64(y.I))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func binData(v interface{}) []byte {
	if b, ok := v.(primitive.Binary); ok {
		return b.Data
	}
	b, _ := v.([]byte)
	return b
}

// asD gives embedded documents a stable key order for comparison.
func asD(v interface{}) bson.D {
	switch d := v.(type) {
	case bson.D:
		return d
	case bson.M:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(keys))
		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: d[k]})
		}
		return out
	}
	return nil
}

func cmpInt(a, b int) int {
	return cmpInt64(int64(a), int64(b))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sortDocs orders docs in place by spec. The sort is stable so ties keep
// insertion order.
func sortDocs(docs []bson.M, spec bson.D) error {
	for _, s := range spec {
		if _, ok := toFloat(s.Value); !ok {
			return errBadFilter("sort direction for " + s.Key + " must be 1 or -1")
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, s := range spec {
			dir, _ := toFloat(s.Value)
			a, _ := lookup(docs[i], s.Key)
			b, _ := lookup(docs[j], s.Key)
			c := compare(a, b)
			if dir < 0 {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return nil
}
