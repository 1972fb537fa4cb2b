package testutil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// roundTrip pushes a document through bson marshaling, yielding the
// normalized map form the wire would produce (time.Time becomes
// primitive.DateTime, structs become bson.M, and so on).
func roundTrip(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// normalizeValue pushes a single value through the same round trip by
// wrapping it in a one-field document.
func normalizeValue(v any) (any, error) {
	m, err := roundTrip(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return m["v"], nil
}

func decodeInto(m bson.M, dest any) error {
	raw, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, dest)
}

// decodeSlice decodes raw documents into *[]T via reflection.
func decodeSlice(raws []bson.Raw, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memstore: find dest must be a pointer to a slice, got %T", dest)
	}
	sliceVal := v.Elem()
	out := reflect.MakeSlice(sliceVal.Type(), 0, len(raws))
	elemType := sliceVal.Type().Elem()
	for _, raw := range raws {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	sliceVal.Set(out)
	return nil
}

// setPath sets a possibly dotted field path inside the document,
// creating intermediate maps the way a $set on a dotted path does.
func setPath(doc bson.M, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(bson.M)
		if !ok {
			next = bson.M{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func matches(m bson.M, filters []store.Filter) bool {
	for _, f := range filters {
		fv, err := normalizeValue(f.Value)
		if err != nil {
			return false
		}
		dv := m[f.Field]
		switch f.Op {
		case store.OpEq:
			if !reflect.DeepEqual(dv, fv) {
				return false
			}
		case store.OpGt:
			if compareValues(dv, fv) <= 0 {
				return false
			}
		case store.OpIn:
			arr, ok := fv.(primitive.A)
			if !ok {
				return false
			}
			found := false
			for _, candidate := range arr {
				if reflect.DeepEqual(dv, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case store.OpArrayContains:
			arr, ok := dv.(primitive.A)
			if !ok {
				return false
			}
			found := false
			for _, elem := range arr {
				if reflect.DeepEqual(elem, fv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders the scalar types the engine sorts by: strings,
// numbers and timestamps. Missing values sort first.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	case primitive.DateTime:
		bv, _ := b.(primitive.DateTime)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	default:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if aok && bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
