// Package filter evaluates manifest filter specs against feature attributes.
//
// A spec is a map of conditions that must all hold:
//
//	{"class": "school"}                      equality
//	{"class": ["school", "college"]}         membership
//	{"rank__lte": 3}                         ordered comparison (lte, gte, eq)
//	{"name": {"type": "includes", "value": "Mall"}}  substring or element match
package filter

import (
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type kind int

const (
	kindEqual kind = iota
	kindMember
	kindIncludes
	kindLTE
	kindGTE
	kindEQ
	kindUnsupported
)

type clause struct {
	key   string
	kind  kind
	value any
	list  []any
	raw   string
}

// Spec is a compiled filter. The zero Spec matches every feature.
type Spec struct {
	clauses []clause
}

// Compile normalizes a raw filter map. Map values may come from JSON or from
// BSON decoding; nested documents and arrays of either shape are accepted.
// Unsupported operators are kept and logged, and never match.
func Compile(raw map[string]any, log *slog.Logger) Spec {
	if len(raw) == 0 {
		return Spec{}
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := Spec{clauses: make([]clause, 0, len(raw))}
	for _, k := range keys {
		c := compileClause(k, normalize(raw[k]))
		if c.kind == kindUnsupported && log != nil {
			log.Warn("unsupported filter operator", "key", k, "op", c.raw)
		}
		s.clauses = append(s.clauses, c)
	}
	return s
}

func compileClause(key string, cond any) clause {
	if m, ok := cond.(map[string]any); ok {
		if t, _ := m["type"].(string); t == "includes" {
			c := clause{key: key, kind: kindIncludes, value: m["value"]}
			if l, ok := m["value"].([]any); ok {
				c.list = l
			}
			return c
		}
	}

	if prop, op, ok := strings.Cut(key, "__"); ok {
		c := clause{key: prop, value: cond, raw: op}
		switch op {
		case "lte":
			c.kind = kindLTE
		case "gte":
			c.kind = kindGTE
		case "eq":
			c.kind = kindEQ
		default:
			c.kind = kindUnsupported
		}
		return c
	}

	if l, ok := cond.([]any); ok {
		return clause{key: key, kind: kindMember, list: l}
	}
	return clause{key: key, kind: kindEqual, value: cond}
}

// Match reports whether every clause holds for the feature's attributes.
func (s Spec) Match(f *geojson.Feature) bool {
	if f == nil {
		return false
	}
	for _, c := range s.clauses {
		if !c.match(f.Properties) {
			return false
		}
	}
	return true
}

// Apply returns the features matching s, in order.
func (s Spec) Apply(features []*geojson.Feature) []*geojson.Feature {
	if len(s.clauses) == 0 {
		return features
	}
	out := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if s.Match(f) {
			out = append(out, f)
		}
	}
	return out
}

// Features reports whether f satisfies the raw filter.
func Features(f *geojson.Feature, raw map[string]any, log *slog.Logger) bool {
	return Compile(raw, log).Match(f)
}

func (c clause) match(props geojson.Properties) bool {
	v, present := props[c.key]
	switch c.kind {
	case kindIncludes:
		if !present || v == nil {
			return false
		}
		if len(c.list) > 0 {
			for _, want := range c.list {
				if includes(v, want) {
					return true
				}
			}
			return false
		}
		return includes(v, c.value)
	case kindLTE:
		r, ok := compare(v, c.value)
		return present && ok && r <= 0
	case kindGTE:
		r, ok := compare(v, c.value)
		return present && ok && r >= 0
	case kindEQ, kindEqual:
		return present && equal(v, c.value)
	case kindMember:
		if !present {
			return false
		}
		for _, want := range c.list {
			if equal(v, want) {
				return true
			}
		}
		return false
	}
	return false
}

// includes is substring containment for strings and element membership for
// arrays.
func includes(v, want any) bool {
	switch t := normalize(v).(type) {
	case string:
		w, ok := want.(string)
		return ok && strings.Contains(t, w)
	case []any:
		for _, e := range t {
			if equal(e, want) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	case nil:
		return b == nil
	}
	return false
}

// compare orders numbers numerically and strings lexically. Mixed or other
// types are not comparable.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

// normalize turns BSON containers into plain maps and slices.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case primitive.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case primitive.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case bson.Raw:
		var m map[string]any
		if err := bson.Unmarshal(t, &m); err == nil {
			return normalizeMap(m)
		}
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalize(v)
	}
	return out
}
