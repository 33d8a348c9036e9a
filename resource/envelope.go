// ABOUTME: Envelope normalization for backend list and object responses.
// ABOUTME: Maps bare arrays, keyed objects, and {data, pagination} pages to one item slice.
package resource

import (
	"strings"

	"github.com/tidwall/gjson"
)

// List is the canonical shape of every collection read.
type List[T any] struct {
	Items []T `json:"items"`
	// Total is the server-reported total when the response was paginated.
	Total     *int      `json:"total,omitempty"`
	Freshness Freshness `json:"-"`
}

// Count returns the server-reported total when known, else the number of items.
func (l List[T]) Count() int {
	if l.Total != nil {
		return *l.Total
	}
	return len(l.Items)
}

// Page selects a window of a paginated collection. Zero fields are omitted.
type Page struct {
	Page  int
	Limit int
}

// splitEnvelope extracts the item array from payload. Accepted shapes:
//
//	[...]
//	{"<key>": [...]}
//	{"data": [...], "pagination": {"total": n}}
//	{"data": {"<key>": [...]}}
//
// Anything else, including an empty body, yields no items.
func splitEnvelope(payload []byte, key string) ([]gjson.Result, *int) {
	if len(payload) == 0 {
		return nil, nil
	}
	root := gjson.ParseBytes(payload)
	if root.IsArray() {
		return root.Array(), nil
	}
	if !root.IsObject() {
		return nil, nil
	}

	var items gjson.Result
	for _, path := range []string{key, "data", "data." + key, "items", "results"} {
		if r := root.Get(path); r.IsArray() {
			items = r
			break
		}
	}
	return items.Array(), totalOf(root)
}

func totalOf(root gjson.Result) *int {
	for _, path := range []string{"pagination.total", "total", "meta.total", "count"} {
		if r := root.Get(path); r.Type == gjson.Number {
			n := int(r.Int())
			return &n
		}
	}
	return nil
}

// unwrapObject returns the object stored under key, or the root itself when
// the response is the bare object.
func unwrapObject(payload []byte, key string) gjson.Result {
	root := gjson.ParseBytes(payload)
	for _, path := range []string{key, "data." + key, "data"} {
		if r := root.Get(path); r.IsObject() {
			return r
		}
	}
	return root
}

// firstString returns the first non-empty value among paths, rendered as a
// string so numeric ids survive.
func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := r.Get(p)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}

func stringOr(r gjson.Result, def string, paths ...string) string {
	if s := firstString(r, paths...); s != "" {
		return s
	}
	return def
}

func stringSlice(r gjson.Result) []string {
	if !r.IsArray() {
		return []string{}
	}
	out := make([]string, 0, len(r.Array()))
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func rawOf(r gjson.Result) []byte {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	return []byte(strings.Clone(r.Raw))
}

func decodeAll[T any](items []gjson.Result, decode func(gjson.Result) T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, decode(it))
	}
	return out
}
