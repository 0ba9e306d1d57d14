package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NormalizeQueryParams projects a parameter map onto its canonical string
// form. Two maps that differ only in key order, string casing/padding or the
// order of array elements produce the same string. Nil, empty-string and
// empty-collection entries are dropped. Nested maps are flattened with dotted
// keys so {"filters": {"category": "x"}} and {"filters.category": "x"} agree.
func NormalizeQueryParams(params map[string]interface{}) string {
	flat := make(map[string]string, len(params))
	for k, v := range params {
		flattenParam(flat, strings.TrimSpace(k), reflect.ValueOf(v))
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(flat[k]))
	}
	return strings.Join(parts, "&")
}

// HashQueryKey returns the hex MD5 digest of a canonical key.
func HashQueryKey(canonical string) string {
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// BuildCacheKey returns "<prefix>:<namespace>:<md5(canonical params)>".
func BuildCacheKey(prefix, namespace string, params map[string]interface{}) string {
	return fmt.Sprintf("%s:%s:%s", prefix, namespace, HashQueryKey(NormalizeQueryParams(params)))
}

func flattenParam(out map[string]string, key string, v reflect.Value) {
	if key == "" {
		return
	}
	v, ok := indirect(v)
	if !ok {
		return
	}

	if t, isTime := v.Interface().(time.Time); isTime {
		if !t.IsZero() {
			out[key] = t.UTC().Format(time.RFC3339Nano)
		}
		return
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			flattenParam(out, key+"."+strings.TrimSpace(iter.Key().String()), iter.Value())
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			if s := normalizeString(string(v.Bytes())); s != "" {
				out[key] = s
			}
			return
		}
		items := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if s, ok := scalarString(v.Index(i)); ok && s != "" {
				items = append(items, s)
			}
		}
		if len(items) == 0 {
			return
		}
		sort.Strings(items)
		out[key] = strings.Join(items, ",")
	default:
		if s, ok := scalarString(v); ok && s != "" {
			out[key] = s
		}
	}
}

func scalarString(v reflect.Value) (string, bool) {
	v, ok := indirect(v)
	if !ok {
		return "", false
	}
	if t, isTime := v.Interface().(time.Time); isTime {
		if t.IsZero() {
			return "", false
		}
		return t.UTC().Format(time.RFC3339Nano), true
	}

	switch v.Kind() {
	case reflect.String:
		return normalizeString(v.String()), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	default:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return normalizeString(s.String()), true
		}
		return "", false
	}
}

// indirect unwraps interfaces and pointers, reporting false for nil.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

func normalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
