// Package task models the host's per-request task descriptor.
//
// The host owns the record and hands the plugin a reference right before the
// task is enqueued. Every lookup here falls back to a zero value so a missing
// or oddly typed field never aborts an enqueue.
package task

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Well-known descriptor keys.
const (
	KeyMode           = "mode"
	KeyLastVideo      = "last_video"
	KeyTaskType       = "task_type"
	KeyPrompt         = "prompt"
	KeyNegativePrompt = "negative_prompt"
)

// Descriptor is the string-keyed task record supplied by the host.
type Descriptor map[string]any

// String returns the value under key as text. Missing and nil values yield "".
// Non-string values are rendered with fmt.Sprint.
func (d Descriptor) String(key string) string {
	raw, ok := d[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Bool reports whether the value under key is truthy. Strings are parsed with
// strconv.ParseBool and otherwise count as true when non-empty. Slices, maps
// and arrays are truthy when non-empty; any other value is true.
func (d Descriptor) Bool(key string) bool {
	raw, ok := d[key]
	if !ok || raw == nil {
		return false
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
		return trimmed != ""
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case uint:
		return v != 0
	case uint64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	default:
		switch rv := reflect.ValueOf(v); rv.Kind() {
		case reflect.Slice, reflect.Map, reflect.Array:
			return rv.Len() > 0
		}
		return true
	}
}

// Set stores value under key.
func (d Descriptor) Set(key string, value any) {
	d[key] = value
}

// Prepend rewrites key as prefix + "\n" + the current text.
func (d Descriptor) Prepend(key, prefix string) {
	d.Set(key, prefix+"\n"+d.String(key))
}

// Clone returns a shallow copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	clone := make(Descriptor, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}
