package templates

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aymerick/raymond"
)

const defaultJoinSeparator = ", "

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006/01/02",
	"01/02/2006",
	"January 2006",
	"Jan 2006",
	"2006",
}

func helpers() map[string]interface{} {
	return map[string]interface{}{
		"each_with_index": eachWithIndex,
		"date_format":     dateFormat,
		"if_eq":           ifEq,
		"join":            join,
	}
}

// eachWithIndex renders the block once per element, exposing the position as @index.
func eachWithIndex(items interface{}, options *raymond.Options) raymond.SafeString {
	v := reflect.ValueOf(items)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return ""
	}
	var b strings.Builder
	for i := 0; i < v.Len(); i++ {
		frame := options.NewDataFrame()
		frame.Set("index", i)
		b.WriteString(options.FnCtxData(v.Index(i).Interface(), frame))
	}
	return raymond.SafeString(b.String())
}

// dateFormat renders a date as "Jan 2006". An empty value means the role is ongoing.
func dateFormat(value interface{}) string {
	if value == nil {
		return "Present"
	}
	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return "Present"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2006")
		}
	}
	return s
}

func ifEq(a, b interface{}, options *raymond.Options) raymond.SafeString {
	if sameValue(a, b) {
		return raymond.SafeString(options.Fn())
	}
	return raymond.SafeString(options.Inverse())
}

// join concatenates list elements. An empty separator falls back to ", ".
func join(items interface{}, sep string) string {
	v := reflect.ValueOf(items)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return ""
	}
	if sep == "" {
		sep = defaultJoinSeparator
	}
	parts := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		parts = append(parts, raymond.Str(v.Index(i).Interface()))
	}
	return strings.Join(parts, sep)
}

// sameValue compares strictly by type, except that numbers compare by value
// since JSON numbers decode as float64 and template literals as int.
func sameValue(a, b interface{}) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
