package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// GJSONPath accepts either a gjson path ("data.items.0.id") or a simple
// JSONPath expression ("$.data.items[0].id", "$['name']") and returns the
// gjson form.
func GJSONPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "$" || p == "" {
		return "@this"
	}
	if !strings.HasPrefix(p, "$") {
		return p
	}
	p = strings.TrimPrefix(p, "$")
	p = strings.TrimPrefix(p, ".")
	r := strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "", "[", ".", "]", "")
	p = r.Replace(p)
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return "@this"
	}
	return p
}

// LookupJSON evaluates path against body. ok is false when the body is not
// valid JSON or the path does not exist.
func LookupJSON(body []byte, path string) (gjson.Result, bool) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	res := gjson.GetBytes(body, GJSONPath(path))
	return res, res.Exists()
}

// ValueString renders a decoded JSON value the way it would appear in an env
// variable: integral floats without exponent, strings unquoted, composites as JSON.
func ValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		b = bytes.TrimSpace(b)
		if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
			return string(b[1 : len(b)-1])
		}
		return string(b)
	}
}
