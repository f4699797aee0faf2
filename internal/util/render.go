package util

// Renderer is the subset of env.Env needed to render nested config values.
type Renderer interface {
	Process(s string) string
}

// RenderAnyTemplate walks arbitrary structures (map[string]any, []any) and renders
// all string values with r. Non-string scalars are returned unchanged; maps and
// slices are copied.
func RenderAnyTemplate(in interface{}, r Renderer) interface{} {
	var fn func(v interface{}) interface{}
	fn = func(v interface{}) interface{} {
		switch t := v.(type) {
		case map[string]interface{}:
			m := make(map[string]interface{}, len(t))
			for k, vv := range t {
				m[k] = fn(vv)
			}
			return m
		case []interface{}:
			arr := make([]interface{}, len(t))
			for i := range t {
				arr[i] = fn(t[i])
			}
			return arr
		case []string:
			arr := make([]string, len(t))
			for i := range t {
				arr[i] = fn(t[i]).(string)
			}
			return arr
		case string:
			if r == nil || !HasTemplate(t) {
				return t
			}
			return r.Process(t)
		default:
			return v
		}
	}
	return fn(in)
}
