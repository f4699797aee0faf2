// Package decode provides the built-in response decoders.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/apiverify/pkg/call"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Default returns the default chain: Text, JSON, YAML.
func Default() []call.Decoder {
	return []call.Decoder{Text{}, JSON{}, YAML{}}
}

var bytesType = reflect.TypeOf([]byte(nil))

// Text decodes into string and []byte models (including named types of
// those kinds).
type Text struct{}

func (Text) Decode(resp *call.Response, hint call.DecodingHint) (any, bool, error) {
	t := hint.Type
	switch {
	case t.Kind() == reflect.String:
		return reflect.ValueOf(string(resp.Body)).Convert(t).Interface(), true, nil
	case t.ConvertibleTo(bytesType) && t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		b := bytes.Clone(resp.Body)
		if b == nil {
			b = []byte{}
		}
		return reflect.ValueOf(b).Convert(t).Interface(), true, nil
	}
	return nil, false, nil
}

// JSON decodes JSON documents. It applies when the content type names JSON or,
// if Strict is false and the content type is absent or generic, when the body
// looks like a JSON object or array.
type JSON struct {
	Strict bool
}

func (d JSON) Decode(resp *call.Response, hint call.DecodingHint) (any, bool, error) {
	if !d.applies(resp) {
		return nil, false, nil
	}
	target := hint.NewTarget()
	if err := json.Unmarshal(resp.Body, target.Interface()); err != nil {
		return nil, false, fmt.Errorf("decode json: %w", err)
	}
	return target.Elem().Interface(), true, nil
}

func (d JSON) applies(resp *call.Response) bool {
	ct := strings.ToLower(resp.ContentType)
	if strings.Contains(ct, "json") {
		return true
	}
	if d.Strict {
		return false
	}
	if ct != "" && !strings.HasPrefix(ct, "text/plain") && !strings.HasPrefix(ct, "application/octet-stream") {
		return false
	}
	return looksLikeJSON(resp.Body)
}

func looksLikeJSON(b []byte) bool {
	t := bytes.TrimSpace(b)
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

// YAML decodes YAML documents served with a yaml content type.
type YAML struct{}

func (YAML) Decode(resp *call.Response, hint call.DecodingHint) (any, bool, error) {
	ct := strings.ToLower(resp.ContentType)
	if !strings.Contains(ct, "yaml") && !strings.Contains(ct, "yml") {
		return nil, false, nil
	}
	target := hint.NewTarget()
	if err := yaml.Unmarshal(resp.Body, target.Interface()); err != nil {
		return nil, false, fmt.Errorf("decode yaml: %w", err)
	}
	return target.Elem().Interface(), true, nil
}

// Path decodes the JSON sub-document selected by a gjson path, e.g.
// "data.user" or "items.0".
type Path struct {
	Expr string
}

func (d Path) Decode(resp *call.Response, hint call.DecodingHint) (any, bool, error) {
	if !gjson.ValidBytes(resp.Body) {
		return nil, false, nil
	}
	res := gjson.GetBytes(resp.Body, d.Expr)
	if !res.Exists() {
		return nil, false, nil
	}
	target := hint.NewTarget()
	if err := json.Unmarshal([]byte(res.Raw), target.Interface()); err != nil {
		return nil, false, fmt.Errorf("decode path %q: %w", d.Expr, err)
	}
	return target.Elem().Interface(), true, nil
}

// Map decodes a JSON document through a generic value with mapstructure, which
// tolerates loosely typed payloads when WeaklyTyped is set (e.g. "42" into an
// int field). Field names come from TagName, "json" by default.
type Map struct {
	WeaklyTyped bool
	TagName     string
}

func (d Map) Decode(resp *call.Response, hint call.DecodingHint) (any, bool, error) {
	if !looksLikeJSON(resp.Body) {
		return nil, false, nil
	}
	var generic any
	if err := json.Unmarshal(resp.Body, &generic); err != nil {
		return nil, false, fmt.Errorf("decode map: %w", err)
	}
	tag := d.TagName
	if tag == "" {
		tag = "json"
	}
	target := hint.NewTarget()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target.Interface(),
		TagName:          tag,
		WeaklyTypedInput: d.WeaklyTyped,
	})
	if err != nil {
		return nil, false, err
	}
	if err := dec.Decode(generic); err != nil {
		return nil, false, fmt.Errorf("decode map: %w", err)
	}
	return target.Elem().Interface(), true, nil
}

// ByName returns the decoder registered under name: text, json, yaml, map,
// or "path:<expr>".
func ByName(name string) (call.Decoder, error) {
	n := strings.TrimSpace(name)
	if expr, ok := strings.CutPrefix(n, "path:"); ok {
		if strings.TrimSpace(expr) == "" {
			return nil, fmt.Errorf("decoder %q: empty path", name)
		}
		return Path{Expr: strings.TrimSpace(expr)}, nil
	}
	switch strings.ToLower(n) {
	case "text":
		return Text{}, nil
	case "json":
		return JSON{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	case "map":
		return Map{WeaklyTyped: true}, nil
	}
	return nil, fmt.Errorf("unknown decoder %q", name)
}
