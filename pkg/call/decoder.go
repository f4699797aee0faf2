package call

import (
	"reflect"
)

// Decoder turns a Response into a model. ok == false means the decoder does
// not apply to this response/hint pair. Decoders must not modify resp.
type Decoder interface {
	Decode(resp *Response, hint DecodingHint) (value any, ok bool, err error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(resp *Response, hint DecodingHint) (any, bool, error)

func (f DecoderFunc) Decode(resp *Response, hint DecodingHint) (any, bool, error) {
	return f(resp, hint)
}

// Decoders is an ordered decoder chain. The first decoder producing a non-nil
// value wins.
type Decoders struct {
	list []Decoder
}

// NewDecoders builds a chain. It panics on a nil decoder.
func NewDecoders(ds ...Decoder) *Decoders {
	c := &Decoders{}
	for _, d := range ds {
		c.Register(d)
	}
	return c
}

// Register appends d.
func (c *Decoders) Register(d Decoder) {
	if d == nil || isNil(d) {
		invalidArgument("decoder", "must not be nil")
	}
	c.list = append(c.list, d)
}

func (c *Decoders) Len() int { return len(c.list) }

// Decode runs the chain for hint. A zero hint decodes nothing.
func (c *Decoders) Decode(resp *Response, hint DecodingHint) (any, error) {
	if hint.IsZero() {
		return nil, nil
	}
	var (
		found   any
		lastErr error
	)
	for _, d := range c.list {
		v, ok, err := d.Decode(resp, hint)
		if err != nil {
			lastErr = err
			continue
		}
		if ok && !isNil(v) {
			found = v
			break
		}
	}
	if found == nil {
		return nil, &DecodeError{Expected: hint.Type, Cause: lastErr}
	}
	if !hint.Accepts(found) {
		return nil, &DecodeError{Expected: hint.Type, Got: reflect.TypeOf(found)}
	}
	return found, nil
}
