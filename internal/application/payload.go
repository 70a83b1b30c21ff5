package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// knownPlaceListKeys are the container keys the amenities endpoint uses for
// candidate place lists, in the order their contents are concatenated.
var knownPlaceListKeys = []string{
	"nearbyPlaces",
	"surroundingPlaces",
	"nearbyAmenities",
	"neighborhoodHighlights",
}

// maxDecodeDepth bounds nesting when decoding response bodies.
const maxDecodeDepth = 64

// Payload is the classified shape of a nearby-places response body. It is one
// of ArrayPayload, EnvelopedPayload, GroupedPayload, TextPayload or
// UnknownPayload.
type Payload interface {
	payload()
}

// ArrayPayload is a bare JSON array of candidate places.
type ArrayPayload struct {
	Items []any
}

// EnvelopedPayload is an object whose object-valued data field holds the real
// payload one level deeper.
type EnvelopedPayload struct {
	Data  any
	outer any
}

// GroupedPayload is an object carrying at least one of the known place-list keys.
type GroupedPayload struct {
	Lists  [][]any
	object any
}

// TextPayload is free-form annotated text.
type TextPayload struct {
	Text string
}

// UnknownPayload is anything else: objects without known keys, numbers,
// booleans and null.
type UnknownPayload struct {
	Value any
}

func (ArrayPayload) payload()     {}
func (EnvelopedPayload) payload() {}
func (GroupedPayload) payload()   {}
func (TextPayload) payload()      {}
func (UnknownPayload) payload()   {}

// ClassifyPayload determines which payload variant v represents. v is a decoded
// JSON value; plain map[string]any objects are accepted and visited in sorted
// key order.
func ClassifyPayload(v any) Payload {
	if m, ok := v.(map[string]any); ok {
		v = objectFromMap(m)
	}

	switch t := v.(type) {
	case string:
		return TextPayload{Text: t}
	case []any:
		return ArrayPayload{Items: t}
	case *jsonObject:
		if data, ok := t.get("data"); ok {
			if inner, ok := asObject(data); ok {
				return EnvelopedPayload{Data: inner, outer: t}
			}
		}

		var lists [][]any
		for _, key := range knownPlaceListKeys {
			if raw, ok := t.get(key); ok {
				if list, ok := raw.([]any); ok {
					lists = append(lists, list)
				}
			}
		}
		if len(lists) > 0 {
			return GroupedPayload{Lists: lists, object: t}
		}
		return UnknownPayload{Value: t}
	default:
		return UnknownPayload{Value: v}
	}
}

// jsonObject is a decoded JSON object that remembers its key order, so that
// "first occurrence wins" follows the document rather than map iteration.
type jsonObject struct {
	keys   []string
	fields map[string]any
}

func newJSONObject() *jsonObject {
	return &jsonObject{fields: make(map[string]any)}
}

func (o *jsonObject) set(key string, v any) {
	if _, exists := o.fields[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
}

func (o *jsonObject) get(key string) (any, bool) {
	v, ok := o.fields[key]
	return v, ok
}

func objectFromMap(m map[string]any) *jsonObject {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := newJSONObject()
	for _, k := range keys {
		obj.set(k, m[k])
	}
	return obj
}

func asObject(v any) (*jsonObject, bool) {
	switch t := v.(type) {
	case *jsonObject:
		return t, true
	case map[string]any:
		return objectFromMap(t), true
	default:
		return nil, false
	}
}

// decodeOrdered decodes a JSON document, keeping object key order. Numbers are
// returned as json.Number.
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (any, error) {
	if depth > maxDecodeDepth {
		return nil, errors.New("JSON nesting too deep")
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := newJSONObject()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			val, err := decodeValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			obj.set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		items := []any{}
		for dec.More() {
			val, err := decodeValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}
