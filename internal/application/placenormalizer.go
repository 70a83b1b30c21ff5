package application

import (
	"encoding/json"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
)

// maxExtractDepth bounds recursion through envelopes and nested groupings.
const maxExtractDepth = 16

// PlaceNormalizer converts nearby-places response bodies of any supported
// shape into a uniform list of places. It is safe for concurrent use.
type PlaceNormalizer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewPlaceNormalizer creates a PlaceNormalizer.
func NewPlaceNormalizer() *PlaceNormalizer {
	return &PlaceNormalizer{
		md:     newMarkdown(),
		policy: bluemonday.StrictPolicy(),
	}
}

// Normalize decodes a raw response body and extracts places from it. Bodies
// that are not valid JSON are treated as annotated text. It never fails;
// unusable input yields an empty, non-nil list.
func (n *PlaceNormalizer) Normalize(body []byte) []model.Place {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return []model.Place{}
	}

	v, err := decodeOrdered([]byte(trimmed))
	if err != nil {
		return n.finish(n.ParseText(trimmed))
	}
	return n.NormalizeValue(v)
}

// NormalizeValue extracts places from an already decoded JSON value.
func (n *PlaceNormalizer) NormalizeValue(v any) []model.Place {
	return n.finish(n.extract(v, 0))
}

func (n *PlaceNormalizer) finish(places []model.Place) []model.Place {
	places = dedupeByName(places)
	if places == nil {
		return []model.Place{}
	}
	return places
}

func (n *PlaceNormalizer) extract(v any, depth int) []model.Place {
	if depth > maxExtractDepth {
		return nil
	}

	switch p := ClassifyPayload(v).(type) {
	case TextPayload:
		return n.ParseText(p.Text)
	case ArrayPayload:
		return n.placesFromList(p.Items)
	case EnvelopedPayload:
		if places := n.extract(p.Data, depth+1); len(places) > 0 {
			return places
		}
		return n.deepUnion(p.outer, depth)
	case GroupedPayload:
		var places []model.Place
		for _, list := range p.Lists {
			places = append(places, n.placesFromList(list)...)
		}
		if len(places) > 0 {
			return places
		}
		return n.deepUnion(p.object, depth)
	case UnknownPayload:
		if obj, ok := asObject(p.Value); ok {
			return n.deepUnion(obj, depth)
		}
	}
	return nil
}

// placesFromList maps the object entries of list; other entries are dropped.
func (n *PlaceNormalizer) placesFromList(list []any) []model.Place {
	places := make([]model.Place, 0, len(list))
	for _, item := range list {
		if obj, ok := asObject(item); ok {
			places = append(places, n.placeFromObject(obj))
		}
	}
	return places
}

// deepUnion walks every value below v collecting place-like objects and
// parsing strings as annotated text.
func (n *PlaceNormalizer) deepUnion(v any, depth int) []model.Place {
	var places []model.Place
	n.collect(v, depth, &places)
	return dedupeByName(places)
}

func (n *PlaceNormalizer) collect(v any, depth int, out *[]model.Place) {
	if depth > maxExtractDepth {
		return
	}

	switch t := v.(type) {
	case string:
		*out = append(*out, n.ParseText(t)...)
	case []any:
		for _, item := range t {
			n.collect(item, depth+1, out)
		}
	case map[string]any:
		n.collect(objectFromMap(t), depth, out)
	case *jsonObject:
		if looksLikePlace(t) {
			*out = append(*out, n.placeFromObject(t))
			return
		}
		for _, key := range t.keys {
			n.collect(t.fields[key], depth+1, out)
		}
	}
}

// looksLikePlace reports whether obj is a place rather than a named grouping.
// An object holding a list of objects is a grouping even when it has a name.
func looksLikePlace(obj *jsonObject) bool {
	if holdsObjectList(obj) {
		return false
	}
	return firstString(obj, "name", "title", "placeName") != "" ||
		firstString(obj, "address", "vicinity") != ""
}

func holdsObjectList(obj *jsonObject) bool {
	for _, key := range obj.keys {
		list, ok := obj.fields[key].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if _, ok := asObject(item); ok {
				return true
			}
		}
	}
	return false
}

func (n *PlaceNormalizer) placeFromObject(obj *jsonObject) model.Place {
	p := model.Place{
		Name:        n.clean(firstString(obj, "name", "title", "placeName")),
		Address:     n.clean(firstString(obj, "address", "vicinity", "location")),
		Description: n.clean(firstString(obj, "description", "summary", "details")),
		Category:    n.clean(firstString(obj, "category", "type", "kind")),
		Distance:    n.distanceFromObject(obj),
	}

	if minutes, ok := firstFloat(obj, "travelTimeMinutes", "travelTime", "durationMinutes", "walkingMinutes"); ok {
		p.TravelTimeMinutes = &minutes
	}
	if rating, ok := firstFloat(obj, "rating", "score"); ok {
		p.Rating = &rating
	}

	if raw, ok := obj.get("highlights"); ok {
		switch h := raw.(type) {
		case []any:
			for _, item := range h {
				if s := n.clean(scalarString(item)); s != "" {
					p.Highlights = append(p.Highlights, s)
				}
			}
		case string:
			if s := n.clean(h); s != "" {
				p.Highlights = []string{s}
			}
		}
	}

	return p
}

func (n *PlaceNormalizer) distanceFromObject(obj *jsonObject) *model.Distance {
	d := &model.Distance{}

	if raw, ok := obj.get("distance"); ok {
		switch t := raw.(type) {
		case *jsonObject, map[string]any:
			inner, _ := asObject(t)
			if m, ok := firstFloat(inner, "meters", "m"); ok {
				d.Meters = &m
			}
			if km, ok := firstFloat(inner, "km", "kilometers"); ok {
				d.Km = &km
			}
			d.Text = n.clean(firstString(inner, "text", "label"))
		case string:
			if text := n.clean(t); text != "" {
				d = parseDistanceText(text)
			}
		default:
			if m, ok := toFloat(t); ok {
				d.Meters = &m
			}
		}
	}

	if d.Meters == nil {
		if m, ok := firstFloat(obj, "distanceMeters", "distanceInMeters"); ok {
			d.Meters = &m
		}
	}
	if d.Km == nil {
		if km, ok := firstFloat(obj, "distanceKm", "distanceInKm"); ok {
			d.Km = &km
		}
	}
	if d.Text == "" {
		d.Text = n.clean(firstString(obj, "distanceText"))
	}

	if d.IsZero() {
		return nil
	}
	return d
}

// clean strips markup from backend text and trims it. The result is plain
// text; renderers must still escape it.
func (n *PlaceNormalizer) clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(n.policy.Sanitize(s)))
}

// dedupeByName drops later places whose name was already seen. Unnamed places
// are always kept.
func dedupeByName(places []model.Place) []model.Place {
	if len(places) == 0 {
		return places
	}

	seen := make(map[string]struct{}, len(places))
	out := make([]model.Place, 0, len(places))
	for _, p := range places {
		if p.Name != "" {
			if _, dup := seen[p.Name]; dup {
				continue
			}
			seen[p.Name] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}

func firstString(obj *jsonObject, keys ...string) string {
	if obj == nil {
		return ""
	}
	for _, key := range keys {
		if raw, ok := obj.get(key); ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func firstFloat(obj *jsonObject, keys ...string) (float64, bool) {
	if obj == nil {
		return 0, false
	}
	for _, key := range keys {
		if raw, ok := obj.get(key); ok {
			if f, ok := toFloat(raw); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		return firstNumber(t)
	default:
		return 0, false
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
