package coorddetect

import (
	"reflect"
	"strings"

	"github.com/fleetops/tracker/pkg/models"
)

// walkFrame is one entry on the explicit traversal stack used in place of
// recursion (spec Design Note §9: "iterative traversal with an explicit
// depth cap").
type walkFrame struct {
	value any
	depth int
}

// walk performs an iterative, depth-capped traversal of a parsed JSON-like
// structure (maps, slices, scalars) looking for keyed lat/lng fields and
// two-element numeric arrays, emitting matches into out.
func walk(root any, startDepth int, visited map[uintptr]bool, out *[]models.Point) {
	stack := []walkFrame{{value: root, depth: startDepth}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.depth > maxWalkDepth {
			continue
		}

		switch v := frame.value.(type) {
		case map[string]any:
			if !markVisited(v, visited) {
				continue
			}
			if p, ok := objectKeyedPair(v); ok {
				enrichFromObject(v, &p)
				*out = append(*out, p)
			}
			for _, child := range v {
				stack = append(stack, walkFrame{value: child, depth: frame.depth + 1})
			}
		case []any:
			if p, ok := arrayPair(v); ok {
				*out = append(*out, p)
			}
			for _, child := range v {
				stack = append(stack, walkFrame{value: child, depth: frame.depth + 1})
			}
		}
	}
}

// markVisited guards against cycles in maps (which, unlike slices, can
// legitimately self-reference via shared sub-object pointers in decoded
// structures). Returns false if already visited.
func markVisited(m map[string]any, visited map[uintptr]bool) bool {
	ptr := reflect.ValueOf(m).Pointer()
	if visited[ptr] {
		return false
	}
	visited[ptr] = true
	return true
}

func objectKeyedPair(m map[string]any) (models.Point, bool) {
	latVal, latOK := lookupFold(m, latKeys)
	lngVal, lngOK := lookupFold(m, lngKeys)
	if !latOK || !lngOK {
		return models.Point{}, false
	}
	lat, ok1 := toFloat(latVal)
	lng, ok2 := toFloat(lngVal)
	if !ok1 || !ok2 || !valid(lat, lng) {
		return models.Point{}, false
	}
	return models.Point{Lat: lat, Lng: lng, Source: models.SourceGlobals}, true
}

// arrayPair tries a two-element numeric array as (lat, lng), then swapped
// (§4.1 strategy 4).
func arrayPair(a []any) (models.Point, bool) {
	if len(a) != 2 {
		return models.Point{}, false
	}
	x, ok1 := toFloat(a[0])
	y, ok2 := toFloat(a[1])
	if !ok1 || !ok2 {
		return models.Point{}, false
	}
	if valid(x, y) {
		return models.Point{Lat: x, Lng: y, Source: models.SourceGlobals}, true
	}
	if valid(y, x) {
		return models.Point{Lat: y, Lng: x, Source: models.SourceGlobals}, true
	}
	return models.Point{}, false
}

func enrichFromObject(m map[string]any, p *models.Point) {
	if v, ok := lookupFold(m, speedKeys); ok {
		if f, ok := toFloat(v); ok {
			p.Speed = &f
		}
	}
	if v, ok := lookupFold(m, headingKeys); ok {
		if f, ok := toFloat(v); ok {
			p.Heading = &f
		}
	}
	if v, ok := lookupFold(m, timeKeys); ok {
		if s, ok := v.(string); ok {
			p.Timestamp = s
		}
	}
}

func lookupFold(m map[string]any, keys []string) (any, bool) {
	for k, v := range m {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				return v, true
			}
		}
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		return parseFloat(n)
	default:
		return 0, false
	}
}
