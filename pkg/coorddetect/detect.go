// Package coorddetect extracts GPS coordinate pairs from arbitrary text or
// already-parsed nested structures. It is a pure, stateless library: it
// never mutates its input and never returns an error, only an ordered,
// deduplicated sequence of points.
package coorddetect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fleetops/tracker/pkg/models"
)

// maxWalkDepth bounds the iterative object traversal (spec Design Note §9:
// "iterative traversal with an explicit depth cap").
const maxWalkDepth = 10

// keyed pair of lat/lng property names, matched case-insensitively.
var latKeys = []string{"lat", "latitude", "latitud", "lastlatitude", "flat", "y"}
var lngKeys = []string{"lng", "lon", "long", "longitude", "longitud", "lastlongitude", "flon", "flng", "x"}

var speedKeys = []string{"speed", "velocidad", "vel"}
var headingKeys = []string{"heading", "course", "bearing", "rumbo"}
var timeKeys = []string{"timestamp", "time", "fecha", "datetime", "devicetime", "gpstime", "fecha_gps", "positiontime"}

// numberPairRe matches two decimal numbers (two-or-more decimal places)
// separated by comma, whitespace, or pipe.
var numberPairRe = regexp.MustCompile(`(-?\d{1,3}\.\d{2,})\s*[,|\s]\s*(-?\d{1,3}\.\d{2,})`)

// dmsRe matches a degrees-minutes-seconds coordinate with a directional suffix.
var dmsRe = regexp.MustCompile(`(\d{1,3})[°\s]+(\d{1,2})['\s]+([\d.]+)["\s]*([NSEWnsew])`)

// Detect runs every extraction strategy over text and returns a deduplicated,
// order-preserved sequence of points. It never panics or returns an error:
// malformed input simply yields no points.
func Detect(text string) []models.Point {
	var out []models.Point
	out = append(out, detectKeyedText(text)...)
	out = append(out, detectNumberPairs(text)...)
	out = append(out, detectDMS(text)...)
	return dedupe(out)
}

// DetectObject walks an already-parsed nested structure (as produced by
// encoding/json into map[string]any / []any) and extracts coordinate pairs
// via keyed-field lookup and two-element numeric arrays.
func DetectObject(v any) []models.Point {
	var out []models.Point
	visited := make(map[uintptr]bool)
	walk(v, 0, visited, &out)
	return dedupe(out)
}

// valid enforces the §4.1 validity rule: in-range and not the null-island
// sentinel.
func valid(lat, lng float64) bool {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false
	}
	if absf(lat) < 0.01 && absf(lng) < 0.01 {
		return false
	}
	return true
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func dedupe(points []models.Point) []models.Point {
	seen := make(map[string]bool, len(points))
	out := make([]models.Point, 0, len(points))
	for _, p := range points {
		key := fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
