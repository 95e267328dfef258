package coorddetect

import (
	"regexp"

	"github.com/fleetops/tracker/pkg/models"
)

type keyedMatch struct {
	pos   int
	value float64
	raw   string
}

// buildKeyedRe compiles a single alternation regex over the given key names
// matching `"key": value` or `key=value` shapes, case-insensitively.
func buildKeyedRe(keys []string) *regexp.Regexp {
	alt := ""
	for i, k := range keys {
		if i > 0 {
			alt += "|"
		}
		alt += regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)"?(?:` + alt + `)"?\s*[:=]\s*"?(-?\d+(?:\.\d+)?)"?`)
}

var latRe = buildKeyedRe(latKeys)
var lngRe = buildKeyedRe(lngKeys)

func findKeyed(text string, re *regexp.Regexp) []keyedMatch {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	out := make([]keyedMatch, 0, len(locs))
	for _, loc := range locs {
		raw := text[loc[2]:loc[3]]
		v, ok := parseFloat(raw)
		if !ok {
			continue
		}
		out = append(out, keyedMatch{pos: loc[0], value: v, raw: raw})
	}
	return out
}

// detectKeyedText pairs the nearest lat/lng keyed matches within 500
// characters of each other (§4.1 strategy 1).
func detectKeyedText(text string) []models.Point {
	lats := findKeyed(text, latRe)
	lngs := findKeyed(text, lngRe)
	if len(lats) == 0 || len(lngs) == 0 {
		return nil
	}

	used := make(map[int]bool, len(lngs))
	var out []models.Point
	for _, lat := range lats {
		bestIdx := -1
		bestDist := 501
		for i, lng := range lngs {
			if used[i] {
				continue
			}
			d := lat.pos - lng.pos
			if d < 0 {
				d = -d
			}
			if d <= 500 && d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			continue
		}
		used[bestIdx] = true
		lng := lngs[bestIdx]
		if !valid(lat.value, lng.value) {
			continue
		}
		p := models.Point{Lat: lat.value, Lng: lng.value, Source: models.SourceDOM}
		enrich(text, lat.pos, &p)
		out = append(out, p)
	}

	return out
}
