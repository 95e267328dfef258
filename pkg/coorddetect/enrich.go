package coorddetect

import (
	"regexp"

	"github.com/fleetops/tracker/pkg/models"
)

var speedRe = buildEnrichRe(speedKeys)
var headingRe = buildEnrichRe(headingKeys)
var timeRe = buildEnrichRe(timeKeys)

func buildEnrichRe(keys []string) *regexp.Regexp {
	alt := ""
	for i, k := range keys {
		if i > 0 {
			alt += "|"
		}
		alt += regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)"?(?:` + alt + `)"?\s*[:=]\s*"?(-?\d+(?:\.\d+)?)"?`)
}

// enrich attaches the nearest speed/heading/timestamp values found in text
// relative to pos to p (§4.1 "Enrichment").
func enrich(text string, pos int, p *models.Point) {
	if v, ok := nearestFloat(text, speedRe, pos); ok {
		p.Speed = &v
	}
	if v, ok := nearestFloat(text, headingRe, pos); ok {
		p.Heading = &v
	}
	if ts, ok := nearestRaw(text, timeRe, pos); ok {
		p.Timestamp = ts
	}
}

func nearestFloat(text string, re *regexp.Regexp, pos int) (float64, bool) {
	raw, ok := nearestRaw(text, re, pos)
	if !ok {
		return 0, false
	}
	return parseFloat(raw)
}

func nearestRaw(text string, re *regexp.Regexp, pos int) (string, bool) {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	bestDist := -1
	bestStart, bestEnd := 0, 0
	for _, loc := range locs {
		d := loc[0] - pos
		if d < 0 {
			d = -d
		}
		if bestDist == -1 || d < bestDist {
			bestDist = d
			bestStart, bestEnd = loc[2], loc[3]
		}
	}
	if bestDist == -1 || bestDist > 500 {
		return "", false
	}
	return text[bestStart:bestEnd], true
}
