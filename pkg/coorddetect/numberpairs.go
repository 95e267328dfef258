package coorddetect

import "github.com/fleetops/tracker/pkg/models"

// detectNumberPairs matches two-decimal-or-better number pairs separated
// by comma, whitespace, or pipe. If the pair isn't valid as (lat, lng) but
// is valid when swapped, it swaps (§4.1 strategy 2).
func detectNumberPairs(text string) []models.Point {
	locs := numberPairRe.FindAllStringSubmatchIndex(text, -1)
	var out []models.Point
	for _, loc := range locs {
		a, ok1 := parseFloat(text[loc[2]:loc[3]])
		b, ok2 := parseFloat(text[loc[4]:loc[5]])
		if !ok1 || !ok2 {
			continue
		}
		lat, lng := a, b
		if !valid(lat, lng) && valid(b, a) {
			lat, lng = b, a
		}
		if !valid(lat, lng) {
			continue
		}
		p := models.Point{Lat: lat, Lng: lng, Source: models.SourceDOM}
		enrich(text, loc[0], &p)
		out = append(out, p)
	}
	return out
}
