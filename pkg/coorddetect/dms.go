package coorddetect

import (
	"strings"

	"github.com/fleetops/tracker/pkg/models"
)

// detectDMS parses degrees-minutes-seconds coordinates with a directional
// suffix and pairs N/S with E/W in order of occurrence (§4.1 strategy 3).
func detectDMS(text string) []models.Point {
	locs := dmsRe.FindAllStringSubmatchIndex(text, -1)
	type dmsHit struct {
		pos   int
		value float64
		dir   string
	}
	var ns, ew []dmsHit
	for _, loc := range locs {
		deg, ok1 := parseFloat(text[loc[2]:loc[3]])
		min, ok2 := parseFloat(text[loc[4]:loc[5]])
		sec, ok3 := parseFloat(text[loc[6]:loc[7]])
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		dir := strings.ToUpper(text[loc[8]:loc[9]])
		value := deg + min/60 + sec/3600
		if dir == "S" || dir == "W" {
			value = -value
		}
		hit := dmsHit{pos: loc[0], value: value, dir: dir}
		switch dir {
		case "N", "S":
			ns = append(ns, hit)
		case "E", "W":
			ew = append(ew, hit)
		}
	}

	n := len(ns)
	if len(ew) < n {
		n = len(ew)
	}
	out := make([]models.Point, 0, n)
	for i := 0; i < n; i++ {
		lat, lng := ns[i].value, ew[i].value
		if !valid(lat, lng) {
			continue
		}
		p := models.Point{Lat: lat, Lng: lng, Source: models.SourceDOM}
		enrich(text, ns[i].pos, &p)
		out = append(out, p)
	}
	return out
}
