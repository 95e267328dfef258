package fetch

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/fleetops/tracker/pkg/models"
)

// mapQueryRe extracts the LAT,LNG pair out of a Google Maps share href of
// the form maps.google.com/maps?q=LAT,LNG (§4.2 step "scan for map-query
// links").
var mapQueryRe = regexp.MustCompile(`maps\.google\.com/maps\?q=(-?\d{1,3}\.\d+),(-?\d{1,3}\.\d+)`)

// extractMapQueryLinks walks the page DOM looking for anchor hrefs
// matching a Google Maps query link, in document order.
func extractMapQueryLinks(pageHTML string) []models.Point {
	var points []models.Point
	walkNodes(pageHTML, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		for _, attr := range n.Attr {
			if attr.Key != "href" {
				continue
			}
			m := mapQueryRe.FindStringSubmatch(attr.Val)
			if m == nil {
				continue
			}
			lat, err1 := strconv.ParseFloat(m[1], 64)
			lng, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil {
				continue
			}
			points = append(points, models.Point{Lat: lat, Lng: lng})
		}
	})
	return points
}

// scriptBodies collects every inline <script> element's text content, in
// document order.
func scriptBodies(pageHTML string) []string {
	var bodies []string
	walkNodes(pageHTML, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		bodies = append(bodies, sb.String())
	})
	return bodies
}

// walkNodes parses pageHTML and calls visit on every node in the tree, in
// document order. Malformed HTML is tolerated the way html.Parse tolerates
// it — it never errors on real-world markup.
func walkNodes(pageHTML string, visit func(*html.Node)) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return
	}
	var stack []*html.Node
	stack = append(stack, doc)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			stack = append(stack, c)
		}
	}
}

func tagSource(points []models.Point, src models.SourceTag) {
	for i := range points {
		points[i].Source = src
	}
}
