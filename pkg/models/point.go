package models

// Point is a single decoded lat/lng pair produced by the Coord Detector,
// before it is attributed to a trip or provider.
type Point struct {
	Lat       float64
	Lng       float64
	Speed     *float64
	Heading   *float64
	Timestamp string
	Source    SourceTag
}
