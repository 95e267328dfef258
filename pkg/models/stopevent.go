package models

import "time"

// StopEvent is the Stop Detector's output for a trip it classifies as
// stopped and not yet debounced (§4.5).
type StopEvent struct {
	TripID         string
	Trip           *Trip
	StoppedMinutes int
	Threshold      int
	LastLat        float64
	LastLng        float64
	LastCoordTime  time.Time
	CoordCount     int
}
