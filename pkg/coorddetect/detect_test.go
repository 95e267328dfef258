package coorddetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_KeyedJSON(t *testing.T) {
	text := `{"lat":"20.60814","lng":"-103.49088","speed":"0.00","course":"90"}`
	points := Detect(text)
	require.Len(t, points, 1)
	assert.InDelta(t, 20.60814, points[0].Lat, 1e-6)
	assert.InDelta(t, -103.49088, points[0].Lng, 1e-6)
	require.NotNil(t, points[0].Speed)
	assert.InDelta(t, 0.0, *points[0].Speed, 1e-6)
	require.NotNil(t, points[0].Heading)
	assert.InDelta(t, 90.0, *points[0].Heading, 1e-6)
}

func TestDetect_NullIslandRejected(t *testing.T) {
	text := `{"lat":0.0,"lng":0.0}`
	assert.Empty(t, Detect(text))
}

func TestDetect_NumberPairSwap(t *testing.T) {
	// first-as-lat invalid (>90), first-as-lng valid -> swap
	text := `-103.49088, 20.60814`
	points := Detect(text)
	require.Len(t, points, 1)
	assert.InDelta(t, 20.60814, points[0].Lat, 1e-6)
	assert.InDelta(t, -103.49088, points[0].Lng, 1e-6)
}

func TestDetect_Dedupe(t *testing.T) {
	text := `"lat":20.608140,"lng":-103.490880 ... "lat":20.608140,"lng":-103.490880`
	points := Detect(text)
	assert.Len(t, points, 1)
}

func TestDetect_Idempotent(t *testing.T) {
	text := `"lat":19.432608,"lng":-99.133209`
	first := Detect(text)
	require.Len(t, first, 1)

	reserialized := `{"lat":19.432608,"lng":-99.133209}`
	second := Detect(reserialized)
	require.Len(t, second, 1)
	assert.InDelta(t, first[0].Lat, second[0].Lat, 1e-6)
	assert.InDelta(t, first[0].Lng, second[0].Lng, 1e-6)
}

func TestDetect_MalformedInputYieldsEmpty(t *testing.T) {
	assert.Empty(t, Detect(""))
	assert.Empty(t, Detect("not a coordinate at all"))
	assert.Empty(t, Detect(`{"lat": "not-a-number", "lng": "also-not"}`))
}

func TestDetectObject_TwoElementArray(t *testing.T) {
	points := DetectObject([]any{20.60814, -103.49088})
	require.Len(t, points, 1)
	assert.InDelta(t, 20.60814, points[0].Lat, 1e-6)
}

func TestDetectObject_KeyedNested(t *testing.T) {
	obj := map[string]any{
		"device": map[string]any{
			"Lat": 20.60814,
			"Lng": -103.49088,
		},
	}
	points := DetectObject(obj)
	require.Len(t, points, 1)
	assert.InDelta(t, 20.60814, points[0].Lat, 1e-6)
}

func TestDetectDMS(t *testing.T) {
	text := `20 36' 29.3" N 103 29' 27.2" W`
	points := detectDMS(text)
	require.Len(t, points, 1)
	assert.InDelta(t, 20.6081, points[0].Lat, 1e-3)
	assert.InDelta(t, -103.4909, points[0].Lng, 1e-3)
}
