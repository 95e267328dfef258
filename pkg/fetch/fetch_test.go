package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetops/tracker/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatform_Total(t *testing.T) {
	cases := map[string]Platform{
		"https://track.micodus.net/share?access_token=ABCD": PlatformMicodus,
		"https://www.gpswox.com/share/xyz":                  PlatformGPSWox,
		"https://demo.traccar.org/share":                     PlatformTraccar,
		"https://portal.example.com/map":                     PlatformGeneric,
		"":                                                    PlatformGeneric,
	}
	for url, want := range cases {
		assert.Equal(t, want, detectPlatform(url), "url=%q", url)
	}
}

func TestFetchMicodus_HappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/share", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "xyz"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ajax/DevicesAjax.asmx/GetTrackingForShareStatic", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("SID")
		require.NoError(t, err)
		assert.Equal(t, "xyz", cookie.Value)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"d":"{\"lat\":\"20.60814\",\"lng\":\"-103.49088\",\"speed\":\"0.00\",\"course\":\"90\",\"positionTime\":\"2025-01-01 10:00:00\"}"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(5 * time.Second)
	res, err := f.fetchMicodus(context.Background(), srv.URL+"/share?access_token=ABCD1234")
	require.NoError(t, err)
	require.Len(t, res.Coords, 1)

	p := res.Coords[0]
	assert.InDelta(t, 20.60814, p.Lat, 1e-6)
	assert.InDelta(t, -103.49088, p.Lng, 1e-6)
	require.NotNil(t, p.Speed)
	assert.Equal(t, float64(0), *p.Speed)
	require.NotNil(t, p.Heading)
	assert.Equal(t, float64(90), *p.Heading)
	assert.Equal(t, "2025-01-01 10:00:00", p.Timestamp)
	assert.Equal(t, models.SourceHTTPMicodus, res.Source)
}

func TestFetchMicodus_MissingAccessToken(t *testing.T) {
	f := New(5 * time.Second)
	_, err := f.Fetch(context.Background(), "https://track.micodus.net/share")
	assert.Error(t, err)
}

func TestFetchGPSWox_MapQueryLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/share", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<a href="https://maps.google.com/maps?q=20.123456,-103.654321">map</a>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(5 * time.Second)
	res, err := f.fetchGPSWox(context.Background(), srv.URL+"/share?gpswox=1")
	require.NoError(t, err)
	require.Len(t, res.Coords, 1)
	assert.InDelta(t, 20.123456, res.Coords[0].Lat, 1e-6)
}

func TestFetchGeneric_ScriptBody(t *testing.T) {
	script := `var pos = {"lat": 19.432608, "lng": -99.133209};`
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><script>" + script + "</script></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.Len(t, res.Coords, 1)
	assert.InDelta(t, 19.432608, res.Coords[0].Lat, 1e-6)
	assert.Equal(t, PlatformGeneric, res.Platform)
}

func TestFetchGeneric_NoCoordsYieldsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>no coords here</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Empty(t, res.Coords)
}
