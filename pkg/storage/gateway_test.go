package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBridge(t *testing.T, loginCount *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		loginCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"fake-token"}`))
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer fake-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Fields":{"id":{"Value":"1","Type":"string"}}}]`))
	})
	mux.HandleFunc("/insert", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":"42"}`))
	})
	return httptest.NewServer(mux)
}

func TestGateway_QueryAutoLoginsOnce(t *testing.T) {
	var loginCount atomic.Int32
	srv := fakeBridge(t, &loginCount)
	defer srv.Close()

	gw := New(srv.URL, "user", "pass")
	rows, err := gw.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0]["id"])
	assert.Equal(t, int32(1), loginCount.Load())
}

func TestGateway_SingleFlightRefresh(t *testing.T) {
	var loginCount atomic.Int32
	srv := fakeBridge(t, &loginCount)
	defer srv.Close()

	gw := New(srv.URL, "user", "pass")

	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, _ = gw.Query(context.Background(), "SELECT 1")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, int32(1), loginCount.Load())
}

func TestGateway_Insert(t *testing.T) {
	var loginCount atomic.Int32
	srv := fakeBridge(t, &loginCount)
	defer srv.Close()

	gw := New(srv.URL, "user", "pass")
	env, err := gw.Insert(context.Background(), "coordinates", map[string]any{"lat": 20.6})
	require.NoError(t, err)
	assert.Equal(t, "42", env.ID)
}

func TestDecodeLoginResponse_Shapes(t *testing.T) {
	tok, err := decodeLoginResponse([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = decodeLoginResponse([]byte(`{"Token":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = decodeLoginResponse([]byte(`"abc"`))
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestWrapFields_TypeDetection(t *testing.T) {
	wrapped := wrapFields(map[string]any{"active": true, "count": 3, "ratio": 1.5, "name": "x"})
	fields := wrapped["fields"].(map[string]any)

	raw, _ := json.Marshal(fields["active"])
	assert.Contains(t, string(raw), `"type":"boolean"`)
}
