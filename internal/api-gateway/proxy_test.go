package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandler_Routes(t *testing.T) {
	market := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("market:" + r.URL.Path + ":" + r.Header.Get("Authorization")))
	}))
	defer market.Close()
	stream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("stream:" + r.URL.Path))
	}))
	defer stream.Close()

	h, err := Handler(Targets{Market: market.URL, Stream: stream.URL}, zap.NewNop())
	require.NoError(t, err)
	gw := httptest.NewServer(h)
	defer gw.Close()

	get := func(path string, hdr map[string]string) (int, string) {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+path, nil)
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	code, body := get("/api/markets/m1/orderbook", map[string]string{"Authorization": "Bearer x"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "market:/api/markets/m1/orderbook:Bearer x", body)

	_, body = get("/ws", nil)
	assert.Equal(t, "stream:/ws", body)

	code, _ = get("/other", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_UpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	h, err := Handler(Targets{Market: url, Stream: url}, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/resolve", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandler_InvalidTarget(t *testing.T) {
	_, err := Handler(Targets{Market: "not a url", Stream: "http://stream"}, zap.NewNop())
	assert.Error(t, err)
}

func TestCORSPreflight(t *testing.T) {
	h, err := Handler(Targets{Market: "http://market", Stream: "http://stream"}, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/markets/resolve-all", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
