package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	httpapi "github.com/radieske/prediction-market-poc/internal/market-service/http"
)

func TestLogging_RecordsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hi"))
	})
	mux.HandleFunc("/upgrade", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Hijacker); !ok {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(httpapi.Logging(zap.New(core))(mux))
	defer srv.Close()

	for _, path := range []string{"/missing", "/ok", "/upgrade"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	entries := logs.FilterMessage("http request").AllUntimed()
	require.Len(t, entries, 3)
	status := map[string]int64{}
	for _, e := range entries {
		f := e.ContextMap()
		status[f["path"].(string)] = f["status"].(int64)
	}
	assert.Equal(t, int64(http.StatusNotFound), status["/missing"])
	assert.Equal(t, int64(http.StatusOK), status["/ok"])
	// websocket precisa do Hijacker por trás do middleware
	assert.Equal(t, int64(http.StatusNoContent), status["/upgrade"])
}
