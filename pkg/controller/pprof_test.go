package controller_test

import (
	"net/http"
	"net/http/httptest"
	"pairscan/pkg/controller"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPprofMux(t *testing.T) {
	mux := controller.PprofMux("/debug/pprof")

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "index", path: "/debug/pprof/", want: http.StatusOK},
		{name: "cmdline", path: "/debug/pprof/cmdline", want: http.StatusOK},
		{name: "named profile", path: "/debug/pprof/goroutine?debug=1", want: http.StatusOK},
		{name: "unknown profile", path: "/debug/pprof/nope", want: http.StatusNotFound},
		{name: "outside prefix", path: "/metrics", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://pprof.local"+tt.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Result().StatusCode)
		})
	}
}
