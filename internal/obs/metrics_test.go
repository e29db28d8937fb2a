package obs

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"recruitcore.io/internal/ids"
)

func TestCanonicalPath(t *testing.T) {
	id := ids.New()
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: "/metrics", want: "/metrics"},
		{in: "/v1/actors/" + id, want: "/v1/actors/:id"},
		{in: "/v1/actors/" + id + "/permissions", want: "/v1/actors/:id/permissions"},
		{in: "/v1/actors/admin/permissions", want: "/v1/actors/admin/permissions"},
		{in: "/v1/permissions?active_only=1", want: "/v1/permissions"},
	}
	for _, tc := range cases {
		if got := CanonicalPath(tc.in); got != tc.want {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/brew", "418"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/brew", "418"))
	if after-before != 1 {
		t.Fatalf("expected one counted request, got %v", after-before)
	}
}

func TestCacheLookupCounter(t *testing.T) {
	before := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("authz", "hit"))
	CacheLookup("authz", "hit")
	if got := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("authz", "hit")); got-before != 1 {
		t.Fatalf("expected hit counter to grow by one, got %v", got-before)
	}
}

func TestInitBuildInfo(t *testing.T) {
	InitBuildInfo("1.2.3", "abc123")
	InitBuildInfo("1.2.3", "abc123")
	got := testutil.ToFloat64(buildInfo.WithLabelValues("1.2.3", "abc123", runtime.Version()))
	if got != 1 {
		t.Fatalf("build info gauge = %v, want 1", got)
	}
}
