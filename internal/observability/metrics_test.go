package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/quizlink/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("host-a", "GET", "/health", 200, 12*time.Millisecond)
	before := testutil.ToFloat64(linkBlocks.WithLabelValues(RoleHost, DirectionOut))
	RecordLinkBlock(RoleHost, DirectionOut)
	RecordLinkMessage(RoleGuest, DirectionIn)
	RecordLinkError(RoleGuest, "framing")
	RecordAnswer(true)
	RecordRound()

	if got := testutil.ToFloat64(linkBlocks.WithLabelValues(RoleHost, DirectionOut)); got != before+1 {
		t.Fatalf("blocks counter got=%v want=%v", got, before+1)
	}
}

func TestRequestMiddlewareRecords(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), RequestMetricsMiddleware("host-test"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusTeapot, "pong") })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("host-test", "GET", "/ping", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("host-test", "GET", "/ping", "418")); got != before+1 {
		t.Fatalf("request counter got=%v want=%v", got, before+1)
	}
}

func TestUnmatchedPathsShareOneLabel(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestMetricsMiddleware("host-unmatched"))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("host-unmatched", "GET", "unmatched", "404"))
	for _, path := range []string{"/a", "/b/c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("host-unmatched", "GET", "unmatched", "404")); got != before+2 {
		t.Fatalf("unmatched counter got=%v want=%v", got, before+2)
	}
}
