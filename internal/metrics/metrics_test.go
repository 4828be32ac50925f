package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestRecordLogin(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("success")
	c.RecordLogin("success")
	c.RecordLogin("invalid_credentials")

	if v := counterValue(t, reg, "hocusfocus_logins_total", map[string]string{"result": "success"}); v != 2 {
		t.Errorf("logins{success} = %v, want 2", v)
	}
	if v := counterValue(t, reg, "hocusfocus_logins_total", map[string]string{"result": "invalid_credentials"}); v != 1 {
		t.Errorf("logins{invalid_credentials} = %v, want 1", v)
	}
}

func TestRecordAccessDenied(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAccessDenied("document", "update")

	if v := counterValue(t, reg, "hocusfocus_access_denied_total", map[string]string{"resource": "document", "action": "update"}); v != 1 {
		t.Errorf("access_denied = %v, want 1", v)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/documents/{id}", 404, 12*time.Millisecond)

	labels := map[string]string{"method": "GET", "route": "/documents/{id}", "status_code": "404"}
	if v := counterValue(t, reg, "hocusfocus_http_requests_total", labels); v != 1 {
		t.Errorf("http_requests = %v, want 1", v)
	}
}

func TestRecordResetCodesSwept(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordResetCodesSwept(3)
	c.RecordResetCodesSwept(0)

	if v := counterValue(t, reg, "hocusfocus_reset_codes_swept_total", nil); v != 3 {
		t.Errorf("reset_codes_swept = %v, want 3", v)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordResetRequest("sent")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "hocusfocus_password_reset_requests_total") {
		t.Error("response should contain hocusfocus_password_reset_requests_total")
	}
}
