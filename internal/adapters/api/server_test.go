package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/perfmon/internal/app/analysis"
	"github.com/ghalamif/perfmon/internal/app/stats"
	"github.com/ghalamif/perfmon/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	mu      sync.Mutex
	latest  *domain.Sample
	records []domain.Record
	err     error
	info    *domain.HardwareInfo
	infoErr error
}

func (f *fakeSource) Latest() (domain.Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return domain.Sample{}, false
	}
	return *f.latest, true
}

func (f *fakeSource) set(s domain.Sample) {
	f.mu.Lock()
	f.latest = &s
	f.mu.Unlock()
}

func (f *fakeSource) Stats() stats.Summary {
	return stats.NewAggregator(domain.Sample{CPUUsage: 10}, domain.Sample{CPUUsage: 30}).Summary(domain.DefaultThresholds())
}
func (f *fakeSource) Trends() analysis.Trends {
	return analysis.New(nil).Trends(domain.DefaultThresholds())
}
func (f *fakeSource) History() []domain.Sample      { return []domain.Sample{{CPUUsage: 1}} }
func (f *fakeSource) Thresholds() domain.Thresholds { return domain.DefaultThresholds() }
func (f *fakeSource) AbnormalRecords(context.Context) ([]domain.Record, error) {
	return f.records, f.err
}
func (f *fakeSource) HardwareInfo(context.Context) (domain.HardwareInfo, error) {
	if f.info == nil {
		return domain.HardwareInfo{}, domain.ErrHardwareInfoUnavailable
	}
	return *f.info, f.infoErr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(rec, req)
	return rec
}

func TestLatestNoContentBeforeFirstSample(t *testing.T) {
	src := &fakeSource{}
	h := NewServer(Config{}, src, nil).Handler()

	if rec := get(t, h, "/api/v1/latest"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	ts := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	src.set(domain.Sample{Timestamp: ts, CPUUsage: 33.5})
	rec := get(t, h, "/api/v1/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got domain.Sample
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CPUUsage != 33.5 || !got.Timestamp.Equal(ts) {
		t.Fatalf("unexpected sample %+v", got)
	}
}

func TestStatsAndTrends(t *testing.T) {
	h := NewServer(Config{}, &fakeSource{}, nil).Handler()

	rec := get(t, h, "/api/v1/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", rec.Code)
	}
	var sum stats.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if sum.Count != 2 || sum.Metrics["cpu"].Average != 20 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	rec = get(t, h, "/api/v1/trends")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cpu_load_rising":false`) {
		t.Fatalf("unexpected trends response %d %s", rec.Code, rec.Body.String())
	}
}

func TestAbnormalEndpoint(t *testing.T) {
	src := &fakeSource{records: []domain.Record{{ID: 1}, {ID: 2}, {ID: 3}}}
	h := NewServer(Config{}, src, nil).Handler()

	rec := get(t, h, "/api/v1/abnormal?limit=2")
	var recs []domain.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != 2 {
		t.Fatalf("expected the two newest records, got %+v", recs)
	}

	if rec := get(t, h, "/api/v1/abnormal?limit=x"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	src.err = errors.New("store closed")
	if rec := get(t, h, "/api/v1/abnormal"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := NewServer(Config{RateLimit: 1, Burst: 1}, &fakeSource{}, nil).Handler()

	if rec := get(t, h, "/api/v1/thresholds"); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	if rec := get(t, h, "/api/v1/thresholds"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz must not be rate limited, got %d", rec.Code)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(10 * time.Minute)
	rl.allow("10.0.0.2")
	rl.sweep()

	if rl.clients() != 1 {
		t.Fatalf("expected idle limiter to be swept, have %d", rl.clients())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "perfmon_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := NewServer(Config{}, &fakeSource{}, nil, WithGatherer(reg)).Handler()
	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "perfmon_test_total 1") {
		t.Fatalf("unexpected metrics output: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStreamPushesLatestSample(t *testing.T) {
	src := &fakeSource{}
	s := NewServer(Config{Refresh: 5 * time.Millisecond}, src, nil, WithGatherer(prometheus.NewRegistry()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := s.Serve(ln); err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer s.Shutdown(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	src.set(domain.Sample{Timestamp: time.Now(), DiskUsage: 77})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got domain.Sample
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DiskUsage != 77 {
		t.Fatalf("unexpected pushed sample %+v", got)
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	s := NewServer(Config{}, &fakeSource{}, nil)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestHardwareEndpoint(t *testing.T) {
	if rec := get(t, NewServer(Config{}, &fakeSource{}, nil).Handler(), "/api/v1/hardware"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when the source has no hardware info, got %d", rec.Code)
	}

	info := domain.HardwareInfo{CPUModel: "AMD Ryzen 7 5800X"}.Complete()
	rec := get(t, NewServer(Config{}, &fakeSource{info: &info}, nil).Handler(), "/api/v1/hardware")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got domain.HardwareInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CPUBrand != "AMD" || got.CPUSeries != "Ryzen" || got.CPUCores != 8 {
		t.Fatalf("unexpected hardware info %+v", got)
	}

	broken := &fakeSource{info: &info, infoErr: errors.New("cpuinfo unreadable")}
	if rec := get(t, NewServer(Config{}, broken, nil).Handler(), "/api/v1/hardware"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
