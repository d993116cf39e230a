package statsproxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

type upstreamStub struct {
	hashRate float64
	fail     bool
	srv      *httptest.Server
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()
	u := &upstreamStub{hashRate: 100000}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u.fail {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"pool_statistics": map[string]any{
				"hashRate": u.hashRate,
				"miners":   42,
			},
		})
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func newTestProxy(t *testing.T, upstream *upstreamStub, peakFile string, seed float64) *Proxy {
	t.Helper()
	p, err := New(Options{
		UpstreamURL: upstream.srv.URL,
		PeakFile:    peakFile,
		SeedPeak:    seed,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func get(t *testing.T, p *Proxy) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/xmr-stats", nil))
	var doc map[string]json.RawMessage
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return rec, doc
}

func peakOf(t *testing.T, doc map[string]json.RawMessage) float64 {
	t.Helper()
	var peak float64
	if err := json.Unmarshal(doc["peakHashRate"], &peak); err != nil {
		t.Fatalf("peakHashRate missing: %v", err)
	}
	return peak
}

func TestAnnotatesWithSeededPeak(t *testing.T) {
	u := newUpstreamStub(t)
	p := newTestProxy(t, u, filepath.Join(t.TempDir(), "peak.json"), 500000)

	rec, doc := get(t, p)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := peakOf(t, doc); got != 500000 {
		t.Errorf("peak = %v, want seeded 500000", got)
	}
	if _, ok := doc["pool_statistics"]; !ok {
		t.Errorf("upstream payload not passed through")
	}
}

func TestNewPeakRaisesAndPersists(t *testing.T) {
	u := newUpstreamStub(t)
	u.hashRate = 900000
	peakFile := filepath.Join(t.TempDir(), "peak.json")

	p := newTestProxy(t, u, peakFile, 500000)
	_, doc := get(t, p)
	if got := peakOf(t, doc); got != 900000 {
		t.Errorf("peak = %v, want raised 900000", got)
	}

	// A new instance picks the persisted peak up, even above its seed.
	p2 := newTestProxy(t, u, peakFile, 100)
	if p2.Peak() != 900000 {
		t.Errorf("reloaded peak = %v", p2.Peak())
	}
}

func TestLowerRateNeverLowersPeak(t *testing.T) {
	u := newUpstreamStub(t)
	u.hashRate = 900000
	p := newTestProxy(t, u, filepath.Join(t.TempDir(), "peak.json"), 0)
	get(t, p)

	u.hashRate = 100
	_, doc := get(t, p)
	if got := peakOf(t, doc); got != 900000 {
		t.Errorf("peak = %v, want sticky 900000", got)
	}
}

func TestServesLastGoodOnUpstreamFailure(t *testing.T) {
	u := newUpstreamStub(t)
	p := newTestProxy(t, u, filepath.Join(t.TempDir(), "peak.json"), 0)

	if rec, _ := get(t, p); rec.Code != http.StatusOK {
		t.Fatalf("prime fetch: %d", rec.Code)
	}

	u.fail = true
	rec, doc := get(t, p)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want last-good 200", rec.Code)
	}
	if rec.Header().Get("X-Stats-Stale") != "true" {
		t.Errorf("stale payload not marked")
	}
	if _, ok := doc["pool_statistics"]; !ok {
		t.Errorf("last-good payload lost")
	}
}

func TestConcurrentPeaksPersistHighest(t *testing.T) {
	var served int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&served, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"pool_statistics": map[string]any{"hashRate": float64(n) * 1000},
		})
	}))
	t.Cleanup(srv.Close)

	peakFile := filepath.Join(t.TempDir(), "peak.json")
	p, err := New(Options{UpstreamURL: srv.URL, PeakFile: peakFile})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/xmr-stats", nil))
		}()
	}
	wg.Wait()

	// The file holds the highest observed peak regardless of which request
	// finished last.
	raw, err := os.ReadFile(peakFile)
	if err != nil {
		t.Fatalf("read peak file: %v", err)
	}
	var rec peakRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode peak file: %v", err)
	}
	want := float64(atomic.LoadInt64(&served)) * 1000
	if rec.PeakHashRate != want {
		t.Errorf("persisted peak = %v, want %v", rec.PeakHashRate, want)
	}
	if p.Peak() != want {
		t.Errorf("in-memory peak = %v, want %v", p.Peak(), want)
	}
}

func TestFailsWithoutAnyPayload(t *testing.T) {
	u := newUpstreamStub(t)
	u.fail = true
	p := newTestProxy(t, u, filepath.Join(t.TempDir(), "peak.json"), 0)

	if rec, _ := get(t, p); rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
