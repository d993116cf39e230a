// Package statsproxy fronts the mining pool's public stats endpoint. It
// annotates the upstream payload with an all-time peak hashrate persisted
// across restarts, and keeps serving the last good payload when the
// upstream is down.
package statsproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Options configures the proxy.
type Options struct {
	// UpstreamURL is the pool stats endpoint.
	UpstreamURL string

	// PeakFile persists the observed peak hashrate.
	PeakFile string

	// SeedPeak is the starting peak when no file exists yet.
	SeedPeak float64

	// HTTPClient allows injecting a custom HTTP client. Defaults to a
	// client with a 5s timeout; stats are decoration, not worth waiting on.
	HTTPClient *http.Client

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

type peakRecord struct {
	PeakHashRate float64 `json:"peakHashRate"`
	UpdatedAt    string  `json:"updatedAt"`
}

// Proxy serves the annotated stats payload.
type Proxy struct {
	opts Options

	mu       sync.Mutex
	peak     float64
	lastGood []byte
}

// New loads (or seeds) the peak file and returns the proxy.
func New(opts Options) (*Proxy, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &Proxy{opts: opts, peak: opts.SeedPeak}

	raw, err := os.ReadFile(opts.PeakFile)
	switch {
	case err == nil:
		var rec peakRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("statsproxy: corrupt peak file %s: %w", opts.PeakFile, err)
		}
		if rec.PeakHashRate > p.peak {
			p.peak = rec.PeakHashRate
		}
	case os.IsNotExist(err):
		if err := p.persistPeakLocked(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("statsproxy: read peak file: %w", err)
	}
	return p, nil
}

// Peak returns the current all-time peak hashrate.
func (p *Proxy) Peak() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, stale, err := p.fetch(r.Context())
	if err != nil {
		http.Error(w, "stats unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if stale {
		w.Header().Set("X-Stats-Stale", "true")
	}
	w.Write(payload)
}

// fetch returns the annotated payload, falling back to the last good one.
func (p *Proxy) fetch(ctx context.Context) (payload []byte, stale bool, err error) {
	fresh, err := p.fetchUpstream(ctx)
	if err != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.lastGood == nil {
			return nil, false, err
		}
		log.Printf("stats_upstream_failed serving=last_good err=%v", err)
		return p.lastGood, true, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastGood = fresh
	return fresh, false, nil
}

func (p *Proxy) fetchUpstream(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.UpstreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("statsproxy: create request: %w", err)
	}
	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("statsproxy: upstream request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("statsproxy: upstream HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("statsproxy: read upstream: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("statsproxy: invalid upstream JSON: %w", err)
	}

	p.trackPeak(doc)

	annotated, err := json.Marshal(p.annotate(doc))
	if err != nil {
		return nil, fmt.Errorf("statsproxy: marshal annotated payload: %w", err)
	}
	return annotated, nil
}

// trackPeak pulls pool_statistics.hashRate out of the payload and raises
// the persisted peak when exceeded. Missing fields are ignored; the
// annotation then just carries the historical peak.
func (p *Proxy) trackPeak(doc map[string]json.RawMessage) {
	rawStats, ok := doc["pool_statistics"]
	if !ok {
		return
	}
	var stats struct {
		HashRate float64 `json:"hashRate"`
	}
	if err := json.Unmarshal(rawStats, &stats); err != nil {
		return
	}

	// Update and persist under one lock so concurrent new peaks cannot
	// write the file out of order.
	p.mu.Lock()
	defer p.mu.Unlock()
	if stats.HashRate <= p.peak {
		return
	}
	p.peak = stats.HashRate
	if err := p.persistPeakLocked(); err != nil {
		log.Printf("stats_peak_persist_failed err=%v", err)
	} else {
		log.Printf("stats_new_peak hashrate=%.0f", stats.HashRate)
	}
}

func (p *Proxy) annotate(doc map[string]json.RawMessage) map[string]json.RawMessage {
	p.mu.Lock()
	peak := p.peak
	p.mu.Unlock()
	raw, _ := json.Marshal(peak)
	doc["peakHashRate"] = raw
	return doc
}

// persistPeakLocked writes the peak file. Callers hold p.mu (New runs
// before any concurrency and may call it directly).
func (p *Proxy) persistPeakLocked() error {
	rec := peakRecord{
		PeakHashRate: p.peak,
		UpdatedAt:    p.opts.Now().UTC().Format(time.RFC3339),
	}

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("statsproxy: marshal peak: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.opts.PeakFile), 0o755); err != nil {
		return fmt.Errorf("statsproxy: create peak dir: %w", err)
	}
	tmp := p.opts.PeakFile + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("statsproxy: write peak: %w", err)
	}
	if err := os.Rename(tmp, p.opts.PeakFile); err != nil {
		return fmt.Errorf("statsproxy: replace peak: %w", err)
	}
	return nil
}
