package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/wattbuy/planengine/internal/estimate"
	"github.com/wattbuy/planengine/internal/rates"
)

// HTTPEFLFetcher is the live EFLFetcher (spec §6): a plain GET against the
// offer's EflURL, sniffing for a PDF magic number so callers know whether to
// route the body through rates.ExtractPDFText or treat it as already-text.
// Grounded on the teacher's rates.NewHTTPClient client-with-timeout style.
type HTTPEFLFetcher struct {
	Client *http.Client
}

// NewHTTPEFLFetcher builds an HTTPEFLFetcher with the teacher's default
// 30s-timeout client.
func NewHTTPEFLFetcher() *HTTPEFLFetcher {
	return &HTTPEFLFetcher{Client: rates.DefaultHTTPClient()}
}

func (f *HTTPEFLFetcher) FetchEFL(ctx context.Context, url string) (EFLFetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EFLFetchResult{}, fmt.Errorf("build efl request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return EFLFetchResult{}, fmt.Errorf("fetch efl: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return EFLFetchResult{}, fmt.Errorf("fetch efl: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EFLFetchResult{}, fmt.Errorf("read efl body: %w", err)
	}
	result := EFLFetchResult{PDFURL: url, ContentType: resp.Header.Get("Content-Type")}
	if bytes.HasPrefix(body, []byte("%PDF")) {
		result.PDFBytes = body
	} else {
		result.RawText = string(body)
	}
	return result, nil
}

// HTTPOfferFetcher is the live LiveOfferFetcher (spec §6): a GET against a
// configured offers service keyed by homeID. CachedOfferSource wraps this
// with the 15-minute TTL the orchestrator requires.
type HTTPOfferFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPOfferFetcher(baseURL string) *HTTPOfferFetcher {
	return &HTTPOfferFetcher{BaseURL: baseURL, Client: rates.DefaultHTTPClient()}
}

func (f *HTTPOfferFetcher) FetchOffersLive(ctx context.Context, homeID string) ([]rates.Offer, error) {
	url := fmt.Sprintf("%s/homes/%s/offers", f.BaseURL, homeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build offers request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch offers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch offers: unexpected status %d", resp.StatusCode)
	}
	var offers []rates.Offer
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	return offers, nil
}

// HTTPUsageBucketsSource is the live UsageBucketsSource (spec §6): a GET
// against a configured usage service that returns the monthly kWh buckets
// the estimator needs, keyed by homeID.
type HTTPUsageBucketsSource struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPUsageBucketsSource(baseURL string) *HTTPUsageBucketsSource {
	return &HTTPUsageBucketsSource{BaseURL: baseURL, Client: rates.DefaultHTTPClient()}
}

func (f *HTTPUsageBucketsSource) BuildBuckets(ctx context.Context, req BucketsRequest) (BucketsResult, error) {
	url := fmt.Sprintf("%s/homes/%s/usage-buckets?months=%d", f.BaseURL, req.HomeID, req.MonthsCount)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return BucketsResult{}, fmt.Errorf("build usage buckets request: %w", err)
	}
	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return BucketsResult{}, fmt.Errorf("fetch usage buckets: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		// No usage yet is a soft condition the orchestrator treats as "not
		// computable yet", not a transport error.
		return BucketsResult{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return BucketsResult{}, fmt.Errorf("fetch usage buckets: unexpected status %d", resp.StatusCode)
	}
	var out BucketsResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return BucketsResult{}, fmt.Errorf("decode usage buckets: %w", err)
	}
	return out, nil
}

// FileTdspRatesSource is the TdspRatesSource (spec §6) backed by a small
// JSON reference file of TDSP delivery-charge schedules, loaded once and
// held in memory -- grounded on the teacher's rates.Config{PDFPaths}
// file-path-driven configuration style, applied here to a rates table
// instead of a PDF path.
type FileTdspRatesSource struct {
	mu    sync.RWMutex
	bySlug map[string]estimate.TdspRates
}

// NewFileTdspRatesSource loads the TDSP rate table from path. A missing or
// empty path yields an always-miss source, which the orchestrator treats as
// "tdsp rates unavailable" (spec §7).
func NewFileTdspRatesSource(path string) (*FileTdspRatesSource, error) {
	s := &FileTdspRatesSource{bySlug: make(map[string]estimate.TdspRates)}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tdsp rates file: %w", err)
	}
	if err := json.Unmarshal(data, &s.bySlug); err != nil {
		return nil, fmt.Errorf("parse tdsp rates file: %w", err)
	}
	return s, nil
}

func (s *FileTdspRatesSource) GetTdspRates(ctx context.Context, tdspSlug string, asOf time.Time) (estimate.TdspRates, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.bySlug[tdspSlug]
	return r, ok, nil
}
