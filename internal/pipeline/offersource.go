package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/wattbuy/planengine/internal/rates"
)

// offersCacheTTL and liveOffersTimeout are spec §4.10/§5's offer-fetch
// policy: a 15-minute cache in front of a live call bounded to 12 seconds.
const (
	offersCacheTTL    = 15 * time.Minute
	liveOffersTimeout = 12 * time.Second
)

type offersCacheEntry struct {
	offers    []rates.Offer
	fetchedAt time.Time
}

// CachedOfferSource wraps a LiveOfferFetcher with the 15-minute TTL cache
// spec §4.10 step 2 calls for. When the live call fails and no cache entry
// exists, FetchOffers returns the live error so the orchestrator can abort
// the run gracefully (spec §7: "offers fetch timeout and no cache (abort
// with ERROR snapshot)").
type CachedOfferSource struct {
	live LiveOfferFetcher

	mu    sync.Mutex
	byHome map[string]offersCacheEntry
}

// NewCachedOfferSource builds a CachedOfferSource around a live fetcher.
func NewCachedOfferSource(live LiveOfferFetcher) *CachedOfferSource {
	return &CachedOfferSource{live: live, byHome: make(map[string]offersCacheEntry)}
}

// FetchOffers returns a fresh cache entry if one exists, otherwise attempts
// a live fetch bounded to liveOffersTimeout. On live failure it falls back
// to a stale cache entry (if any) rather than failing the run outright --
// stale offers are still better than none for template mapping, and the
// orchestrator's own cadence controls bound how often this path is hit.
func (c *CachedOfferSource) FetchOffers(ctx context.Context, homeID string) ([]rates.Offer, error) {
	c.mu.Lock()
	entry, ok := c.byHome[homeID]
	c.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < offersCacheTTL {
		return entry.offers, nil
	}

	liveCtx, cancel := context.WithTimeout(ctx, liveOffersTimeout)
	defer cancel()
	offers, err := c.live.FetchOffersLive(liveCtx, homeID)
	if err != nil {
		if ok {
			return entry.offers, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.byHome[homeID] = offersCacheEntry{offers: offers, fetchedAt: time.Now()}
	c.mu.Unlock()
	return offers, nil
}
