package pipeline

import (
	"context"
	"time"

	"github.com/wattbuy/planengine/internal/estimate"
	"github.com/wattbuy/planengine/internal/queue"
	"github.com/wattbuy/planengine/internal/rates"
)

// EFLFetchResult is the EFL fetch collaborator's result (spec §6).
type EFLFetchResult struct {
	PDFBytes    []byte
	RawText     string
	PDFURL      string
	ContentType string
}

// EFLFetcher is the EFL fetch collaborator boundary (spec §6). Implementations
// carry their own redirect/PDF-sniffing logic; the orchestrator only needs
// bytes or text back within Timeout.
type EFLFetcher interface {
	FetchEFL(ctx context.Context, url string) (EFLFetchResult, error)
}

// OfferSource is the offers-for-a-home collaborator (spec §4.10 step 2): a
// 15-minute TTL cache in front of a live call with its own 12s timeout.
// CachedOfferSource below implements that caching policy around any
// LiveOfferFetcher.
type OfferSource interface {
	FetchOffers(ctx context.Context, homeID string) ([]rates.Offer, error)
}

// LiveOfferFetcher is the uncached live offers call an OfferSource wraps.
type LiveOfferFetcher interface {
	FetchOffersLive(ctx context.Context, homeID string) ([]rates.Offer, error)
}

// BucketsRequest is the usage-buckets collaborator's input (spec §6).
type BucketsRequest struct {
	HomeID             string
	Source             string
	WindowEnd          time.Time
	Cutoff             time.Time
	RequiredBucketKeys []string
	MonthsCount        int
}

// BucketsResult is the usage-buckets collaborator's output (spec §6).
type BucketsResult struct {
	YearMonths          []string
	UsageBucketsByMonth map[string]map[string]float64
	AnnualKwh           float64
}

// UsageBucketsSource is the usage-bucket-build collaborator boundary.
type UsageBucketsSource interface {
	BuildBuckets(ctx context.Context, req BucketsRequest) (BucketsResult, error)
}

// TdspRatesSource is the TDSP-rates collaborator boundary (spec §6).
type TdspRatesSource interface {
	GetTdspRates(ctx context.Context, tdspSlug string, asOf time.Time) (estimate.TdspRates, bool, error)
}

// HouseAddressRepo resolves a home's address fields (spec §6).
type HouseAddressRepo interface {
	Get(ctx context.Context, homeID string) (HouseAddress, bool, error)
}

// HomeLister enumerates every known home. It's a separate, optional
// interface from HouseAddressRepo (not every backend needs to page through
// every home, only the cron sweep does) -- both MemoryHouseAddressRepo and
// GormStorage's Pipeline() accessor satisfy it.
type HomeLister interface {
	List(ctx context.Context) ([]HouseAddress, error)
}

// RatePlanRepo is spec §6's RatePlanRepo: templates plus planCalc fields.
type RatePlanRepo interface {
	GetByEflSha256(ctx context.Context, eflSha256 string) (RatePlan, bool, error)
	Upsert(ctx context.Context, plan RatePlan) (RatePlan, error)
	Get(ctx context.Context, ratePlanID string) (RatePlan, bool, error)
}

// OfferIdRatePlanMapRepo is spec §6's OfferIdRatePlanMapRepo.
type OfferIdRatePlanMapRepo interface {
	Get(ctx context.Context, offerID string) (OfferIdRatePlanMap, bool, error)
	Upsert(ctx context.Context, m OfferIdRatePlanMap) error
}

// PipelineJobRepo is spec §6's PipelineJobRepo: latest-job lookup plus
// monotonic (by StartedAt) snapshot writes.
type PipelineJobRepo interface {
	Latest(ctx context.Context, homeID string) (PipelineJob, bool, error)
	Save(ctx context.Context, job PipelineJob) error
}

// ReviewQueueRepo is spec §6's ReviewQueueRepo -- the same narrow contract
// internal/queue already defines (one of spec §6's repositories).
type ReviewQueueRepo = queue.Repo

// AIDraftParser aliases the rates package's collaborator boundary so
// callers of this package don't need a second import for it.
type AIDraftParser = rates.AIDraftParser
