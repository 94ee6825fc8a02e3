package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/wattbuy/planengine/internal/cache"
	"github.com/wattbuy/planengine/internal/estimate"
	"github.com/wattbuy/planengine/internal/queue"
	"github.com/wattbuy/planengine/internal/rates"
)

type fakeEFLFetcher struct{ rawText string }

func (f fakeEFLFetcher) FetchEFL(ctx context.Context, url string) (EFLFetchResult, error) {
	return EFLFetchResult{RawText: f.rawText}, nil
}

type fakeLiveOffers struct{ offers []rates.Offer }

func (f fakeLiveOffers) FetchOffersLive(ctx context.Context, homeID string) ([]rates.Offer, error) {
	return f.offers, nil
}

type fakeBuckets struct{ monthlyKwh float64 }

func (f fakeBuckets) BuildBuckets(ctx context.Context, req BucketsRequest) (BucketsResult, error) {
	yms := []string{"2026-01", "2026-02", "2026-03", "2026-04", "2026-05", "2026-06",
		"2026-07", "2026-08", "2026-09", "2026-10", "2026-11", "2026-12"}
	buckets := make(map[string]map[string]float64, 12)
	for _, ym := range yms {
		buckets[ym] = map[string]float64{"kwh.m.all.total": f.monthlyKwh}
	}
	return BucketsResult{YearMonths: yms, UsageBucketsByMonth: buckets, AnnualKwh: f.monthlyKwh * 12}, nil
}

type fakeTdsp struct{}

func (fakeTdsp) GetTdspRates(ctx context.Context, tdspSlug string, asOf time.Time) (estimate.TdspRates, bool, error) {
	return estimate.TdspRates{PerKwhDeliveryChargeCents: 3.87, MonthlyCustomerChargeDollars: 4.39}, true, nil
}

func newTestOrchestrator(rawText string, offers []rates.Offer, monthlyKwh float64) *Orchestrator {
	addrRepo := NewMemoryHouseAddressRepo()
	addrRepo.Put(HouseAddress{HomeID: "home-1", TdspSlug: "oncor"})

	return &Orchestrator{
		CalcVersion:   "v1",
		EngineVersion: "v1",
		Offers:        NewCachedOfferSource(fakeLiveOffers{offers: offers}),
		EFL:           fakeEFLFetcher{rawText: rawText},
		AIParser:      rates.NullAIDraftParser{},
		TdspRates:     fakeTdsp{},
		Buckets:       fakeBuckets{monthlyKwh: monthlyKwh},
		HouseAddresses: addrRepo,
		RatePlans:     NewMemoryRatePlanRepo(),
		OfferMap:      NewMemoryOfferMapRepo(),
		Jobs:          NewMemoryJobRepo(),
		ReviewQueue:   queueRepoForTest(),
		EstimateCache: cache.NewMemoryStore(),
	}
}

func TestOrchestratorRun_FixedPlanEndToEnd(t *testing.T) {
	offers := []rates.Offer{{
		ID: "offer-1", Supplier: "Acme Power", EflURL: "https://example.test/efl.pdf",
		DisclosedAvgPrice500: 12.0, DisclosedAvgPrice1000: 12.0, DisclosedAvgPrice2000: 12.0,
		TdspTerritory: "oncor",
	}}
	o := newTestOrchestrator("Energy Charge 12.0¢ per kWh", offers, 1000)
	clock := time.Now()
	o.Now = func() time.Time { return clock }

	job, err := o.Run(context.Background(), RunInput{HomeID: "home-1", Reason: ReasonDashboardBootstrap, Budgets: DefaultBudgets()})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if job.Status != JobDone {
		t.Fatalf("got status %v, want DONE (lastErr=%s)", job.Status, job.LastError)
	}
	if job.Counts.TemplatesMapped != 1 {
		t.Fatalf("expected 1 template mapped, got %d", job.Counts.TemplatesMapped)
	}
	if job.Counts.EstimatesComputed != 1 {
		t.Fatalf("expected 1 estimate computed, got %+v", job.Counts)
	}

	// Idempotence (spec §8): a second run against identical inputs must
	// short-circuit on the cache and compute nothing new. Every reason
	// honors the first run's cooldown, so the clock moves past it first.
	clock = clock.Add(normalCooldown + time.Minute)
	job2, err := o.Run(context.Background(), RunInput{HomeID: "home-1", Reason: ReasonDashboardBootstrap, Budgets: DefaultBudgets()})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if job2.Counts.EstimatesComputed != 0 {
		t.Fatalf("expected second run to compute 0 new estimates, got %d", job2.Counts.EstimatesComputed)
	}
	if job2.Counts.EstimatesAlreadyCached != 1 {
		t.Fatalf("expected second run to report 1 cached estimate, got %d", job2.Counts.EstimatesAlreadyCached)
	}
}

func TestOrchestratorRun_MissingAddressIsSoftError(t *testing.T) {
	o := newTestOrchestrator("", nil, 1000)
	o.HouseAddresses = NewMemoryHouseAddressRepo() // no address registered

	job, err := o.Run(context.Background(), RunInput{HomeID: "home-unknown", Reason: ReasonDashboardBootstrap, Budgets: DefaultBudgets()})
	if err == nil {
		t.Fatal("expected an error for missing address")
	}
	if job.Status != JobError {
		t.Fatalf("got status %v, want ERROR", job.Status)
	}
}

// queueRepoForTest returns a minimal in-memory queue.Repo for tests that
// don't exercise review-queue assertions directly.
func queueRepoForTest() *memoryQueueRepo {
	return &memoryQueueRepo{items: make(map[string]queue.Item)}
}

type memoryQueueRepo struct {
	items map[string]queue.Item
}

func (r *memoryQueueRepo) Upsert(item queue.Item) error {
	r.items[string(item.Kind)+"|"+item.DedupeKey] = item
	return nil
}

func (r *memoryQueueRepo) Resolve(kind queue.Kind, dedupeKey, resolvedBy string, resolvedAt time.Time) error {
	key := string(kind) + "|" + dedupeKey
	it, ok := r.items[key]
	if !ok {
		return nil
	}
	t := resolvedAt
	it.ResolvedAt = &t
	it.ResolvedBy = resolvedBy
	r.items[key] = it
	return nil
}

func (r *memoryQueueRepo) Get(kind queue.Kind, dedupeKey string) (queue.Item, bool) {
	it, ok := r.items[string(kind)+"|"+dedupeKey]
	return it, ok
}
