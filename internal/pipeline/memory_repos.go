package pipeline

import (
	"context"
	"sync"
)

// The Memory* repos below are in-process implementations of this package's
// collaborator interfaces, used by tests and by the memory storage driver.
// Grounded on internal/cache.MemoryStore's mutex-guarded-map style.

// MemoryRatePlanRepo is an in-process RatePlanRepo.
type MemoryRatePlanRepo struct {
	mu       sync.RWMutex
	byID     map[string]RatePlan
	byEfl    map[string]string // eflSha256 -> ratePlanID
}

func NewMemoryRatePlanRepo() *MemoryRatePlanRepo {
	return &MemoryRatePlanRepo{byID: make(map[string]RatePlan), byEfl: make(map[string]string)}
}

func (r *MemoryRatePlanRepo) GetByEflSha256(ctx context.Context, eflSha256 string) (RatePlan, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEfl[eflSha256]
	if !ok {
		return RatePlan{}, false, nil
	}
	p, ok := r.byID[id]
	return p, ok, nil
}

func (r *MemoryRatePlanRepo) Upsert(ctx context.Context, plan RatePlan) (RatePlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[plan.ID] = plan
	r.byEfl[plan.EflPdfSha256] = plan.ID
	return plan, nil
}

func (r *MemoryRatePlanRepo) Get(ctx context.Context, ratePlanID string) (RatePlan, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[ratePlanID]
	return p, ok, nil
}

// MemoryOfferMapRepo is an in-process OfferIdRatePlanMapRepo.
type MemoryOfferMapRepo struct {
	mu   sync.RWMutex
	byID map[string]OfferIdRatePlanMap
}

func NewMemoryOfferMapRepo() *MemoryOfferMapRepo {
	return &MemoryOfferMapRepo{byID: make(map[string]OfferIdRatePlanMap)}
}

func (r *MemoryOfferMapRepo) Get(ctx context.Context, offerID string) (OfferIdRatePlanMap, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[offerID]
	return m, ok, nil
}

func (r *MemoryOfferMapRepo) Upsert(ctx context.Context, m OfferIdRatePlanMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.OfferID] = m
	return nil
}

// MemoryJobRepo is an in-process PipelineJobRepo. It keeps only the latest
// snapshot per home, which is all the orchestrator's gating logic needs;
// full history belongs to whichever durable backend wraps this package in
// production.
type MemoryJobRepo struct {
	mu   sync.RWMutex
	byHome map[string]PipelineJob
}

func NewMemoryJobRepo() *MemoryJobRepo {
	return &MemoryJobRepo{byHome: make(map[string]PipelineJob)}
}

func (r *MemoryJobRepo) Latest(ctx context.Context, homeID string) (PipelineJob, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.byHome[homeID]
	return j, ok, nil
}

func (r *MemoryJobRepo) Save(ctx context.Context, job PipelineJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Monotonic by StartedAt (spec §3): never let an older snapshot
	// clobber a newer one for the same home.
	if existing, ok := r.byHome[job.HomeID]; ok && existing.StartedAt.After(job.StartedAt) {
		return nil
	}
	r.byHome[job.HomeID] = job
	return nil
}

// MemoryHouseAddressRepo is an in-process HouseAddressRepo.
type MemoryHouseAddressRepo struct {
	mu   sync.RWMutex
	byID map[string]HouseAddress
}

func NewMemoryHouseAddressRepo() *MemoryHouseAddressRepo {
	return &MemoryHouseAddressRepo{byID: make(map[string]HouseAddress)}
}

func (r *MemoryHouseAddressRepo) Put(addr HouseAddress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[addr.HomeID] = addr
}

func (r *MemoryHouseAddressRepo) Get(ctx context.Context, homeID string) (HouseAddress, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[homeID]
	return a, ok, nil
}

// List enumerates every known home, the source the cron sweep walks over
// when a backend has no better index to page through.
func (r *MemoryHouseAddressRepo) List(ctx context.Context) ([]HouseAddress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HouseAddress, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out, nil
}
