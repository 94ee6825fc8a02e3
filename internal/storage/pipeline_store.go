package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wattbuy/planengine/internal/cache"
	"github.com/wattbuy/planengine/internal/computability"
	"github.com/wattbuy/planengine/internal/estimate"
	"github.com/wattbuy/planengine/internal/pipeline"
	"github.com/wattbuy/planengine/internal/queue"
	"github.com/wattbuy/planengine/internal/rates"
)

// GormStorage satisfies pipeline.RatePlanRepo directly. The other
// collaborator interfaces (offer map, job, house address, review queue,
// estimate cache) are met by the adapter types its accessors below return,
// all sharing the one *gorm.DB. Grounded on the teacher's gorm_storage.go
// Upsert-via-clause.OnConflict pattern.

// RatePlanRepo

func (s *GormStorage) GetByEflSha256(ctx context.Context, eflSha256 string) (pipeline.RatePlan, bool, error) {
	var rec RatePlanRecord
	result := s.db.WithContext(ctx).First(&rec, "efl_pdf_sha256 = ?", eflSha256)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return pipeline.RatePlan{}, false, nil
		}
		return pipeline.RatePlan{}, false, result.Error
	}
	plan, err := ratePlanFromRecord(rec)
	return plan, true, err
}

func (s *GormStorage) Get(ctx context.Context, ratePlanID string) (pipeline.RatePlan, bool, error) {
	var rec RatePlanRecord
	result := s.db.WithContext(ctx).First(&rec, "id = ?", ratePlanID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return pipeline.RatePlan{}, false, nil
		}
		return pipeline.RatePlan{}, false, result.Error
	}
	plan, err := ratePlanFromRecord(rec)
	return plan, true, err
}

func (s *GormStorage) Upsert(ctx context.Context, plan pipeline.RatePlan) (pipeline.RatePlan, error) {
	rec, err := ratePlanToRecord(plan)
	if err != nil {
		return pipeline.RatePlan{}, err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	return plan, err
}

func ratePlanToRecord(p pipeline.RatePlan) (RatePlanRecord, error) {
	rs, err := json.Marshal(p.RateStructure)
	if err != nil {
		return RatePlanRecord{}, err
	}
	keys, err := json.Marshal(p.RequiredBucketKeys)
	if err != nil {
		return RatePlanRecord{}, err
	}
	feats, err := json.Marshal(p.SupportedFeatures)
	if err != nil {
		return RatePlanRecord{}, err
	}
	return RatePlanRecord{
		ID:                     p.ID,
		EflPdfSha256:           p.EflPdfSha256,
		EflURL:                 p.EflURL,
		RateStructureJSON:      string(rs),
		PlanCalcVersion:        p.PlanCalcVersion,
		PlanCalcStatus:         string(p.PlanCalcStatus),
		PlanCalcReasonCode:     string(p.PlanCalcReasonCode),
		RequiredBucketKeysJSON: string(keys),
		SupportedFeaturesJSON:  string(feats),
		PlanCalcDerivedAt:      p.PlanCalcDerivedAt,
	}, nil
}

func ratePlanFromRecord(rec RatePlanRecord) (pipeline.RatePlan, error) {
	var rs rates.RateStructure
	if err := json.Unmarshal([]byte(rec.RateStructureJSON), &rs); err != nil {
		return pipeline.RatePlan{}, err
	}
	var keys []string
	if rec.RequiredBucketKeysJSON != "" {
		if err := json.Unmarshal([]byte(rec.RequiredBucketKeysJSON), &keys); err != nil {
			return pipeline.RatePlan{}, err
		}
	}
	feats := map[string]bool{}
	if rec.SupportedFeaturesJSON != "" {
		if err := json.Unmarshal([]byte(rec.SupportedFeaturesJSON), &feats); err != nil {
			return pipeline.RatePlan{}, err
		}
	}
	return pipeline.RatePlan{
		ID:                 rec.ID,
		EflPdfSha256:       rec.EflPdfSha256,
		EflURL:             rec.EflURL,
		RateStructure:      rs,
		PlanCalcVersion:    rec.PlanCalcVersion,
		PlanCalcStatus:     computability.Status(rec.PlanCalcStatus),
		PlanCalcReasonCode: computability.ReasonCode(rec.PlanCalcReasonCode),
		RequiredBucketKeys: keys,
		SupportedFeatures:  feats,
		PlanCalcDerivedAt:  rec.PlanCalcDerivedAt,
	}, nil
}

// OfferIdRatePlanMapRepo

func (s *GormStorage) GetOfferMap(ctx context.Context, offerID string) (pipeline.OfferIdRatePlanMap, bool, error) {
	var rec OfferIdRatePlanMapRecord
	result := s.db.WithContext(ctx).First(&rec, "offer_id = ?", offerID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return pipeline.OfferIdRatePlanMap{}, false, nil
		}
		return pipeline.OfferIdRatePlanMap{}, false, result.Error
	}
	return pipeline.OfferIdRatePlanMap{
		OfferID:      rec.OfferID,
		RatePlanID:   rec.RatePlanID,
		LastLinkedAt: rec.LastLinkedAt,
		LinkedBy:     rec.LinkedBy,
	}, true, nil
}

func (s *GormStorage) UpsertOfferMap(ctx context.Context, m pipeline.OfferIdRatePlanMap) error {
	rec := OfferIdRatePlanMapRecord{
		OfferID:      m.OfferID,
		RatePlanID:   m.RatePlanID,
		LastLinkedAt: m.LastLinkedAt,
		LinkedBy:     m.LinkedBy,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "offer_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

// PipelineJobRepo

func (s *GormStorage) Latest(ctx context.Context, homeID string) (pipeline.PipelineJob, bool, error) {
	var rec PipelineJobRecord
	result := s.db.WithContext(ctx).First(&rec, "home_id = ?", homeID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return pipeline.PipelineJob{}, false, nil
		}
		return pipeline.PipelineJob{}, false, result.Error
	}
	job, err := pipelineJobFromRecord(rec)
	return job, true, err
}

func (s *GormStorage) SaveJob(ctx context.Context, job pipeline.PipelineJob) error {
	var existing PipelineJobRecord
	result := s.db.WithContext(ctx).First(&existing, "home_id = ?", job.HomeID)
	if result.Error == nil && existing.StartedAt.After(job.StartedAt) {
		// Monotonic by StartedAt (spec §3): never let an older snapshot
		// clobber a newer one for the same home.
		return nil
	}
	rec, err := pipelineJobToRecord(job)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "home_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

func pipelineJobToRecord(j pipeline.PipelineJob) (PipelineJobRecord, error) {
	counts, err := json.Marshal(j.Counts)
	if err != nil {
		return PipelineJobRecord{}, err
	}
	return PipelineJobRecord{
		HomeID:            j.HomeID,
		RunID:             j.RunID,
		Status:            string(j.Status),
		Reason:            string(j.Reason),
		CalcVersion:       j.CalcVersion,
		StartedAt:         j.StartedAt,
		FinishedAt:        j.FinishedAt,
		CooldownUntil:     j.CooldownUntil,
		LastCalcWindowEnd: j.LastCalcWindowEnd,
		LastError:         j.LastError,
		CountsJSON:        string(counts),
	}, nil
}

func pipelineJobFromRecord(rec PipelineJobRecord) (pipeline.PipelineJob, error) {
	var counts pipeline.Counts
	if rec.CountsJSON != "" {
		if err := json.Unmarshal([]byte(rec.CountsJSON), &counts); err != nil {
			return pipeline.PipelineJob{}, err
		}
	}
	return pipeline.PipelineJob{
		HomeID:            rec.HomeID,
		RunID:             rec.RunID,
		Status:            pipeline.JobStatus(rec.Status),
		Reason:            pipeline.Reason(rec.Reason),
		CalcVersion:       rec.CalcVersion,
		StartedAt:         rec.StartedAt,
		FinishedAt:        rec.FinishedAt,
		CooldownUntil:     rec.CooldownUntil,
		LastCalcWindowEnd: rec.LastCalcWindowEnd,
		Counts:            counts,
		LastError:         rec.LastError,
	}, nil
}

// HouseAddressRepo

func (s *GormStorage) GetHouseAddress(ctx context.Context, homeID string) (pipeline.HouseAddress, bool, error) {
	var rec HouseAddressRecord
	result := s.db.WithContext(ctx).First(&rec, "home_id = ?", homeID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return pipeline.HouseAddress{}, false, nil
		}
		return pipeline.HouseAddress{}, false, result.Error
	}
	return pipeline.HouseAddress{HomeID: rec.HomeID, TdspSlug: rec.TdspSlug, IsRenter: rec.IsRenter}, true, nil
}

// UpsertHouseAddress isn't part of pipeline.HouseAddressRepo (the pipeline
// only reads addresses), but the onboarding flow that populates this table
// needs a write path.
func (s *GormStorage) UpsertHouseAddress(ctx context.Context, addr pipeline.HouseAddress) error {
	rec := HouseAddressRecord{HomeID: addr.HomeID, TdspSlug: addr.TdspSlug, IsRenter: addr.IsRenter}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "home_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

// ListHouseAddresses enumerates every known home, the source the cron sweep
// walks (spec §4.10's "runs per home"; the teacher's analog is
// rates.Providers() driving internal/cron/batch.go's provider loop).
func (s *GormStorage) ListHouseAddresses(ctx context.Context) ([]pipeline.HouseAddress, error) {
	var recs []HouseAddressRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]pipeline.HouseAddress, 0, len(recs))
	for _, rec := range recs {
		out = append(out, pipeline.HouseAddress{HomeID: rec.HomeID, TdspSlug: rec.TdspSlug, IsRenter: rec.IsRenter})
	}
	return out, nil
}

// queue.Repo

func (s *GormStorage) UpsertQueueItem(item queue.Item) error {
	reasonJSON, err := json.Marshal(item.QueueReason)
	if err != nil {
		return err
	}
	rec := ReviewQueueRecord{
		Kind:            string(item.Kind),
		DedupeKey:       item.DedupeKey,
		FinalStatus:     string(item.FinalStatus),
		OfferID:         item.OfferID,
		RatePlanID:      item.RatePlanID,
		QueueReasonJSON: string(reasonJSON),
		CreatedAt:       item.CreatedAt,
		ResolvedAt:      item.ResolvedAt,
		ResolvedBy:      item.ResolvedBy,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "dedupe_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"final_status", "offer_id", "rate_plan_id", "queue_reason_json"}),
	}).Create(&rec).Error
}

func (s *GormStorage) ResolveQueueItem(kind queue.Kind, dedupeKey, resolvedBy string, resolvedAt time.Time) error {
	return s.db.Model(&ReviewQueueRecord{}).
		Where("kind = ? AND dedupe_key = ?", string(kind), dedupeKey).
		Updates(map[string]interface{}{"resolved_at": resolvedAt, "resolved_by": resolvedBy}).Error
}

func (s *GormStorage) GetQueueItem(kind queue.Kind, dedupeKey string) (queue.Item, bool) {
	var rec ReviewQueueRecord
	result := s.db.First(&rec, "kind = ? AND dedupe_key = ?", string(kind), dedupeKey)
	if result.Error != nil {
		return queue.Item{}, false
	}
	item, err := queueItemFromRecord(rec)
	if err != nil {
		return queue.Item{}, false
	}
	return item, true
}

func (s *GormStorage) ListQueueItems() ([]queue.Item, error) {
	var recs []ReviewQueueRecord
	if err := s.db.Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]queue.Item, 0, len(recs))
	for _, rec := range recs {
		item, err := queueItemFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func queueItemFromRecord(rec ReviewQueueRecord) (queue.Item, error) {
	var reason rates.QueueReason
	_ = json.Unmarshal([]byte(rec.QueueReasonJSON), &reason)
	return queue.Item{
		Kind:        queue.Kind(rec.Kind),
		DedupeKey:   rec.DedupeKey,
		FinalStatus: queue.FinalStatus(rec.FinalStatus),
		OfferID:     rec.OfferID,
		RatePlanID:  rec.RatePlanID,
		QueueReason: reason,
		CreatedAt:   rec.CreatedAt,
		ResolvedAt:  rec.ResolvedAt,
		ResolvedBy:  rec.ResolvedBy,
	}, nil
}

// QueueRepo adapts the Kind/DedupeKey-keyed GormStorage methods above to
// queue.Repo's exact method set, so GormStorage itself doesn't have to
// collide method names with pipeline.RatePlanRepo's Get/Upsert. Callers
// (the cron sweep, the admin API) wire this adapter wherever a queue.Repo
// is needed.
type QueueRepo struct{ s *GormStorage }

func (s *GormStorage) Queue() *QueueRepo { return &QueueRepo{s: s} }

func (q *QueueRepo) Upsert(item queue.Item) error { return q.s.UpsertQueueItem(item) }
func (q *QueueRepo) Resolve(kind queue.Kind, dedupeKey, resolvedBy string, resolvedAt time.Time) error {
	return q.s.ResolveQueueItem(kind, dedupeKey, resolvedBy, resolvedAt)
}
func (q *QueueRepo) Get(kind queue.Kind, dedupeKey string) (queue.Item, bool) {
	return q.s.GetQueueItem(kind, dedupeKey)
}
func (q *QueueRepo) List() ([]queue.Item, error) {
	return q.s.ListQueueItems()
}

// PipelineRepo adapts the HomeID-keyed methods above to
// pipeline.HouseAddressRepo's exact Get(ctx, homeID) signature without
// colliding with queue.Repo's differently-shaped Get on the same struct.
type PipelineRepo struct{ s *GormStorage }

func (s *GormStorage) Pipeline() *PipelineRepo { return &PipelineRepo{s: s} }

func (p *PipelineRepo) Get(ctx context.Context, homeID string) (pipeline.HouseAddress, bool, error) {
	return p.s.GetHouseAddress(ctx, homeID)
}
func (p *PipelineRepo) Put(ctx context.Context, addr pipeline.HouseAddress) error {
	return p.s.UpsertHouseAddress(ctx, addr)
}
func (p *PipelineRepo) List(ctx context.Context) ([]pipeline.HouseAddress, error) {
	return p.s.ListHouseAddresses(ctx)
}

// OfferMapRepo adapts GetOfferMap/UpsertOfferMap to
// pipeline.OfferIdRatePlanMapRepo's Get/Upsert names.
type OfferMapRepo struct{ s *GormStorage }

func (s *GormStorage) OfferMap() *OfferMapRepo { return &OfferMapRepo{s: s} }

func (o *OfferMapRepo) Get(ctx context.Context, offerID string) (pipeline.OfferIdRatePlanMap, bool, error) {
	return o.s.GetOfferMap(ctx, offerID)
}
func (o *OfferMapRepo) Upsert(ctx context.Context, m pipeline.OfferIdRatePlanMap) error {
	return o.s.UpsertOfferMap(ctx, m)
}

// JobRepo adapts SaveJob/Latest to pipeline.PipelineJobRepo's exact
// Latest/Save names.
type JobRepo struct{ s *GormStorage }

func (s *GormStorage) Jobs() *JobRepo { return &JobRepo{s: s} }

func (j *JobRepo) Latest(ctx context.Context, homeID string) (pipeline.PipelineJob, bool, error) {
	return j.s.Latest(ctx, homeID)
}
func (j *JobRepo) Save(ctx context.Context, job pipeline.PipelineJob) error {
	return j.s.SaveJob(ctx, job)
}

// EstimateCache is the GORM-backed cache.Store, a SQL-table fallback for
// deployments running a single GormStorage without the pgx pool (spec
// §4.9). PgxEstimateCache in postgres_pgxpool.go is the high-QPS postgres
// path; this one works for sqlite too.
type EstimateCache struct{ s *GormStorage }

// EstimateCache returns the backend's cache.Store: the pgxpool-backed
// PgxEstimateCache when this GormStorage was opened with driver
// "postgrespool" and the pool connected successfully, otherwise the
// GORM-backed EstimateCacheRecord table.
func (s *GormStorage) EstimateCache() cache.Store {
	if s.pgxCache != nil {
		return s.pgxCache
	}
	return &EstimateCache{s: s}
}

func (e *EstimateCache) Get(homeID, ratePlanID, inputsSha256 string, monthsCount int) (cache.Entry, bool) {
	var rec EstimateCacheRecord
	result := e.s.db.First(&rec, "home_id = ? AND rate_plan_id = ? AND inputs_sha256 = ? AND months_count = ?",
		homeID, ratePlanID, inputsSha256, monthsCount)
	if result.Error != nil {
		return cache.Entry{}, false
	}
	entry, err := estimateEntryFromRecord(rec)
	if err != nil {
		return cache.Entry{}, false
	}
	return entry, true
}

func (e *EstimateCache) Put(entry cache.Entry, expiresAt time.Time) error {
	estJSON, err := json.Marshal(entry.Estimate)
	if err != nil {
		return err
	}
	rec := EstimateCacheRecord{
		HomeID:       entry.HomeID,
		RatePlanID:   entry.RatePlanID,
		InputsSha256: entry.InputsSha256,
		MonthsCount:  entry.MonthsCount,
		EstimateJSON: string(estJSON),
		ComputedAt:   entry.ComputedAt,
		ExpiresAt:    expiresAt,
	}
	return e.s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "home_id"}, {Name: "rate_plan_id"}, {Name: "inputs_sha256"}, {Name: "months_count"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

func (e *EstimateCache) GetMaterialized(homeID, ratePlanID string) (cache.MaterializedEstimate, bool) {
	var rec EstimateCacheRecord
	result := e.s.db.Order("computed_at desc").First(&rec, "home_id = ? AND rate_plan_id = ?", homeID, ratePlanID)
	if result.Error != nil {
		return cache.MaterializedEstimate{}, false
	}
	entry, err := estimateEntryFromRecord(rec)
	if err != nil {
		return cache.MaterializedEstimate{}, false
	}
	return cache.MaterializedEstimate{Entry: entry, ExpiresAt: rec.ExpiresAt}, true
}

func estimateEntryFromRecord(rec EstimateCacheRecord) (cache.Entry, error) {
	var est estimate.Estimate
	if err := json.Unmarshal([]byte(rec.EstimateJSON), &est); err != nil {
		return cache.Entry{}, err
	}
	return cache.Entry{
		HomeID:       rec.HomeID,
		RatePlanID:   rec.RatePlanID,
		InputsSha256: rec.InputsSha256,
		MonthsCount:  rec.MonthsCount,
		Estimate:     est,
		ComputedAt:   rec.ComputedAt,
	}, nil
}
