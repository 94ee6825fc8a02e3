package storage

import "time"

// User represents the operator admin account. The teacher's multi-tenant
// profile fields (name, email verification, onboarding state) don't apply
// to this single-operator admin API and were dropped along with the
// invite/verify/reset flow that alone used them.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`       // For Sendgrid
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Setting is a single key/value row for small pieces of mutable runtime
// configuration (e.g. the pipeline sweep interval).
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob tracks the last run of a named background job for
// /system/info-style visibility into the cron worker.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}

// RatePlanRecord is the GORM row backing internal/pipeline.RatePlanRepo: a
// derived RateStructure plus its computability verdict, serialized to JSON
// since RateStructure's shape varies by rate type (spec §3's RatePlan).
type RatePlanRecord struct {
	ID                     string    `gorm:"primaryKey;column:id"`
	EflPdfSha256           string    `gorm:"uniqueIndex;column:efl_pdf_sha256"`
	EflURL                 string    `gorm:"column:efl_url"`
	RateStructureJSON      string    `gorm:"column:rate_structure_json"`
	PlanCalcVersion        string    `gorm:"column:plan_calc_version"`
	PlanCalcStatus         string    `gorm:"column:plan_calc_status"`
	PlanCalcReasonCode     string    `gorm:"column:plan_calc_reason_code"`
	RequiredBucketKeysJSON string    `gorm:"column:required_bucket_keys_json"`
	SupportedFeaturesJSON  string    `gorm:"column:supported_features_json"`
	PlanCalcDerivedAt      time.Time `gorm:"column:plan_calc_derived_at"`
}

func (RatePlanRecord) TableName() string { return "rate_plans" }

// OfferIdRatePlanMapRecord is the GORM row backing
// internal/pipeline.OfferIdRatePlanMapRepo (spec §3).
type OfferIdRatePlanMapRecord struct {
	OfferID      string    `gorm:"primaryKey;column:offer_id"`
	RatePlanID   string    `gorm:"column:rate_plan_id"`
	LastLinkedAt time.Time `gorm:"column:last_linked_at"`
	LinkedBy     string    `gorm:"column:linked_by"`
}

func (OfferIdRatePlanMapRecord) TableName() string { return "offer_rate_plan_map" }

// PipelineJobRecord is the GORM row backing internal/pipeline.PipelineJobRepo:
// one row per home, always overwritten with the latest snapshot (spec §3's
// PipelineJobSnapshot; history isn't kept, only the current state the
// orchestrator's gating logic needs).
type PipelineJobRecord struct {
	HomeID            string     `gorm:"primaryKey;column:home_id"`
	RunID             string     `gorm:"column:run_id"`
	Status            string     `gorm:"column:status"`
	Reason            string     `gorm:"column:reason"`
	CalcVersion       string     `gorm:"column:calc_version"`
	StartedAt         time.Time  `gorm:"column:started_at"`
	FinishedAt        *time.Time `gorm:"column:finished_at"`
	CooldownUntil     time.Time  `gorm:"column:cooldown_until"`
	LastCalcWindowEnd *time.Time `gorm:"column:last_calc_window_end"`
	LastError         string     `gorm:"column:last_error"`
	CountsJSON        string     `gorm:"column:counts_json"`
}

func (PipelineJobRecord) TableName() string { return "pipeline_jobs" }

// HouseAddressRecord is the GORM row backing internal/pipeline.HouseAddressRepo.
type HouseAddressRecord struct {
	HomeID   string `gorm:"primaryKey;column:home_id"`
	TdspSlug string `gorm:"column:tdsp_slug"`
	IsRenter bool   `gorm:"column:is_renter"`
}

func (HouseAddressRecord) TableName() string { return "house_addresses" }

// ReviewQueueRecord is the GORM row backing internal/queue.Repo, keyed by
// (kind, dedupe_key) per spec §4.11's idempotent-upsert contract.
type ReviewQueueRecord struct {
	ID              uint       `gorm:"primaryKey;autoIncrement"`
	Kind            string     `gorm:"uniqueIndex:idx_review_kind_dedupe;column:kind"`
	DedupeKey       string     `gorm:"uniqueIndex:idx_review_kind_dedupe;column:dedupe_key"`
	FinalStatus     string     `gorm:"column:final_status"`
	OfferID         string     `gorm:"column:offer_id"`
	RatePlanID      string     `gorm:"column:rate_plan_id"`
	QueueReasonJSON string     `gorm:"column:queue_reason_json"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at"`
	ResolvedBy      string     `gorm:"column:resolved_by"`
}

func (ReviewQueueRecord) TableName() string { return "review_queue_items" }

// EstimateCacheRecord is the GORM row backing a SQL-table cache.Store
// implementation, content-addressed per spec §4.9.
type EstimateCacheRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	HomeID       string    `gorm:"uniqueIndex:idx_cache_key;column:home_id"`
	RatePlanID   string    `gorm:"uniqueIndex:idx_cache_key;column:rate_plan_id"`
	InputsSha256 string    `gorm:"uniqueIndex:idx_cache_key;column:inputs_sha256"`
	MonthsCount  int       `gorm:"uniqueIndex:idx_cache_key;column:months_count"`
	EstimateJSON string    `gorm:"column:estimate_json"`
	ComputedAt   time.Time `gorm:"column:computed_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
}

func (EstimateCacheRecord) TableName() string { return "estimate_cache" }
