package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for the ambient concerns every backend must
// carry regardless of domain: accounts, tokens, RBAC policy, outbound email
// config, small mutable settings, and the scheduled-job/advisory-lock
// bookkeeping the cron worker depends on. Domain persistence for the
// pipeline (rate plans, offer maps, job snapshots, house addresses, the
// estimate cache, and the review queue) lives behind the narrower
// collaborator interfaces those packages define themselves
// (internal/pipeline, internal/cache, internal/queue); GormStorage and
// MemoryStorage satisfy those structurally too, via their Pipeline()/
// Queue()/EstimateCache() accessors.
type Storage interface {
	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin policy storage
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email configuration
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs & locking
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	// Ping checks connectivity for readiness probes.
	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
