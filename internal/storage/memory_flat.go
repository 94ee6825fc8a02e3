package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wattbuy/planengine/internal/cache"
	"github.com/wattbuy/planengine/internal/pipeline"
	"github.com/wattbuy/planengine/internal/queue"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments. It carries the ambient Storage
// interface's maps directly and exposes the pipeline's domain repos through
// accessors backed by internal/pipeline's own Memory* implementations, the
// same structural-satisfaction pattern GormStorage uses.
type MemoryStorage struct {
	mu            sync.RWMutex
	users         map[string]User
	tokens        map[string]Token
	casbinRules   []CasbinRule
	emailConfig   *EmailConfig
	settings      map[string]string
	scheduledJobs map[string]ScheduledJob
	locks         map[int64]bool

	ratePlans      *pipeline.MemoryRatePlanRepo
	offerMap       *pipeline.MemoryOfferMapRepo
	jobs           *pipeline.MemoryJobRepo
	houseAddresses *pipeline.MemoryHouseAddressRepo
	queueRepo      *queue.MemoryRepo
	estimateCache  *cache.MemoryStore
}

// NewMemory returns an empty, ready-to-use MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		users:          make(map[string]User),
		tokens:         make(map[string]Token),
		settings:       make(map[string]string),
		scheduledJobs:  make(map[string]ScheduledJob),
		locks:          make(map[int64]bool),
		ratePlans:      pipeline.NewMemoryRatePlanRepo(),
		offerMap:       pipeline.NewMemoryOfferMapRepo(),
		jobs:           pipeline.NewMemoryJobRepo(),
		houseAddresses: pipeline.NewMemoryHouseAddressRepo(),
		queueRepo:      queue.NewMemoryRepo(),
		estimateCache:  cache.NewMemoryStore(),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := t
	return &cp, nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Token, 0)
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil
	}
	now := time.Now()
	t.LastUsedAt = &now
	m.tokens[id] = t
	return nil
}

// Casbin rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CasbinRule, len(m.casbinRules))
	copy(out, m.casbinRules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.casbinRules = append(m.casbinRules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.casbinRules[:0]
	for _, r := range m.casbinRules {
		if r.PType == rule.PType && r.V0 == rule.V0 && r.V1 == rule.V1 && r.V2 == rule.V2 {
			continue
		}
		out = append(out, r)
	}
	m.casbinRules = out
	return nil
}

// Email config

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.emailConfig == nil {
		return nil, nil
	}
	cp := *m.emailConfig
	return &cp, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := config
	m.emailConfig = &cp
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Scheduled jobs & locking. A single process never contends with itself, so
// the lock map only matters for tests that simulate contention.

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return true, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := 0
	if success {
		status = 1
	}
	m.scheduledJobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

// Pipeline/queue/cache accessors, mirroring GormStorage's Pipeline()/
// OfferMap()/Jobs()/Queue()/EstimateCache() so callers can wire either
// backend identically regardless of driver.

func (m *MemoryStorage) RatePlans() *pipeline.MemoryRatePlanRepo        { return m.ratePlans }
func (m *MemoryStorage) OfferMap() *pipeline.MemoryOfferMapRepo         { return m.offerMap }
func (m *MemoryStorage) Jobs() *pipeline.MemoryJobRepo                 { return m.jobs }
func (m *MemoryStorage) Pipeline() *pipeline.MemoryHouseAddressRepo    { return m.houseAddresses }
func (m *MemoryStorage) Queue() *queue.MemoryRepo                      { return m.queueRepo }
func (m *MemoryStorage) EstimateCache() *cache.MemoryStore             { return m.estimateCache }
