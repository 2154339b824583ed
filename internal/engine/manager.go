package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fuelguard/fuelguard/internal/directory"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/history"
	"github.com/fuelguard/fuelguard/internal/rules"
)

// maxRuleWorkers bounds parallel custom rule evaluation per company.
const maxRuleWorkers = 4

// Manager builds and caches company-scoped engines. Each engine carries
// its own entity directory, history lookups and custom rule set, all
// bound to one company.
type Manager struct {
	cfg    *domain.Config
	repo   domain.Repository
	cache  domain.Cache
	logger *slog.Logger

	mu          sync.Mutex
	engines     map[string]*Engine
	directories map[string]*directory.Directory
	customs     map[string]*rules.CustomSet
}

// NewManager creates an engine manager backed by the given repository
// and cache. cache may be nil; directories then skip caching.
func NewManager(cfg *domain.Config, repo domain.Repository, cache domain.Cache, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:         cfg,
		repo:        repo,
		cache:       cache,
		logger:      logger,
		engines:     make(map[string]*Engine),
		directories: make(map[string]*directory.Directory),
		customs:     make(map[string]*rules.CustomSet),
	}
}

// Engine returns the engine for a company, building it on first use.
// Custom rules are loaded from the repository; a load failure degrades
// to the fixed battery only.
func (m *Manager) Engine(companyID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines[companyID]; ok {
		return e
	}

	dir := directory.New(m.repo, m.cache, companyID, m.cfg.Cache.LocalTTL)
	hist := history.NewService(m.repo, companyID)
	custom := m.loadCustomSet(companyID)

	e := New(m.cfg.Rules, dir, hist, custom, m.logger)
	m.engines[companyID] = e
	m.directories[companyID] = dir
	m.customs[companyID] = custom
	return e
}

// CustomSet returns the custom rule set for a company, building the
// engine as a side effect if needed.
func (m *Manager) CustomSet(companyID string) *rules.CustomSet {
	m.Engine(companyID)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customs[companyID]
}

// ReloadRules re-reads a company's custom rules from the repository and
// swaps them into the running set. Returns the number of loaded rules.
func (m *Manager) ReloadRules(ctx context.Context, companyID string) (int, error) {
	custom := m.CustomSet(companyID)
	if custom == nil {
		return 0, nil
	}

	configs, err := m.repo.ListCustomRules(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if err := custom.Reload(configs); err != nil {
		return 0, err
	}
	return custom.Count(), nil
}

// Invalidate drops a cached entity so the next evaluation sees fresh
// repository state. kind is "vehicle", "project" or "worker".
func (m *Manager) Invalidate(ctx context.Context, companyID, kind, id string) {
	m.mu.Lock()
	dir := m.directories[companyID]
	m.mu.Unlock()

	if dir != nil {
		dir.Invalidate(ctx, kind, id)
	}
}

// Close releases all custom rule sets.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, custom := range m.customs {
		if custom != nil {
			custom.Close()
		}
	}
	return nil
}

func (m *Manager) loadCustomSet(companyID string) *rules.CustomSet {
	custom, err := rules.NewCustomSet(maxRuleWorkers)
	if err != nil {
		m.logger.Error("failed to create custom rule set",
			"company_id", companyID,
			"error", err,
		)
		return nil
	}

	configs, err := m.repo.ListCustomRules(context.Background(), companyID)
	if err != nil {
		m.logger.Error("failed to load custom rules",
			"company_id", companyID,
			"error", err,
		)
		return custom
	}
	if err := custom.LoadAll(configs); err != nil {
		m.logger.Error("failed to compile custom rules",
			"company_id", companyID,
			"error", err,
		)
	}
	return custom
}
