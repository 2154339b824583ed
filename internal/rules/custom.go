package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// CustomSet holds operator-defined CEL screening rules. These run after
// the fixed battery; each enabled rule whose predicate holds adds its
// configured score and reason to the result.
type CustomSet struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   map[string]*compiledCustom
	maxWorkers int
}

type compiledCustom struct {
	Config  *domain.CustomRuleConfig
	Program cel.Program
}

// NewCustomSet creates an empty custom rule set.
func NewCustomSet(maxWorkers int) (*CustomSet, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with transaction variables
	env, err := cel.NewEnv(
		cel.Variable("liters", cel.DoubleType),
		cel.Variable("price_per_liter", cel.DoubleType),
		cel.Variable("total_amount", cel.DoubleType),
		cel.Variable("fuel_type", cel.StringType),
		cel.Variable("provider", cel.StringType),
		cel.Variable("station_id", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("weekday", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CustomSet{
		env:        env,
		compiled:   make(map[string]*compiledCustom),
		maxWorkers: maxWorkers,
	}, nil
}

// Validate compiles a rule without mutating the loaded set.
func (s *CustomSet) Validate(cfg *domain.CustomRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := s.compile(cfg)
	return err
}

// Load compiles and adds a rule to the set.
func (s *CustomSet) Load(cfg *domain.CustomRuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	compiled, err := s.compile(cfg)
	if err != nil {
		return err
	}

	s.compiled[cfg.ID] = compiled
	return nil
}

// LoadAll compiles and loads every enabled rule.
func (s *CustomSet) LoadAll(configs []*domain.CustomRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := s.Load(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reload replaces the loaded set with the given configurations.
// Enables hot-reloading of rules from the database.
func (s *CustomSet) Reload(configs []*domain.CustomRuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*compiledCustom)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := s.compile(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	s.compiled = next
	return nil
}

// Count returns the number of loaded rules.
func (s *CustomSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.compiled)
}

// Loaded returns the currently loaded rule configurations.
func (s *CustomSet) Loaded() []*domain.CustomRuleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]*domain.CustomRuleConfig, 0, len(s.compiled))
	for _, c := range s.compiled {
		configs = append(configs, c.Config)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

// Evaluate runs every loaded rule against the transaction. Results are
// ordered by rule ID so repeat evaluations are deterministic. A rule
// whose evaluation errors reports no violation.
func (s *CustomSet) Evaluate(ctx context.Context, tx *domain.FuelTransaction) []Verdict {
	s.mu.RLock()
	ordered := make([]*compiledCustom, 0, len(s.compiled))
	for _, c := range s.compiled {
		ordered = append(ordered, c)
	}
	s.mu.RUnlock()

	if len(ordered) == 0 {
		return nil
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Config.ID < ordered[j].Config.ID })

	activation := map[string]any{
		"liters":          tx.Liters,
		"price_per_liter": tx.PricePerLiter,
		"total_amount":    tx.TotalAmount,
		"fuel_type":       tx.FuelType,
		"provider":        tx.Provider,
		"station_id":      tx.StationID,
		"hour":            int64(tx.Timestamp.Hour()),
		"weekday":         int64(tx.Timestamp.Weekday()),
	}

	// Parallel evaluation with bounded concurrency
	verdicts := make([]Verdict, len(ordered))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxWorkers)

	for i, rule := range ordered {
		wg.Add(1)
		go func(idx int, r *compiledCustom) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			out, _, err := r.Program.Eval(activation)
			if err != nil {
				return
			}
			if hit, ok := out.(types.Bool); ok && bool(hit) {
				verdicts[idx] = Verdict{
					Triggered: true,
					Reason:    r.Config.Reason,
					Score:     r.Config.Score,
				}
			}
		}(i, rule)
	}

	wg.Wait()
	return verdicts
}

// Close clears the loaded set.
func (s *CustomSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compiled = make(map[string]*compiledCustom)
	return nil
}

func (s *CustomSet) compile(cfg *domain.CustomRuleConfig) (*compiledCustom, error) {
	ast, issues := s.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := s.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledCustom{Config: cfg, Program: program}, nil
}
