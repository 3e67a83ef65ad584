package rules

import (
	"fmt"
	"sync"
)

// Engine compiles rules with a Dialect and evaluates them against facts.
// Safe for concurrent use: compiled programs are guarded by an RWMutex.
type Engine struct {
	dialect    Dialect
	sequential bool
	store      RuleStore
	cache      RulesCache
	programs   map[string]*compiledRule // ruleID -> compiled condition and actions
	mu         sync.RWMutex
}

type compiledRule struct {
	condition Program // nil means always matches
	actions   []compiledAction
}

type compiledAction struct {
	field string
	prog  Program // nil means store value
	value string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialect sets the expression dialect. The default is CEL.
func WithDialect(d Dialect) Option {
	return func(en *Engine) {
		en.dialect = d
	}
}

// WithSequential makes sessions evaluate each condition against the output
// as modified by the rules that fired before it.
func WithSequential(sequential bool) Option {
	return func(en *Engine) {
		en.sequential = sequential
	}
}

// WithCache replaces the agenda cache.
func WithCache(c RulesCache) Option {
	return func(en *Engine) {
		en.cache = c
	}
}

// NewEngine creates an engine over store and compiles all its active rules.
func NewEngine(store RuleStore, opts ...Option) (*Engine, error) {
	en := &Engine{
		store:    store,
		cache:    NewInMemoryRulesCache(DefaultCacheConfig()),
		programs: make(map[string]*compiledRule),
	}
	for _, opt := range opts {
		opt(en)
	}

	if en.dialect == nil {
		d, err := NewCELDialect()
		if err != nil {
			return nil, err
		}
		en.dialect = d
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// Dialect returns the engine's expression dialect.
func (en *Engine) Dialect() Dialect { return en.dialect }

// Sequential reports whether sessions run in sequential mode.
func (en *Engine) Sequential() bool { return en.sequential }

func (en *Engine) compile(r *Rule) (*compiledRule, error) {
	cr := &compiledRule{}

	if r.Condition != "" {
		prog, err := en.dialect.Compile(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", r.Condition, err)
		}
		cr.condition = prog
	}

	for _, a := range r.Actions {
		ca := compiledAction{field: a.Field, value: a.Value}
		if a.Expression != "" {
			prog, err := en.dialect.Compile(a.Expression)
			if err != nil {
				return nil, fmt.Errorf("action %s = %q: %w", a.Field, a.Expression, err)
			}
			ca.prog = prog
		}
		cr.actions = append(cr.actions, ca)
	}

	return cr, nil
}

// CompileRule compiles a rule's condition and actions and caches the result.
func (en *Engine) CompileRule(r *Rule) error {
	cr, err := en.compile(r)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = cr
	en.mu.Unlock()

	return nil
}

// CompileAllRules compiles all active rules from the store and refreshes
// the agenda cache.
func (en *Engine) CompileAllRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := en.CompileRule(rule); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)

	return nil
}

// AddRule validates that r compiles, then stores it.
// The compiled program is dropped again if the store rejects the rule.
func (en *Engine) AddRule(r *Rule) error {
	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("rule with ID %s already exists", r.ID)
	}

	if err := en.CompileRule(r); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Add(r); err != nil {
		en.mu.Lock()
		delete(en.programs, r.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// UpdateRule recompiles and stores r.
func (en *Engine) UpdateRule(r *Rule) error {
	cr, err := en.compile(r)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = cr
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// DeleteRule removes a rule from the store and its compiled program.
func (en *Engine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// Rules returns the active rules in agenda order.
func (en *Engine) Rules() ([]*Rule, error) {
	agenda := en.cache.Get()
	if agenda != nil {
		return agenda, nil
	}

	rules, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	en.cache.Set(rules)
	return en.cache.Get(), nil
}

func (en *Engine) program(ruleID string) (*compiledRule, bool) {
	en.mu.RLock()
	defer en.mu.RUnlock()

	cr, ok := en.programs[ruleID]
	return cr, ok
}

// Evaluate evaluates a single rule's condition against facts.
// Facts are keyed by variable name (input, output).
func (en *Engine) Evaluate(ruleID string, facts map[string]any) (*EvaluationResult, error) {
	rule, err := en.store.Get(ruleID)
	if err != nil {
		return nil, err
	}

	cr, exists := en.program(ruleID)
	if !exists {
		return nil, fmt.Errorf("rule %s is not compiled", ruleID)
	}

	res := evaluateCondition(rule, cr, facts)
	return res, res.Error
}

// EvaluateAll evaluates the conditions of all active rules in agenda order.
// A failing rule does not stop the others.
func (en *Engine) EvaluateAll(facts map[string]any) ([]*EvaluationResult, error) {
	agenda, err := en.Rules()
	if err != nil {
		return nil, err
	}

	results := make([]*EvaluationResult, 0, len(agenda))
	for _, rule := range agenda {
		cr, exists := en.program(rule.ID)
		if !exists {
			results = append(results, &EvaluationResult{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Error:    fmt.Errorf("rule %s is not compiled", rule.ID),
			})
			continue
		}
		results = append(results, evaluateCondition(rule, cr, facts))
	}

	return results, nil
}

// evaluateCondition treats non-boolean results as not matched.
func evaluateCondition(rule *Rule, cr *compiledRule, facts map[string]any) *EvaluationResult {
	res := &EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
	}

	if cr.condition == nil {
		res.Matched = true
		return res
	}

	out, err := cr.condition.Eval(facts)
	if err != nil {
		res.Error = fmt.Errorf("rule %s: %w", rule.ID, err)
		return res
	}

	if b, ok := out.(bool); ok {
		res.Matched = b
	}
	return res
}
