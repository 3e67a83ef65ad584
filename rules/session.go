package rules

import (
	"context"
	"errors"
	"fmt"
)

// ErrActionFailed wraps every error raised while firing a rule's actions.
var ErrActionFailed = errors.New("rule action failed")

// StatelessSession is a single-use execution context. It keeps no working
// memory between calls to Execute.
type StatelessSession struct {
	agenda     []*Rule
	programs   []*compiledRule
	sequential bool
}

// NewStatelessSession snapshots the engine's active rules and their
// compiled programs.
func (en *Engine) NewStatelessSession() (*StatelessSession, error) {
	agenda, err := en.Rules()
	if err != nil {
		return nil, err
	}

	s := &StatelessSession{
		agenda:     agenda,
		programs:   make([]*compiledRule, len(agenda)),
		sequential: en.sequential,
	}

	en.mu.RLock()
	defer en.mu.RUnlock()
	for i, r := range agenda {
		cr, ok := en.programs[r.ID]
		if !ok {
			return nil, fmt.Errorf("rule %s is not compiled", r.ID)
		}
		s.programs[i] = cr
	}

	return s, nil
}

// Execute runs the agenda once against in, writing the actions of fired
// rules into out.
//
// Rules are visited by salience, then table order. At most one rule of an
// activation group fires. In the default mode every condition sees the
// facts as they were when Execute was called; in sequential mode a
// condition also sees what earlier rules wrote to out. Actions always read
// the live output.
//
// A condition that fails to evaluate counts as not matched. An action that
// fails aborts the execution.
func (s *StatelessSession) Execute(ctx context.Context, in Input, out Output) (*ExecutionResult, error) {
	if out == nil {
		return nil, fmt.Errorf("output must not be nil")
	}

	result := &ExecutionResult{
		Results: make([]*EvaluationResult, 0, len(s.agenda)),
	}
	firedGroups := make(map[string]bool)

	live := map[string]any{
		InputVar:  map[string]any(in),
		OutputVar: map[string]any(out),
	}

	if s.sequential {
		for i, rule := range s.agenda {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if rule.ActivationGroup != "" && firedGroups[rule.ActivationGroup] {
				continue
			}

			res := evaluateCondition(rule, s.programs[i], live)
			result.Results = append(result.Results, res)
			if !res.Matched {
				continue
			}

			if err := fire(rule, s.programs[i], live, out); err != nil {
				return result, err
			}
			res.Fired = true
			result.Fired = append(result.Fired, rule.ID)
			if rule.ActivationGroup != "" {
				firedGroups[rule.ActivationGroup] = true
			}
		}
		return result, nil
	}

	snapshot := map[string]any{
		InputVar:  map[string]any(in),
		OutputVar: copyMap(out),
	}

	matched := make([]bool, len(s.agenda))
	for i, rule := range s.agenda {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res := evaluateCondition(rule, s.programs[i], snapshot)
		result.Results = append(result.Results, res)
		matched[i] = res.Matched
	}

	for i, rule := range s.agenda {
		if !matched[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if rule.ActivationGroup != "" && firedGroups[rule.ActivationGroup] {
			continue
		}

		if err := fire(rule, s.programs[i], live, out); err != nil {
			return result, err
		}
		result.Results[i].Fired = true
		result.Fired = append(result.Fired, rule.ID)
		if rule.ActivationGroup != "" {
			firedGroups[rule.ActivationGroup] = true
		}
	}

	return result, nil
}

func fire(rule *Rule, cr *compiledRule, facts map[string]any, out Output) error {
	for _, a := range cr.actions {
		if a.prog == nil {
			out[a.field] = a.value
			continue
		}
		v, err := a.prog.Eval(facts)
		if err != nil {
			return fmt.Errorf("%w: rule %s: action %s: %w", ErrActionFailed, rule.ID, a.field, err)
		}
		out[a.field] = v
	}
	return nil
}

func copyMap(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
