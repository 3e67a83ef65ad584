package rules

import "time"

// Rule is one row of a decision table: a condition over the facts and the
// actions applied to the output when it fires.
type Rule struct {
	ID              string
	Name            string
	Table           string
	Condition       string // empty means always matches
	Actions         []Action
	Salience        int
	ActivationGroup string
	Order           int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Action writes one output field when a rule fires.
// Exactly one of Expression or Value is used: an empty Expression stores Value.
type Action struct {
	Field      string `json:"field"`
	Expression string `json:"expression,omitempty"`
	Value      string `json:"value,omitempty"`
}

// EvaluationResult contains the outcome of evaluating a rule's condition
type EvaluationResult struct {
	RuleID   string
	RuleName string
	Matched  bool
	Fired    bool
	Error    error
}

// Input is the record handed to a session. Rules read it as `input`.
type Input map[string]any

// Output is the record populated by fired rules. Rules read it as `output`.
type Output map[string]any

// ExecutionResult describes one stateless session execution.
type ExecutionResult struct {
	Fired   []string
	Results []*EvaluationResult
}
