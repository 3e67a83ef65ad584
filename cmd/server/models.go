package main

import (
	"time"

	"github.com/liamcoop/tablerules/container"
	"github.com/liamcoop/tablerules/history"
	"github.com/liamcoop/tablerules/records"
	"github.com/liamcoop/tablerules/rules"
)

// API request and response models

// ExecuteRequest is the body of POST /api/v1/rulesets/{name}/execute
type ExecuteRequest struct {
	Records []records.Record `json:"records"`
}

// RuleSetResponse describes one built ruleset
type RuleSetResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Resource   string          `json:"resource"`
	Checksum   string          `json:"checksum"`
	Version    int             `json:"version"`
	Dialect    string          `json:"dialect"`
	Sequential bool            `json:"sequential"`
	BuiltAt    time.Time       `json:"built_at"`
	Tables     []TableResponse `json:"tables"`
}

// TableResponse summarises one RuleTable
type TableResponse struct {
	Name  string `json:"name"`
	Sheet string `json:"sheet"`
	Rules int    `json:"rules"`
}

// RuleSetsListResponse is the response for listing rulesets
type RuleSetsListResponse struct {
	RuleSets []RuleSetResponse `json:"rulesets"`
}

// RuleResponse represents a compiled rule
type RuleResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Table           string         `json:"table"`
	Condition       string         `json:"condition,omitempty"`
	Actions         []rules.Action `json:"actions"`
	Salience        int            `json:"salience"`
	ActivationGroup string         `json:"activation_group,omitempty"`
}

// RuleSetDetailResponse is a ruleset with its rules
type RuleSetDetailResponse struct {
	RuleSetResponse
	Rules []RuleResponse `json:"rules"`
}

// RunsListResponse is the response for listing runs
type RunsListResponse struct {
	Runs []*history.Run `json:"runs"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string           `json:"status"`
	Database string           `json:"database,omitempty"`
	RuleSets int              `json:"rulesets"`
	Counters map[string]int64 `json:"counters"`
}

func newRuleSetResponse(c *container.Container) RuleSetResponse {
	resp := RuleSetResponse{
		ID:         c.ID.String(),
		Name:       c.Name,
		Resource:   c.Resource,
		Checksum:   c.Checksum,
		Version:    c.Version,
		Dialect:    c.RuleSet.Dialect,
		Sequential: c.RuleSet.Sequential,
		BuiltAt:    c.BuiltAt,
	}
	for _, t := range c.RuleSet.Tables {
		resp.Tables = append(resp.Tables, TableResponse{Name: t.Name, Sheet: t.Sheet, Rules: len(t.Rules)})
	}
	return resp
}

func newRuleResponse(r *rules.Rule) RuleResponse {
	return RuleResponse{
		ID:              r.ID,
		Name:            r.Name,
		Table:           r.Table,
		Condition:       r.Condition,
		Actions:         r.Actions,
		Salience:        r.Salience,
		ActivationGroup: r.ActivationGroup,
	}
}
