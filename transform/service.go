package transform

import (
	"context"
	"errors"
	"time"

	"github.com/liamcoop/tablerules/container"
	"github.com/liamcoop/tablerules/history"
	"github.com/liamcoop/tablerules/internal/logger"
	"github.com/liamcoop/tablerules/records"
)

// Request selects the rules of a run: either RuleSet names a container that
// is already built, or Resource and Rules carry a decision table to build.
type Request struct {
	RuleSet  string
	Resource string
	Rules    []byte
	Source   string
	Records  []records.Record
}

// Service builds rules, executes them and records every run.
type Service struct {
	manager *container.Manager
	history history.Store
}

// NewService creates a service. A nil store discards runs.
func NewService(manager *container.Manager, store history.Store) *Service {
	if store == nil {
		store = history.NoopStore{}
	}
	return &Service{manager: manager, history: store}
}

// Manager returns the container manager the service builds into.
func (s *Service) Manager() *container.Manager { return s.manager }

// History returns the run store.
func (s *Service) History() history.Store { return s.history }

// Run executes req and saves the run, also when it fails. The returned
// result is nil only when the rules could not be resolved.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	run := &history.Run{
		ID:        history.NewRunID(),
		RuleSet:   req.RuleSet,
		Resource:  req.Resource,
		Source:    req.Source,
		StartedAt: time.Now().UTC(),
		Inputs:    req.Records,
	}

	res, err := s.run(ctx, req, run)

	run.FinishedAt = time.Now().UTC()
	if res != nil {
		res.RunID = run.ID
		run.Outputs = res.Outputs
		run.Fired = res.Fired
	}
	if err != nil {
		run.Error = err.Error()
	}

	if serr := s.history.Save(ctx, run); serr != nil {
		logger.Warn("failed to save run", "run_id", run.ID.String(), "error", serr)
	}

	fired := 0
	if res != nil {
		fired = res.FiredCount()
	}
	logger.RecordRun(len(req.Records), fired, err)

	attrs := []any{
		"run_id", run.ID.String(),
		"ruleset", run.RuleSet,
		"records", len(req.Records),
		"fired", fired,
		"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	}
	if err != nil {
		logger.Error("transform failed", append(attrs, "error", err)...)
		return res, err
	}
	logger.Info("transform completed", attrs...)
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request, run *history.Run) (*Result, error) {
	c, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	run.RuleSet = c.Name
	run.Resource = c.Resource
	return Execute(ctx, c, req.Records)
}

// resolve compiles uploaded rules into a transient container, so ad-hoc
// runs never replace a ruleset built through the manager.
func (s *Service) resolve(req Request) (*container.Container, error) {
	if req.Rules != nil {
		return s.manager.Compile(req.Resource, req.Rules)
	}
	if req.RuleSet != "" {
		return s.manager.Get(req.RuleSet)
	}
	return nil, errors.New("no rules selected")
}
