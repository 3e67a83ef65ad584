// Package history records transformation runs.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/tablerules/records"
)

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Run is one transformation of a CSV file by a ruleset.
type Run struct {
	ID         uuid.UUID        `json:"id"`
	RuleSet    string           `json:"ruleset"`
	Resource   string           `json:"resource"`
	Source     string           `json:"source"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Inputs     []records.Record `json:"inputs"`
	Outputs    []records.Record `json:"outputs"`
	Fired      [][]string       `json:"fired"`
	Error      string           `json:"error,omitempty"`
}

// Store persists runs. List returns the newest runs first.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}

// NewRunID returns a time-ordered run ID, so stores keyed by ID keep runs
// in start order.
func NewRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// prepare assigns an ID to runs saved without one.
func prepare(run *Run) {
	if run.ID == uuid.Nil {
		run.ID = NewRunID()
	}
}

// NoopStore discards runs.
type NoopStore struct{}

func (NoopStore) Save(_ context.Context, run *Run) error {
	prepare(run)
	return nil
}

func (NoopStore) Get(_ context.Context, id uuid.UUID) (*Run, error) {
	return nil, ErrNotFound
}

func (NoopStore) List(context.Context, int) ([]*Run, error) { return nil, nil }

func (NoopStore) Close() error { return nil }
