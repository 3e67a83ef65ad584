// Package container builds decision table resources into executable rule
// containers and keeps the current build of every ruleset.
package container

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/tablerules/decisiontable"
	"github.com/liamcoop/tablerules/internal/logger"
	"github.com/liamcoop/tablerules/rules"
)

var (
	// ErrNotFound is returned for unknown ruleset names.
	ErrNotFound = errors.New("ruleset not found")

	// ErrBuildFailed wraps every error raised while building a container.
	ErrBuildFailed = errors.New("ruleset build failed")
)

// Container is one compiled build of a ruleset.
type Container struct {
	ID       uuid.UUID
	Name     string
	Resource string
	Checksum string
	Version  int
	RuleSet  *decisiontable.RuleSet
	Engine   *rules.Engine
	BuiltAt  time.Time
}

// NewStatelessSession opens a session over the container's rules.
func (c *Container) NewStatelessSession() (*rules.StatelessSession, error) {
	return c.Engine.NewStatelessSession()
}

// Manager keeps the active container of every ruleset, keyed by name.
// Builds are persisted in PostgreSQL when a database is configured.
type Manager struct {
	containers map[string]*Container
	db         *sql.DB
	mu         sync.RWMutex
}

// NewManager creates a manager. db may be nil.
func NewManager(db *sql.DB) *Manager {
	return &Manager{
		containers: make(map[string]*Container),
		db:         db,
	}
}

// Build compiles resource and swaps the resulting container in under the
// ruleset's name.
func (m *Manager) Build(ctx context.Context, resource string, data []byte) (*Container, error) {
	c, err := m.load(resource, data)
	if err != nil {
		return nil, err
	}
	rs := c.RuleSet

	if m.db != nil {
		err = m.persist(ctx, c, data)
	} else {
		err = m.compile(c, rules.NewInMemoryRuleStore(), rs.Rules())
		m.mu.RLock()
		if prev, ok := m.containers[c.Name]; ok {
			c.Version = prev.Version + 1
		}
		m.mu.RUnlock()
	}
	if err != nil {
		return nil, m.buildFailed(resource, err)
	}

	m.mu.Lock()
	m.containers[c.Name] = c
	m.mu.Unlock()

	logger.Info("ruleset built",
		"ruleset", c.Name,
		"version", c.Version,
		"build_id", c.ID.String(),
		"rules", len(rs.Rules()),
		"dialect", rs.Dialect)

	return c, nil
}

// Compile builds resource into a transient container. It is neither
// registered under its name nor persisted, and its Version is 0.
func (m *Manager) Compile(resource string, data []byte) (*Container, error) {
	c, err := m.load(resource, data)
	if err != nil {
		return nil, err
	}
	c.Version = 0
	if err := m.compile(c, rules.NewInMemoryRuleStore(), c.RuleSet.Rules()); err != nil {
		return nil, m.buildFailed(resource, err)
	}

	logger.Debug("ruleset compiled",
		"ruleset", c.Name,
		"build_id", c.ID.String(),
		"rules", len(c.RuleSet.Rules()))
	return c, nil
}

// load parses and validates resource into an uncompiled container.
func (m *Manager) load(resource string, data []byte) (*Container, error) {
	rs, err := decisiontable.Load(resource, data)
	if err != nil {
		return nil, m.buildFailed(resource, err)
	}
	if err := ValidateRuleSet(rs); err != nil {
		return nil, m.buildFailed(resource, err)
	}

	sum := sha256.Sum256(data)
	return &Container{
		ID:       uuid.New(),
		Name:     rs.Name,
		Resource: resource,
		Checksum: hex.EncodeToString(sum[:]),
		Version:  1,
		RuleSet:  rs,
		BuiltAt:  time.Now(),
	}, nil
}

func (m *Manager) buildFailed(resource string, err error) error {
	logger.IncrementBuildFailures()
	logger.Error("ruleset build failed", "resource", resource, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrBuildFailed, resource, err)
}

// compile adds rs to store and creates the container's engine over it.
func (m *Manager) compile(c *Container, store rules.RuleStore, rs []*rules.Rule) error {
	for _, r := range rs {
		if err := store.Add(r); err != nil {
			return err
		}
	}
	return m.engine(c, store)
}

func (m *Manager) engine(c *Container, store rules.RuleStore) error {
	dialect, err := rules.DialectByName(c.RuleSet.Dialect)
	if err != nil {
		return err
	}
	en, err := rules.NewEngine(store,
		rules.WithDialect(dialect),
		rules.WithSequential(c.RuleSet.Sequential))
	if err != nil {
		return err
	}
	c.Engine = en
	return nil
}

// persist stores a new inactive version with its rules, compiles it and
// then makes it the active version of its name.
func (m *Manager) persist(ctx context.Context, c *Container, data []byte) error {
	err := m.db.QueryRowContext(ctx, `
		INSERT INTO rulesets (build_id, name, version, resource, checksum, content, active, created_at)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5, false, $6
		FROM rulesets
		WHERE name = $2
		RETURNING version
	`, c.ID, c.Name, c.Resource, c.Checksum, data, c.BuiltAt).Scan(&c.Version)
	if err != nil {
		return fmt.Errorf("failed to save ruleset: %w", err)
	}

	store := rules.NewPostgresRuleStore(m.db, c.ID.String())
	if err := m.compile(c, store, c.RuleSet.Rules()); err != nil {
		if _, derr := m.db.ExecContext(ctx, `DELETE FROM rulesets WHERE build_id = $1`, c.ID); derr != nil {
			logger.Warn("failed to discard ruleset version", "build_id", c.ID.String(), "error", derr)
		}
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE rulesets SET active = false WHERE name = $1 AND active`, c.Name); err != nil {
		return fmt.Errorf("failed to deactivate old versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rulesets SET active = true WHERE build_id = $1`, c.ID); err != nil {
		return fmt.Errorf("failed to activate version: %w", err)
	}
	return tx.Commit()
}

// LoadAll restores the active version of every ruleset from the database.
func (m *Manager) LoadAll(ctx context.Context) error {
	if m.db == nil {
		return nil
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT build_id, name, version, resource, checksum, content, created_at
		FROM rulesets
		WHERE active = true
	`)
	if err != nil {
		return fmt.Errorf("failed to fetch rulesets: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var (
			c    Container
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &c.Name, &c.Version, &c.Resource, &c.Checksum, &data, &c.BuiltAt); err != nil {
			return fmt.Errorf("failed to scan ruleset row: %w", err)
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid build id %s: %w", id, err)
		}

		// The stored rules are authoritative; the resource only restores
		// the ruleset settings.
		if c.RuleSet, err = decisiontable.Load(c.Resource, data); err != nil {
			return fmt.Errorf("failed to parse ruleset %s: %w", c.Name, err)
		}
		if err := m.engine(&c, rules.NewPostgresRuleStore(m.db, id)); err != nil {
			return fmt.Errorf("failed to initialize ruleset %s: %w", c.Name, err)
		}

		m.mu.Lock()
		m.containers[c.Name] = &c
		m.mu.Unlock()
		loaded++
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating ruleset rows: %w", err)
	}

	logger.Info("rulesets loaded", "count", loaded)
	return nil
}

// Get returns the active container of name.
func (m *Manager) Get(name string) (*Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c, nil
}

// List returns the loaded containers sorted by name.
func (m *Manager) List() []*Container {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Container, 0, len(m.containers))
	for _, c := range m.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Remove drops name from the manager. Stored versions are deactivated.
func (m *Manager) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.containers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if m.db != nil {
		if _, err := m.db.ExecContext(ctx, `UPDATE rulesets SET active = false WHERE name = $1`, name); err != nil {
			return fmt.Errorf("failed to deactivate ruleset %s: %w", name, err)
		}
	}

	delete(m.containers, name)
	return nil
}
