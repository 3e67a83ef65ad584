//go:build integration

package container

import (
	"context"
	"errors"
	"testing"

	"github.com/liamcoop/tablerules/internal/testdb"
	"github.com/liamcoop/tablerules/rules"
)

func TestManagerPostgresVersions(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()
	data := sampleWorkbook(t)

	m := NewManager(db)
	first, err := m.Build(ctx, "taxes.xlsx", data)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	second, err := m.Build(ctx, "taxes.xlsx", data)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if first.Version != 1 || second.Version != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", first.Version, second.Version)
	}

	var active int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rulesets WHERE name = 'taxes' AND active`).Scan(&active); err != nil {
		t.Fatalf("Failed to count active versions: %v", err)
	}
	if active != 1 {
		t.Errorf("active versions = %d, want 1", active)
	}

	// A fresh manager restores the active version from the database.
	restored := NewManager(db)
	if err := restored.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	c, err := restored.Get("taxes")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if c.ID != second.ID || c.Version != 2 {
		t.Errorf("restored build %s v%d, want %s v2", c.ID, c.Version, second.ID)
	}

	session, err := c.NewStatelessSession()
	if err != nil {
		t.Fatalf("NewStatelessSession() failed: %v", err)
	}
	out := rules.Output{}
	if _, err := session.Execute(ctx, rules.Input{"country": "FR", "income": "42000"}, out); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if out["taxRate"] != 0.3 || out["band"] != "middle" {
		t.Errorf("unexpected output %v", out)
	}

	if err := restored.Remove(ctx, "taxes"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	empty := NewManager(db)
	if err := empty.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if _, err := empty.Get("taxes"); !errors.Is(err, ErrNotFound) {
		t.Errorf("removed ruleset was restored: %v", err)
	}
}

func TestManagerPostgresFailedBuildDiscarded(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()

	m := NewManager(db)
	_, err := m.Build(ctx, "bad.csv", []byte("RuleTable;T\nCONDITION;ACTION\ninput.a ==;x\nA;X\n1;2\n"))
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("Build() error = %v, want ErrBuildFailed", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rulesets`).Scan(&n); err != nil {
		t.Fatalf("Failed to count rulesets: %v", err)
	}
	if n != 0 {
		t.Errorf("failed build left %d ruleset rows", n)
	}
}
