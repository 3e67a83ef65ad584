//go:build integration

package rules_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/liamcoop/tablerules/internal/testdb"
	"github.com/liamcoop/tablerules/rules"
)

// createBuild inserts an empty ruleset version and returns its build id.
func createBuild(t *testing.T, db *sql.DB, name string) string {
	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO rulesets (build_id, name, version, resource, checksum, content)
		VALUES ($1, $2, 1, 'test.csv', 'x', '')
	`, id, name)
	if err != nil {
		t.Fatalf("Failed to create build: %v", err)
	}
	return id
}

func TestPostgresRuleStore_BasicCRUD(t *testing.T) {
	db := testdb.Start(t)
	store := rules.NewPostgresRuleStore(db, createBuild(t, db, "crud"))

	rule := &rules.Rule{
		ID:              "Rates:5",
		Name:            "de",
		Table:           "Rates",
		Condition:       `input.country == "DE"`,
		Actions:         []rules.Action{{Field: "rate", Expression: "0.19"}, {Field: "band", Value: "low"}},
		Salience:        10,
		ActivationGroup: "rate",
		Order:           1,
		Active:          true,
	}

	if err := store.Add(rule); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}
	if err := store.Add(rule); err == nil {
		t.Error("Expected error when adding a duplicate rule, got nil")
	}

	got, err := store.Get(rule.ID)
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if got.Condition != rule.Condition || got.Salience != 10 || got.ActivationGroup != "rate" {
		t.Errorf("Unexpected rule %+v", got)
	}
	if len(got.Actions) != 2 || got.Actions[1].Value != "low" {
		t.Errorf("Actions not preserved: %+v", got.Actions)
	}

	rule.Active = false
	if err := store.Update(rule); err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}
	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected 0 active rules, got %d", len(active))
	}

	if err := store.Delete(rule.ID); err != nil {
		t.Fatalf("Failed to delete rule: %v", err)
	}
	if _, err := store.Get(rule.ID); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound, got %v", err)
	}
	if err := store.Delete(rule.ID); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound on second delete, got %v", err)
	}
}

func TestPostgresRuleStore_BuildIsolation(t *testing.T) {
	db := testdb.Start(t)
	storeA := rules.NewPostgresRuleStore(db, createBuild(t, db, "a"))
	storeB := rules.NewPostgresRuleStore(db, createBuild(t, db, "b"))

	if err := storeA.Add(&rules.Rule{ID: "T:5", Name: "a", Active: true}); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}
	if err := storeB.Add(&rules.Rule{ID: "T:5", Name: "b", Active: true}); err != nil {
		t.Fatalf("Same rule ID in another build should be allowed: %v", err)
	}

	a, err := storeA.Get("T:5")
	if err != nil || a.Name != "a" {
		t.Errorf("Build A sees %+v, %v", a, err)
	}
	b, err := storeB.Get("T:5")
	if err != nil || b.Name != "b" {
		t.Errorf("Build B sees %+v, %v", b, err)
	}
}

func TestPostgresRuleStore_SessionOverStore(t *testing.T) {
	db := testdb.Start(t)
	store := rules.NewPostgresRuleStore(db, createBuild(t, db, "session"))

	for _, r := range []*rules.Rule{
		{ID: "T:5", Name: "low", Order: 1, Active: true, Salience: 1, ActivationGroup: "g",
			Actions: []rules.Action{{Field: "band", Value: "low"}}},
		{ID: "T:6", Name: "high", Order: 2, Active: true, Salience: 5, ActivationGroup: "g",
			Condition: "double(input.income) > 1000.0", Actions: []rules.Action{{Field: "band", Value: "high"}}},
	} {
		if err := store.Add(r); err != nil {
			t.Fatalf("Failed to add rule: %v", err)
		}
	}

	engine, err := rules.NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	session, err := engine.NewStatelessSession()
	if err != nil {
		t.Fatalf("NewStatelessSession() failed: %v", err)
	}

	out := rules.Output{}
	if _, err := session.Execute(context.Background(), rules.Input{"income": "5000"}, out); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if out["band"] != "high" {
		t.Errorf("band = %v, want high", out["band"])
	}
}
