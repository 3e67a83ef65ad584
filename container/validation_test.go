package container

import (
	"strings"
	"testing"

	"github.com/liamcoop/tablerules/decisiontable"
	"github.com/liamcoop/tablerules/rules"
)

func validRuleSet() *decisiontable.RuleSet {
	return &decisiontable.RuleSet{
		Name:    "taxes",
		Dialect: "cel",
		Tables: []*decisiontable.Table{{
			Name: "Rates",
			Rules: []*rules.Rule{{
				ID:      "Rates:5",
				Actions: []rules.Action{{Field: "rate", Value: "0.2"}},
			}},
		}},
	}
}

func TestValidateRuleSet_Valid(t *testing.T) {
	if err := ValidateRuleSet(validRuleSet()); err != nil {
		t.Errorf("Expected valid ruleset, got error: %v", err)
	}
}

func TestValidateRuleSet_Names(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"taxes", true},
		{"taxes-2024.v1", true},
		{"_internal", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{"-leading", false},
		{strings.Repeat("a", 100), true},
		{strings.Repeat("a", 101), false},
	}

	for _, tt := range tests {
		rs := validRuleSet()
		rs.Name = tt.name
		err := ValidateRuleSet(rs)
		if tt.valid && err != nil {
			t.Errorf("Expected name %q to be valid, got error: %v", tt.name, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("Expected error for name %q, got nil", tt.name)
		}
	}
}

func TestValidateRuleSet_UnknownDialect(t *testing.T) {
	rs := validRuleSet()
	rs.Dialect = "mvel"

	if err := ValidateRuleSet(rs); err == nil {
		t.Error("Expected error for unknown dialect, got nil")
	}
}

func TestValidateRuleSet_NoTables(t *testing.T) {
	rs := validRuleSet()
	rs.Tables = nil

	err := ValidateRuleSet(rs)
	if err == nil || !strings.Contains(err.Error(), "no rule tables") {
		t.Errorf("Expected error about missing tables, got: %v", err)
	}
}

func TestValidateRuleSet_TooManyTables(t *testing.T) {
	rs := validRuleSet()
	rs.Tables = nil
	for i := 0; i < 101; i++ {
		name := "T" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		rs.Tables = append(rs.Tables, &decisiontable.Table{Name: name})
	}

	err := ValidateRuleSet(rs)
	if err == nil || !strings.Contains(err.Error(), "100") {
		t.Errorf("Expected error about max 100 tables, got: %v", err)
	}
}

func TestValidateRuleSet_DuplicateTable(t *testing.T) {
	rs := validRuleSet()
	rs.Tables = append(rs.Tables, &decisiontable.Table{Name: "Rates"})

	err := ValidateRuleSet(rs)
	if err == nil || !strings.Contains(err.Error(), "Rates") {
		t.Errorf("Expected error mentioning the duplicate table, got: %v", err)
	}
}

func TestValidateRuleSet_ActionFields(t *testing.T) {
	for _, field := range []string{"", " rate", "rate\t"} {
		rs := validRuleSet()
		rs.Tables[0].Rules[0].Actions[0].Field = field

		if err := ValidateRuleSet(rs); err == nil {
			t.Errorf("Expected error for action field %q, got nil", field)
		}
	}
}
