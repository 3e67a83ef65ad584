package container

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/liamcoop/tablerules/decisiontable"
	"github.com/liamcoop/tablerules/rules"
)

const (
	maxTables        = 100
	maxRulesPerTable = 10000
	maxNameLength    = 100
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.\-]*$`)

// ValidateRuleSet checks a compiled ruleset before it is built.
func ValidateRuleSet(rs *decisiontable.RuleSet) error {
	if err := validateName(rs.Name); err != nil {
		return fmt.Errorf("invalid ruleset name %q: %w", rs.Name, err)
	}

	if _, err := rules.DialectByName(rs.Dialect); err != nil {
		return err
	}

	if len(rs.Tables) == 0 {
		return fmt.Errorf("ruleset %q has no rule tables", rs.Name)
	}
	if len(rs.Tables) > maxTables {
		return fmt.Errorf("ruleset %q contains %d tables, maximum allowed is %d", rs.Name, len(rs.Tables), maxTables)
	}

	seen := make(map[string]bool, len(rs.Tables))
	for _, t := range rs.Tables {
		if err := validateName(t.Name); err != nil {
			return fmt.Errorf("invalid table name %q: %w", t.Name, err)
		}
		if seen[t.Name] {
			return fmt.Errorf("table %q is defined twice", t.Name)
		}
		seen[t.Name] = true

		if len(t.Rules) > maxRulesPerTable {
			return fmt.Errorf("table %q contains %d rules, maximum allowed is %d", t.Name, len(t.Rules), maxRulesPerTable)
		}

		for _, r := range t.Rules {
			for _, a := range r.Actions {
				if a.Field == "" {
					return fmt.Errorf("rule %s has an action without a field", r.ID)
				}
				if strings.TrimSpace(a.Field) != a.Field {
					return fmt.Errorf("rule %s has field with leading/trailing whitespace: %q", r.ID, a.Field)
				}
			}
		}
	}

	return nil
}

func validateName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name length %d exceeds maximum of %d characters", len(name), maxNameLength)
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("must contain only letters, digits, '_', '-' or '.'")
	}
	return nil
}
