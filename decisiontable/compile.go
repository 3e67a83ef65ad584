package decisiontable

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/liamcoop/tablerules/rules"
)

// Compile turns the sheets of resource into a RuleSet.
func Compile(resource string, sheets []Sheet) (*RuleSet, error) {
	base := filepath.Base(resource)
	rs := &RuleSet{
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		Resource: resource,
		Dialect:  "cel",
	}

	c := &compiler{rs: rs}
	for _, sh := range sheets {
		if err := c.sheet(sh); err != nil {
			return nil, err
		}
	}

	if len(rs.Tables) == 0 {
		return nil, fmt.Errorf("%s: %w", resource, ErrNoRuleTables)
	}
	return rs, nil
}

type compiler struct {
	rs    *RuleSet
	order int
}

func (c *compiler) sheet(sh Sheet) error {
	for i := 0; i < len(sh.Rows); {
		row := sh.Rows[i]
		col, first := firstCell(row)
		if first == "" {
			i++
			continue
		}

		kw, rest := splitKeyword(first)
		switch kw {
		case "ruleset":
			if arg := keywordArg(row, col, rest); arg != "" {
				c.rs.Name = arg
			}
		case "dialect":
			arg := keywordArg(row, col, rest)
			if _, err := rules.DialectByName(arg); err != nil {
				return cellError(sh.Name, i, col, err)
			}
			c.rs.Dialect = strings.ToLower(arg)
		case "sequential":
			arg := keywordArg(row, col, rest)
			b, err := strconv.ParseBool(arg)
			if err != nil {
				return cellError(sh.Name, i, col, fmt.Errorf("Sequential must be true or false, got %q", arg))
			}
			c.rs.Sequential = b
		case "ruletable":
			name := rest
			if name == "" {
				name = nextCell(row, col)
			}
			if name == "" {
				return cellError(sh.Name, i, col, errors.New("RuleTable needs a name"))
			}
			next, err := c.table(sh, i, col, name)
			if err != nil {
				return err
			}
			i = next
			continue
		}
		// Notes, Import, Variables, Functions and free text are ignored.
		i++
	}
	return nil
}

// table parses the RuleTable whose keyword sits at (start, col0) and
// returns the index of the first row after it.
func (c *compiler) table(sh Sheet, start, col0 int, name string) (int, error) {
	kindsAt, tplAt, labelsAt := start+1, start+2, start+3
	if labelsAt >= len(sh.Rows) {
		return 0, cellError(sh.Name, start, col0, fmt.Errorf("RuleTable %s needs kind, template and label rows", name))
	}

	kindsRow := sh.Rows[kindsAt]
	width := 0
	for j := col0; j < len(kindsRow); j++ {
		if strings.TrimSpace(kindsRow[j]) != "" {
			width = j - col0 + 1
		}
	}
	if width == 0 {
		return 0, cellError(sh.Name, kindsAt, col0, fmt.Errorf("RuleTable %s has no columns", name))
	}

	t := &Table{Name: name, Sheet: sh.Name, Columns: make([]Column, width)}
	for j := 0; j < width; j++ {
		raw := strings.ToUpper(cellAt(kindsRow, col0+j))
		kind, ok := parseKind(raw)
		if !ok {
			return 0, cellError(sh.Name, kindsAt, col0+j, fmt.Errorf("unknown column kind %q", raw))
		}

		tpl := cellAt(sh.Rows[tplAt], col0+j)
		if (kind == KindCondition || kind == KindAction) && tpl == "" {
			return 0, cellError(sh.Name, tplAt, col0+j, fmt.Errorf("%s column needs a template", kind))
		}
		if kind == KindAction {
			if field, _ := splitAssignment(tpl); field == "" {
				return 0, cellError(sh.Name, tplAt, col0+j, fmt.Errorf("action template %q has no field", tpl))
			}
		}

		t.Columns[j] = Column{
			Kind:     kind,
			Template: tpl,
			Label:    cellAt(sh.Rows[labelsAt], col0+j),
		}
	}

	i := labelsAt + 1
	for ; i < len(sh.Rows); i++ {
		row := sh.Rows[i]
		if blank(row, col0, width) {
			break
		}
		// Only the next RuleTable ends a table; other keywords are data here.
		if kw, _ := splitKeyword(cellAt(row, col0)); kw == "ruletable" {
			break
		}

		r, err := c.rule(sh, t, row, i, col0)
		if err != nil {
			return 0, err
		}
		t.Rules = append(t.Rules, r)
	}

	c.rs.Tables = append(c.rs.Tables, t)
	return i, nil
}

func (c *compiler) rule(sh Sheet, t *Table, row []string, rowIdx, col0 int) (*rules.Rule, error) {
	c.order++
	r := &rules.Rule{
		ID:     fmt.Sprintf("%s:%d", t.Name, rowIdx+1),
		Name:   fmt.Sprintf("%s_%d", t.Name, rowIdx+1),
		Table:  t.Name,
		Order:  c.order,
		Active: true,
	}

	var conditions []string
	for j, col := range t.Columns {
		value := cellAt(row, col0+j)
		if value == "" {
			continue
		}

		switch col.Kind {
		case KindCondition:
			cond, err := expand(col.Template, value)
			if err != nil {
				return nil, cellError(sh.Name, rowIdx, col0+j, err)
			}
			conditions = append(conditions, cond)
		case KindAction:
			field, tpl := splitAssignment(col.Template)
			if tpl == "" {
				r.Actions = append(r.Actions, rules.Action{Field: field, Value: value})
				continue
			}
			expr, err := expand(tpl, value)
			if err != nil {
				return nil, cellError(sh.Name, rowIdx, col0+j, err)
			}
			r.Actions = append(r.Actions, rules.Action{Field: field, Expression: expr})
		case KindName:
			r.Name = value
		case KindPriority:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, cellError(sh.Name, rowIdx, col0+j, fmt.Errorf("priority %q is not an integer", value))
			}
			r.Salience = n
		case KindActivationGroup:
			r.ActivationGroup = value
		}
	}

	switch len(conditions) {
	case 0:
	case 1:
		r.Condition = conditions[0]
	default:
		r.Condition = "(" + strings.Join(conditions, ") && (") + ")"
	}

	return r, nil
}

func parseKind(s string) (ColumnKind, bool) {
	switch s {
	case "CONDITION":
		return KindCondition, true
	case "ACTION":
		return KindAction, true
	case "NAME":
		return KindName, true
	case "DESCRIPTION":
		return KindDescription, true
	case "PRIORITY", "SALIENCE":
		return KindPriority, true
	case "ACTIVATION-GROUP":
		return KindActivationGroup, true
	}
	return "", false
}

// splitKeyword lowercases the keyword of a cell and returns the text after it.
// "RuleTable Taxes" yields ("ruletable", "Taxes").
func splitKeyword(cell string) (string, string) {
	cell = strings.TrimSpace(cell)
	lower := strings.ToLower(cell)
	if strings.HasPrefix(lower, "ruletable") {
		return "ruletable", strings.TrimSpace(cell[len("ruletable"):])
	}
	kw, rest, _ := strings.Cut(cell, " ")
	return strings.ToLower(kw), strings.TrimSpace(rest)
}

func keywordArg(row []string, col int, rest string) string {
	if rest != "" {
		return rest
	}
	return nextCell(row, col)
}

func firstCell(row []string) (int, string) {
	for j, v := range row {
		if v = strings.TrimSpace(v); v != "" {
			return j, v
		}
	}
	return -1, ""
}

func nextCell(row []string, col int) string {
	for j := col + 1; j < len(row); j++ {
		if v := strings.TrimSpace(row[j]); v != "" {
			return v
		}
	}
	return ""
}

func cellAt(row []string, j int) string {
	if j < 0 || j >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[j])
}

func blank(row []string, col0, width int) bool {
	for j := col0; j < col0+width; j++ {
		if cellAt(row, j) != "" {
			return false
		}
	}
	return true
}
