package decisiontable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const paramPlaceholder = "$param"

var indexedParam = regexp.MustCompile(`\$(\d+)`)

// expand substitutes a cell value into a template. A template without
// placeholders is returned as-is, so a CONDITION column without one applies
// whenever its cell is non-empty.
func expand(tpl, value string) (string, error) {
	if strings.Contains(tpl, paramPlaceholder) {
		return strings.ReplaceAll(tpl, paramPlaceholder, value), nil
	}
	if !indexedParam.MatchString(tpl) {
		return tpl, nil
	}

	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var missing error
	out := indexedParam.ReplaceAllStringFunc(tpl, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		if n < 1 || n > len(parts) {
			if missing == nil {
				missing = fmt.Errorf("template %q needs %s but cell %q has %d value(s)", tpl, m, value, len(parts))
			}
			return m
		}
		return parts[n-1]
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// splitAssignment splits an action template "field = expression" on the
// first single '='. A template without one is a bare field name.
func splitAssignment(tpl string) (string, string) {
	for i := 0; i < len(tpl); i++ {
		if tpl[i] != '=' {
			continue
		}
		if i+1 < len(tpl) && tpl[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.ContainsRune("!<>=", rune(tpl[i-1])) {
			continue
		}
		return strings.TrimSpace(tpl[:i]), strings.TrimSpace(tpl[i+1:])
	}
	return strings.TrimSpace(tpl), ""
}
