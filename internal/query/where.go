// Package query builds WhereCondition and Orderby fragments in the grammar the
// ERP DataModel procedures expect. Every value passes through Quote, so free
// text (category names, question text) cannot break out of its literal.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidColumn = errors.New("invalid column name")

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Predicate is a WhereCondition fragment. The zero value matches every row.
type Predicate string

func (p Predicate) String() string { return string(p) }

// Quote renders v as a single-quoted SQL string literal.
func Quote(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('\'')
	for _, r := range v {
		switch {
		case r == '\'':
			b.WriteString("''")
		case r < 0x20 && r != '\t' && r != '\n' && r != '\r', r == 0x7f:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func column(name string) (string, error) {
	if !columnPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidColumn, name)
	}
	return name, nil
}

// Eq builds `COLUMN = 'value'`.
func Eq(col, value string) (Predicate, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	return Predicate(c + " = " + Quote(value)), nil
}

// EqInt builds `COLUMN = 42`.
func EqInt(col string, value int64) (Predicate, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	return Predicate(fmt.Sprintf("%s = %d", c, value)), nil
}

// Like builds `COLUMN LIKE '%value%'`. Wildcards inside value are not escaped.
func Like(col, value string) (Predicate, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	return Predicate(c + " LIKE " + Quote("%"+value+"%")), nil
}

// In builds `COLUMN IN ('a', 'b')`. An empty value list matches nothing.
func In(col string, values ...string) (Predicate, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return Predicate("1 = 0"), nil
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return Predicate(c + " IN (" + strings.Join(quoted, ", ") + ")"), nil
}

// And joins non-empty predicates with AND.
func And(preds ...Predicate) Predicate {
	return join(" AND ", preds)
}

// Or joins non-empty predicates with OR, parenthesised when there is more than one.
func Or(preds ...Predicate) Predicate {
	p := join(" OR ", preds)
	if strings.Contains(string(p), " OR ") {
		return "(" + p + ")"
	}
	return p
}

func join(sep string, preds []Predicate) Predicate {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		if p != "" {
			parts = append(parts, string(p))
		}
	}
	return Predicate(strings.Join(parts, sep))
}

// OrderBy builds an Orderby fragment such as `ENTRY_DATE DESC`.
func OrderBy(col string, desc bool) (string, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	if desc {
		return c + " DESC", nil
	}
	return c, nil
}
