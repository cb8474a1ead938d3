package semantic

import (
	"fmt"
	"strings"

	"semsql/internal/domain"
)

type clauses struct {
	selectItems []string
	where       []string
	groupBy     []string
	having      []string
}

// qualify prefixes expr with its owning table when the query spans several
// tables. An expression already qualified with that table is left alone.
func qualify(expr, table string, multiTable bool) string {
	if !multiTable || strings.HasPrefix(expr, table+".") {
		return expr
	}
	return table + "." + expr
}

// matchingParen returns the index of the ')' closing the '(' at open, or -1.
func matchingParen(expr string, open int) int {
	depth := 0
	for i := open; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// metricExpression recognises a single FUNC(arg) call and qualifies its
// argument. Metric SQL may contain at most one call and no nested parentheses;
// anything without a balanced call is qualified as a whole.
func metricExpression(m domain.MetricDefinition, multiTable bool) string {
	expr := strings.TrimSpace(m.SQL)
	open := strings.IndexByte(expr, '(')
	if open < 0 {
		return qualify(expr, m.Table, multiTable)
	}
	closing := matchingParen(expr, open)
	if closing < 0 {
		return qualify(expr, m.Table, multiTable)
	}

	fn := strings.TrimSpace(expr[:open])
	arg := strings.TrimSpace(expr[open+1 : closing])
	if arg != "*" && arg != "" {
		arg = qualify(arg, m.Table, multiTable)
	}
	call := fn + "(" + arg + ")"
	if tail := strings.TrimSpace(expr[closing+1:]); tail != "" {
		call += " " + tail
	}
	return call
}

func dimensionExpression(d domain.DimensionDefinition, grain domain.Grain, multiTable bool) string {
	expr := qualify(d.SQL, d.Table, multiTable)
	if grain != domain.GrainNone {
		expr = fmt.Sprintf("DATE_TRUNC(%s, %s)", expr, grain)
	}
	return expr
}

func renderFilter(expr string, f domain.FilterClause) (string, error) {
	op := strings.TrimSpace(f.Operator)
	if op == "" {
		return "", domain.ErrValidation("filter %q: operator is required", f.Field)
	}
	value, err := f.Value.SQLLiteral()
	if err != nil {
		if bad, ok := err.(*domain.InvalidFilterValueError); ok {
			bad.Field = f.Field
		}
		return "", err
	}
	return expr + " " + op + " " + value, nil
}

// buildClauses produces SELECT, WHERE, GROUP BY and HAVING terms. Every
// requested dimension is grouped, whether or not a metric was requested.
func buildClauses(metrics []domain.MetricDefinition, dims []resolvedDimension, filters []resolvedFilter, multiTable bool) (clauses, error) {
	var out clauses

	for _, m := range metrics {
		out.selectItems = append(out.selectItems, metricExpression(m, multiTable)+" AS "+m.Name)
	}

	for _, d := range dims {
		expr := dimensionExpression(d.def, d.grain, multiTable)
		alias := d.def.Name
		if d.grain != domain.GrainNone {
			alias = d.requested
		}
		out.selectItems = append(out.selectItems, expr+" AS "+alias)
		out.groupBy = append(out.groupBy, expr)
	}

	for _, f := range filters {
		if f.dimension != nil {
			pred, err := renderFilter(dimensionExpression(*f.dimension, f.grain, multiTable), f.clause)
			if err != nil {
				return clauses{}, err
			}
			out.where = append(out.where, pred)
			continue
		}
		pred, err := renderFilter(metricExpression(*f.metric, multiTable), f.clause)
		if err != nil {
			return clauses{}, err
		}
		out.having = append(out.having, pred)
	}

	return out, nil
}
