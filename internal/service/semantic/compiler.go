package semantic

import (
	"strings"

	"semsql/internal/domain"
)

// Compile translates a query into SQL using the given semantic layer. It is a
// pure function of its inputs and safe for concurrent use.
func Compile(q domain.QuerySpec, layer domain.SemanticLayer) (string, error) {
	plan, err := Plan(q, layer)
	if err != nil {
		return "", err
	}
	return plan.SQL, nil
}

// Plan compiles a query and returns the SQL together with its join path and
// clause terms. The first resolution failure aborts the whole compile.
func Plan(q domain.QuerySpec, layer domain.SemanticLayer) (*QueryPlan, error) {
	if err := layer.Validate(); err != nil {
		return nil, err
	}
	if len(q.Metrics) == 0 && len(q.Dimensions) == 0 {
		return nil, &domain.NoTablesError{}
	}

	cat := newCatalog(&layer)

	metrics := make([]domain.MetricDefinition, 0, len(q.Metrics))
	for _, name := range q.Metrics {
		m, err := cat.resolveMetric(name)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}

	dims := make([]resolvedDimension, 0, len(q.Dimensions))
	for _, name := range q.Dimensions {
		d, err := cat.resolveDimension(name)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}

	filters := make([]resolvedFilter, 0, len(q.Filters))
	for _, f := range q.Filters {
		rf, err := cat.resolveFilter(f)
		if err != nil {
			return nil, err
		}
		filters = append(filters, rf)
	}

	joins, err := planJoins(collectTables(metrics, dims), cat)
	if err != nil {
		return nil, err
	}

	cl, err := buildClauses(metrics, dims, filters, joins.MultiTable())
	if err != nil {
		return nil, err
	}

	return &QueryPlan{
		SQL:         assemble(joins, cl),
		Anchor:      joins.Anchor,
		Tables:      joins.Tables,
		JoinPath:    joins.Steps,
		SelectItems: cl.selectItems,
		Where:       cl.where,
		GroupBy:     cl.groupBy,
		Having:      cl.having,
	}, nil
}

// assemble emits clauses in canonical order, one clause per line. Empty
// clauses are omitted entirely.
func assemble(joins JoinPlan, cl clauses) string {
	var b strings.Builder

	b.WriteString("SELECT ")
	if len(cl.selectItems) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(cl.selectItems, ", "))
	}

	b.WriteString("\nFROM ")
	b.WriteString(joins.Anchor)
	for _, step := range joins.Steps {
		b.WriteString("\nJOIN ")
		b.WriteString(step.Table)
		b.WriteString(" ON ")
		b.WriteString(step.Predicate)
	}

	if len(cl.where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(cl.where, " AND "))
	}
	if len(cl.groupBy) > 0 {
		b.WriteString("\nGROUP BY ")
		b.WriteString(strings.Join(cl.groupBy, ", "))
	}
	if len(cl.having) > 0 {
		b.WriteString("\nHAVING ")
		b.WriteString(strings.Join(cl.having, " AND "))
	}

	return b.String()
}
