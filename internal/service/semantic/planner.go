package semantic

import (
	"semsql/internal/domain"
)

// collectTables returns the distinct tables of the requested metrics and
// dimensions in first-seen order, metrics first. Filter fields do not add
// tables. The order decides the anchor and the JOIN order, so it must not
// depend on map iteration.
func collectTables(metrics []domain.MetricDefinition, dims []resolvedDimension) []string {
	seen := map[string]bool{}
	tables := []string{}
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			tables = append(tables, t)
		}
	}
	for _, m := range metrics {
		add(m.Table)
	}
	for _, d := range dims {
		add(d.def.Table)
	}
	return tables
}

// planJoins anchors the query at the first table and joins every other table
// directly to it. Paths through intermediate tables are not searched.
func planJoins(tables []string, c catalog) (JoinPlan, error) {
	if len(tables) == 0 {
		return JoinPlan{}, &domain.NoTablesError{}
	}

	plan := JoinPlan{Anchor: tables[0], Tables: tables, Steps: []JoinStep{}}
	for _, table := range tables[1:] {
		edge, ok := c.joinBetween(plan.Anchor, table)
		if !ok {
			return JoinPlan{}, &domain.MissingJoinError{Anchor: plan.Anchor, Table: table}
		}
		if err := edge.Validate(); err != nil {
			return JoinPlan{}, err
		}
		plan.Steps = append(plan.Steps, JoinStep{
			Table:     table,
			Predicate: edge.Join,
			One:       edge.One,
			Many:      edge.Many,
		})
	}
	return plan, nil
}
