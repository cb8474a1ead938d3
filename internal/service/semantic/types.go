package semantic

import "semsql/internal/domain"

// JoinStep describes one JOIN selected by the planner.
type JoinStep struct {
	Table     string `json:"table"`
	Predicate string `json:"predicate"`
	One       string `json:"one"`
	Many      string `json:"many"`
}

// JoinPlan is the table set of a query and how each table reaches the anchor.
type JoinPlan struct {
	Anchor string
	Tables []string
	Steps  []JoinStep
}

// MultiTable reports whether column references need table qualification.
func (p JoinPlan) MultiTable() bool { return len(p.Tables) > 1 }

// QueryPlan captures the compiler output together with its intermediate clauses.
type QueryPlan struct {
	SQL         string     `json:"sql"`
	Anchor      string     `json:"anchor"`
	Tables      []string   `json:"tables"`
	JoinPath    []JoinStep `json:"join_path"`
	SelectItems []string   `json:"select"`
	Where       []string   `json:"where"`
	GroupBy     []string   `json:"group_by"`
	Having      []string   `json:"having"`
}

// RunResult wraps warehouse output and the plan that produced it.
type RunResult struct {
	Plan   QueryPlan
	Result *domain.QueryResult
}
