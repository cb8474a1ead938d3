package domain

import "context"

// QueryResult is the outcome of executing compiled SQL against a warehouse.
type QueryResult struct {
	Columns   []string
	Rows      [][]interface{}
	TotalRows int
}

// Warehouse executes compiled SQL. It is only used to validate compiled
// output end to end; the compiler itself never performs I/O.
type Warehouse interface {
	Execute(ctx context.Context, sqlQuery string) (*QueryResult, error)
}

// Generator turns a natural-language question into a query and the semantic
// layer it should be compiled against.
type Generator interface {
	Generate(ctx context.Context, model, question string) (*GeneratedQuery, error)
}
