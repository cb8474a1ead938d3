package semantic

import (
	"context"
	"fmt"

	"semsql/internal/domain"
)

// SetWarehouse wires the warehouse used by Run.
func (s *Service) SetWarehouse(w domain.Warehouse) {
	s.warehouse = w
}

// Run compiles a generated query and executes the SQL against the warehouse.
func (s *Service) Run(ctx context.Context, gq domain.GeneratedQuery) (*RunResult, error) {
	if s.warehouse == nil {
		return nil, domain.ErrNotConfigured("warehouse")
	}

	plan, err := s.Explain(ctx, gq)
	if err != nil {
		return nil, err
	}

	result, err := s.warehouse.Execute(ctx, plan.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute compiled query: %w", err)
	}
	s.logger.InfoContext(ctx, "executed compiled query", "anchor", plan.Anchor, "total_rows", result.TotalRows)

	return &RunResult{Plan: *plan, Result: result}, nil
}
