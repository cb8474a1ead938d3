package semantic

import (
	"context"
	"log/slog"

	"semsql/internal/domain"
)

// Service exposes the compiler to transports and records compile outcomes.
type Service struct {
	logger    *slog.Logger
	warehouse domain.Warehouse
}

// NewService creates a new semantic Service. A nil logger discards output.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{logger: logger}
}

// Compile translates a generated query into SQL.
func (s *Service) Compile(ctx context.Context, gq domain.GeneratedQuery) (string, error) {
	plan, err := s.Explain(ctx, gq)
	if err != nil {
		return "", err
	}
	return plan.SQL, nil
}

// Explain compiles a generated query and returns the full plan.
func (s *Service) Explain(ctx context.Context, gq domain.GeneratedQuery) (*QueryPlan, error) {
	plan, err := Plan(gq.Query, gq.SemanticLayer)
	if err != nil {
		s.logger.DebugContext(ctx, "compile failed",
			"kind", domain.ErrorKind(err),
			"error", err,
			"metrics", gq.Query.Metrics,
			"dimensions", gq.Query.Dimensions,
		)
		return nil, err
	}
	s.logger.DebugContext(ctx, "compiled query",
		"anchor", plan.Anchor,
		"tables", plan.Tables,
		"joins", len(plan.JoinPath),
	)
	return plan, nil
}
