package semantic

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
)

type recordingWarehouse struct {
	executed []string
	result   *domain.QueryResult
	err      error
}

func (w *recordingWarehouse) Execute(_ context.Context, sqlQuery string) (*domain.QueryResult, error) {
	w.executed = append(w.executed, sqlQuery)
	return w.result, w.err
}

func revenueByStatus() domain.GeneratedQuery {
	return domain.GeneratedQuery{
		Query: domain.QuerySpec{Metrics: []string{"total_revenue"}, Dimensions: []string{"status"}},
		SemanticLayer: domain.SemanticLayer{
			Metrics:    []domain.MetricDefinition{totalRevenue()},
			Dimensions: []domain.DimensionDefinition{{Name: "status", SQL: "status", Table: "orders"}},
			Joins:      []domain.JoinEdge{ordersJoin},
		},
	}
}

func TestService_CompileAndExplain(t *testing.T) {
	svc := NewService(nil)
	gq := revenueByStatus()

	sql, err := svc.Compile(context.Background(), gq)
	require.NoError(t, err)

	plan, err := svc.Explain(context.Background(), gq)
	require.NoError(t, err)
	assert.Equal(t, sql, plan.SQL)
	assert.Equal(t, "order_items", plan.Anchor)
	assert.Equal(t, []string{"orders.status"}, plan.GroupBy)
	require.Len(t, plan.JoinPath, 1)
	assert.Equal(t, "orders", plan.JoinPath[0].Table)
}

func TestService_LogsCompileFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := NewService(logger)

	gq := revenueByStatus()
	gq.Query.Metrics = []string{"profit"}

	_, err := svc.Compile(context.Background(), gq)
	var um *domain.UnknownMetricError
	require.ErrorAs(t, err, &um)
	assert.Contains(t, buf.String(), "compile failed")
	assert.Contains(t, buf.String(), "kind=unknown_metric")
}

func TestService_Run(t *testing.T) {
	t.Run("no warehouse", func(t *testing.T) {
		_, err := NewService(nil).Run(context.Background(), revenueByStatus())
		var nc *domain.NotConfiguredError
		require.ErrorAs(t, err, &nc)
		assert.Equal(t, "warehouse", nc.Component)
	})

	t.Run("executes compiled sql", func(t *testing.T) {
		wh := &recordingWarehouse{result: &domain.QueryResult{
			Columns:   []string{"total_revenue", "status"},
			Rows:      [][]interface{}{{int64(1180), "Complete"}},
			TotalRows: 1,
		}}
		svc := NewService(nil)
		svc.SetWarehouse(wh)

		out, err := svc.Run(context.Background(), revenueByStatus())
		require.NoError(t, err)
		require.Len(t, wh.executed, 1)
		assert.Equal(t, out.Plan.SQL, wh.executed[0])
		assert.Equal(t, 1, out.Result.TotalRows)
	})

	t.Run("compile error skips the warehouse", func(t *testing.T) {
		wh := &recordingWarehouse{}
		svc := NewService(nil)
		svc.SetWarehouse(wh)

		gq := revenueByStatus()
		gq.SemanticLayer.Joins = nil
		_, err := svc.Run(context.Background(), gq)
		var mj *domain.MissingJoinError
		require.ErrorAs(t, err, &mj)
		assert.Empty(t, wh.executed)
	})

	t.Run("execution error is wrapped", func(t *testing.T) {
		boom := errors.New("catalog error: table orders does not exist")
		svc := NewService(nil)
		svc.SetWarehouse(&recordingWarehouse{err: boom})

		_, err := svc.Run(context.Background(), revenueByStatus())
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "execute compiled query")
	})
}
