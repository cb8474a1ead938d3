package warehouse

import (
	"context"
	"math/big"
	"testing"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
	"semsql/internal/service/semantic"
)

func setupWarehouse(t *testing.T) *DuckDB {
	t.Helper()
	w, err := Open(context.Background(), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	stmts := []string{
		`CREATE TABLE orders (order_id INTEGER, status VARCHAR, gender VARCHAR, num_of_item INTEGER, created_at TIMESTAMP)`,
		`CREATE TABLE order_items (order_id INTEGER, sale_price DOUBLE)`,
		`INSERT INTO orders VALUES
			(1, 'Complete', 'F', 2, '2024-01-02 10:00:00'),
			(2, 'Complete', 'M', 1, '2024-01-09 11:00:00'),
			(3, 'Cancelled', 'F', 1, '2024-01-10 12:00:00')`,
		`INSERT INTO order_items VALUES (1, 600.0), (1, 500.0), (2, 80.0), (3, 20.0)`,
	}
	for _, s := range stmts {
		_, err := w.DB().Exec(s)
		require.NoError(t, err)
	}
	return w
}

func ordersLayer() domain.SemanticLayer {
	return domain.SemanticLayer{
		Metrics: []domain.MetricDefinition{
			{Name: "total_revenue", SQL: "SUM(sale_price)", Table: "order_items"},
			{Name: "order_count", SQL: "COUNT(*)", Table: "orders"},
		},
		Dimensions: []domain.DimensionDefinition{
			{Name: "status", SQL: "status", Table: "orders"},
			{Name: "gender", SQL: "gender", Table: "orders"},
		},
		Joins: []domain.JoinEdge{
			{One: "orders", Many: "order_items", Join: "order_items.order_id = orders.order_id"},
		},
	}
}

func TestExecute_CompiledMultiTableQuery(t *testing.T) {
	w := setupWarehouse(t)

	sql, err := semantic.Compile(domain.QuerySpec{
		Metrics:    []string{"total_revenue"},
		Dimensions: []string{"status"},
		Filters: []domain.FilterClause{
			{Field: "status", Operator: "=", Value: domain.StringValue("Complete")},
		},
	}, ordersLayer())
	require.NoError(t, err)

	res, err := w.Execute(context.Background(), sql)
	require.NoError(t, err)
	assert.Equal(t, []string{"total_revenue", "status"}, res.Columns)
	require.Equal(t, 1, res.TotalRows)
	assert.InDelta(t, 1180.0, res.Rows[0][0], 0.001)
	assert.Equal(t, "Complete", res.Rows[0][1])
}

func TestExecute_CompiledHavingQuery(t *testing.T) {
	w := setupWarehouse(t)

	sql, err := semantic.Compile(domain.QuerySpec{
		Metrics:    []string{"order_count"},
		Dimensions: []string{"gender"},
		Filters: []domain.FilterClause{
			{Field: "order_count", Operator: ">", Value: domain.IntValue(1)},
		},
	}, ordersLayer())
	require.NoError(t, err)

	res, err := w.Execute(context.Background(), sql)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalRows)
	assert.Equal(t, "F", res.Rows[0][1])
}

func TestExecute_EmptyResult(t *testing.T) {
	w := setupWarehouse(t)

	res, err := w.Execute(context.Background(), "SELECT * FROM orders WHERE false")
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalRows)
	assert.NotNil(t, res.Rows)
	assert.Len(t, res.Columns, 5)
}

func TestExecute_Errors(t *testing.T) {
	w := setupWarehouse(t)

	_, err := w.Execute(context.Background(), "   ")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = w.Execute(context.Background(), "SELECT * FROM missing_table")
	require.Error(t, err)
}

func TestService_RunAgainstWarehouse(t *testing.T) {
	w := setupWarehouse(t)
	svc := semantic.NewService(nil)
	svc.SetWarehouse(w)

	out, err := svc.Run(context.Background(), domain.GeneratedQuery{
		Query:         domain.QuerySpec{Metrics: []string{"order_count"}},
		SemanticLayer: ordersLayer(),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS order_count\nFROM orders", out.Plan.SQL)
	require.Equal(t, 1, out.Result.TotalRows)
	assert.EqualValues(t, 3, out.Result.Rows[0][0])
}

func TestNormalizeValue(t *testing.T) {
	got := normalizeValue(duckdb.Decimal{Width: 10, Scale: 2, Value: big.NewInt(100010)})
	d, ok := got.(decimal.Decimal)
	require.True(t, ok)
	assert.Equal(t, "1000.1", d.String())

	assert.Equal(t, "abc", normalizeValue([]byte("abc")))
	assert.Nil(t, normalizeValue(duckdb.Decimal{Width: 10, Scale: 2}))
	assert.Equal(t, int64(7), normalizeValue(int64(7)))
}
