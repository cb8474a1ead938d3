package declarative

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const layerYAML = `
metrics:
  - name: total_revenue
    sql: SUM(sale_price)
    table: order_items
dimensions:
  - name: status
    sql: status
    table: orders
joins:
  - one: orders
    many: order_items
    join: order_items.order_id = orders.order_id
`

const layerJSON = `{
  "metrics": [{"name": "total_revenue", "sql": "SUM(sale_price)", "table": "order_items"}],
  "dimensions": [{"name": "status", "sql": "status", "table": "orders"}],
  "joins": [{"one": "orders", "many": "order_items", "join": "order_items.order_id = orders.order_id"}]
}`

func TestLoadSemanticLayer_Formats(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{
		writeFile(t, dir, "layer.yaml", layerYAML),
		writeFile(t, dir, "layer.yml", layerYAML),
		writeFile(t, dir, "layer.json", layerJSON),
	} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			layer, err := LoadSemanticLayer(path)
			require.NoError(t, err)
			require.Len(t, layer.Metrics, 1)
			assert.Equal(t, "total_revenue", layer.Metrics[0].Name)
			assert.Equal(t, "orders", layer.Dimensions[0].Table)
			require.Len(t, layer.Joins, 1)
			assert.Equal(t, "order_items", layer.Joins[0].Many)
		})
	}
}

func TestLoadSemanticLayer_Envelope(t *testing.T) {
	dir := t.TempDir()

	ok := writeFile(t, dir, "ok.yaml", `
apiVersion: semsql/v1
kind: SemanticLayer
spec:
  metrics:
    - {name: order_count, sql: "COUNT(*)", table: orders}
`)
	layer, err := LoadSemanticLayer(ok)
	require.NoError(t, err)
	assert.Equal(t, "COUNT(*)", layer.Metrics[0].SQL)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad version", content: "apiVersion: v0\nkind: SemanticLayer\nspec: {}\n", wantErr: "unsupported apiVersion"},
		{name: "wrong kind", content: "apiVersion: semsql/v1\nkind: Query\nspec: {}\n", wantErr: "unexpected kind"},
		{name: "unknown kind", content: "apiVersion: semsql/v1\nkind: Table\nspec: {}\n", wantErr: "unknown kind"},
		{name: "missing spec", content: "apiVersion: semsql/v1\nkind: SemanticLayer\n", wantErr: "spec is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".yaml", tt.content)
			_, err := LoadSemanticLayer(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "unknown extension", file: "layer.toml", content: "x = 1", wantErr: "unsupported file extension"},
		{name: "unknown field", file: "layer.yaml", content: "metricz: []\n", wantErr: "unknown field"},
		{name: "top-level list", file: "list.json", content: "[1, 2]", wantErr: "top-level value must be an object"},
		{name: "malformed json", file: "bad.json", content: "{", wantErr: "parse"},
		{name: "malformed yaml", file: "bad.yaml", content: "metrics: [\n", wantErr: "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			_, err := LoadSemanticLayer(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadSemanticLayer(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadQuerySpec_FilterValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "query.yaml", `
metrics: [total_revenue]
dimensions: [ordered_date__week]
filters:
  - {field: status, operator: "=", value: Complete}
  - {field: total_revenue, operator: ">", value: 1000.10}
  - {field: is_gift, operator: "=", value: true}
  - {field: zip, operator: "=", value: "02139"}
`)

	q, err := LoadQuerySpec(path)
	require.NoError(t, err)
	require.Len(t, q.Filters, 4)

	lits := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		lit, err := f.Value.SQLLiteral()
		require.NoError(t, err)
		lits = append(lits, lit)
	}
	assert.Equal(t, []string{"'Complete'", "1000.1", "true", "'02139'"}, lits)
}

func TestLoadQuerySpec_JSONKeepsDecimalText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "query.json",
		`{"metrics": ["m"], "filters": [{"field": "m", "operator": ">", "value": 12345678901234567890.5}]}`)

	q, err := LoadQuerySpec(path)
	require.NoError(t, err)
	lit, err := q.Filters[0].Value.SQLLiteral()
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890.5", lit)
}

func TestLoadGeneratedQuery(t *testing.T) {
	path := writeFile(t, t.TempDir(), "generated.json", `{
  "query_json": {"metrics": ["total_revenue"], "dimensions": ["status"], "filters": []},
  "semantic_layer_json": `+layerJSON+`
}`)

	gq, err := LoadGeneratedQuery(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, gq.Query.Dimensions)
	assert.Len(t, gq.SemanticLayer.Metrics, 1)
}

func TestLoadQueryFile(t *testing.T) {
	dir := t.TempDir()
	layerPath := writeFile(t, dir, "layer.yaml", layerYAML)
	barePath := writeFile(t, dir, "bare.yaml", "metrics: [total_revenue]\ndimensions: [status]\n")
	generatedPath := writeFile(t, dir, "generated.json", `{
  "query_json": {"metrics": ["order_count"]},
  "semantic_layer_json": {"metrics": [{"name": "order_count", "sql": "COUNT(*)", "table": "orders"}]}
}`)
	envelopedPath := writeFile(t, dir, "enveloped.yaml", `
apiVersion: semsql/v1
kind: Query
spec:
  metrics: [total_revenue]
`)

	t.Run("bare query with layer", func(t *testing.T) {
		gq, err := LoadQueryFile(barePath, layerPath)
		require.NoError(t, err)
		assert.Equal(t, []string{"total_revenue"}, gq.Query.Metrics)
		assert.Equal(t, "SUM(sale_price)", gq.SemanticLayer.Metrics[0].SQL)
	})

	t.Run("bare query without layer", func(t *testing.T) {
		_, err := LoadQueryFile(barePath, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a semantic layer")
	})

	t.Run("generated document", func(t *testing.T) {
		gq, err := LoadQueryFile(generatedPath, "")
		require.NoError(t, err)
		assert.Equal(t, "COUNT(*)", gq.SemanticLayer.Metrics[0].SQL)
	})

	t.Run("layer flag overrides embedded layer", func(t *testing.T) {
		gq, err := LoadQueryFile(generatedPath, layerPath)
		require.NoError(t, err)
		assert.Equal(t, "total_revenue", gq.SemanticLayer.Metrics[0].Name)
	})

	t.Run("enveloped query", func(t *testing.T) {
		gq, err := LoadQueryFile(envelopedPath, layerPath)
		require.NoError(t, err)
		assert.Equal(t, []string{"total_revenue"}, gq.Query.Metrics)
	})
}

func TestLoadQuerySpec_RejectsBadValues(t *testing.T) {
	path := writeFile(t, t.TempDir(), "query.json",
		`{"metrics": ["m"], "filters": [{"field": "m", "operator": "=", "value": [1, 2]}]}`)

	_, err := LoadQuerySpec(path)
	var ive *domain.InvalidFilterValueError
	require.ErrorAs(t, err, &ive)
}
