// Package generator turns natural-language questions into compiled SQL by
// asking a language model for a query and semantic layer, caching the
// answer and compiling it.
package generator

import (
	"encoding/json"
	"strconv"
)

// DefaultSchema describes the tables the model may reference when no schema
// file is supplied.
const DefaultSchema = `
You are aware of the following table structures:

Table: orders
Columns:
    - order_id
    - status
    - gender
    - num_of_item
    - created_at

Table: order_items
Columns:
    - order_id
    - sale_price
`

// Prompt holds the instructions sent to the model. Each list is joined with
// single spaces into one message.
type Prompt struct {
	System []string
	User   []string
}

type fieldHint struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type declHint struct {
	Name  string `json:"name"`
	SQL   string `json:"sql"`
	Table string `json:"table"`
}

type joinHint struct {
	One  string `json:"one"`
	Many string `json:"many"`
	Join string `json:"join"`
}

type outputShape struct {
	Query struct {
		Metrics    string      `json:"metrics"`
		Dimensions string      `json:"dimensions"`
		Filters    []fieldHint `json:"filters"`
	} `json:"query_json"`
	SemanticLayer struct {
		Metrics    []declHint `json:"metrics"`
		Dimensions []declHint `json:"dimensions"`
		Joins      []joinHint `json:"joins"`
	} `json:"semantic_layer_json"`
}

func outputSkeleton() string {
	var s outputShape
	s.Query.Metrics = "List of metrics to be calculated (e.g., ['total_revenue'])"
	s.Query.Dimensions = "List of dimensions to group by (e.g., ['status'])"
	s.Query.Filters = []fieldHint{{
		Field:    "Field to filter on (e.g., 'status')",
		Operator: "Operator for filtering (e.g., '=', '>', '<')",
		Value:    "Value for the filter (e.g., 'Complete', 1000)",
	}}
	s.SemanticLayer.Metrics = []declHint{{
		Name:  "Name of the metric (e.g., 'total_revenue')",
		SQL:   "SQL expression for the metric (e.g., 'SUM(sale_price)')",
		Table: "Table associated with the metric (e.g., 'order_items')",
	}}
	s.SemanticLayer.Dimensions = []declHint{{
		Name:  "Name of the dimension (e.g., 'status')",
		SQL:   "SQL expression for the dimension (e.g., 'status')",
		Table: "Table associated with the dimension (e.g., 'order_items')",
	}}
	s.SemanticLayer.Joins = []joinHint{{
		One:  "Primary table in the join (e.g., 'orders')",
		Many: "Secondary table in the join (e.g., 'order_items')",
		Join: "Join condition (e.g., 'order_items.order_id = orders.order_id')",
	}}

	out, _ := json.MarshalIndent(s, "", "  ") //nolint:errchkjson // static shape of strings
	return string(out)
}

// PromptFor builds the instructions asking the model to translate question
// into a query_json and semantic_layer_json document over schema. An empty
// schema falls back to DefaultSchema.
func PromptFor(question, schema string) Prompt {
	if schema == "" {
		schema = DefaultSchema
	}

	system := []string{
		"You are an AI assistant specialized in converting natural language queries into structured JSON formats suitable for database querying.",
		"You have access to the following database schema:",
		schema,
		"Your task is to interpret the user's natural language query and generate a JSON object that includes both 'query_json' and 'semantic_layer_json'.",
		"Ensure that all metrics, dimensions, and filters are accurately identified based on the query and correctly mapped to the database schema.",
		"If the query involves multiple tables, include the necessary join conditions in the 'semantic_layer_json'.",
		"The output JSON should adhere strictly to the specified structure without additional explanations or text.",
	}

	user := []string{
		"Please convert the following natural language query into the specified JSON format:",
		strconv.Quote(question),
		"",
		"The JSON should have the following structure:",
		"```json",
		outputSkeleton(),
		"```",
		"",
		"Ensure that:",
		"- All metrics are listed under the 'metrics' key in 'query_json'.",
		"- All dimensions are listed under the 'dimensions' key in 'query_json'.",
		"- All filters are listed under the 'filters' key in 'query_json' with their respective fields, operators, and values.",
		"- The 'semantic_layer_json' accurately defines each metric and dimension with their corresponding SQL expressions and associated tables.",
		"- If joins between tables are necessary, include them under a 'joins' key within 'semantic_layer_json'.",
		"- The output must be a single valid JSON object.",
	}

	return Prompt{System: system, User: user}
}
