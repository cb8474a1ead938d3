package declarative

import (
	"fmt"
	"strings"

	"semsql/internal/domain"
	"semsql/internal/service/semantic"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "metrics[2]" or "metric[total_revenue]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidateLayer reports every problem in layer rather than stopping at the
// first one. An empty result means the compiler will accept the layer.
func ValidateLayer(layer *domain.SemanticLayer) []ValidationError {
	var errs []ValidationError

	metricNames := make(map[string]bool, len(layer.Metrics))
	for i, m := range layer.Metrics {
		path := fmt.Sprintf("metrics[%d]", i)
		if m.Name != "" {
			path = fmt.Sprintf("metric[%s]", m.Name)
		}
		checkDeclaration(&errs, path, m.Name, m.SQL, m.Table)
		if m.Name != "" {
			if metricNames[m.Name] {
				addErr(&errs, path, "duplicate metric name")
			}
			metricNames[m.Name] = true
		}
	}

	dimNames := make(map[string]bool, len(layer.Dimensions))
	for i, d := range layer.Dimensions {
		path := fmt.Sprintf("dimensions[%d]", i)
		if d.Name != "" {
			path = fmt.Sprintf("dimension[%s]", d.Name)
		}
		checkDeclaration(&errs, path, d.Name, d.SQL, d.Table)
		if d.Name != "" {
			if dimNames[d.Name] {
				addErr(&errs, path, "duplicate dimension name")
			}
			dimNames[d.Name] = true
			if _, grain := semantic.ParseGrain(d.Name); grain != domain.GrainNone {
				addErr(&errs, path, "name ends with a grain suffix and can only be referenced with a second suffix")
			}
		}
	}

	for i, j := range layer.Joins {
		path := fmt.Sprintf("joins[%d]", i)
		if strings.TrimSpace(j.One) == "" {
			addErr(&errs, path, "one is required")
		}
		if strings.TrimSpace(j.Many) == "" {
			addErr(&errs, path, "many is required")
		}
		if strings.TrimSpace(j.Join) == "" {
			addErr(&errs, path, "join predicate is required")
		}
		if j.One != "" && j.One == j.Many {
			addErr(&errs, path, "joins table %q to itself", j.One)
		}
	}

	return errs
}

// ValidateQuery reports every reference in q that layer cannot resolve.
func ValidateQuery(q *domain.QuerySpec, layer *domain.SemanticLayer) []ValidationError {
	var errs []ValidationError

	metrics := make(map[string]bool, len(layer.Metrics))
	for _, m := range layer.Metrics {
		metrics[m.Name] = true
	}
	dims := make(map[string]bool, len(layer.Dimensions))
	for _, d := range layer.Dimensions {
		dims[d.Name] = true
	}

	if len(q.Metrics) == 0 && len(q.Dimensions) == 0 {
		addErr(&errs, "query", "at least one metric or dimension is required")
	}
	for i, name := range q.Metrics {
		if !metrics[name] {
			addErr(&errs, fmt.Sprintf("query.metrics[%d]", i), "unknown metric %q", name)
		}
	}
	for i, name := range q.Dimensions {
		base, _ := semantic.ParseGrain(name)
		if !dims[base] {
			addErr(&errs, fmt.Sprintf("query.dimensions[%d]", i), "unknown dimension %q", name)
		}
	}
	for i, f := range q.Filters {
		path := fmt.Sprintf("query.filters[%d]", i)
		base, _ := semantic.ParseGrain(f.Field)
		if !dims[base] && !metrics[base] {
			addErr(&errs, path, "unknown filter field %q", f.Field)
		}
		if strings.TrimSpace(f.Operator) == "" {
			addErr(&errs, path, "operator is required")
		}
		if _, err := f.Value.SQLLiteral(); err != nil {
			addErr(&errs, path, "%v", err)
		}
	}

	return errs
}

func checkDeclaration(errs *[]ValidationError, path, name, sql, table string) {
	if strings.TrimSpace(name) == "" {
		addErr(errs, path, "name is required")
	}
	if strings.TrimSpace(sql) == "" {
		addErr(errs, path, "sql is required")
	}
	if strings.TrimSpace(table) == "" {
		addErr(errs, path, "table is required")
	}
}

// addErr appends a formatted validation error.
func addErr(errs *[]ValidationError, path, msg string, args ...any) {
	*errs = append(*errs, ValidationError{
		Path:    path,
		Message: fmt.Sprintf(msg, args...),
	})
}
