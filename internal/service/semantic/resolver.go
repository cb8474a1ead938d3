package semantic

import (
	"strings"

	"semsql/internal/domain"
)

var grainSuffixes = []struct {
	suffix string
	grain  domain.Grain
}{
	{suffix: "__week", grain: domain.GrainWeek},
	{suffix: "__month", grain: domain.GrainMonth},
	{suffix: "__year", grain: domain.GrainYear},
}

// ParseGrain strips one trailing date-grain suffix from name. Names without a
// recognised suffix are returned unchanged with domain.GrainNone.
func ParseGrain(name string) (string, domain.Grain) {
	for _, g := range grainSuffixes {
		if base, ok := strings.CutSuffix(name, g.suffix); ok {
			return base, g.grain
		}
	}
	return name, domain.GrainNone
}

type resolvedDimension struct {
	def       domain.DimensionDefinition
	grain     domain.Grain
	requested string
}

// resolvedFilter carries exactly one of dimension or metric.
type resolvedFilter struct {
	clause    domain.FilterClause
	grain     domain.Grain
	dimension *domain.DimensionDefinition
	metric    *domain.MetricDefinition
}

func (c catalog) resolveMetric(name string) (domain.MetricDefinition, error) {
	m, ok := c.metric(name)
	if !ok {
		return domain.MetricDefinition{}, &domain.UnknownMetricError{Name: name}
	}
	if err := m.Validate(); err != nil {
		return domain.MetricDefinition{}, err
	}
	return m, nil
}

func (c catalog) resolveDimension(name string) (resolvedDimension, error) {
	base, grain := ParseGrain(name)
	d, ok := c.dimension(base)
	if !ok {
		return resolvedDimension{}, &domain.UnknownDimensionError{Name: name}
	}
	if err := d.Validate(); err != nil {
		return resolvedDimension{}, err
	}
	return resolvedDimension{def: d, grain: grain, requested: name}, nil
}

// resolveFilter routes a filter field to a dimension first, then a metric.
func (c catalog) resolveFilter(f domain.FilterClause) (resolvedFilter, error) {
	base, grain := ParseGrain(f.Field)
	if d, ok := c.dimension(base); ok {
		if err := d.Validate(); err != nil {
			return resolvedFilter{}, err
		}
		return resolvedFilter{clause: f, grain: grain, dimension: &d}, nil
	}
	if m, ok := c.metric(base); ok {
		if err := m.Validate(); err != nil {
			return resolvedFilter{}, err
		}
		return resolvedFilter{clause: f, grain: grain, metric: &m}, nil
	}
	return resolvedFilter{}, &domain.UnknownFilterFieldError{Field: f.Field}
}
