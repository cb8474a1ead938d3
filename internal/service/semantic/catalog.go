package semantic

import "semsql/internal/domain"

// catalog is a read-only view over the semantic layer supplied to one compile
// call. Lookups are first-match-wins in declaration order.
type catalog struct {
	layer *domain.SemanticLayer
}

func newCatalog(layer *domain.SemanticLayer) catalog {
	return catalog{layer: layer}
}

func (c catalog) metric(name string) (domain.MetricDefinition, bool) {
	for _, m := range c.layer.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return domain.MetricDefinition{}, false
}

func (c catalog) dimension(name string) (domain.DimensionDefinition, bool) {
	for _, d := range c.layer.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return domain.DimensionDefinition{}, false
}

// joinBetween returns the first declared edge connecting a and b, in either direction.
func (c catalog) joinBetween(a, b string) (domain.JoinEdge, bool) {
	for _, j := range c.layer.Joins {
		if j.Connects(a, b) {
			return j, true
		}
	}
	return domain.JoinEdge{}, false
}
