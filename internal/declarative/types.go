package declarative

// SupportedAPIVersion is the only apiVersion accepted in enveloped documents.
//
// A definition file may be bare or wrapped in an envelope:
//
//	apiVersion: semsql/v1
//	kind: SemanticLayer
//	spec:
//	  metrics: [...]
const SupportedAPIVersion = "semsql/v1"

// Document kinds.
const (
	KindNameSemanticLayer  = "SemanticLayer"
	KindNameQuery          = "Query"
	KindNameGeneratedQuery = "GeneratedQuery"
)
