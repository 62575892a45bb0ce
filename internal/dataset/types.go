// Package dataset holds the shared data-shape types threaded through the
// ingestion pipeline.
package dataset

// Record represents a single raw data record as key-value pairs. Raw records
// are ephemeral: they exist between fetch and normalize and are never written
// to the warehouse as-is.
type Record = map[string]any

// Descriptor identifies which bulk collection to sync. Immutable, supplied by
// the caller.
type Descriptor struct {
	// Name is the dataset name, e.g. "oracle_cards".
	Name string

	// Endpoint is the source metadata URL for this dataset.
	Endpoint string
}

// --- Schema Types ---

// Schema describes a fixed column set for typed outputs.
type Schema struct {
	Fields []*FieldDefinition
}

// FieldDefinition describes one typed output column.
type FieldDefinition struct {
	Name     string
	DataType string // "STRING", "DOUBLE", "DATE"
	Nullable bool
}
