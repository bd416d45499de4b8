package ir

// Version constants for the model format and engine.
const (
	// SchemaFormatVersion is the version of the schema DSL understood by the compilers.
	SchemaFormatVersion = "1"

	// EngineVersion is the modelcore version recorded with every application.
	EngineVersion = "0.1.0"
)
