package ir

// NOTE: These are store-layer types describing one application pass.
// They are not part of the configuration model itself.

// Application outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
)

// Application records one convention application pass for a plugin.
type Application struct {
	ID            string   `json:"id"`             // UUIDv7
	Seq           int64    `json:"seq"`            // Logical clock, monotonic per store
	Project       string   `json:"project"`        // Project name
	PluginType    string   `json:"plugin_type"`    // Display name of the plugin type
	SoftwareType  string   `json:"software_type"`  // Software type applied
	Outcome       string   `json:"outcome"`        // OutcomeApplied or OutcomeFailed
	Message       string   `json:"message"`        // Aggregated failure message, empty on success
	Problems      []string `json:"problems"`       // Rendered problems, sorted
	Snapshot      Object   `json:"snapshot"`       // Realized property values
	SnapshotHash  string   `json:"snapshot_hash"`  // SnapshotHash(Snapshot)
	EngineVersion string   `json:"engine_version"` // EngineVersion at write time
}
