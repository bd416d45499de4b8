// Package ir provides the foundational model types for modelcore.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the type vocabulary
// (type references, schemas, paths, references, values) free of cycles.
//
// Key design constraints:
//   - Schemas are immutable once constructed; the schema store owns them
//   - NO float values anywhere - use Int for numbers
//   - Object keys are iterated in RFC 8785 order for deterministic output
//   - All JSON tags use snake_case
package ir
