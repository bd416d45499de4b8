package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/roach88/modelcore/internal/compiler"
)

// LoadResult contains the declarations compiled from a schema directory.
type LoadResult struct {
	Bundle *compiler.Bundle
	Files  compiler.SchemaFiles
}

// LoadError is a loader or compiler failure mapped to a CLI error code.
type LoadError struct {
	Code     string
	Message  string
	Location string // file:line:col if available
}

func (e *LoadError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s: %s", e.Location, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CLIError converts the error to its JSON form.
func (e *LoadError) CLIError() CLIError {
	return CLIError{Code: e.Code, Message: e.Message, Location: e.Location}
}

// LoadSchemas compiles every .cue and .hcl file under dir.
//
// A nil result means the directory could not be used at all. Otherwise the
// result holds everything that compiled and the errors list the rest.
func LoadSchemas(dir string) (*LoadResult, []*LoadError) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []*LoadError{{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []*LoadError{{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []*LoadError{{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := compiler.FindSchemaFiles(dir)
	if err != nil {
		return nil, []*LoadError{{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if files.Len() == 0 {
		return nil, []*LoadError{{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no .cue or .hcl files found in %s", dir)}}
	}

	bundle, compileErrs := compiler.LoadDir(dir)
	result := &LoadResult{Bundle: bundle, Files: files}

	errs := make([]*LoadError, 0, len(compileErrs))
	for _, err := range compileErrs {
		errs = append(errs, convertError(err))
	}
	if len(bundle.Schemas) == 0 && len(bundle.SoftwareTypes) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no types or software types found"})
	}
	return result, errs
}

// convertError maps a compiler error to a LoadError with position info.
func convertError(err error) *LoadError {
	var sourceErr *compiler.SourceError
	if errors.As(err, &sourceErr) {
		return &LoadError{Code: stageCode(sourceErr.Stage), Message: sourceErr.Error()}
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:     MapFieldToErrorCode(compileErr.Field),
			Message:  declarationPrefix(err) + compileErr.Field + ": " + compileErr.Message,
			Location: compileErr.Location(),
		}
	}

	var diags hcl.Diagnostics
	if errors.As(err, &diags) && len(diags) > 0 {
		d := diags[0]
		le := &LoadError{Code: ErrCodeLoadFailed, Message: d.Summary}
		if d.Detail != "" {
			le.Message += ": " + d.Detail
		}
		if d.Subject != nil {
			le.Location = fmt.Sprintf("%s:%d:%d", d.Subject.Filename, d.Subject.Start.Line, d.Subject.Start.Column)
		}
		return le
	}

	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// declarationPrefix recovers the "type.X: " context the compiler wraps
// around a CompileError.
func declarationPrefix(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"type.", "software_type."} {
		if strings.HasPrefix(msg, prefix) {
			if i := strings.Index(msg, ": "); i > 0 {
				return msg[:i+2]
			}
		}
	}
	return ""
}

func stageCode(stage string) string {
	switch stage {
	case compiler.StageScan:
		return ErrCodeScanError
	case compiler.StageLoad, compiler.StageRead:
		return ErrCodeLoadFailed
	case compiler.StageBuild:
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}

// Error code constants - unified across all CLI commands.
// Schema validation codes (E1xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No schema files found
	ErrCodeLoadFailed  = "E004" // Schema file load or parse failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeProject     = "E008" // Project file invalid
	ErrCodeStore       = "E009" // History database error
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "kind", field == "properties":
		return compiler.ErrInvalidKind
	case field == "element":
		return compiler.ErrInvalidElementType
	case strings.HasPrefix(field, "properties."):
		return compiler.ErrInvalidFieldType
	case field == "model", field == "name":
		return compiler.ErrInvalidSoftwareType
	case strings.HasPrefix(field, "conventions["):
		return compiler.ErrInvalidConvention
	default:
		return ErrCodeGeneric
	}
}
