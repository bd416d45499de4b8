package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Load stages reported by SourceError.
const (
	StageScan  = "scan"
	StageLoad  = "load"
	StageBuild = "build"
	StageRead  = "read"
)

// SourceError is a failure to read or assemble schema sources, as opposed to
// a problem inside a declaration.
type SourceError struct {
	Stage string
	Path  string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// SchemaFiles lists the schema sources found under a directory.
type SchemaFiles struct {
	CUE []string
	HCL []string
}

// Len returns the total number of files.
func (f SchemaFiles) Len() int {
	return len(f.CUE) + len(f.HCL)
}

// FindSchemaFiles walks the directory and returns all .cue and .hcl file paths.
func FindSchemaFiles(dir string) (SchemaFiles, error) {
	var files SchemaFiles
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".cue":
			files.CUE = append(files.CUE, path)
		case ".hcl":
			files.HCL = append(files.HCL, path)
		}
		return nil
	})
	slices.Sort(files.CUE)
	slices.Sort(files.HCL)
	return files, err
}

// LoadDir compiles every schema file in dir. CUE files are loaded as one
// package instance; each HCL file is compiled on its own. Compile errors are
// collected; the bundle holds every declaration that did compile.
func LoadDir(dir string) (*Bundle, []error) {
	files, err := FindSchemaFiles(dir)
	if err != nil {
		return &Bundle{}, []error{&SourceError{Stage: StageScan, Path: dir, Err: err}}
	}

	b := &Bundle{}
	var errs []error

	if len(files.CUE) > 0 {
		cb, cerrs := loadCUE(dir)
		b.Merge(cb)
		errs = append(errs, cerrs...)
	}

	for _, path := range files.HCL {
		src, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &SourceError{Stage: StageRead, Path: path, Err: err})
			continue
		}
		hb, herrs := CompileHCL(path, src)
		b.Merge(hb)
		errs = append(errs, herrs...)
	}
	return b, errs
}

func loadCUE(dir string) (*Bundle, []error) {
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&SourceError{Stage: StageLoad, Path: dir, Err: fmt.Errorf("no CUE instances loaded")}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&SourceError{Stage: StageLoad, Path: dir, Err: inst.Err}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&SourceError{Stage: StageBuild, Path: dir, Err: formatCUEError(err)}}
	}
	return CompileCUE(value)
}
