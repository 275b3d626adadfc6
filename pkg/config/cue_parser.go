package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
)

// Loader parses and validates CUE workspace files.
type Loader struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewLoader creates a new CUE workspace loader.
func NewLoader() *Loader {
	return &Loader{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
		validator:      validator.New(),
	}
}

// LoadWorkspace parses path and returns the validated workspace with
// relative paths resolved against the file's directory. All validation
// errors are joined into the returned error.
func (l *Loader) LoadWorkspace(ctx context.Context, path string) (*Workspace, error) {
	parsed, err := l.Parse(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 {
		msgs := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid workspace %s:\n  %s", path, strings.Join(msgs, "\n  "))
	}

	ws := parsed.Workspace
	base := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		base = filepath.Dir(path)
	}
	ws.Resolve(base)
	return &ws, nil
}

// Parse parses CUE configuration from the given files or directories.
func (l *Loader) Parse(ctx context.Context, sources []string) (*ParsedConfig, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var (
			val   cue.Value
			files []string
			errs  []ValidationError
		)
		if info.IsDir() {
			val, files, errs = l.loadDirectory(source)
		} else {
			val, errs = l.loadFile(source)
			files = []string{source}
		}

		parseErrors = append(parseErrors, errs...)
		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
		sourceFiles = append(sourceFiles, files...)
	}

	if len(parseErrors) > 0 {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      l.convertCUEErrors(err),
		}, nil
	}

	return l.extractConfig(ctx, cueValue, sourceFiles), nil
}

// ParseInline parses inline CUE content.
func (l *Loader) ParseInline(ctx context.Context, content string) (*ParsedConfig, error) {
	val := l.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      l.convertCUEErrors(err),
		}, nil
	}

	return l.extractConfig(ctx, val, []string{"inline"}), nil
}

// loadDirectory loads a directory as a CUE package.
func (l *Loader) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, l.convertCUEErrors(inst.Err)
	}

	val := l.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, l.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (l *Loader) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := l.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, l.convertCUEErrors(err)
	}

	return val, nil
}

// extractConfig decodes the workspace, fills defaults and validates it
// against the built-in schema and the struct tags.
func (l *Loader) extractConfig(ctx context.Context, val cue.Value, sourceFiles []string) *ParsedConfig {
	parsedConfig := &ParsedConfig{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	workspaceVal := val.LookupPath(cue.ParsePath("workspace"))
	if !workspaceVal.Exists() {
		parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
			Path:     "workspace",
			Message:  "workspace block is required",
			Severity: "error",
		})
		return parsedConfig
	}

	var ws Workspace
	if err := workspaceVal.Decode(&ws); err != nil {
		parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
			Path:     "workspace",
			Message:  fmt.Sprintf("failed to decode workspace: %v", err),
			Severity: "error",
		})
		return parsedConfig
	}
	ws.applyDefaults()
	parsedConfig.Workspace = ws

	if err := l.schemaRegistry.ValidateWorkspace(ctx, ws); err != nil {
		parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
			Path:     "workspace",
			Message:  err.Error(),
			Severity: "error",
		})
	}

	if err := l.validator.Struct(ws); err != nil {
		parsedConfig.Errors = append(parsedConfig.Errors, l.convertValidatorErrors(err)...)
	}

	if _, err := ws.DebounceDuration(); err != nil {
		parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
			Path:     "workspace.sync.debounce",
			Message:  err.Error(),
			Severity: "error",
		})
	}

	return parsedConfig
}

// convertValidatorErrors turns struct tag failures into ValidationErrors.
func (l *Loader) convertValidatorErrors(err error) []ValidationError {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Path: "workspace", Message: err.Error(), Severity: "error"}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("must be one of [%s]", fe.Param())
		}
		out = append(out, ValidationError{
			Path:     fe.Namespace(),
			Message:  msg,
			Severity: "error",
		})
	}
	return out
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (l *Loader) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// SchemaRegistry returns the schema registry.
func (l *Loader) SchemaRegistry() *SchemaRegistry {
	return l.schemaRegistry
}

// ExportJSON renders a workspace as indented JSON.
func ExportJSON(ws *Workspace) ([]byte, error) {
	return json.MarshalIndent(ws, "", "  ")
}

// FindWorkspace walks up from dir looking for DefaultFileName.
func FindWorkspace(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(abs, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%s not found in %s or any parent directory", DefaultFileName, dir)
		}
		abs = parent
	}
}
