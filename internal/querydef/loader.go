package querydef

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/provq/provq/internal/queryir"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for definition loading.
const (
	ErrCodeRead   = "Q001" // file not found / unreadable
	ErrCodeFormat = "Q002" // unsupported file extension
	ErrCodeDecode = "Q003" // YAML/JSON/CUE syntax error
	ErrCodeSchema = "Q004" // schema unification failure
	ErrCodeQuery  = "Q005" // query description invalid
)

// LoadError is a definition loading failure with file context.
type LoadError struct {
	Code    string
	File    string
	Message string
}

func (e *LoadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
)

// schema compiles the embedded definition schema once per process.
func schema() (*cue.Context, cue.Value) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			panic(fmt.Sprintf("querydef: embedded schema does not compile: %v", err))
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Definition"))
		if err := schemaValue.Err(); err != nil {
			panic(fmt.Sprintf("querydef: embedded schema has no #Definition: %v", err))
		}
	})
	return schemaCtx, schemaValue
}

// Load reads one definition file, dispatching on the extension:
// .yaml/.yml, .json, or .cue.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, File: path, Message: err.Error()}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path, data)
	case ".json":
		return LoadJSON(path, data)
	case ".cue":
		return LoadCUE(path, data)
	default:
		return nil, &LoadError{
			Code: ErrCodeFormat, File: path,
			Message: fmt.Sprintf("unsupported definition format %q, expected .yaml, .json or .cue", filepath.Ext(path)),
		}
	}
}

// LoadYAML parses a YAML definition document. file is used only for
// error context.
func LoadYAML(file string, data []byte) (*Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, File: file, Message: err.Error()}
	}
	return fromRaw(file, raw)
}

// LoadJSON parses a JSON definition document.
func LoadJSON(file string, data []byte) (*Definition, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, File: file, Message: err.Error()}
	}
	return fromRaw(file, raw)
}

// LoadCUE evaluates a CUE definition document. The document is the
// definition struct itself, not wrapped in a field.
func LoadCUE(file string, data []byte) (*Definition, error) {
	ctx, _ := schema()
	v := ctx.CompileBytes(data, cue.Filename(file))
	if err := v.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, File: file, Message: cueErrorMessage(err)}
	}
	var raw map[string]any
	if err := v.Decode(&raw); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, File: file, Message: cueErrorMessage(err)}
	}
	return fromRaw(file, raw)
}

// fromRaw validates a decoded definition map against the CUE schema,
// then parses the query description so semantic errors surface at load
// time rather than at the first Build.
func fromRaw(file string, raw map[string]any) (*Definition, error) {
	ctx, def := schema()

	data := ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, File: file, Message: cueErrorMessage(err)}
	}
	unified := def.Unify(data)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, File: file, Message: cueErrorMessage(err)}
	}

	d := &Definition{}
	if name, ok := raw["name"].(string); ok {
		d.Name = name
	}
	if desc, ok := raw["description"].(string); ok {
		d.Description = desc
	}
	query, ok := raw["query"].(map[string]any)
	if !ok {
		return nil, &LoadError{Code: ErrCodeSchema, File: file, Message: "query must be a mapping"}
	}
	d.Query = query

	desc, err := queryir.ParseDescription(query)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeQuery, File: file, Message: err.Error()}
	}
	if err := desc.Validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeQuery, File: file, Message: err.Error()}
	}
	return d, nil
}

// cueErrorMessage flattens a CUE error list into one line per error
// with positions, dropping the multi-line details CUE renders by
// default.
func cueErrorMessage(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if pos := e.Position(); pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), msg)
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}
