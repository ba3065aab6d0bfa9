package scene

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for scene loading.
const (
	ErrCodeNotFound   = "E101"
	ErrCodeParse      = "E102"
	ErrCodeSchema     = "E103"
	ErrCodeValidation = "E104"
	ErrCodeFormat     = "E105"
)

// LoadError reports why a scene could not be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads a scene from path, choosing the format by extension
// (.yaml, .yml or .cue), and validates it.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "scene file not found"}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "reading scene file", Err: err}
	}

	var sc *Scene
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		sc, err = ParseYAML(data)
	case ".cue":
		sc, err = ParseCUE(path, data)
	default:
		return nil, &LoadError{Code: ErrCodeFormat, Path: path, Message: fmt.Sprintf("unsupported scene format %q", filepath.Ext(path))}
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Path == "" {
			le.Path = path
		}
		return nil, err
	}
	return sc, nil
}

// ParseYAML decodes and validates a YAML scene.
func ParseYAML(data []byte) (*Scene, error) {
	var sc Scene
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeParse, Message: "empty scene document"}
		}
		return nil, &LoadError{Code: ErrCodeParse, Message: "decoding YAML", Err: err}
	}
	return finish(&sc)
}

// ParseCUE evaluates a CUE scene against the embedded #Scene schema, then
// decodes and validates it. filename is used in CUE positions.
func ParseCUE(filename string, data []byte) (*Scene, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: "compiling scene schema", Err: err}
	}

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "compiling CUE", Err: err}
	}

	value := schema.LookupPath(cue.ParsePath("#Scene")).Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: "scene does not match schema", Err: err}
	}

	var sc Scene
	if err := value.Decode(&sc); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "decoding CUE", Err: err}
	}
	return finish(&sc)
}

func finish(sc *Scene) (*Scene, error) {
	normalizeScene(sc)
	if err := Validate(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func normalizeScene(sc *Scene) {
	for i := range sc.Globals {
		normalizeProperty(&sc.Globals[i])
	}
	for i := range sc.Entities {
		for j := range sc.Entities[i].Properties {
			normalizeProperty(&sc.Entities[i].Properties[j])
		}
	}
}

func normalizeProperty(p *Property) {
	if p.Constant != nil {
		p.Constant = Normalize(p.Constant)
	}
	if p.Storage != nil && p.Storage.Init != nil {
		p.Storage.Init = Normalize(p.Storage.Init)
	}
}

// Normalize converts decoded YAML/CUE values to the canonical dynamic types
// used by scenes: nil, bool, int64, float64, string, []any and
// map[string]any.
func Normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Normalize(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Normalize(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = Normalize(elem)
		}
		return out
	default:
		return v
	}
}
