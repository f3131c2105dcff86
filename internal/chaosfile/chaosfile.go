// Package chaosfile reads declarative scenario documents.
//
// A document names the application entry point, an optional global
// next-point and an ordered list of acts:
//
//	entry-point = "demoapp.factory"
//	next-point  = "demoapp.process_data"
//
//	[[act]]
//	[[act."demoapp.get_data"]]
//	exc = "KeyError,missing key"
//
// Every act key other than next-point is a call-site path bound to exactly
// one fault. The exc value is the fault type followed by its
// comma-separated arguments. TOML and YAML encodings are accepted.
package chaosfile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/seantiz/faultline/internal/entrypoint"
	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
)

// Document keys.
const (
	keyEntryPoint = "entry-point"
	keyNextPoint  = "next-point"
	keyAct        = "act"
	keyExc        = "exc"
	keyPanic      = "panic"
)

// FilePrefix is the name prefix Discover looks for.
const FilePrefix = "chaos_"

// MessageNoEntryPoint is the configuration error raised for documents
// without an entry point.
const MessageNoEntryPoint = "define entry point to run chaos testing"

// ErrUnknownFormat is returned for documents that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown document format")

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("chaosfile.schema.json", schemaJSON)

// Document is a parsed scenario document.
type Document struct {
	Name       string                   `json:"name"`
	Path       string                   `json:"path,omitempty"`
	Format     string                   `json:"format"`
	EntryPoint string                   `json:"entry_point"`
	NextPoint  string                   `json:"next_point,omitempty"`
	Acts       []scenario.ActDescriptor `json:"acts"`
}

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return model.FormatTOML, nil
	case ".yaml", ".yml":
		return model.FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, scenario.NewConfigurationError("load "+path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chaos file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	doc, err := Parse(name, data, format)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Parse decodes data in the given format, validates it and extracts the
// acts. Every error is a scenario configuration error.
func Parse(name string, data []byte, format string) (*Document, error) {
	raw, err := decode(data, format)
	if err != nil {
		return nil, err
	}

	ep, _ := raw[keyEntryPoint].(string)
	if strings.TrimSpace(ep) == "" {
		return nil, scenario.NewConfigurationError(MessageNoEntryPoint, nil)
	}
	if err := validate(raw); err != nil {
		return nil, scenario.NewConfigurationError("invalid chaos document "+name, err)
	}

	doc := &Document{
		Name:       name,
		Format:     format,
		EntryPoint: strings.TrimSpace(ep),
	}
	doc.NextPoint, _ = raw[keyNextPoint].(string)

	acts, _ := raw[keyAct].([]any)
	for i, a := range acts {
		desc, err := extractAct(a)
		if err != nil {
			return nil, scenario.NewConfigurationError(scenario.ActName(i), err)
		}
		doc.Acts = append(doc.Acts, desc)
	}
	return doc, nil
}

// decode returns the document as JSON-compatible values.
func decode(data []byte, format string) (map[string]any, error) {
	var raw map[string]any
	switch format {
	case model.FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, scenario.NewConfigurationError("decode toml", err)
		}
	case model.FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, scenario.NewConfigurationError("decode yaml", err)
		}
	default:
		return nil, scenario.NewConfigurationError("decode", fmt.Errorf("%w: %q", ErrUnknownFormat, format))
	}
	if raw == nil {
		raw = map[string]any{}
	}

	// The schema validator only understands encoding/json values.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, scenario.NewConfigurationError("normalize document", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, scenario.NewConfigurationError("normalize document", err)
	}
	return out, nil
}

func validate(raw map[string]any) error {
	return schema.Validate(any(raw))
}

func extractAct(v any) (scenario.ActDescriptor, error) {
	desc := scenario.ActDescriptor{Faults: make(map[string][]scenario.FaultSpec)}
	table, ok := v.(map[string]any)
	if !ok {
		return desc, fmt.Errorf("act must be a table")
	}

	for key, val := range table {
		if key == keyNextPoint {
			next, err := extractNextPoint(val)
			if err != nil {
				return desc, err
			}
			desc.NextPoint = next
			continue
		}

		var bindings []any
		switch b := val.(type) {
		case []any:
			bindings = b
		case map[string]any:
			bindings = []any{b}
		default:
			return desc, fmt.Errorf("call site %q: binding must be a table", key)
		}

		specs := make([]scenario.FaultSpec, 0, len(bindings))
		for _, b := range bindings {
			spec, err := extractBinding(b)
			if err != nil {
				return desc, fmt.Errorf("call site %q: %w", key, err)
			}
			specs = append(specs, spec)
		}
		desc.Faults[key] = specs
	}
	return desc, nil
}

func extractNextPoint(v any) (string, error) {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n), nil
	case map[string]any:
		exc, _ := n[keyExc].(string)
		return strings.TrimSpace(exc), nil
	default:
		return "", fmt.Errorf("next-point must be a string or a table with exc")
	}
}

func extractBinding(v any) (scenario.FaultSpec, error) {
	table, ok := v.(map[string]any)
	if !ok {
		return scenario.FaultSpec{}, fmt.Errorf("binding must be a table")
	}
	exc, _ := table[keyExc].(string)
	typ, args := SplitExc(exc)
	if typ == "" {
		return scenario.FaultSpec{}, fmt.Errorf("binding has no exc")
	}
	panics, _ := table[keyPanic].(bool)
	return scenario.FaultSpec{Type: typ, Args: args, Panic: panics}, nil
}

// SplitExc splits "Type,arg1,arg2" into the fault type and its arguments.
func SplitExc(exc string) (string, []string) {
	parts := strings.Split(exc, ",")
	typ := strings.TrimSpace(parts[0])
	var args []string
	for _, p := range parts[1:] {
		args = append(args, strings.TrimSpace(p))
	}
	return typ, args
}

// Build resolves the document's entry point and constructs its scenario.
// All configuration and resolution errors surface here.
func (d *Document) Build(reg *entrypoint.Registry, opts ...scenario.Option) (*scenario.Scenario, error) {
	inst, err := reg.Resolve(d.EntryPoint)
	if err != nil {
		return nil, scenario.NewResolutionError(fmt.Sprintf("resolve entry point %q", d.EntryPoint), err)
	}
	all := append(inst.Options(), scenario.WithName(d.Name))
	all = append(all, opts...)
	return scenario.New(inst.Factory, d.Acts, d.NextPoint, all...)
}

// Discover returns every chaos_*.toml, chaos_*.yaml and chaos_*.yml file
// under dir, sorted.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), FilePrefix) {
			return nil
		}
		if _, err := FormatFromPath(path); err == nil {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover chaos files in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
