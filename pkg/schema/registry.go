package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/geoserve/confgen/pkg/assembler"
)

// Registry compiles and caches JSON schemas from a directory. A service
// named "ogc" is validated against "<dir>/ogc.schema.json"; the
// permissions document against "<dir>/permissions.schema.json". Services
// without a schema file pass validation unchecked.
type Registry struct {
	dir string

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewRegistry creates a schema registry over a directory.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, compiled: make(map[string]*jsonschema.Schema)}
}

// HasSchema reports whether a schema file exists for the given service.
func (r *Registry) HasSchema(service string) bool {
	_, err := os.Stat(r.path(service))
	return err == nil
}

func (r *Registry) path(service string) string {
	return filepath.Join(r.dir, service+".schema.json")
}

func (r *Registry) schemaFor(service string) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sch, ok := r.compiled[service]; ok {
		return sch, nil
	}

	path := r.path(service)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.compiled[service] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read schema for %q: %w", service, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load schema for %q: %w", service, err)
	}
	sch, err := compiler.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %q: %w", service, err)
	}
	r.compiled[service] = sch
	return sch, nil
}

// Validate checks a document against the service's schema and returns the
// violations found. A missing schema yields no violations.
func (r *Registry) Validate(service string, document []byte) ([]assembler.Violation, error) {
	sch, err := r.schemaFor(service)
	if err != nil {
		return nil, err
	}
	if sch == nil {
		return nil, nil
	}

	var value interface{}
	if err := json.Unmarshal(document, &value); err != nil {
		return nil, fmt.Errorf("failed to parse %q document: %w", service, err)
	}

	err = sch.Validate(value)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("schema validation of %q failed: %w", service, err)
	}

	var violations []assembler.Violation
	collectLeaves(ve, &violations)
	return violations, nil
}

// collectLeaves flattens a validation error tree into its leaf causes,
// which carry the most specific instance locations.
func collectLeaves(ve *jsonschema.ValidationError, out *[]assembler.Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, assembler.Violation{
			Path:    dollarPath(ve.InstanceLocation),
			Message: ve.Message,
		})
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}

// dollarPath renders a JSON pointer as a $-rooted path, e.g.
// "/resources/0/name" becomes "$.resources[0].name".
func dollarPath(pointer string) string {
	if pointer == "" || pointer == "/" {
		return "$"
	}
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString("." + seg)
	}
	return b.String()
}
