// Package contract defines the data contracts exchanged with the execute_spec,
// query_trace and registry_import tools. Every contract is a JSON Schema
// document embedded in the binary and compiled once with
// github.com/santhosh-tekuri/jsonschema/v6. Parsing an untyped value through a
// contract either yields the typed Go shape or a *ValidationError listing every
// mismatched field.
package contract

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"math/big"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// Validator is implemented by every contract. Validate never mutates raw.
	Validator interface {
		// Name returns the contract identifier (e.g. "trace_query_outcome").
		Name() string
		// Validate returns a *ValidationError when raw does not satisfy the
		// contract.
		Validate(raw any) error
	}

	// Schema is a compiled contract producing values of type T.
	Schema[T any] struct {
		name     string
		schema   *jsonschema.Schema
		document json.RawMessage
	}
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaBase is the base URL the embedded documents are registered under so
// relative $ref values between them resolve without any network access.
const schemaBase = "https://goa.design/specfactory/schemas/"

var compiled = mustCompileAll()

type compiledSchema struct {
	schema   *jsonschema.Schema
	document json.RawMessage
}

func mustCompileAll() map[string]compiledSchema {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(fmt.Errorf("read embedded schemas: %w", err))
	}
	c := jsonschema.NewCompiler()
	raw := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			panic(fmt.Errorf("read schema %s: %w", e.Name(), err))
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			panic(fmt.Errorf("decode schema %s: %w", e.Name(), err))
		}
		if err := c.AddResource(schemaBase+e.Name(), doc); err != nil {
			panic(fmt.Errorf("add schema resource %s: %w", e.Name(), err))
		}
		raw[e.Name()] = data
	}
	out := make(map[string]compiledSchema, len(raw))
	for file, data := range raw {
		s, err := c.Compile(schemaBase + file)
		if err != nil {
			panic(fmt.Errorf("compile schema %s: %w", file, err))
		}
		out[strings.TrimSuffix(file, ".json")] = compiledSchema{schema: s, document: data}
	}
	return out
}

func newSchema[T any](name string) *Schema[T] {
	cs, ok := compiled[name]
	if !ok {
		panic(fmt.Sprintf("contract: no embedded schema named %q", name))
	}
	s := &Schema[T]{name: name, schema: cs.schema, document: cs.document}
	register(s)
	return s
}

// Name returns the contract identifier.
func (s *Schema[T]) Name() string { return s.name }

// Document returns the JSON Schema document backing the contract.
func (s *Schema[T]) Document() json.RawMessage {
	return append(json.RawMessage(nil), s.document...)
}

// Example returns the first entry of the document's "examples" keyword as
// compact JSON, or nil when there is none.
func (s *Schema[T]) Example() json.RawMessage {
	var doc struct {
		Examples []json.RawMessage `json:"examples"`
	}
	if err := json.Unmarshal(s.document, &doc); err != nil || len(doc.Examples) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc.Examples[0]); err != nil {
		return nil
	}
	return buf.Bytes()
}

// Validate checks raw against the contract without decoding it.
func (s *Schema[T]) Validate(raw any) error {
	_, err := s.Parse(raw)
	return err
}

// Parse validates raw and decodes it into T. raw may be any JSON-encodable Go
// value, a json.RawMessage or a []byte holding JSON.
func (s *Schema[T]) Parse(raw any) (T, error) {
	var zero T
	doc, err := normalize(raw)
	if err != nil {
		return zero, rootIssue(s.name, err.Error())
	}
	return s.parseNormalized(doc)
}

// parseNormalized validates doc and decodes the typed value from its
// canonical form, so integral numbers such as 3.0 fill integer fields.
func (s *Schema[T]) parseNormalized(doc any) (T, error) {
	var out T
	if err := s.schema.Validate(doc); err != nil {
		return out, newValidationError(s.name, err)
	}
	data, err := json.Marshal(canonical(doc))
	if err != nil {
		return out, rootIssue(s.name, err.Error())
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, decodeError(s.name, err)
	}
	return out, nil
}

// normalize round-trips raw through JSON so the validator only ever sees the
// generic shapes produced by jsonschema.UnmarshalJSON and the caller's value
// is never touched.
func normalize(raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON encodable: %w", err)
		}
		data = b
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc, nil
}

// canonical copies doc, rewriting integral json.Number values ("3.0",
// "2e5") in plain integer form.
func canonical(doc any) any {
	switch v := doc.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = canonical(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = canonical(e)
		}
		return out
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return v
		}
		f, ok := new(big.Float).SetPrec(1024).SetString(string(v))
		if !ok || !f.IsInt() {
			return v
		}
		i, _ := f.Int(nil)
		return json.Number(i.String())
	default:
		return doc
	}
}

var registry = map[string]Validator{}

func register(v Validator) { registry[v.Name()] = v }

// Lookup returns the contract registered under name.
func Lookup(name string) (Validator, bool) {
	v, ok := registry[name]
	return v, ok
}

// Names lists the registered contract names in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
