// Package openapiemitter renders an OpenAPI 3 document from extracted
// routes: one path item per route template, operations keyed by rpc,
// parameters and request bodies derived from the route shape, and
// component schemas synthesized from the parsed messages.
package openapiemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/proto2rest/internal/httproute"
	"github.com/mark3labs/proto2rest/internal/proto"
)

// Options controls how the OpenAPI emitter writes the document.
type Options struct {
	OutDir   string   // required for Emit; target directory
	FileName string   // defaults to openapi.json or openapi.yaml by format
	Format   string   // "json" (default) or "yaml"
	Title    string   // defaults to "<package> API"
	Version  string   // defaults to "1.0.0"
	Force    bool     // overwrite existing files
	DryRun   bool     // don't write, only plan
	FS       afero.Fs // defaults to the OS filesystem
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files.
type Result struct {
	Planned []PlannedFile
}

// Build assembles the OpenAPI document without writing anything. Routes
// with non-standard methods are left out; the OpenAPI path item has no
// slot for custom verbs.
func Build(file *proto.File, routes []*httproute.Route, opts Options) (*openapi3.T, error) {
	if file == nil {
		return nil, fmt.Errorf("openapiemitter: nil file")
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		if file.Package != "" {
			title = file.Package + " API"
		} else {
			title = "API"
		}
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "1.0.0"
	}

	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &openapi3.Info{Title: title, Version: version},
		Paths:      openapi3.Paths{},
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}

	st := newSchemaTable(file, doc.Components.Schemas)
	for _, r := range routes {
		st.message(r.Input)
		st.message(r.Output)
	}

	for _, r := range routes {
		if !r.Method.IsStandard() {
			continue
		}
		path := docPath(r.Path)
		item := doc.Paths[path]
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths[path] = item
		}
		item.SetOperation(string(r.Method), buildOperation(r, st))
	}
	return doc, nil
}

var templateParam = regexp.MustCompile(`\{([^}]+)\}`)

// docPath rewrites dotted template parameters, {a.b} to {a_b}, so the path
// placeholders line up with the flattened parameter names.
func docPath(path string) string {
	return templateParam.ReplaceAllStringFunc(path, func(m string) string {
		return strings.ReplaceAll(m, ".", "_")
	})
}

func buildOperation(r *httproute.Route, st *schemaTable) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = r.OperationID()
	op.Summary = r.RPC
	op.Tags = []string{r.Service}

	for _, p := range r.PathParams {
		op.AddParameter(openapi3.NewPathParameter(p.Name).WithSchema(paramSchema(p.Type)))
	}
	for _, q := range r.QueryParams {
		op.AddParameter(openapi3.NewQueryParameter(q.Name).WithSchema(paramSchema(q.Type)))
	}

	if r.Body != nil {
		body := openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(st.bodyRef(r))
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}

	response := openapi3.NewResponse().
		WithDescription(r.RPC + " response").
		WithJSONSchemaRef(st.ref(r.Output))
	op.Responses = openapi3.Responses{"200": &openapi3.ResponseRef{Value: response}}
	return op
}

func paramSchema(t httproute.ParamType) *openapi3.Schema {
	switch t {
	case httproute.TypeInteger:
		return openapi3.NewIntegerSchema()
	case httproute.TypeFloat:
		return openapi3.NewFloat64Schema()
	case httproute.TypeBoolean:
		return openapi3.NewBoolSchema()
	default:
		return openapi3.NewStringSchema()
	}
}

// schemaTable synthesizes component schemas for every message the routes
// reach, walking message-typed fields transitively.
type schemaTable struct {
	file    *proto.File
	schemas openapi3.Schemas
}

func newSchemaTable(file *proto.File, schemas openapi3.Schemas) *schemaTable {
	return &schemaTable{file: file, schemas: schemas}
}

// message ensures a component schema exists for the referenced message
// and returns its component name.
func (st *schemaTable) message(ref string) string {
	name := lastSegment(ref)
	if _, ok := st.schemas[name]; ok {
		return name
	}
	schema := openapi3.NewObjectSchema()
	// register before walking fields so self references terminate
	st.schemas[name] = openapi3.NewSchemaRef("", schema)
	if msg := st.lookup(ref); msg != nil {
		for _, f := range msg.Fields {
			schema.WithPropertyRef(f.Name, st.fieldRef(f))
		}
	}
	return name
}

func (st *schemaTable) fieldRef(f *proto.Field) *openapi3.SchemaRef {
	base := st.baseRef(f.Type)
	if f.Label == proto.LabelRepeated {
		arr := openapi3.NewArraySchema()
		arr.Items = base
		return openapi3.NewSchemaRef("", arr)
	}
	return base
}

func (st *schemaTable) baseRef(ref proto.TypeReference) *openapi3.SchemaRef {
	if ref.IsScalar() {
		return openapi3.NewSchemaRef("", scalarSchema(ref.Name))
	}
	full := ref.FullyQualified()
	switch full {
	case "google.protobuf.Timestamp":
		return openapi3.NewSchemaRef("", openapi3.NewDateTimeSchema())
	case "google.protobuf.Duration":
		return openapi3.NewSchemaRef("", openapi3.NewStringSchema())
	}
	if strings.HasPrefix(full, "google.protobuf.") {
		return openapi3.NewSchemaRef("", openapi3.NewSchema())
	}
	if e := st.enum(ref.Name); e != nil {
		values := make([]any, 0, len(e.Values))
		for _, v := range e.Values {
			values = append(values, v.Name)
		}
		return openapi3.NewSchemaRef("", openapi3.NewStringSchema().WithEnum(values...))
	}
	return st.ref(ref.Name)
}

// ref returns a $ref to the message's component schema, creating it when
// missing.
func (st *schemaTable) ref(msgRef string) *openapi3.SchemaRef {
	name := st.message(msgRef)
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// bodyRef resolves the request body schema: the entire input message, or
// the schema of the named field.
func (st *schemaTable) bodyRef(r *httproute.Route) *openapi3.SchemaRef {
	if r.Body.EntireMessage {
		return st.ref(r.Input)
	}
	if msg := st.lookup(r.Input); msg != nil {
		for _, f := range msg.Fields {
			if f.Name == r.Body.Field {
				return st.fieldRef(f)
			}
		}
	}
	return openapi3.NewSchemaRef("", openapi3.NewObjectSchema())
}

func (st *schemaTable) lookup(ref string) *proto.Message {
	for _, m := range st.file.Messages {
		if m.Name == ref {
			return m
		}
	}
	return nil
}

func (st *schemaTable) enum(ref string) *proto.Enum {
	for _, e := range st.file.Enums {
		if e.Name == ref {
			return e
		}
	}
	return nil
}

func scalarSchema(name string) *openapi3.Schema {
	switch name {
	case "string":
		return openapi3.NewStringSchema()
	case "bool":
		return openapi3.NewBoolSchema()
	case "bytes":
		return openapi3.NewBytesSchema()
	case "int32", "sint32", "sfixed32":
		return openapi3.NewInt32Schema()
	case "int64", "sint64", "sfixed64":
		return openapi3.NewInt64Schema()
	case "uint32", "fixed32", "uint64", "fixed64":
		return openapi3.NewIntegerSchema()
	case "float", "double":
		return openapi3.NewFloat64Schema()
	default:
		return openapi3.NewSchema()
	}
}

func lastSegment(ref string) string {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// Marshal serializes the document as indented JSON or YAML.
func Marshal(doc *openapi3.T, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("openapiemitter: marshal json: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("openapiemitter: marshal json: %w", err)
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("openapiemitter: reshape document: %w", err)
		}
		out, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("openapiemitter: marshal yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("openapiemitter: unsupported format %q", format)
	}
}

// Emit builds the document and writes it under OutDir.
func Emit(ctx context.Context, file *proto.File, routes []*httproute.Route, opts Options) (*Result, error) {
	_ = ctx
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("openapiemitter: OutDir is required")
	}
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	doc, err := Build(file, routes, opts)
	if err != nil {
		return nil, err
	}
	content, err := Marshal(doc, opts.Format)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(opts.FileName)
	if name == "" {
		name = "openapi.json"
		if f := strings.ToLower(strings.TrimSpace(opts.Format)); f == "yaml" || f == "yml" {
			name = "openapi.yaml"
		}
	}

	files := map[string][]byte{name: content}
	planned := []PlannedFile{{RelPath: filepath.ToSlash(name), Size: len(content), Mode: 0o644}}

	if !opts.DryRun {
		if err := writeFiles(fs, opts.OutDir, files, opts.Force); err != nil {
			return nil, err
		}
	}
	return &Result{Planned: planned}, nil
}

func writeFiles(fs afero.Fs, outDir string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	for rel, content := range files {
		p := filepath.Join(abs, rel)
		if !force {
			if ok, _ := afero.Exists(fs, p); ok {
				return fmt.Errorf("openapiemitter: %q already exists (use --force to overwrite)", p)
			}
		}
		if err := fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := afero.WriteFile(fs, tmp, content, 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := fs.Rename(tmp, p); err != nil {
			_ = fs.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}
