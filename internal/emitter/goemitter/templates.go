package goemitter

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/serenize/snaker"

	"github.com/mark3labs/proto2rest/internal/httproute"
	"github.com/mark3labs/proto2rest/internal/proto"
)

// projectData is the root template context.
type projectData struct {
	Package   string
	Module    string
	Source    string
	Inline    bool
	NeedsTime bool
	Services  []*serviceData
	Types     []typeData
}

type serviceData struct {
	Package      string
	Name         string // proto service name
	Interface    string
	Controller   string
	VarName      string
	FileBase     string
	Inline       bool
	NeedsJSON    bool
	NeedsStrconv bool
	Handlers     []*handlerData
	// Methods holds one handler per distinct rpc; additional bindings
	// share the interface method of their primary route.
	Methods []*handlerData
}

type handlerData struct {
	RPC      string
	FuncName string
	Method   string
	Path     string
	Pattern  string
	Input    string
	Output   string
	Decode   string
}

type typeData struct {
	Name   string
	Fields []fieldData
}

type fieldData struct {
	Name string
	Type string
	Tag  string
}

func newProjectData(pkg, module, source string, inline bool, file *proto.File, routes []*httproute.Route) *projectData {
	tt := newTypeTable(file)
	for _, r := range routes {
		tt.message(r.Input)
		tt.message(r.Output)
	}

	data := &projectData{Package: pkg, Module: module, Source: source, Inline: inline}
	for _, svc := range file.Services {
		var svcRoutes []*httproute.Route
		for _, r := range routes {
			if r.Service == svc.Name {
				svcRoutes = append(svcRoutes, r)
			}
		}
		if len(svcRoutes) == 0 {
			continue
		}
		data.Services = append(data.Services, buildService(pkg, inline, svc.Name, svcRoutes, tt))
	}
	data.Types = tt.sorted()
	data.NeedsTime = tt.needsTime
	return data
}

func buildService(pkg string, inline bool, name string, routes []*httproute.Route, tt *typeTable) *serviceData {
	goName := goIdent(name)
	iface := goName
	if tt.has(iface) {
		// a message already claims the name
		iface += "Service"
	}
	sd := &serviceData{
		Package:    pkg,
		Name:       name,
		Interface:  iface,
		Controller: goName + "Controller",
		VarName:    lowerIdent(name),
		FileBase:   snaker.CamelToSnake(name),
		Inline:     inline,
	}
	funcSeen := map[string]int{}
	methodSeen := map[string]bool{}
	for _, r := range routes {
		h := buildHandler(r, tt, sd, funcSeen)
		sd.Handlers = append(sd.Handlers, h)
		if !methodSeen[h.RPC] {
			methodSeen[h.RPC] = true
			sd.Methods = append(sd.Methods, h)
		}
	}
	return sd
}

func buildHandler(r *httproute.Route, tt *typeTable, sd *serviceData, funcSeen map[string]int) *handlerData {
	rpc := goIdent(r.RPC)
	fn := "handle" + rpc
	funcSeen[fn]++
	if n := funcSeen[fn]; n > 1 {
		fn += strconv.Itoa(n)
	}
	h := &handlerData{
		RPC:      rpc,
		FuncName: fn,
		Method:   string(r.Method),
		Path:     r.Path,
		Pattern:  string(r.Method) + " " + muxPattern(r.Path),
		Input:    tt.message(r.Input),
		Output:   tt.message(r.Output),
	}

	b := &decodeBuilder{
		tt:  tt,
		sd:  sd,
		msg: tt.lookup(r.Input),
		vars: map[string]bool{
			"c": true, "r": true, "w": true, "in": true, "out": true,
			"err": true, "q": true, "v": true, "mux": true,
		},
	}
	var blocks []string
	if blk := b.body(r); blk != "" {
		blocks = append(blocks, blk)
	}
	for _, p := range r.PathParams {
		if blk := b.pathParam(p); blk != "" {
			blocks = append(blocks, blk)
		}
	}
	for _, p := range r.QueryParams {
		if blk := b.queryParam(p); blk != "" {
			blocks = append(blocks, blk)
		}
	}
	h.Decode = strings.Join(blocks, "\n")
	return h
}

// decodeBuilder renders the request-decoding statements of one handler.
// Parameters that do not match a field of the input message are left out,
// so the produced code always compiles against the generated structs.
type decodeBuilder struct {
	tt   *typeTable
	sd   *serviceData
	msg  *proto.Message
	vars map[string]bool
}

func (b *decodeBuilder) body(r *httproute.Route) string {
	if r.Body == nil {
		return ""
	}
	target := "in"
	if !r.Body.EntireMessage {
		if f := fieldByName(b.msg, r.Body.Field); f != nil {
			target = "&in." + goIdent(f.Name)
		}
		// unknown body field: decode the entire message instead
	}
	b.sd.NeedsJSON = true
	return "\tif err := json.NewDecoder(r.Body).Decode(" + target + "); err != nil {\n" +
		"\t\thttp.Error(w, \"invalid request body\", http.StatusBadRequest)\n" +
		"\t\treturn\n" +
		"\t}"
}

func (b *decodeBuilder) pathParam(p httproute.PathParam) string {
	f := fieldByName(b.msg, p.Name)
	if f == nil || f.Label == proto.LabelRepeated {
		return ""
	}
	goField := goIdent(f.Name)
	src := "r.PathValue(" + strconv.Quote(p.Name) + ")"
	switch kind := b.fieldKind(f); kind {
	case "string":
		return "\tin." + goField + " = " + src
	case "bytes":
		return "\tin." + goField + " = []byte(" + src + ")"
	case "parse":
		plan := scalarParse[f.Type.Name]
		b.sd.NeedsStrconv = true
		v := b.fresh(lowerIdent(p.Name))
		lines := []string{
			"\t" + v + ", err := " + plan.call(src),
			"\tif err != nil {",
			"\t\thttp.Error(w, \"invalid path parameter " + p.Name + "\", http.StatusBadRequest)",
			"\t\treturn",
			"\t}",
			"\tin." + goField + " = " + plan.convert(v),
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}

func (b *decodeBuilder) queryParam(p httproute.QueryParam) string {
	f := fieldByName(b.msg, p.Name)
	if f == nil || f.Label == proto.LabelRepeated {
		return ""
	}
	goField := goIdent(f.Name)
	head := "\tif q := r.URL.Query().Get(" + strconv.Quote(p.Name) + "); q != \"\" {"
	switch kind := b.fieldKind(f); kind {
	case "string":
		return head + "\n\t\tin." + goField + " = q\n\t}"
	case "bytes":
		return head + "\n\t\tin." + goField + " = []byte(q)\n\t}"
	case "parse":
		plan := scalarParse[f.Type.Name]
		b.sd.NeedsStrconv = true
		lines := []string{
			head,
			"\t\tv, err := " + plan.call("q"),
			"\t\tif err != nil {",
			"\t\t\thttp.Error(w, \"invalid query parameter " + p.Name + "\", http.StatusBadRequest)",
			"\t\t\treturn",
			"\t\t}",
			"\t\tin." + goField + " = " + plan.convert("v"),
			"\t}",
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}

// fieldKind classifies how a path or query value lands in the field:
// direct string assign, bytes conversion, strconv parse, or skip.
func (b *decodeBuilder) fieldKind(f *proto.Field) string {
	name := f.Type.Name
	switch name {
	case "string":
		return "string"
	case "bytes":
		return "bytes"
	}
	if _, ok := scalarParse[name]; ok {
		return "parse"
	}
	if b.tt.isEnum(name) {
		// enums render as string fields
		return "string"
	}
	return ""
}

func (b *decodeBuilder) fresh(base string) string {
	if base == "" {
		base = "value"
	}
	if goReserved[base] {
		base += "Param"
	}
	name := base
	for i := 2; b.vars[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	b.vars[name] = true
	return name
}

type parsePlan struct {
	fn   string
	bits int
	conv string
}

func (p parsePlan) call(src string) string {
	switch p.fn {
	case "ParseInt", "ParseUint":
		return fmt.Sprintf("strconv.%s(%s, 10, %d)", p.fn, src, p.bits)
	case "ParseFloat":
		return fmt.Sprintf("strconv.ParseFloat(%s, 64)", src)
	default:
		return fmt.Sprintf("strconv.ParseBool(%s)", src)
	}
}

func (p parsePlan) convert(v string) string {
	if p.conv == "" {
		return v
	}
	return p.conv + "(" + v + ")"
}

var scalarParse = map[string]parsePlan{
	"int32":    {fn: "ParseInt", bits: 32, conv: "int32"},
	"sint32":   {fn: "ParseInt", bits: 32, conv: "int32"},
	"sfixed32": {fn: "ParseInt", bits: 32, conv: "int32"},
	"int64":    {fn: "ParseInt", bits: 64},
	"sint64":   {fn: "ParseInt", bits: 64},
	"sfixed64": {fn: "ParseInt", bits: 64},
	"uint32":   {fn: "ParseUint", bits: 32, conv: "uint32"},
	"fixed32":  {fn: "ParseUint", bits: 32, conv: "uint32"},
	"uint64":   {fn: "ParseUint", bits: 64},
	"fixed64":  {fn: "ParseUint", bits: 64},
	"double":   {fn: "ParseFloat"},
	"float":    {fn: "ParseFloat", conv: "float32"},
	"bool":     {fn: "ParseBool"},
}

var scalarGoTypes = map[string]string{
	"string":   "string",
	"bool":     "bool",
	"int32":    "int32",
	"sint32":   "int32",
	"sfixed32": "int32",
	"int64":    "int64",
	"sint64":   "int64",
	"sfixed64": "int64",
	"uint32":   "uint32",
	"fixed32":  "uint32",
	"uint64":   "uint64",
	"fixed64":  "uint64",
	"double":   "float64",
	"float":    "float32",
	"bytes":    "[]byte",
}

var wellKnownGoTypes = map[string]string{
	"google.protobuf.Timestamp": "time.Time",
	"google.protobuf.Duration":  "time.Duration",
	"google.protobuf.Empty":     "struct{}",
}

// typeTable synthesizes one Go struct per message the routes reach,
// walking message-typed fields transitively. Unknown references still get
// an empty struct so the generated module compiles.
type typeTable struct {
	file      *proto.File
	types     map[string]*typeData
	needsTime bool
}

func newTypeTable(file *proto.File) *typeTable {
	return &typeTable{file: file, types: map[string]*typeData{}}
}

// message ensures a struct exists for the referenced message and returns
// its Go type name.
func (tt *typeTable) message(ref string) string {
	name := goIdent(lastSegment(ref))
	if _, ok := tt.types[name]; ok {
		return name
	}
	td := &typeData{Name: name}
	// register before walking fields so self references terminate
	tt.types[name] = td
	if msg := tt.lookup(ref); msg != nil {
		for _, f := range msg.Fields {
			td.Fields = append(td.Fields, fieldData{
				Name: goIdent(f.Name),
				Type: tt.fieldType(f),
				Tag:  f.Name,
			})
		}
	}
	return name
}

func (tt *typeTable) fieldType(f *proto.Field) string {
	base := tt.baseType(f.Type)
	if f.Label == proto.LabelRepeated {
		return "[]" + base
	}
	return base
}

func (tt *typeTable) baseType(ref proto.TypeReference) string {
	if ref.IsScalar() {
		return scalarGoTypes[ref.Name]
	}
	full := ref.FullyQualified()
	if goType, ok := wellKnownGoTypes[full]; ok {
		if strings.HasPrefix(goType, "time.") {
			tt.needsTime = true
		}
		return goType
	}
	if strings.HasPrefix(full, "google.protobuf.") {
		return "any"
	}
	if tt.isEnum(ref.Name) {
		return "string"
	}
	// message fields are pointers so recursive messages stay legal
	return "*" + tt.message(ref.Name)
}

func (tt *typeTable) lookup(ref string) *proto.Message {
	for _, m := range tt.file.Messages {
		if m.Name == ref {
			return m
		}
	}
	return nil
}

func (tt *typeTable) isEnum(ref string) bool {
	for _, e := range tt.file.Enums {
		if e.Name == ref {
			return true
		}
	}
	return false
}

func (tt *typeTable) has(name string) bool {
	_, ok := tt.types[name]
	return ok
}

func (tt *typeTable) sorted() []typeData {
	names := make([]string, 0, len(tt.types))
	for name := range tt.types {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]typeData, 0, len(names))
	for _, name := range names {
		out = append(out, *tt.types[name])
	}
	return out
}

func fieldByName(msg *proto.Message, name string) *proto.Field {
	if msg == nil {
		return nil
	}
	for _, f := range msg.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

var templateParam = regexp.MustCompile(`\{([^}]+)\}`)

// muxPattern rewrites dotted template parameters, {a.b} to {a_b}, since
// ServeMux wildcard names must be identifiers.
func muxPattern(path string) string {
	return templateParam.ReplaceAllStringFunc(path, func(m string) string {
		return strings.ReplaceAll(m, ".", "_")
	})
}

// goIdent converts a proto identifier to an exported Go identifier,
// normalizing through snake case so user_id becomes UserID.
func goIdent(s string) string {
	s = strings.ReplaceAll(s, ".", "_")
	out := snaker.SnakeToCamel(snaker.CamelToSnake(s))
	if out == "" {
		return "X"
	}
	return out
}

func lowerIdent(s string) string {
	s = strings.ReplaceAll(s, ".", "_")
	out := snaker.SnakeToCamelLower(snaker.CamelToSnake(s))
	if out == "" {
		return "x"
	}
	return out
}

func lastSegment(ref string) string {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

var goReserved = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true,
	"continue": true, "default": true, "defer": true, "else": true,
	"fallthrough": true, "for": true, "func": true, "go": true,
	"goto": true, "if": true, "import": true, "interface": true,
	"map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true,
	"var": true,
}

func renderFile(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("goemitter: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

var tmpl = template.Must(template.New("goemitter").Funcs(template.FuncMap{
	"snake":   snaker.CamelToSnake,
	"camel":   lowerIdent,
	"pascal":  goIdent,
	"pattern": muxPattern,
}).Parse(projectTemplates))

const projectTemplates = `
{{- define "header"}}// Code generated by proto2rest. DO NOT EDIT.{{end -}}

{{define "gomod"}}module {{.Module}}

go 1.22
{{end}}

{{define "types"}}{{template "header" .}}

package {{.Package}}
{{- if .NeedsTime}}

import "time"
{{- end}}
{{- range .Types}}

type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} ` + "`json:\"{{.Tag}}\"`" + `
{{- end}}
}
{{- end}}
{{end}}

{{define "controller"}}{{template "header" .}}

package {{.Package}}

import (
{{- if .Inline}}
	"context"
{{- end}}
{{- if .NeedsJSON}}
	"encoding/json"
{{- end}}
{{- if .Inline}}
	"errors"
{{- end}}
	"net/http"
{{- if .NeedsStrconv}}
	"strconv"
{{- end}}
)

// {{.Controller}} exposes {{.Name}} over HTTP.
type {{.Controller}} struct {
	service {{.Interface}}
}

func New{{.Controller}}(service {{.Interface}}) *{{.Controller}} {
	return &{{.Controller}}{service: service}
}

// Register attaches every {{.Name}} route to mux.
func (c *{{.Controller}}) Register(mux *http.ServeMux) {
{{- range .Handlers}}
	mux.HandleFunc({{printf "%q" .Pattern}}, c.{{.FuncName}})
{{- end}}
}
{{- range .Handlers}}

func (c *{{$.Controller}}) {{.FuncName}}(w http.ResponseWriter, r *http.Request) {
	in := &{{.Input}}{}
{{- if .Decode}}
{{.Decode}}
{{- end}}
	out, err := c.service.{{.RPC}}(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
{{- end}}
{{- if .Inline}}

{{template "servicedecl" .}}
{{- end}}
{{end}}

{{define "servicedecl"}}// {{.Interface}} is the application behind {{.Controller}}.
// Implement it and pass your implementation to New{{.Controller}}.
type {{.Interface}} interface {
{{- range .Methods}}
	{{.RPC}}(ctx context.Context, in *{{.Input}}) (*{{.Output}}, error)
{{- end}}
}

// Unimplemented{{.Interface}} rejects every call. Embed it to implement
// methods incrementally.
type Unimplemented{{.Interface}} struct{}
{{range .Methods}}
func (Unimplemented{{$.Interface}}) {{.RPC}}(context.Context, *{{.Input}}) (*{{.Output}}, error) {
	return nil, errors.New("{{.RPC}} is not implemented")
}
{{end}}{{end}}

{{define "service"}}{{template "header" .}}

package {{.Package}}

import (
	"context"
	"errors"
)

{{template "servicedecl" .}}{{end}}

{{define "server"}}{{template "header" .}}

package {{.Package}}

import (
	"encoding/json"
	"net/http"
)

// NewServeMux assembles every generated controller onto one mux.
func NewServeMux({{range $i, $s := .Services}}{{if $i}}, {{end}}{{$s.VarName}} {{$s.Interface}}{{end}}) *http.ServeMux {
	mux := http.NewServeMux()
{{- range .Services}}
	New{{.Controller}}({{.VarName}}).Register(mux)
{{- end}}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
{{end}}

{{define "main"}}{{template "header" .}}

package main

import (
	"log"
	"net/http"

	{{.Package}} {{printf "%q" .Module}}
)

func main() {
{{- if .Services}}
	mux := {{.Package}}.NewServeMux(
{{- range .Services}}
		{{$.Package}}.Unimplemented{{.Interface}}{},
{{- end}}
	)
{{- else}}
	mux := {{.Package}}.NewServeMux()
{{- end}}
	log.Println("listening on :8080")
	log.Fatal(http.ListenAndServe(":8080", mux))
}
{{end}}

{{define "readme"}}# {{.Package}} HTTP server

Generated server scaffolding{{if .Source}} for ` + "`{{.Source}}`" + `{{end}}.
Handlers decode path, query, and body inputs into the request structs and
delegate to the service interfaces; implement those and wire them up in
cmd/server/main.go.

## Routes
{{range .Services}}
### {{.Name}}

| Method | Path | RPC |
| --- | --- | --- |
{{- range .Handlers}}
| {{.Method}} | ` + "`{{.Path}}`" + ` | {{.RPC}} |
{{- end}}
{{end}}
## Run

	go run ./cmd/server
{{end}}
`
