package httproute

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mark3labs/proto2rest/internal/proto"
)

var pathParamPattern = regexp.MustCompile(`\{([^}]+)\}`)

const jsonContentType = "application/json"

// Settings configures route extraction.
type Settings struct {
	// InferQueryParams attaches the common query parameter list to every
	// route.
	InferQueryParams bool
	// CommonQueryParams are the candidate query parameter names.
	CommonQueryParams []string
	// ValidateHTTPMethods enables the method/body compatibility checks in
	// ValidateRoutes.
	ValidateHTTPMethods bool
	// AllowCustomMethods accepts verbs beyond the standard five.
	AllowCustomMethods bool
	// StrictValidation keeps only the query parameters the input message
	// declares, when that message is defined in the parsed file.
	StrictValidation bool
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		InferQueryParams:    true,
		CommonQueryParams:   []string{"page", "limit", "offset", "sort", "order", "filter", "search"},
		ValidateHTTPMethods: true,
		AllowCustomMethods:  false,
		StrictValidation:    true,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithQueryInference(infer bool) Option {
	return func(s *Settings) { s.InferQueryParams = infer }
}
func WithCommonQueryParams(names ...string) Option {
	return func(s *Settings) { s.CommonQueryParams = names }
}
func WithMethodValidation(validate bool) Option {
	return func(s *Settings) { s.ValidateHTTPMethods = validate }
}
func WithCustomMethods(allow bool) Option {
	return func(s *Settings) { s.AllowCustomMethods = allow }
}
func WithStrictValidation(strict bool) Option {
	return func(s *Settings) { s.StrictValidation = strict }
}

// Extractor turns parsed proto files into REST route descriptors.
type Extractor struct {
	settings Settings
}

// NewExtractor returns an Extractor with the given options applied over
// DefaultSettings.
func NewExtractor(opts ...Option) *Extractor {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return &Extractor{settings: settings}
}

// annotation is the decoded google.api.http payload of one method.
type annotation struct {
	Method   Method
	Path     string
	Body     string
	Bindings []proto.HTTPBinding
}

// Extract builds one Route per annotated service method, plus one per
// additional binding. Methods without a google.api.http annotation are
// skipped; the first malformed annotation aborts the batch.
func (e *Extractor) Extract(file *proto.File) ([]*Route, error) {
	var routes []*Route
	for _, svc := range file.Services {
		for _, m := range svc.Methods {
			ann, err := e.annotationFor(m)
			if err != nil {
				return nil, withRoute(err, svc.Name, m.Name)
			}
			if ann == nil {
				continue
			}
			query := e.queryParams(file, m)
			route, err := e.buildRoute(svc.Name, m, ann.Method, ann.Path, e.requestBody(ann), query)
			if err != nil {
				return nil, withRoute(err, svc.Name, m.Name)
			}
			routes = append(routes, route)

			for _, b := range ann.Bindings {
				method, err := e.parseMethod(b.Verb)
				if err != nil {
					return nil, withRoute(err, svc.Name, m.Name)
				}
				bound, err := e.buildRoute(svc.Name, m, method, b.Path, bindingBody(b, method), query)
				if err != nil {
					return nil, withRoute(err, svc.Name, m.Name)
				}
				routes = append(routes, bound)
			}
		}
	}
	return routes, nil
}

func (e *Extractor) buildRoute(service string, m *proto.RPC, method Method, path string, body *Body, query []QueryParam) (*Route, error) {
	if err := ValidatePathTemplate(path); err != nil {
		return nil, err
	}
	params, err := e.pathParams(path)
	if err != nil {
		return nil, err
	}
	return &Route{
		Service:     service,
		RPC:         m.Name,
		Method:      method,
		Path:        path,
		PathParams:  params,
		QueryParams: query,
		Body:        body,
		Input:       m.Input.Name,
		Output:      m.Output.Name,
	}, nil
}

// annotationFor returns the method's decoded annotation: the parse-time
// HTTPRule when present, else a google.api.http entry among the options.
// Methods without either yield nil.
func (e *Extractor) annotationFor(m *proto.RPC) (*annotation, error) {
	if m.HTTPRule != nil {
		method, err := e.parseMethod(m.HTTPRule.Verb)
		if err != nil {
			return nil, err
		}
		return &annotation{
			Method:   method,
			Path:     m.HTTPRule.Path,
			Body:     m.HTTPRule.Body,
			Bindings: m.HTTPRule.AdditionalBindings,
		}, nil
	}
	for _, opt := range m.Options {
		if opt.Name == "google.api.http" || opt.Name == "(google.api.http)" {
			return e.decodeAnnotation(opt.Value)
		}
	}
	return nil, nil
}

// decodeAnnotation decodes an option literal that skipped the parse-time
// intercept, as happens for programmatically built files. Malformed
// literals are errors here.
func (e *Extractor) decodeAnnotation(value proto.OptionValue) (*annotation, error) {
	mv, ok := value.(proto.MessageValue)
	if !ok {
		return nil, &Error{Code: ErrInvalidAnnotation, Message: "invalid HTTP annotation format"}
	}
	ann := &annotation{}
	found := false
	for _, entry := range mv.Entries {
		switch entry.Name {
		case "get", "post", "put", "patch", "delete":
			s, ok := entry.Value.(proto.StringValue)
			if !ok {
				continue
			}
			method, err := e.parseMethod(entry.Name)
			if err != nil {
				return nil, err
			}
			ann.Method = method
			ann.Path = s.Value
			found = true
		case "body":
			if s, ok := entry.Value.(proto.StringValue); ok {
				ann.Body = s.Value
			}
		case "additional_bindings":
			ann.Bindings = decodeBindings(entry.Value)
		}
	}
	if !found {
		return nil, &Error{Code: ErrInvalidAnnotation, Message: "invalid HTTP annotation: missing HTTP method or path"}
	}
	return ann, nil
}

// decodeBindings does not yet decode nested binding literals; rules built
// programmatically carry bindings in HTTPRule.AdditionalBindings instead.
func decodeBindings(proto.OptionValue) []proto.HTTPBinding {
	return nil
}

func (e *Extractor) parseMethod(verb string) (Method, error) {
	method := Method(strings.ToUpper(verb))
	if method.IsStandard() || e.settings.AllowCustomMethods {
		return method, nil
	}
	return "", &Error{Code: ErrInvalidAnnotation, Message: fmt.Sprintf("unsupported HTTP method: %s", method)}
}

func (e *Extractor) pathParams(path string) ([]PathParam, error) {
	var params []PathParam
	for _, match := range pathParamPattern.FindAllStringSubmatch(path, -1) {
		raw := match[1]
		if raw == "" {
			return nil, &Error{
				Code:    ErrInvalidPathParam,
				Message: fmt.Sprintf("invalid path parameter: %q in path %s", raw, path),
				Path:    path,
			}
		}
		name := strings.ReplaceAll(raw, ".", "_")
		params = append(params, PathParam{Name: name, Type: InferParamType(name), Required: true})
	}
	return params, nil
}

// queryParams returns the common query parameters for one method. With
// StrictValidation on and the input message defined in the file, only the
// names that message declares survive.
func (e *Extractor) queryParams(file *proto.File, m *proto.RPC) []QueryParam {
	if !e.settings.InferQueryParams {
		return nil
	}
	declared := e.inputFields(file, m)
	params := make([]QueryParam, 0, len(e.settings.CommonQueryParams))
	for _, name := range e.settings.CommonQueryParams {
		if declared != nil {
			if _, ok := declared[name]; !ok {
				continue
			}
		}
		params = append(params, QueryParam{Name: name, Type: InferParamType(name), Required: false})
	}
	return params
}

// inputFields returns the field-name set of the method's input message, or
// nil when strict validation is off or the message is not declared at the
// top level of file.
func (e *Extractor) inputFields(file *proto.File, m *proto.RPC) map[string]struct{} {
	if !e.settings.StrictValidation {
		return nil
	}
	for _, msg := range file.Messages {
		if msg.Name != m.Input.Name {
			continue
		}
		fields := make(map[string]struct{}, len(msg.Fields))
		for _, f := range msg.Fields {
			fields[f.Name] = struct{}{}
		}
		return fields
	}
	return nil
}

// requestBody maps the annotation body onto a payload descriptor. GET and
// DELETE routes never carry one; for the mutating verbs an absent or "*"
// body means the entire input message.
func (e *Extractor) requestBody(ann *annotation) *Body {
	switch ann.Method {
	case MethodPost, MethodPut, MethodPatch:
		if ann.Body == "" || ann.Body == "*" {
			return entireBody()
		}
		return fieldBody(ann.Body)
	default:
		return nil
	}
}

// bindingBody follows the same determination as the primary rule: GET and
// DELETE bindings never carry a payload, the mutating verbs default to the
// entire input message.
func bindingBody(b proto.HTTPBinding, method Method) *Body {
	switch method {
	case MethodPost, MethodPut, MethodPatch:
		if b.Body == "" || b.Body == "*" {
			return entireBody()
		}
		return fieldBody(b.Body)
	default:
		return nil
	}
}

func entireBody() *Body {
	return &Body{ContentType: jsonContentType, EntireMessage: true}
}

func fieldBody(field string) *Body {
	return &Body{Field: field, ContentType: jsonContentType}
}

// InferParamType guesses a parameter's type from its lowercased name.
// Identifier-like names stay strings.
func InferParamType(name string) ParamType {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, "_id") || n == "id":
		return TypeString
	case strings.Contains(n, "count") || strings.Contains(n, "size") || strings.Contains(n, "limit"):
		return TypeInteger
	case strings.Contains(n, "rate") || strings.Contains(n, "ratio"):
		return TypeFloat
	case strings.Contains(n, "enabled") || strings.Contains(n, "active"):
		return TypeBoolean
	default:
		return TypeString
	}
}

func withRoute(err error, service, rpc string) error {
	var herr *Error
	if errors.As(err, &herr) && herr.Route == "" {
		herr.Route = service + "." + rpc
	}
	return err
}
