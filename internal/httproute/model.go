package httproute

// Method is an HTTP method in its uppercase wire form.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// IsStandard reports whether the method is one of the five verbs a
// google.api.http annotation can name directly. Anything else is a custom
// method.
func (m Method) IsStandard() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// ParamType classifies a parameter for scaffolding and documentation.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
)

// PathParam is one {name} segment of a path template. Nested field
// references arrive already flattened, e.g. {book.id} becomes book_id.
type PathParam struct {
	Name     string    `json:"name" yaml:"name"`
	Type     ParamType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
}

// QueryParam is a query-string parameter attached to a route.
type QueryParam struct {
	Name     string    `json:"name" yaml:"name"`
	Type     ParamType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
}

// Body describes how a request payload maps onto the rpc input message.
type Body struct {
	// Field is the input message field carrying the payload; empty when the
	// entire message is the payload.
	Field         string `json:"field,omitempty" yaml:"field,omitempty"`
	ContentType   string `json:"contentType" yaml:"contentType"`
	EntireMessage bool   `json:"entireMessage" yaml:"entireMessage"`
}

// Route is one REST endpoint derived from a google.api.http annotation.
type Route struct {
	Service     string       `json:"service" yaml:"service"`
	RPC         string       `json:"rpc" yaml:"rpc"`
	Method      Method       `json:"method" yaml:"method"`
	Path        string       `json:"path" yaml:"path"`
	PathParams  []PathParam  `json:"pathParams,omitempty" yaml:"pathParams,omitempty"`
	QueryParams []QueryParam `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	Body        *Body        `json:"body,omitempty" yaml:"body,omitempty"`
	// Input and Output carry the rpc message type names as written in the
	// source file.
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// OperationID returns the Service_RPC identifier generated artifacts use.
func (r *Route) OperationID() string {
	return r.Service + "_" + r.RPC
}

// HasBody reports whether the route carries a request payload.
func (r *Route) HasBody() bool {
	return r.Body != nil
}

// Signature returns the "METHOD /path" pair that must be unique across a
// route set.
func (r *Route) Signature() string {
	return string(r.Method) + " " + r.Path
}
