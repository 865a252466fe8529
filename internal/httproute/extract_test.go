package httproute

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mark3labs/proto2rest/internal/proto"
)

const userServiceProto = `syntax = "proto3";

package user.v1;

import "google/api/annotations.proto";

service UserService {
  rpc GetUser(GetUserRequest) returns (User) {
    option (google.api.http) = {
      get: "/v1/users/{user_id}"
    };
  }
  rpc ListUsers(ListUsersRequest) returns (ListUsersResponse) {
    option (google.api.http) = {
      get: "/v1/users"
    };
  }
  rpc CreateUser(CreateUserRequest) returns (User) {
    option (google.api.http) = {
      post: "/v1/users"
      body: "*"
    };
  }
  rpc UpdateUser(UpdateUserRequest) returns (User) {
    option (google.api.http) = {
      patch: "/v1/users/{user_id}"
      body: "user"
    };
  }
  rpc DeleteUser(DeleteUserRequest) returns (Empty) {
    option (google.api.http) = {
      delete: "/v1/users/{user_id}"
    };
  }
}

message GetUserRequest {
  string user_id = 1;
}

message ListUsersRequest {
  int32 limit = 1;
  string page = 2;
}

message ListUsersResponse {
  repeated User users = 1;
}

message CreateUserRequest {
  User user = 1;
}

message UpdateUserRequest {
  string user_id = 1;
  User user = 2;
}

message DeleteUserRequest {
  string user_id = 1;
}

message Empty {}

message User {
  string user_id = 1;
  string name = 2;
}
`

func parseFile(t *testing.T, src string) *proto.File {
	t.Helper()
	file, err := proto.NewParser(proto.WithImportResolution(false)).Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return file
}

func extractRoutes(t *testing.T, src string, opts ...Option) []*Route {
	t.Helper()
	routes, err := NewExtractor(opts...).Extract(parseFile(t, src))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return routes
}

func TestExtract_GetUserRoute(t *testing.T) {
	t.Parallel()

	routes := extractRoutes(t, `syntax = "proto3";
package user.v1;
service UserService {
  rpc GetUser(GetUserRequest) returns (User) {
    option (google.api.http) = {
      get: "/v1/users/{user_id}"
    };
  }
}
message GetUserRequest {
  string user_id = 1;
}
message User {
  string user_id = 1;
}
`)
	if len(routes) != 1 {
		t.Fatalf("routes = %d", len(routes))
	}
	r := routes[0]
	if r.Method != MethodGet || r.Path != "/v1/users/{user_id}" {
		t.Fatalf("route = %+v", r)
	}
	if r.Service != "UserService" || r.RPC != "GetUser" {
		t.Fatalf("route = %+v", r)
	}
	if r.OperationID() != "UserService_GetUser" {
		t.Fatalf("operation id = %q", r.OperationID())
	}
	want := []PathParam{{Name: "user_id", Type: TypeString, Required: true}}
	if !reflect.DeepEqual(r.PathParams, want) {
		t.Fatalf("path params = %+v", r.PathParams)
	}
	if len(r.QueryParams) != 0 {
		t.Fatalf("query params = %+v", r.QueryParams)
	}
	if r.HasBody() {
		t.Fatalf("body = %+v", r.Body)
	}
	if r.Input != "GetUserRequest" || r.Output != "User" {
		t.Fatalf("types = %q -> %q", r.Input, r.Output)
	}
}

func TestExtract_UserService(t *testing.T) {
	t.Parallel()

	routes := extractRoutes(t, userServiceProto)
	if len(routes) != 5 {
		t.Fatalf("routes = %d", len(routes))
	}

	byRPC := make(map[string]*Route, len(routes))
	for _, r := range routes {
		byRPC[r.RPC] = r
	}

	list := byRPC["ListUsers"]
	if list.Method != MethodGet || list.Path != "/v1/users" {
		t.Fatalf("ListUsers = %+v", list)
	}
	wantQuery := []QueryParam{
		{Name: "page", Type: TypeString, Required: false},
		{Name: "limit", Type: TypeInteger, Required: false},
	}
	if !reflect.DeepEqual(list.QueryParams, wantQuery) {
		t.Fatalf("ListUsers query = %+v", list.QueryParams)
	}

	create := byRPC["CreateUser"]
	if create.Method != MethodPost || !create.HasBody() {
		t.Fatalf("CreateUser = %+v", create)
	}
	if !create.Body.EntireMessage || create.Body.Field != "" || create.Body.ContentType != "application/json" {
		t.Fatalf("CreateUser body = %+v", create.Body)
	}

	update := byRPC["UpdateUser"]
	if update.Method != MethodPatch || update.Body == nil || update.Body.Field != "user" || update.Body.EntireMessage {
		t.Fatalf("UpdateUser = %+v", update.Body)
	}

	del := byRPC["DeleteUser"]
	if del.Method != MethodDelete || del.HasBody() {
		t.Fatalf("DeleteUser = %+v", del)
	}
	if len(del.PathParams) != 1 || del.PathParams[0].Name != "user_id" {
		t.Fatalf("DeleteUser params = %+v", del.PathParams)
	}
}

func TestExtract_NestedFieldFlattened(t *testing.T) {
	t.Parallel()

	routes := extractRoutes(t, `syntax = "proto3";
service Shop {
  rpc GetProduct(GetProductRequest) returns (Product) {
    option (google.api.http) = {
      get: "/v1/products/{product.id}/reviews/{review.author.name}"
    };
  }
}
`)
	want := []PathParam{
		{Name: "product_id", Type: TypeString, Required: true},
		{Name: "review_author_name", Type: TypeString, Required: true},
	}
	if !reflect.DeepEqual(routes[0].PathParams, want) {
		t.Fatalf("params = %+v", routes[0].PathParams)
	}
}

func TestInferParamType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want ParamType
	}{
		{"id", TypeString},
		{"user_id", TypeString},
		{"ID", TypeString},
		{"page_count", TypeInteger},
		{"size", TypeInteger},
		{"limit", TypeInteger},
		{"success_rate", TypeFloat},
		{"aspect_ratio", TypeFloat},
		{"enabled", TypeBoolean},
		{"is_active", TypeBoolean},
		{"rate_id", TypeString},
		{"active_count", TypeInteger},
		{"name", TypeString},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferParamType(tt.name); got != tt.want {
				t.Fatalf("InferParamType(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestExtract_QueryParamsLenientWhenInputUnknown(t *testing.T) {
	t.Parallel()

	routes := extractRoutes(t, `syntax = "proto3";
service S {
  rpc List(ExternalRequest) returns (ExternalResponse) {
    option (google.api.http) = {
      get: "/v1/items"
    };
  }
}
`)
	if got := len(routes[0].QueryParams); got != 7 {
		t.Fatalf("query params = %d: %+v", got, routes[0].QueryParams)
	}
}

func TestExtract_QueryParamsWithoutStrictValidation(t *testing.T) {
	t.Parallel()

	routes := extractRoutes(t, userServiceProto, WithStrictValidation(false))
	byRPC := make(map[string]*Route, len(routes))
	for _, r := range routes {
		byRPC[r.RPC] = r
	}
	if got := len(byRPC["GetUser"].QueryParams); got != 7 {
		t.Fatalf("query params = %d", got)
	}
}

func TestExtract_QueryInferenceDisabled(t *testing.T) {
	t.Parallel()

	routes := extractRoutes(t, userServiceProto, WithQueryInference(false))
	for _, r := range routes {
		if len(r.QueryParams) != 0 {
			t.Fatalf("%s query params = %+v", r.RPC, r.QueryParams)
		}
	}
}

func TestExtract_UnannotatedMethodsSkipped(t *testing.T) {
	t.Parallel()

	routes := extractRoutes(t, `syntax = "proto3";
service S {
  rpc Internal(Req) returns (Resp);
  rpc Also(Req) returns (Resp) {
    option deprecated = true;
  }
}
`)
	if len(routes) != 0 {
		t.Fatalf("routes = %+v", routes)
	}
}

func TestExtract_OptionScanFallback(t *testing.T) {
	t.Parallel()

	// Files built programmatically have the option in place rather than a
	// decoded HTTPRule.
	for _, name := range []string{"google.api.http", "(google.api.http)"} {
		file := &proto.File{
			Services: []*proto.Service{{
				Name: "S",
				Methods: []*proto.RPC{{
					Name:   "Get",
					Input:  proto.TypeReference{Name: "Req"},
					Output: proto.TypeReference{Name: "Resp"},
					Options: []proto.Option{{
						Name: name,
						Value: proto.MessageValue{Entries: []proto.MessageEntry{
							{Name: "get", Value: proto.StringValue{Value: "/v1/things/{id}"}},
						}},
					}},
				}},
			}},
		}
		routes, err := NewExtractor().Extract(file)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(routes) != 1 || routes[0].Method != MethodGet || routes[0].Path != "/v1/things/{id}" {
			t.Fatalf("%s: routes = %+v", name, routes)
		}
	}
}

func TestExtract_MalformedAnnotation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value proto.OptionValue
		want  string
	}{
		{"not_a_literal", proto.StringValue{Value: "/v1/x"}, "invalid HTTP annotation format"},
		{"missing_verb", proto.MessageValue{Entries: []proto.MessageEntry{
			{Name: "body", Value: proto.StringValue{Value: "*"}},
		}}, "missing HTTP method or path"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			file := &proto.File{
				Services: []*proto.Service{{
					Name: "S",
					Methods: []*proto.RPC{{
						Name:    "Get",
						Options: []proto.Option{{Name: "google.api.http", Value: tt.value}},
					}},
				}},
			}
			_, err := NewExtractor().Extract(file)
			var herr *Error
			if !errors.As(err, &herr) || herr.Code != ErrInvalidAnnotation {
				t.Fatalf("err = %v", err)
			}
			if !strings.Contains(herr.Message, tt.want) {
				t.Fatalf("message = %q", herr.Message)
			}
			if herr.Route != "S.Get" {
				t.Fatalf("route = %q", herr.Route)
			}
		})
	}
}

func TestExtract_CustomMethod(t *testing.T) {
	t.Parallel()

	file := &proto.File{
		Services: []*proto.Service{{
			Name: "Cache",
			Methods: []*proto.RPC{{
				Name:     "Purge",
				Input:    proto.TypeReference{Name: "PurgeRequest"},
				Output:   proto.TypeReference{Name: "PurgeResponse"},
				HTTPRule: &proto.HTTPRule{Verb: "purge", Path: "/v1/cache"},
			}},
		}},
	}

	_, err := NewExtractor().Extract(file)
	var herr *Error
	if !errors.As(err, &herr) || herr.Code != ErrInvalidAnnotation {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(herr.Message, "PURGE") {
		t.Fatalf("message = %q", herr.Message)
	}

	routes, err := NewExtractor(WithCustomMethods(true)).Extract(file)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if routes[0].Method != Method("PURGE") || routes[0].HasBody() {
		t.Fatalf("route = %+v", routes[0])
	}
}

func TestExtract_AdditionalBindings(t *testing.T) {
	t.Parallel()

	file := &proto.File{
		Services: []*proto.Service{{
			Name: "Things",
			Methods: []*proto.RPC{{
				Name:   "Create",
				Input:  proto.TypeReference{Name: "CreateRequest"},
				Output: proto.TypeReference{Name: "Thing"},
				HTTPRule: &proto.HTTPRule{
					Verb: "post", Path: "/v1/things", Body: "*",
					AdditionalBindings: []proto.HTTPBinding{
						{Verb: "post", Path: "/v2/things", Body: "thing"},
						{Verb: "post", Path: "/v2/things:import"},
					},
				},
			}},
		}},
	}
	routes, err := NewExtractor().Extract(file)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("routes = %d", len(routes))
	}
	if !routes[0].Body.EntireMessage {
		t.Fatalf("primary body = %+v", routes[0].Body)
	}
	if routes[1].Body == nil || routes[1].Body.Field != "thing" {
		t.Fatalf("binding body = %+v", routes[1].Body)
	}
	// A binding that names no body defaults to the entire message, same as
	// the primary rule.
	if routes[2].Body == nil || !routes[2].Body.EntireMessage {
		t.Fatalf("bodyless binding = %+v", routes[2].Body)
	}
}

func TestExtract_InvalidTemplateAborts(t *testing.T) {
	t.Parallel()

	src := `syntax = "proto3";
service S {
  rpc Get(Req) returns (Resp) {
    option (google.api.http) = {
      get: "/invalid/{unclosed"
    };
  }
}
`
	_, err := NewExtractor().Extract(parseFile(t, src))
	var herr *Error
	if !errors.As(err, &herr) || herr.Code != ErrInvalidAnnotation {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(herr.Message, "unmatched opening brace") {
		t.Fatalf("message = %q", herr.Message)
	}
	if herr.Route != "S.Get" {
		t.Fatalf("route = %q", herr.Route)
	}
}

func TestExtract_EmptyPathRejected(t *testing.T) {
	t.Parallel()

	src := `syntax = "proto3";
service S {
  rpc Get(Req) returns (Resp) {
    option (google.api.http) = {
      get: ""
    };
  }
}
`
	_, err := NewExtractor().Extract(parseFile(t, src))
	var herr *Error
	if !errors.As(err, &herr) || !strings.Contains(herr.Message, "empty path template") {
		t.Fatalf("err = %v", err)
	}
}
