package openapiemitter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/mark3labs/proto2rest/internal/httproute"
	"github.com/mark3labs/proto2rest/internal/proto"
)

const shopProto = `syntax = "proto3";

package shop.v1;

import "google/api/annotations.proto";

service UserService {
  rpc GetUser(GetUserRequest) returns (GetUserResponse) {
    option (google.api.http) = { get: "/v1/users/{user_id}" };
  }
  rpc CreateUser(CreateUserRequest) returns (GetUserResponse) {
    option (google.api.http) = { post: "/v1/users" body: "*" };
  }
  rpc ListUsers(ListUsersRequest) returns (ListUsersResponse) {
    option (google.api.http) = { get: "/v1/users" };
  }
}

message GetUserRequest {
  string user_id = 1;
}

message GetUserResponse {
  User user = 1;
}

message CreateUserRequest {
  User user = 1;
}

message ListUsersRequest {
  int32 page = 1;
  int32 limit = 2;
}

message ListUsersResponse {
  repeated User users = 1;
}

message User {
  string user_id = 1;
  string email = 2;
  Status status = 3;
}

enum Status {
  STATUS_UNSPECIFIED = 0;
  ACTIVE = 1;
}
`

func parseRoutes(t *testing.T, source string) (*proto.File, []*httproute.Route) {
	t.Helper()
	p := proto.NewParser(proto.WithImportResolution(false))
	file, err := p.Parse(source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	routes, err := httproute.NewExtractor().Extract(file)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return file, routes
}

func TestBuild_Document(t *testing.T) {
	t.Parallel()
	file, routes := parseRoutes(t, shopProto)

	doc, err := Build(file, routes, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if doc.Info.Title != "shop.v1 API" || doc.Info.Version != "1.0.0" {
		t.Fatalf("info = %+v", doc.Info)
	}

	get := doc.Paths["/v1/users/{user_id}"]
	if get == nil || get.Get == nil {
		t.Fatalf("missing GET /v1/users/{user_id}: %+v", doc.Paths)
	}
	op := get.Get
	if op.OperationID != "UserService_GetUser" {
		t.Fatalf("operation id = %q", op.OperationID)
	}
	if len(op.Tags) != 1 || op.Tags[0] != "UserService" {
		t.Fatalf("tags = %v", op.Tags)
	}
	if len(op.Parameters) != 1 {
		t.Fatalf("parameters = %+v", op.Parameters)
	}
	param := op.Parameters[0].Value
	if param.Name != "user_id" || param.In != "path" || !param.Required {
		t.Fatalf("param = %+v", param)
	}
	if param.Schema.Value.Type != "string" {
		t.Fatalf("param schema type = %q", param.Schema.Value.Type)
	}
	resp := op.Responses["200"]
	if resp == nil {
		t.Fatalf("missing 200 response")
	}
	respRef := resp.Value.Content["application/json"].Schema.Ref
	if respRef != "#/components/schemas/GetUserResponse" {
		t.Fatalf("response ref = %q", respRef)
	}

	users := doc.Paths["/v1/users"]
	if users == nil || users.Get == nil || users.Post == nil {
		t.Fatalf("missing /v1/users operations: %+v", users)
	}
	body := users.Post.RequestBody
	if body == nil || !body.Value.Required {
		t.Fatalf("post body = %+v", body)
	}
	bodyRef := body.Value.Content["application/json"].Schema.Ref
	if bodyRef != "#/components/schemas/CreateUserRequest" {
		t.Fatalf("body ref = %q", bodyRef)
	}

	var page, limit string
	for _, p := range users.Get.Parameters {
		if p.Value.In != "query" || p.Value.Required {
			t.Fatalf("query param = %+v", p.Value)
		}
		switch p.Value.Name {
		case "page":
			page = p.Value.Schema.Value.Type
		case "limit":
			limit = p.Value.Schema.Value.Type
		}
	}
	if page != "string" || limit != "integer" {
		t.Fatalf("query schema types: page=%q limit=%q", page, limit)
	}
}

func TestBuild_Schemas(t *testing.T) {
	t.Parallel()
	file, routes := parseRoutes(t, shopProto)

	doc, err := Build(file, routes, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	user := doc.Components.Schemas["User"]
	if user == nil {
		t.Fatalf("missing User schema: %v", doc.Components.Schemas)
	}
	status := user.Value.Properties["status"]
	if status == nil {
		t.Fatalf("missing status property")
	}
	var found bool
	for _, v := range status.Value.Enum {
		if v == "ACTIVE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("status enum = %v", status.Value.Enum)
	}

	list := doc.Components.Schemas["ListUsersResponse"]
	if list == nil {
		t.Fatalf("missing ListUsersResponse schema")
	}
	usersProp := list.Value.Properties["users"]
	if usersProp == nil || usersProp.Value.Type != "array" {
		t.Fatalf("users property = %+v", usersProp)
	}
	if usersProp.Value.Items.Ref != "#/components/schemas/User" {
		t.Fatalf("items ref = %q", usersProp.Value.Items.Ref)
	}
}

func TestBuild_SkipsCustomMethods(t *testing.T) {
	t.Parallel()
	file, _ := parseRoutes(t, shopProto)

	routes := []*httproute.Route{{
		Service: "UserService",
		RPC:     "PurgeUsers",
		Method:  httproute.Method("PURGE"),
		Path:    "/v1/users",
		Input:   "GetUserRequest",
		Output:  "GetUserResponse",
	}}
	doc, err := Build(file, routes, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(doc.Paths) != 0 {
		t.Fatalf("custom method produced paths: %+v", doc.Paths)
	}
}

func TestBuild_FlattensDottedTemplates(t *testing.T) {
	t.Parallel()
	file, routes := parseRoutes(t, `syntax = "proto3";

package library.v1;

service BookService {
  rpc GetBook(GetBookRequest) returns (Book) {
    option (google.api.http) = { get: "/v1/books/{book.id}" };
  }
}

message GetBookRequest {
  Book book = 1;
}

message Book {
  string id = 1;
  string title = 2;
}
`)

	doc, err := Build(file, routes, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if doc.Paths["/v1/books/{book.id}"] != nil {
		t.Fatalf("dotted template kept: %+v", doc.Paths)
	}
	item := doc.Paths["/v1/books/{book_id}"]
	if item == nil || item.Get == nil {
		t.Fatalf("missing flattened path: %+v", doc.Paths)
	}
	params := item.Get.Parameters
	if len(params) != 1 || params[0].Value.Name != "book_id" {
		t.Fatalf("parameters = %+v", params)
	}
}

func TestMarshal(t *testing.T) {
	t.Parallel()
	file, routes := parseRoutes(t, shopProto)
	doc, err := Build(file, routes, Options{Title: "Shop"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	jsonOut, err := Marshal(doc, "json")
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	if !strings.Contains(string(jsonOut), `"openapi": "3.0.3"`) {
		t.Fatalf("json output: %s", jsonOut)
	}
	var v any
	if err := json.Unmarshal(jsonOut, &v); err != nil {
		t.Fatalf("json invalid: %v", err)
	}

	yamlOut, err := Marshal(doc, "yaml")
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	if !strings.Contains(string(yamlOut), "openapi: 3.0.3") || !strings.Contains(string(yamlOut), "paths:") {
		t.Fatalf("yaml output: %s", yamlOut)
	}

	if _, err := Marshal(doc, "toml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestEmit_WriteAndPlan(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	file, routes := parseRoutes(t, shopProto)

	res, err := Emit(context.Background(), file, routes, Options{OutDir: "/out", FS: fs})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(res.Planned) != 1 || res.Planned[0].RelPath != "openapi.json" {
		t.Fatalf("planned = %+v", res.Planned)
	}
	data, err := afero.ReadFile(fs, "/out/openapi.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("output invalid: %v", err)
	}

	// Second write without force refuses.
	if _, err := Emit(context.Background(), file, routes, Options{OutDir: "/out", FS: fs}); err == nil || !strings.Contains(err.Error(), "use --force") {
		t.Fatalf("expected overwrite error, got %v", err)
	}
	if _, err := Emit(context.Background(), file, routes, Options{OutDir: "/out", FS: fs, Force: true}); err != nil {
		t.Fatalf("emit with force: %v", err)
	}
}

func TestEmit_YAMLFileName(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	file, routes := parseRoutes(t, shopProto)

	res, err := Emit(context.Background(), file, routes, Options{OutDir: "/out", Format: "yaml", DryRun: true, FS: fs})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(res.Planned) != 1 || res.Planned[0].RelPath != "openapi.yaml" {
		t.Fatalf("planned = %+v", res.Planned)
	}
	if ok, _ := afero.Exists(fs, "/out/openapi.yaml"); ok {
		t.Fatalf("dry-run wrote file")
	}
}
