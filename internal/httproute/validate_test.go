package httproute

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePathTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"plain", "/v1/users", ""},
		{"single_param", "/v1/users/{user_id}", ""},
		{"adjacent_params", "/v1/{a}/{b}", ""},
		{"nested_field", "/v1/books/{book.id}", ""},
		{"empty", "", "empty path template"},
		{"no_leading_slash", "v1/users", "must start with '/'"},
		{"nested_braces", "/v1/{outer{inner}}", "nested braces"},
		{"unmatched_closing", "/v1/users}/x", "unmatched closing brace"},
		{"unmatched_opening", "/invalid/{unclosed", "unmatched opening brace"},
		{"late_closing", "/v1/{a}}/b", "unmatched closing brace"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePathTemplate(tt.path)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("err = %v", err)
				}
				return
			}
			var herr *Error
			if !errors.As(err, &herr) || herr.Code != ErrInvalidAnnotation {
				t.Fatalf("err = %v", err)
			}
			if !strings.Contains(herr.Message, tt.wantErr) {
				t.Fatalf("message = %q, want %q", herr.Message, tt.wantErr)
			}
		})
	}
}

func TestValidateRoutes_Conflicts(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	routes := []*Route{
		{Service: "S", RPC: "A", Method: MethodGet, Path: "/v1/users"},
		{Service: "S", RPC: "B", Method: MethodPost, Path: "/v1/users"},
		{Service: "S", RPC: "C", Method: MethodGet, Path: "/v1/users/{id}"},
	}
	if err := e.ValidateRoutes(routes); err != nil {
		t.Fatalf("err = %v", err)
	}

	dup := append(routes, &Route{Service: "T", RPC: "D", Method: MethodGet, Path: "/v1/users"})
	err := e.ValidateRoutes(dup)
	var herr *Error
	if !errors.As(err, &herr) || herr.Code != ErrConflictingRoutes {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(herr.Message, "GET /v1/users") {
		t.Fatalf("message = %q", herr.Message)
	}
	if herr.Route != "T.D" {
		t.Fatalf("route = %q", herr.Route)
	}
}

func TestValidateRoutes_BodyOnGet(t *testing.T) {
	t.Parallel()

	routes := []*Route{{
		Service: "S", RPC: "Get", Method: MethodGet, Path: "/v1/x",
		Body: entireBody(),
	}}

	err := NewExtractor().ValidateRoutes(routes)
	var herr *Error
	if !errors.As(err, &herr) || herr.Code != ErrInvalidAnnotation {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(herr.Message, "request body") {
		t.Fatalf("message = %q", herr.Message)
	}

	if err := NewExtractor(WithMethodValidation(false)).ValidateRoutes(routes); err != nil {
		t.Fatalf("validation off: %v", err)
	}
}

func TestValidateRoutes_BodyOnDelete(t *testing.T) {
	t.Parallel()

	routes := []*Route{{
		Service: "S", RPC: "Del", Method: MethodDelete, Path: "/v1/x",
		Body: fieldBody("payload"),
	}}
	err := NewExtractor().ValidateRoutes(routes)
	var herr *Error
	if !errors.As(err, &herr) || !strings.Contains(herr.Message, "DELETE") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRoutes_CustomMethod(t *testing.T) {
	t.Parallel()

	routes := []*Route{{Service: "S", RPC: "Purge", Method: Method("PURGE"), Path: "/v1/cache"}}

	err := NewExtractor().ValidateRoutes(routes)
	var herr *Error
	if !errors.As(err, &herr) || !strings.Contains(herr.Message, "custom HTTP method") {
		t.Fatalf("err = %v", err)
	}

	if err := NewExtractor(WithCustomMethods(true)).ValidateRoutes(routes); err != nil {
		t.Fatalf("allowed: %v", err)
	}
}

func TestValidateRoutes_RevalidatesTemplates(t *testing.T) {
	t.Parallel()

	routes := []*Route{{Service: "S", RPC: "Get", Method: MethodGet, Path: "/v1/{broken"}}
	err := NewExtractor().ValidateRoutes(routes)
	var herr *Error
	if !errors.As(err, &herr) || !strings.Contains(herr.Message, "unmatched opening brace") {
		t.Fatalf("err = %v", err)
	}
	if herr.Route != "S.Get" {
		t.Fatalf("route = %q", herr.Route)
	}
}
