package httproute

import (
	"fmt"
	"strings"
)

// ValidatePathTemplate checks a single path template: non-empty, a leading
// slash, and only flat, balanced {param} groups.
func ValidatePathTemplate(path string) error {
	if path == "" {
		return templateErr(path, "empty path template")
	}
	if !strings.HasPrefix(path, "/") {
		return templateErr(path, "path template must start with '/'")
	}
	depth := 0
	inParam := false
	for _, r := range path {
		switch r {
		case '{':
			if inParam {
				return templateErr(path, "nested braces are not allowed in path template")
			}
			depth++
			inParam = true
		case '}':
			depth--
			inParam = false
			if depth < 0 {
				return templateErr(path, "unmatched closing brace in path template")
			}
		}
	}
	if depth != 0 {
		return templateErr(path, "unmatched opening brace in path template")
	}
	return nil
}

func templateErr(path, msg string) *Error {
	full := "invalid HTTP annotation: " + msg
	if path != "" {
		full = fmt.Sprintf("%s: %s", full, path)
	}
	return &Error{Code: ErrInvalidAnnotation, Message: full, Path: path}
}

// ValidateRoutes checks a complete route set: every method+path signature
// unique, method/body compatibility per route when enabled, and every path
// template valid.
func (e *Extractor) ValidateRoutes(routes []*Route) error {
	seen := make(map[string]*Route, len(routes))
	for _, r := range routes {
		sig := r.Signature()
		if first, dup := seen[sig]; dup {
			return &Error{
				Code:    ErrConflictingRoutes,
				Message: fmt.Sprintf("conflicting HTTP routes: %s.%s and %s.%s both map to %s", first.Service, first.RPC, r.Service, r.RPC, sig),
				Route:   r.Service + "." + r.RPC,
				Path:    r.Path,
			}
		}
		seen[sig] = r
	}

	for _, r := range routes {
		if e.settings.ValidateHTTPMethods {
			switch {
			case (r.Method == MethodGet || r.Method == MethodDelete) && r.HasBody():
				return &Error{
					Code:    ErrInvalidAnnotation,
					Message: fmt.Sprintf("%s routes must not carry a request body", r.Method),
					Route:   r.Service + "." + r.RPC,
					Path:    r.Path,
				}
			case !r.Method.IsStandard() && !e.settings.AllowCustomMethods:
				return &Error{
					Code:    ErrInvalidAnnotation,
					Message: fmt.Sprintf("custom HTTP method %s is not allowed", r.Method),
					Route:   r.Service + "." + r.RPC,
					Path:    r.Path,
				}
			}
		}
		if err := ValidatePathTemplate(r.Path); err != nil {
			return withRoute(err, r.Service, r.RPC)
		}
	}
	return nil
}
