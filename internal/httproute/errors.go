package httproute

// ErrorCode categorizes extraction and validation failures.
type ErrorCode string

const (
	ErrInvalidAnnotation ErrorCode = "InvalidHttpAnnotation"
	ErrInvalidPathParam  ErrorCode = "InvalidPathParameter"
	ErrConflictingRoutes ErrorCode = "ConflictingRoutes"
)

// Error is a structured extraction error with optional route context.
type Error struct {
	Code    ErrorCode
	Message string
	Route   string // "Service.Rpc" when the failing route is known
	Path    string // path template when relevant
}

func (e *Error) Error() string { return e.Message }
