package proto

// ErrorCode categorizes parse and resolution errors for clearer handling
// and messaging.
type ErrorCode string

const (
	ErrSyntax          ErrorCode = "SyntaxError"
	ErrUnexpectedToken ErrorCode = "UnexpectedToken"
	ErrInvalidSyntax   ErrorCode = "InvalidSyntax"
	ErrFileNotFound    ErrorCode = "FileNotFound"
	ErrInvalidEncoding ErrorCode = "InvalidEncoding"
	ErrImportNotFound  ErrorCode = "ImportNotFound"
	ErrCircularImport  ErrorCode = "CircularImport"
)

// Error is a structured parse error with optional source location.
type Error struct {
	Code    ErrorCode
	Message string
	Path    string // file or import path when relevant
	Line    int    // 1-based, 0 when unknown
	Column  int
	Cycle   []string // resolution chain, set for ErrCircularImport
	Cause   error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Cause }
