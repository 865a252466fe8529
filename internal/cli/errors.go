package cli

import "errors"

// ErrUsage marks failures callers should treat as a bad invocation rather
// than a failed run; main exits 2 when errors.Is(err, ErrUsage).
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
