package fts

import "fmt"

// ErrUnavailable indicates the FTS virtual tables are missing or
// unusable. It is non-recoverable for the caller's current call but the
// engine itself does not crash: evaluation falls back to the
// non-indexed scan.
type ErrUnavailable struct {
	Reason string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("fts: unavailable: %s", e.Reason)
}

// QueryError wraps a failure from a single MATCH/LIKE query. Recoverable
// is true when the caller should fall back to a non-indexed scan rather
// than surface the error to the user.
type QueryError struct {
	Op          string
	Tokens      []string
	Recoverable bool
	Err         error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("fts: query error (op=%s recoverable=%v): %v", e.Op, e.Recoverable, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ErrRegexUnsupported is the recoverable error value for the '%=' regex
// operator, which FTS cannot execute. The query layer's methods do not
// return it: the evaluator sends '%=' to the non-indexed scan before
// calling them.
var ErrRegexUnsupported = &QueryError{Op: "%=", Recoverable: true, Err: fmt.Errorf("regex operator not supported by FTS")}
