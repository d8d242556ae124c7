// Package cxerr implements the curated-error pattern used throughout
// cxdriver: an error is a message pattern plus the values that fill it,
// so that callers can test for a particular failure class with Is/Has
// without string matching the rendered message.
package cxerr

import (
	"fmt"
	"strings"
)

// curated is the concrete error type. The pattern is the identity of the
// error for the purposes of Is/Has; values are only used for rendering.
type curated struct {
	pattern string
	values  []interface{}
}

// Errorf creates a new curated error. Unlike fmt.Errorf the first argument
// is not formatted against os.Stderr conventions; it is stored verbatim and
// used both to render the message and as the error's identity.
func Errorf(pattern string, values ...interface{}) error {
	return curated{pattern: pattern, values: values}
}

// Error renders the message, de-duplicating adjacent repeated segments that
// occur when a curated error wraps another curated error with the same
// pattern fragment.
func (e curated) Error() string {
	s := fmt.Errorf(e.pattern, e.values...).Error()
	p := strings.SplitN(s, ": ", 3)
	if len(p) > 1 && p[0] == p[1] {
		return strings.Join(p[1:], ": ")
	}
	return strings.Join(p, ": ")
}

// IsAny reports whether err is a curated error of any pattern.
func IsAny(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(curated)
	return ok
}

// Is reports whether err is a curated error with exactly this pattern.
func Is(err error, pattern string) bool {
	if err == nil {
		return false
	}
	e, ok := err.(curated)
	return ok && e.pattern == pattern
}

// Has reports whether err, or any curated error nested in its values,
// carries the given pattern.
func Has(err error, pattern string) bool {
	if !IsAny(err) {
		return false
	}
	if Is(err, pattern) {
		return true
	}
	for _, v := range err.(curated).values {
		if nested, ok := v.(curated); ok && Has(nested, pattern) {
			return true
		}
	}
	return false
}
