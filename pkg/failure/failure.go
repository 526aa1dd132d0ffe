// Package failure defines the typed errors returned by every stage of the
// resolution chain. Only the outermost boundary (API handlers, CLI) turns
// them into user-facing messages.
package failure

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"m3u8-resolver/pkg/types"
)

// Kind classifies a failure.
type Kind string

const (
	// KindNetwork covers transport failures, timeouts and non-success statuses.
	KindNetwork Kind = "network"
	// KindParse covers unusable HTML and undecodable structured data.
	KindParse Kind = "parse"
	// KindNotFound means a stage parsed fine but produced nothing usable.
	KindNotFound Kind = "not_found"
	// KindAuth is raised only where a caller explicitly demands a token.
	KindAuth Kind = "auth"
)

// Sentinels for errors.Is.
var (
	ErrNetwork  = errors.New("network error")
	ErrParse    = errors.New("parse error")
	ErrNotFound = errors.New("not found")
	ErrAuth     = errors.New("auth error")
)

const (
	// DefaultPreviewBytes bounds previews when no explicit limit is configured.
	DefaultPreviewBytes = 200
	// MaxPreviewBytes is how much offending text an Error keeps; callers
	// trim it further to their own limit when reporting.
	MaxPreviewBytes = 4 << 10
)

// Error is a stage failure.
type Error struct {
	Kind       Kind
	Stage      types.Stage
	Message    string
	StatusCode int
	Preview    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		b.WriteString(" [")
		b.WriteString(string(e.Stage))
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers never need a type assertion.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrParse:
		return e.Kind == KindParse
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrAuth:
		return e.Kind == KindAuth
	}
	return false
}

// Network builds a network failure.
func Network(stage types.Stage, status int, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:       KindNetwork,
		Stage:      stage,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: status,
		Err:        cause,
	}
}

// Parse builds a parse failure carrying a bounded preview of the offending text.
func Parse(stage types.Stage, raw string, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindParse,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Preview: Preview(raw, MaxPreviewBytes),
		Err:     cause,
	}
}

// NotFound builds a not-found failure.
func NotFound(stage types.Stage, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// Auth builds an auth failure.
func Auth(stage types.Stage, format string, args ...any) *Error {
	return &Error{
		Kind:    KindAuth,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the failure kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return ""
}

// Preview truncates s to at most max bytes without splitting a rune and marks
// the cut with an ellipsis.
func Preview(s string, max int) string {
	if max <= 0 {
		max = DefaultPreviewBytes
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
