// Package geomerr defines the error taxonomy shared by the profile, solid,
// shape and reactor packages. Every error produced by those packages matches
// exactly one of the sentinel kinds below via errors.Is.
package geomerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProfile marks malformed point or connection-tag input.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInvalidConfiguration marks sweep/path-plane conflicts, cyclic
	// dependency graphs and out-of-range sweep parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrGeometryConstruction marks kernel-level failures: failed booleans,
	// empty results, degenerate sweeps.
	ErrGeometryConstruction = errors.New("geometry construction failed")

	// ErrValidation marks out-of-range scalar parameters on parametric
	// components (negative thickness, gaps larger than the feature).
	ErrValidation = errors.New("validation failed")
)

// Error carries the kind of failure plus where it happened.
type Error struct {
	Kind  error  // one of the Err* sentinels
	Op    string // operation that failed, e.g. "revolve" or "cut[1]"
	Shape string // shape name, empty when not known
	Msg   string
	Err   error // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Shape != "" {
		fmt.Fprintf(&b, ": shape %q", e.Shape)
	}
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Profile returns an ErrInvalidProfile error.
func Profile(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidProfile, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Configuration returns an ErrInvalidConfiguration error.
func Configuration(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation returns an ErrValidation error.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Construction wraps a kernel failure as ErrGeometryConstruction. A nil
// cause yields a nil error.
func Construction(op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) && ge.Kind == ErrGeometryConstruction && ge.Op == op {
		return err
	}
	return &Error{Kind: ErrGeometryConstruction, Op: op, Err: err}
}

// WithShape stamps a shape name onto err when it is an *Error without one.
// Other errors are returned unchanged.
func WithShape(err error, name string) error {
	var ge *Error
	if err == nil || name == "" || !errors.As(err, &ge) || ge.Shape != "" {
		return err
	}
	if ge != err {
		return fmt.Errorf("shape %q: %w", name, err)
	}
	cp := *ge
	cp.Shape = name
	return &cp
}

// KindOf returns the sentinel kind of err, or nil if err is not part of
// the taxonomy.
func KindOf(err error) error {
	for _, k := range []error{ErrInvalidProfile, ErrInvalidConfiguration, ErrGeometryConstruction, ErrValidation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
