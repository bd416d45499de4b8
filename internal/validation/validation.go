// Package validation accumulates type-validation problems found while walking
// a plugin's properties and converts them into one aggregated failure.
//
// Problems are never raised individually. A Context collects them during the
// walk and Err turns a non-empty problem list into a *MultiCauseError whose
// causes are the minimal renderings, sorted by text.
package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/modelcore/internal/ir"
)

// Problem is one type-validation finding.
type Problem struct {
	// Type is the type the problem is attributed to.
	Type ir.TypeRef
	// Property is the offending property name; empty for type-level problems.
	Property string
	// Message describes the problem, e.g. "is not annotated with a software type".
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// RenderMinimal renders a problem as short user-facing text:
//
//	Type 'Library' property 'books' must be a managed type.
//	Type 'Library' is not described.
func RenderMinimal(p Problem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type '%s'", p.Type.DisplayName())
	if p.Property != "" {
		fmt.Fprintf(&b, " property '%s'", p.Property)
	}
	msg := strings.TrimSuffix(strings.TrimSpace(p.Message), ".")
	if msg != "" {
		b.WriteString(" ")
		b.WriteString(msg)
	}
	b.WriteString(".")
	return b.String()
}

// Context accumulates problems for one plugin application.
// It is not safe for concurrent use.
type Context struct {
	root     ir.TypeRef
	problems []Problem
}

// NewContext opens a validation context rooted at the plugin's declared type.
func NewContext(root ir.TypeRef) *Context {
	return &Context{root: root}
}

// Root returns the type the context is rooted at.
func (c *Context) Root() ir.TypeRef {
	return c.root
}

// Add records a problem. A zero Type is attributed to the root type.
func (c *Context) Add(p Problem) {
	if p.Type.IsZero() {
		p.Type = c.root
	}
	c.problems = append(c.problems, p)
}

// Addf records a property problem against the root type.
func (c *Context) Addf(property, format string, args ...any) {
	c.Add(Problem{Property: property, Message: fmt.Sprintf(format, args...)})
}

// Problems returns the recorded problems in discovery order.
func (c *Context) Problems() []Problem {
	return slices.Clone(c.problems)
}

// Len returns the number of recorded problems.
func (c *Context) Len() int {
	return len(c.problems)
}

// Err returns nil when no problems were recorded, otherwise a single
// *MultiCauseError naming displayName.
func (c *Context) Err(displayName string) error {
	if len(c.problems) == 0 {
		return nil
	}
	return NewMultiCauseError(displayName, c.problems)
}

// InvalidUserDataError is one user-facing cause of an aggregated failure.
type InvalidUserDataError struct {
	Text  string
	Cause error
}

func (e *InvalidUserDataError) Error() string {
	return e.Text
}

func (e *InvalidUserDataError) Unwrap() error {
	return e.Cause
}

// MultiCauseError is the aggregated failure of a plugin application.
type MultiCauseError struct {
	Plugin  string
	Message string
	Causes  []*InvalidUserDataError
}

// NewMultiCauseError renders and sorts problems into one aggregated error.
// Identical renderings are kept; only the order is normalized.
func NewMultiCauseError(displayName string, problems []Problem) *MultiCauseError {
	causes := make([]*InvalidUserDataError, len(problems))
	for i, p := range problems {
		causes[i] = &InvalidUserDataError{Text: RenderMinimal(p), Cause: p.Cause}
	}
	slices.SortStableFunc(causes, func(a, b *InvalidUserDataError) int {
		return strings.Compare(a.Text, b.Text)
	})

	msg := fmt.Sprintf("Some problems were found with the %s plugin.", displayName)
	if len(causes) == 1 {
		msg = fmt.Sprintf("A problem was found with the %s plugin.", displayName)
	}
	return &MultiCauseError{Plugin: displayName, Message: msg, Causes: causes}
}

// Error returns the headline followed by one indented line per cause.
func (e *MultiCauseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, c := range e.Causes {
		b.WriteString("\n  - ")
		b.WriteString(c.Text)
	}
	return b.String()
}

// Unwrap exposes the causes to errors.Is and errors.As.
func (e *MultiCauseError) Unwrap() []error {
	errs := make([]error, len(e.Causes))
	for i, c := range e.Causes {
		errs[i] = c
	}
	return errs
}

// CauseTexts returns the rendered causes in reported order.
func (e *MultiCauseError) CauseTexts() []string {
	texts := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		texts[i] = c.Text
	}
	return texts
}

// AsMultiCause returns the aggregated failure in err's chain, if any.
func AsMultiCause(err error) (*MultiCauseError, bool) {
	var mce *MultiCauseError
	if errors.As(err, &mce) {
		return mce, true
	}
	return nil, false
}
