// Package quot deduces, for every schedule variable, the spec node it
// implements in each of the three sorts and writes the result back into the
// variables' tags.
//
// Value deduction runs on the SSA form so that each version of a variable
// gets its own quotient. Timeline deduction threads the implicit event
// through the graph in dataflow order on the deformed graph. Spatial
// deduction only propagates equalities.
package quot

import (
	"errors"
	"fmt"

	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/source"
	"hlsched/internal/spec"
)

// ErrInvariant marks a graph the passes cannot interpret. It always means
// an earlier stage produced something malformed.
var ErrInvariant = errors.New("internal invariant violated")

// MergePolicy decides what happens when two paths reach a block with
// different timeline events.
type MergePolicy uint8

const (
	MergeError MergePolicy = iota
	MergeWarn
)

// ParseMergePolicy reads "error" or "warn".
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "error":
		return MergeError, nil
	case "warn":
		return MergeWarn, nil
	default:
		return MergeError, fmt.Errorf("unknown timeline merge policy %q", s)
	}
}

type Options struct {
	TimelineMerge MergePolicy
}

// Callee is what deduction needs to know about a called function.
type Callee struct {
	Specs  [3]string // indexed by hir.Sort; empty when the sort is unspecified
	Extern bool
}

// Context is shared by every function of a program. It is read-only during
// deduction.
type Context struct {
	Specs   *spec.Set
	Callees map[string]Callee
	Options Options
}

// Func describes the function whose graph is being deduced. Param and
// result tags are filled in place.
type Func struct {
	Name    string
	Span    source.Span
	Params  []hir.Dest
	Results []hir.Dest
	Specs   [3]string // indexed by hir.Sort
}

// Undetermined is a variable whose quotient could not be deduced although
// a return value depends on it.
type Undetermined struct {
	Name  string
	Sort  hir.Sort
	Block hir.BlockID
	Span  source.Span
}

// Events are the timeline events at the entry and exit of a block.
type Events struct {
	In, Out hir.Tag
}

// Report collects the non-fatal findings of the passes for one function.
type Report struct {
	Undetermined []Undetermined
	Warnings     []*Error
	Events       map[hir.BlockID]Events
}

func NewReport() *Report {
	return &Report{Events: make(map[hir.BlockID]Events)}
}

// Emit hands the findings to r as warnings.
func (rep *Report) Emit(r diag.Reporter) {
	for _, u := range rep.Undetermined {
		diag.ReportWarning(r, diag.QuotUndetermined, u.Span,
			fmt.Sprintf("cannot deduce the %s quotient of %s in %s", u.Sort, u.Name, u.Block)).Emit()
	}
	for _, w := range rep.Warnings {
		diag.ReportWarning(r, w.Code, w.Span, w.Error()).Emit()
	}
}

// Error is a deduction failure at a schedule location.
type Error struct {
	Code diag.Code
	Sort hir.Sort
	Span source.Span
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Sort.String() + ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
