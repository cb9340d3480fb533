// Package testkit holds checks shared by package tests.
package testkit

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"hlsched/internal/ast"
	"hlsched/internal/driver"
	"hlsched/internal/source"
)

// CheckSpanInvariants verifies the spans of a loaded program:
//
//  1. every function and statement span points into the program file
//  2. spans are non-empty and end inside the file content
//  3. a statement nested in another lies within its function's span
func CheckSpanInvariants(fs *source.FileSet, prog *driver.Program) error {
	if fs == nil || prog == nil {
		return errors.New("nil file set or program")
	}
	f := fs.Get(prog.File)
	if f == nil {
		return fmt.Errorf("program file %d not found", prog.File)
	}
	size, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		return fmt.Errorf("content length overflow: %w", err)
	}
	check := func(what string, sp source.Span) error {
		switch {
		case sp.File != prog.File:
			return fmt.Errorf("%s: span in file %d, want %d", what, sp.File, prog.File)
		case sp.End <= sp.Start:
			return fmt.Errorf("%s: empty span %v", what, sp)
		case sp.End > size:
			return fmt.Errorf("%s: span end %d beyond content %d", what, sp.End, size)
		}
		return nil
	}

	var errs []error
	for _, fn := range prog.Funcs {
		if err := check("func "+fn.Name, fn.Span); err != nil {
			errs = append(errs, err)
			continue
		}
		walk(fn.Body, func(s *ast.Stmt) {
			what := fmt.Sprintf("func %s: %s statement", fn.Name, s.Kind)
			if err := check(what, s.Span); err != nil {
				errs = append(errs, err)
				return
			}
			if s.Span.Start < fn.Span.Start {
				errs = append(errs, fmt.Errorf("%s: starts at %d before its function at %d", what, s.Span.Start, fn.Span.Start))
			}
		})
	}
	return errors.Join(errs...)
}

func walk(stmts []ast.Stmt, visit func(*ast.Stmt)) {
	for i := range stmts {
		s := &stmts[i]
		visit(s)
		walk(s.Block, visit)
		walk(s.If.Then, visit)
		walk(s.If.Else, visit)
		if s.Seq.Inner != nil {
			walk([]ast.Stmt{*s.Seq.Inner}, visit)
		}
	}
}
