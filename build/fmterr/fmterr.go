// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fmterr provides source positions and classified compiler errors.
//
// A compilation reports at most one error. Every error built here carries
// the position of the offending source construct and a Kind classifying
// what went wrong.
package fmterr

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Pos is a position in a source file, 1-based.
// The zero value is an unknown position.
type Pos struct {
	Line   int
	Column int
}

// IsValid reports if the position points into a source file.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

// String returns the position as line:column.
func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Kind classifies a compiler error.
type Kind int

const (
	// Unknown is an error not produced by the compiler.
	Unknown Kind = iota
	// SyntaxError is a scan or parse failure.
	SyntaxError
	// DuplicateSymbol is a name declared more than once.
	DuplicateSymbol
	// InvalidDimension is a dimension that is not a literal positive
	// integer or a reference to a non-differentiable scalar symbol.
	InvalidDimension
	// NonConstantExpression is a constant initialiser referencing a
	// non-constant symbol.
	NonConstantExpression
	// UnresolvedReference is a reference to an unknown symbol or to a
	// symbol declared later in the source.
	UnresolvedReference
	// ShapeError is an operator applied to operands of incompatible shapes.
	ShapeError
	// UnsupportedDerivative is an expression outside the differentiable
	// subset.
	UnsupportedDerivative
)

var kindNames = [...]string{
	Unknown:               "unknown",
	SyntaxError:           "syntax error",
	DuplicateSymbol:       "duplicate symbol",
	InvalidDimension:      "invalid dimension",
	NonConstantExpression: "non-constant expression",
	UnresolvedReference:   "unresolved reference",
	ShapeError:            "shape error",
	UnsupportedDerivative: "unsupported derivative",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Error is a classified error attached to a position in the source.
type Error struct {
	kind Kind
	pos  Pos
	err  error
}

var _ error = (*Error)(nil)

// Position attaches a position and a kind to an error.
func Position(kind Kind, pos Pos, err error) *Error {
	return &Error{kind: kind, pos: pos, err: err}
}

// Errorf returns a formatted compiler error for the user.
func Errorf(kind Kind, pos Pos, format string, a ...any) *Error {
	return Position(kind, pos, errors.Errorf(format, a...))
}

// Error returns a string description of the error.
func (e *Error) Error() string {
	if !e.pos.IsValid() {
		return e.err.Error()
	}
	return e.pos.String() + ": " + e.err.Error()
}

// Kind returns the classification of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

// Pos returns the position of the offending source construct.
func (e *Error) Pos() Pos {
	return e.pos
}

// Unwrap the error.
func (e *Error) Unwrap() error {
	return e.err
}

// Format writes the error into the state of the formatter.
func (e *Error) Format(s fmt.State, verb rune) {
	format(e, s, verb)
}

// KindOf returns the classification of an error,
// or Unknown for errors not built by this package.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return Unknown
	}
	return e.Kind()
}

// Internal marks an error as internal.
func Internal(err error) error {
	return fmt.Errorf("gradgen internal error. This is a bug in gradgen. Please report it. Error:\n%+v", err)
}

// Internalf returns a formatted internal error positioned in the source.
func Internalf(pos Pos, format string, a ...any) error {
	return Internal(Errorf(Unknown, pos, format, a...))
}

func formatVerbose(err *Error, s fmt.State) {
	fmt.Fprintf(s, "%s", err.Error())
	var withSt interface {
		StackTrace() errors.StackTrace
	}
	if !errors.As(err.err, &withSt) {
		return
	}
	fmt.Fprintf(s, "\nError generated at:%+v\n", withSt.StackTrace())
}

func format(err *Error, s fmt.State, verb rune) {
	switch verb {
	case 'w':
		fallthrough
	case 'v':
		if s.Flag('+') {
			formatVerbose(err, s)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}
