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

package fmterr_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/gx-org/gradgen/build/fmterr"
)

func TestErrorf(t *testing.T) {
	tests := []struct {
		kind fmterr.Kind
		pos  fmterr.Pos
		msg  string
		want string
	}{
		{
			kind: fmterr.DuplicateSymbol,
			pos:  fmterr.Pos{Line: 3, Column: 8},
			msg:  "cannot redeclare q",
			want: "3:8: cannot redeclare q",
		},
		{
			kind: fmterr.ShapeError,
			pos:  fmterr.Pos{},
			msg:  "cannot multiply",
			want: "cannot multiply",
		},
	}
	for i, test := range tests {
		err := fmterr.Errorf(test.kind, test.pos, "%s", test.msg)
		if got := err.Error(); got != test.want {
			t.Errorf("test %d: Error() = %q but want %q", i, got, test.want)
		}
		if got := fmterr.KindOf(err); got != test.kind {
			t.Errorf("test %d: KindOf = %v but want %v", i, got, test.kind)
		}
		if got := err.Pos(); got != test.pos {
			t.Errorf("test %d: Pos() = %v but want %v", i, got, test.pos)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmterr.Errorf(fmterr.UnresolvedReference, fmterr.Pos{Line: 1, Column: 1}, "undefined: x")
	wrapped := fmt.Errorf("compile file.gg: %w", err)
	if got := fmterr.KindOf(wrapped); got != fmterr.UnresolvedReference {
		t.Errorf("KindOf(wrapped) = %v but want %v", got, fmterr.UnresolvedReference)
	}
	if got := fmterr.KindOf(errors.New("plain")); got != fmterr.Unknown {
		t.Errorf("KindOf(plain) = %v but want %v", got, fmterr.Unknown)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind fmterr.Kind
		want string
	}{
		{kind: fmterr.SyntaxError, want: "syntax error"},
		{kind: fmterr.DuplicateSymbol, want: "duplicate symbol"},
		{kind: fmterr.InvalidDimension, want: "invalid dimension"},
		{kind: fmterr.NonConstantExpression, want: "non-constant expression"},
		{kind: fmterr.UnresolvedReference, want: "unresolved reference"},
		{kind: fmterr.ShapeError, want: "shape error"},
		{kind: fmterr.UnsupportedDerivative, want: "unsupported derivative"},
	}
	for _, test := range tests {
		if got := test.kind.String(); got != test.want {
			t.Errorf("Kind(%d).String() = %q but want %q", test.kind, got, test.want)
		}
	}
}

func TestInternal(t *testing.T) {
	err := fmterr.Internalf(fmterr.Pos{Line: 2, Column: 1}, "unexpected node %s", "call")
	if !strings.Contains(err.Error(), "internal error") {
		t.Errorf("Internalf message %q does not mention an internal error", err.Error())
	}
	if !strings.Contains(err.Error(), "unexpected node call") {
		t.Errorf("Internalf message %q lost the cause", err.Error())
	}
}

func TestVerboseFormatHasStack(t *testing.T) {
	err := fmterr.Errorf(fmterr.ShapeError, fmterr.Pos{Line: 5, Column: 3}, "bad shape")
	verbose := fmt.Sprintf("%+v", err)
	if !strings.Contains(verbose, "Error generated at:") {
		t.Errorf("%%+v formatting does not include the stack trace:\n%s", verbose)
	}
}
