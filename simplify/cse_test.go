// Copyright 2025 Google LLC
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

package simplify_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/gradgen/base/uname"
	"github.com/gx-org/gradgen/build/builder"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/simplify"
)

func build(t *testing.T, src string) *builder.Program {
	t.Helper()
	prog, err := builder.BuildSource(src)
	if err != nil {
		t.Fatalf("BuildSource(%q): %+v", src, err)
	}
	return prog
}

func bindMain(t *testing.T, src string) (bindings []string, root string) {
	t.Helper()
	expr := mainExpr(t, src)
	bound, roots, err := simplify.Bind(uname.New(), []ir.Expr{expr})
	if err != nil {
		t.Fatalf("Bind(%q): %+v", src, err)
	}
	for _, b := range bound {
		bindings = append(bindings, b.Sym.Name+" = "+b.Expr.String())
	}
	return bindings, roots[0].String()
}

func TestBindShared(t *testing.T) {
	tests := []struct {
		src      string
		bindings []string
		root     string
	}{
		{
			src:      "number x\nexpr g = x * x\nmain f = g + g",
			bindings: []string{"t0 = (x * x)"},
			root:     "(t0 + t0)",
		},
		{
			src:      "number x\nexpr g = x * x\nexpr h = g + x\nmain f = g * h",
			bindings: []string{"t0 = (x * x)"},
			root:     "(t0 * (t0 + x))",
		},
		{
			// Nested sharing binds inner expressions first.
			src:      "number x\nexpr g = x * x\nexpr h = g + g\nmain f = h / h",
			bindings: []string{"t0 = (x * x)", "t1 = (t0 + t0)"},
			root:     "(t1 / t1)",
		},
		{
			// Repeated subexpressions share even without a named
			// subexpression, inner ones first.
			src:      "number x\nmain f = sqrt(x + 1) * sqrt(x + 1)",
			bindings: []string{"t0 = (x + 1)", "t1 = sqrt(t0)"},
			root:     "(t1 * t1)",
		},
		{
			// Element reads are too cheap to name.
			src:      "vector v(3)\nmain f = v[0] * v[0]",
			bindings: nil,
			root:     "(v[0] * v[0])",
		},
		{
			// A subexpression reading the loop variable stays inside
			// the reduction; a loop-free one moves out.
			src:      "int n\nvector v(n) : nodiff\nnumber x\nmain f = (for i in [0, n - 1] sum ((x * x) * v[i])) / (x * x)",
			bindings: []string{"t0 = (x * x)"},
			root:     "(for i in [0, (n - 1)] sum((t0 * v[i])) / t0)",
		},
	}
	for _, test := range tests {
		bindings, root := bindMain(t, test.src)
		if diff := cmp.Diff(test.bindings, bindings); diff != "" {
			t.Errorf("Bind(%q) bindings (-want +got):\n%s", test.src, diff)
		}
		if root != test.root {
			t.Errorf("Bind(%q) root:\ngot  %s\nwant %s", test.src, root, test.root)
		}
	}
}

func TestBindAcrossRoots(t *testing.T) {
	prog := build(t, `
number x
expr g = x * x
expr h = sqrt(g)
main f = h + g
`)
	g, _ := prog.Symbol("g")
	h, _ := prog.Symbol("h")
	bindings, roots, err := simplify.Bind(uname.New(), []ir.Expr{prog.Main().Value, h.Value, g.Value})
	if err != nil {
		t.Fatalf("Bind: %+v", err)
	}
	var got []string
	for _, b := range bindings {
		got = append(got, b.Sym.Name+" = "+b.Expr.String())
	}
	want := []string{"t0 = (x * x)", "t1 = sqrt(t0)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bindings (-want +got):\n%s", diff)
	}
	wantRoots := []string{"(t1 + t0)", "t1", "t0"}
	rootStrs := make([]string, len(roots))
	for i, r := range roots {
		rootStrs[i] = r.String()
	}
	if diff := cmp.Diff(wantRoots, rootStrs); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
}

func TestBindEquivalentFamilies(t *testing.T) {
	// With q marked equivalent, one repeated member of the family
	// binds every member.
	bindings, root := bindMain(t, `
vector q(2) : equivalent
number a
expr p0 = a * q[0]
expr p1 = a * q[1]
main f = p0 * p0 + p1
`)
	wantBindings := []string{"t0 = (a * q[0])", "t1 = (a * q[1])"}
	if diff := cmp.Diff(wantBindings, bindings); diff != "" {
		t.Errorf("bindings (-want +got):\n%s", diff)
	}
	if want := "((t0 * t0) + t1)"; root != want {
		t.Errorf("root: got %s, want %s", root, want)
	}

	// Without the mark, the single occurrence stays inline.
	bindings, root = bindMain(t, `
vector q(2)
number a
expr p0 = a * q[0]
expr p1 = a * q[1]
main f = p0 * p0 + p1
`)
	wantBindings = []string{"t0 = (a * q[0])"}
	if diff := cmp.Diff(wantBindings, bindings); diff != "" {
		t.Errorf("bindings (-want +got):\n%s", diff)
	}
	if want := "((t0 * t0) + (a * q[1]))"; root != want {
		t.Errorf("root: got %s, want %s", root, want)
	}
}

func TestBindReservedNames(t *testing.T) {
	names := uname.New()
	names.Reserve("t0")
	expr := mainExpr(t, "number x\nmain f = (x + 1) * (x + 1)")
	bindings, _, err := simplify.Bind(names, []ir.Expr{expr})
	if err != nil {
		t.Fatalf("Bind: %+v", err)
	}
	if len(bindings) != 1 {
		t.Fatalf("got %d bindings, want 1", len(bindings))
	}
	if got := bindings[0].Sym.Name; got == "t0" {
		t.Errorf("binding reused the reserved name %s", got)
	}
}
