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

package exprdeps_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/gradgen/build/builder"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/internal/exprdeps"
)

const decls = "number x\nnumber y\nvector v(3)\nint n\n"

func mainExpr(t *testing.T, expr string) (*builder.Program, ir.Expr) {
	t.Helper()
	prog, err := builder.BuildSource(decls + "main f = " + expr)
	if err != nil {
		t.Fatalf("BuildSource(%q): %+v", expr, err)
	}
	return prog, prog.Main().Value
}

func names(syms []*ir.Symbol) []string {
	ss := make([]string, len(syms))
	for i, sym := range syms {
		ss[i] = sym.Name
	}
	return ss
}

func TestDependsOn(t *testing.T) {
	tests := []struct {
		expr string
		sym  string
		elem int
		want bool
	}{
		{expr: "x * v[0]", sym: "x", elem: -1, want: true},
		{expr: "x * v[0]", sym: "y", elem: -1, want: false},
		{expr: "x * v[0]", sym: "v", elem: 0, want: true},
		{expr: "x * v[0]", sym: "v", elem: 1, want: false},
		{expr: "x * v[0]", sym: "v", elem: -1, want: true},
		{expr: "v . v", sym: "v", elem: 2, want: true},
		{expr: "v[1] + v[2]", sym: "v", elem: 0, want: false},
		{expr: "for i in [0, 2] sum (v[i])", sym: "v", elem: 1, want: true},
		{expr: "for i in [0, 2] sum (v[i] * x)", sym: "x", elem: -1, want: true},
		{expr: "sqrt(y * y)", sym: "x", elem: -1, want: false},
		{expr: "norm(v)", sym: "v", elem: 2, want: true},
	}
	for _, test := range tests {
		prog, expr := mainExpr(t, test.expr)
		sym, ok := prog.Symbol(test.sym)
		if !ok {
			t.Fatalf("symbol %s not declared", test.sym)
		}
		if got := exprdeps.Collect(expr).DependsOn(sym, test.elem); got != test.want {
			t.Errorf("DependsOn(%s, %d) on %s: got %v but want %v", test.sym, test.elem, test.expr, got, test.want)
		}
	}
}

func TestSymbols(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{
			expr: "y + x * v[1] + x",
			want: []string{"y", "x", "v"},
		},
		{
			expr: "for i in [0, n - 1] sum (v[0] * x)",
			want: []string{"n", "v", "x"},
		},
	}
	for i, test := range tests {
		_, expr := mainExpr(t, test.expr)
		got := names(exprdeps.Collect(expr).Symbols())
		if !cmp.Equal(got, test.want) {
			t.Errorf("test %d: incorrect symbol list: got %v but want %v", i, got, test.want)
		}
	}
}

func TestLiteralsHaveNoSymbols(t *testing.T) {
	_, expr := mainExpr(t, "2 + 2")
	if syms := exprdeps.Collect(expr).Symbols(); len(syms) != 0 {
		t.Errorf("literal expression depends on %v, want nothing", names(syms))
	}
}

func TestBoundLoopVariables(t *testing.T) {
	// Loop variables, including an outer variable used by an inner
	// bound, are not dependencies of the whole reduction.
	_, expr := mainExpr(t, "for i in [0, 1] sum (for j in [i, 2] sum (v[i] * v[j]))")
	got := names(exprdeps.Collect(expr).Symbols())
	if want := []string{"v"}; !cmp.Equal(got, want) {
		t.Errorf("incorrect symbol list: got %v but want %v", got, want)
	}
}

func TestCollectMerges(t *testing.T) {
	prog, err := builder.BuildSource(decls + "expr g = x * x\nmain f = y")
	if err != nil {
		t.Fatalf("BuildSource: %+v", err)
	}
	g, _ := prog.Symbol("g")
	set := exprdeps.Collect(prog.Main().Value, g.Value)
	if got, want := names(set.Symbols()), []string{"y", "x"}; !cmp.Equal(got, want) {
		t.Errorf("incorrect symbol list: got %v but want %v", got, want)
	}
}
