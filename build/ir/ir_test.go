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

package ir_test

import (
	"testing"

	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

func vectorSym(name string, n int) *ir.Symbol {
	return &ir.Symbol{Name: name, Kind: ir.VectorSymbol, Shp: ir.Vector(ir.LitDim(n))}
}

func symbolicVectorSym(name string, dim *ir.Symbol) *ir.Symbol {
	return &ir.Symbol{Name: name, Kind: ir.VectorSymbol, NoDiff: true, Shp: ir.Vector(ir.SymDim{Sym: dim})}
}

func matrixSym(name string, rows, cols int) *ir.Symbol {
	return &ir.Symbol{Name: name, Kind: ir.MatrixSymbol, Shp: ir.Matrix(ir.LitDim(rows), ir.LitDim(cols))}
}

func intSym(name string) *ir.Symbol {
	return &ir.Symbol{Name: name, Kind: ir.IntSymbol, NoDiff: true, Shp: ir.Scalar()}
}

func numberSym(name string) *ir.Symbol {
	return &ir.Symbol{Name: name, Kind: ir.NumberSymbol, Shp: ir.Scalar()}
}

func ref(sym *ir.Symbol) ir.Expr {
	return ir.NewRef(fmterr.Pos{}, sym)
}

func TestShapeEqualIsSymmetric(t *testing.T) {
	n := intSym("n")
	m := intSym("m")
	tests := []struct {
		a, b ir.Shape
		want bool
	}{
		{a: ir.Scalar(), b: ir.Scalar(), want: true},
		{a: ir.Vector(ir.LitDim(4)), b: ir.Vector(ir.LitDim(4)), want: true},
		{a: ir.Vector(ir.LitDim(4)), b: ir.Vector(ir.LitDim(3)), want: false},
		{a: ir.Vector(ir.SymDim{Sym: n}), b: ir.Vector(ir.SymDim{Sym: n}), want: true},
		// Symbolic sizes are equal only on symbol identity.
		{a: ir.Vector(ir.SymDim{Sym: n}), b: ir.Vector(ir.SymDim{Sym: m}), want: false},
		{a: ir.Vector(ir.SymDim{Sym: n}), b: ir.Vector(ir.LitDim(4)), want: false},
		{a: ir.Matrix(ir.LitDim(2), ir.LitDim(3)), b: ir.Matrix(ir.LitDim(2), ir.LitDim(3)), want: true},
		{a: ir.Scalar(), b: ir.Vector(ir.LitDim(1)), want: false},
	}
	for i, test := range tests {
		if got := test.a.Equal(test.b); got != test.want {
			t.Errorf("test %d: %s.Equal(%s) = %v but want %v", i, test.a, test.b, got, test.want)
		}
		if got := test.b.Equal(test.a); got != test.want {
			t.Errorf("test %d: %s.Equal(%s) = %v but want %v", i, test.b, test.a, got, test.want)
		}
	}
}

func TestShapeCompatible(t *testing.T) {
	n := intSym("n")
	m := intSym("m")
	tests := []struct {
		a, b ir.Shape
		want bool
	}{
		{a: ir.Vector(ir.SymDim{Sym: n}), b: ir.Vector(ir.LitDim(5)), want: true},
		{a: ir.Vector(ir.SymDim{Sym: n}), b: ir.Vector(ir.SymDim{Sym: m}), want: true},
		{a: ir.Vector(ir.LitDim(5)), b: ir.Vector(ir.LitDim(6)), want: false},
		{a: ir.Vector(ir.LitDim(5)), b: ir.Scalar(), want: false},
	}
	for i, test := range tests {
		if got := test.a.Compatible(test.b); got != test.want {
			t.Errorf("test %d: %s.Compatible(%s) = %v but want %v", i, test.a, test.b, got, test.want)
		}
	}
}

func TestMatrixShapeNormalization(t *testing.T) {
	n := intSym("n")
	tests := []struct {
		shape ir.Shape
		want  string
	}{
		{shape: ir.Matrix(ir.LitDim(1), ir.LitDim(1)), want: "scalar"},
		{shape: ir.Matrix(ir.LitDim(4), ir.LitDim(1)), want: "vector(4)"},
		{shape: ir.Matrix(ir.SymDim{Sym: n}, ir.LitDim(1)), want: "vector(n)"},
		{shape: ir.Matrix(ir.LitDim(1), ir.LitDim(4)), want: "matrix(1, 4)"},
		{shape: ir.Matrix(ir.LitDim(3), ir.SymDim{Sym: n}), want: "matrix(3, n)"},
	}
	for i, test := range tests {
		if got := test.shape.String(); got != test.want {
			t.Errorf("test %d: shape is %s but want %s", i, got, test.want)
		}
	}
}

func TestNewBinaryShapes(t *testing.T) {
	n := intSym("n")
	v4 := ref(vectorSym("v", 4))
	w4 := ref(vectorSym("w", 4))
	u3 := ref(vectorSym("u", 3))
	vn := ref(symbolicVectorSym("p", n))
	m53 := ref(matrixSym("M", 5, 3))
	x := ref(numberSym("x"))
	two := ir.NewFloat(fmterr.Pos{}, 2)

	tests := []struct {
		name    string
		op      syntax.TokenType
		x, y    ir.Expr
		want    string
		wantErr bool
	}{
		{name: "vector sum", op: syntax.ADD, x: v4, y: w4, want: "vector(4)"},
		{name: "scalar scales sum", op: syntax.ADD, x: v4, y: x, want: "vector(4)"},
		{name: "mismatched sum", op: syntax.SUB, x: v4, y: u3, wantErr: true},
		{name: "symbolic against literal sum", op: syntax.ADD, x: vn, y: v4, want: "vector(n)"},
		{name: "scalar product", op: syntax.MUL, x: x, y: two, want: "scalar"},
		{name: "scalar scales vector", op: syntax.MUL, x: two, y: v4, want: "vector(4)"},
		{name: "matrix vector product", op: syntax.MUL, x: m53, y: u3, want: "vector(5)"},
		{name: "inner size mismatch", op: syntax.MUL, x: m53, y: ref(vectorSym("q", 5)), wantErr: true},
		{name: "outer product", op: syntax.MUL, x: v4, y: ir.NewTranspose(fmterr.Pos{}, u3), want: "matrix(4, 3)"},
		{name: "row times column is scalar", op: syntax.MUL, x: ir.NewTranspose(fmterr.Pos{}, v4), y: w4, want: "scalar"},
		{name: "division by scalar", op: syntax.QUO, x: v4, y: x, want: "vector(4)"},
		{name: "division by vector", op: syntax.QUO, x: x, y: v4, wantErr: true},
		{name: "power", op: syntax.POW, x: x, y: two, want: "scalar"},
		{name: "power of vector", op: syntax.POW, x: v4, y: two, wantErr: true},
		{name: "dot product", op: syntax.DOT, x: v4, y: w4, want: "scalar"},
		{name: "dot size mismatch", op: syntax.DOT, x: v4, y: u3, wantErr: true},
		{name: "dot symbolic size", op: syntax.DOT, x: vn, y: v4, want: "scalar"},
		{name: "construct", op: syntax.HASH, x: u3, y: v4, want: "vector(7)"},
		{name: "construct symbolic", op: syntax.HASH, x: vn, y: v4, want: "vector(n+4)"},
		{name: "construct scalar", op: syntax.HASH, x: x, y: v4, wantErr: true},
	}
	for _, test := range tests {
		got, err := ir.NewBinary(fmterr.Pos{Line: 1, Column: 1}, test.op, test.x, test.y)
		if test.wantErr {
			if err == nil {
				t.Errorf("%s: no error but want a shape error", test.name)
			} else if kind := fmterr.KindOf(err); kind != fmterr.ShapeError {
				t.Errorf("%s: error kind is %s but want %s", test.name, kind, fmterr.ShapeError)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if gotShape := got.Shape().String(); gotShape != test.want {
			t.Errorf("%s: result shape is %s but want %s", test.name, gotShape, test.want)
		}
	}
}

func TestNewIndex(t *testing.T) {
	v4 := ref(vectorSym("v", 4))
	m34 := ref(matrixSym("M", 3, 4))
	x := ref(numberSym("x"))
	i := ref(&ir.Symbol{Name: "i", Kind: ir.LoopSymbol, Shp: ir.Scalar()})

	tests := []struct {
		name    string
		x, at   ir.Expr
		want    string
		wantErr bool
	}{
		{name: "vector element", x: v4, at: ir.NewFloat(fmterr.Pos{}, 2), want: "scalar"},
		{name: "matrix row", x: m34, at: ir.NewFloat(fmterr.Pos{}, 1), want: "vector(4)"},
		{name: "loop variable index", x: v4, at: i, want: "scalar"},
		{name: "out of range", x: v4, at: ir.NewFloat(fmterr.Pos{}, 7), wantErr: true},
		{name: "negative", x: v4, at: ir.NewNeg(fmterr.Pos{}, ir.NewFloat(fmterr.Pos{}, 1)), wantErr: true},
		{name: "not an integer", x: v4, at: ir.NewFloat(fmterr.Pos{}, 1.5), wantErr: true},
		{name: "scalar base", x: x, at: ir.NewFloat(fmterr.Pos{}, 0), wantErr: true},
	}
	for _, test := range tests {
		got, err := ir.NewIndex(fmterr.Pos{}, test.x, test.at)
		if test.wantErr {
			if err == nil {
				t.Errorf("%s: no error but want a shape error", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if gotShape := got.Shape().String(); gotShape != test.want {
			t.Errorf("%s: result shape is %s but want %s", test.name, gotShape, test.want)
		}
	}
}

func TestExprString(t *testing.T) {
	v := vectorSym("v", 4)
	x := numberSym("x")
	i := &ir.Symbol{Name: "i", Kind: ir.LoopSymbol, Shp: ir.Scalar()}
	pos := fmterr.Pos{}

	vi, err := ir.NewIndex(pos, ref(v), ref(i))
	if err != nil {
		t.Fatal(err)
	}
	prod, err := ir.NewBinary(pos, syntax.MUL, vi, ref(x))
	if err != nil {
		t.Fatal(err)
	}
	red, err := ir.NewReduce(pos, syntax.SUM, i, ir.NewFloat(pos, 1), ir.NewFloat(pos, 3), prod)
	if err != nil {
		t.Fatal(err)
	}
	sqrt, err := ir.NewCall(pos, ir.FuncSqrt, ref(x))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		expr ir.Expr
		want string
	}{
		{expr: ir.NewFloat(pos, 0.5), want: "0.5"},
		{expr: ir.NewFloat(pos, 3), want: "3"},
		{expr: ir.NewNeg(pos, ref(x)), want: "-x"},
		{expr: prod, want: "(v[i] * x)"},
		{expr: red, want: "for i in [1, 3] sum((v[i] * x))"},
		{expr: sqrt, want: "sqrt(x)"},
		{expr: ir.NewTranspose(pos, ref(v)), want: "v'"},
		{expr: ir.NewZero(ir.Scalar()), want: "0"},
		{expr: ir.NewZero(ir.Vector(ir.LitDim(3))), want: "zero(vector(3))"},
	}
	for i, test := range tests {
		if got := test.expr.String(); got != test.want {
			t.Errorf("test %d: String() = %q but want %q", i, got, test.want)
		}
	}
}

func TestSubst(t *testing.T) {
	v := vectorSym("v", 4)
	i := &ir.Symbol{Name: "i", Kind: ir.LoopSymbol, Shp: ir.Scalar()}
	pos := fmterr.Pos{}
	vi, err := ir.NewIndex(pos, ref(v), ref(i))
	if err != nil {
		t.Fatal(err)
	}
	body, err := ir.NewBinary(pos, syntax.MUL, vi, ref(i))
	if err != nil {
		t.Fatal(err)
	}

	got, err := ir.Subst(body, i, ir.NewFloat(pos, 2))
	if err != nil {
		t.Fatal(err)
	}
	if want := "(v[2] * 2)"; got.String() != want {
		t.Errorf("Subst = %s but want %s", got, want)
	}

	// An unrelated substitution returns the same tree.
	x := numberSym("x")
	same, err := ir.Subst(body, x, ir.NewFloat(pos, 1))
	if err != nil {
		t.Fatal(err)
	}
	if same != body {
		t.Error("substituting an absent symbol must keep the tree")
	}

	// Substituting an out of range literal surfaces a shape error.
	if _, err := ir.Subst(body, i, ir.NewFloat(pos, 9)); err == nil {
		t.Error("no error when the substituted index moves out of range")
	} else if kind := fmterr.KindOf(err); kind != fmterr.ShapeError {
		t.Errorf("error kind is %s but want %s", kind, fmterr.ShapeError)
	}
}

func TestIsIntValued(t *testing.T) {
	n := intSym("n")
	x := numberSym("x")
	i := &ir.Symbol{Name: "i", Kind: ir.LoopSymbol, Shp: ir.Scalar()}
	pos := fmterr.Pos{}
	mustBinary := func(op syntax.TokenType, a, b ir.Expr) ir.Expr {
		t.Helper()
		e, err := ir.NewBinary(pos, op, a, b)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	tests := []struct {
		expr ir.Expr
		want bool
	}{
		{expr: ir.NewFloat(pos, 3), want: true},
		{expr: ir.NewFloat(pos, 2.5), want: false},
		{expr: ref(n), want: true},
		{expr: ref(i), want: true},
		{expr: ref(x), want: false},
		{expr: mustBinary(syntax.ADD, ref(n), ir.NewFloat(pos, 1)), want: true},
		{expr: mustBinary(syntax.MUL, ref(i), ref(n)), want: true},
		{expr: mustBinary(syntax.QUO, ref(n), ir.NewFloat(pos, 2)), want: false},
		{expr: ir.NewNeg(pos, ref(n)), want: true},
	}
	for ti, test := range tests {
		if got := ir.IsIntValued(test.expr); got != test.want {
			t.Errorf("test %d: IsIntValued(%s) = %v but want %v", ti, test.expr, got, test.want)
		}
	}
}
