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

package builder

import (
	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

func (b *builder) varDecl(decl *syntax.VarDecl) error {
	sym := &ir.Symbol{
		Name:       decl.Name.Name,
		Pos:        decl.Name.Pos(),
		NoDiff:     decl.Attr == syntax.AttrNoDiff,
		Equivalent: decl.Attr == syntax.AttrEquivalent,
	}
	switch decl.Kw.Type {
	case syntax.NUMBER:
		sym.Kind = ir.NumberSymbol
		sym.Shp = ir.Scalar()
	case syntax.INT:
		sym.Kind = ir.IntSymbol
		sym.NoDiff = true
		sym.Shp = ir.Scalar()
	case syntax.VECTOR:
		sym.Kind = ir.VectorSymbol
		dim, err := b.dim(decl.Dims[0])
		if err != nil {
			return err
		}
		sym.Shp = ir.Vector(dim)
	case syntax.MATRIX:
		sym.Kind = ir.MatrixSymbol
		sym.NoDiff = true
		rows, err := b.dim(decl.Dims[0])
		if err != nil {
			return err
		}
		cols, err := b.dim(decl.Dims[1])
		if err != nil {
			return err
		}
		sym.Shp = ir.Matrix(rows, cols)
	default:
		return fmterr.Internalf(decl.Pos(), "unknown declaration keyword %s", decl.Kw)
	}
	if sym.Differentiable() && sym.Kind == ir.VectorSymbol {
		if _, ok := ir.DimValue(sym.Shp.Rows); !ok {
			return fmterr.Errorf(fmterr.InvalidDimension, decl.Dims[0].Pos(), "differentiable vector %s needs a literal size: size it with a literal or mark it %s", sym.Name, syntax.NODIFF)
		}
	}
	return b.declare(sym)
}

// dim resolves a dimension: a literal positive integer, a reference
// to a previously declared non-differentiable scalar symbol, or a
// reference to a constant folding to a positive integer.
func (b *builder) dim(expr syntax.Expr) (ir.Dim, error) {
	switch x := expr.(type) {
	case *syntax.NumberLit:
		num, err := parseNumber(x)
		if err != nil {
			return nil, err
		}
		return litDim(num, x.Pos())
	case *syntax.Ident:
		sym, ok := b.prog.syms.Load(x.Name)
		if !ok {
			return nil, fmterr.Errorf(fmterr.InvalidDimension, x.Pos(), "undefined size %s: sizes must be declared before their first use", x.Name)
		}
		switch sym.Kind {
		case ir.IntSymbol:
			return ir.SymDim{Sym: sym}, nil
		case ir.NumberSymbol:
			if sym.NoDiff {
				return ir.SymDim{Sym: sym}, nil
			}
			return nil, fmterr.Errorf(fmterr.InvalidDimension, x.Pos(), "%s is a differentiation variable and cannot size a declaration", x.Name)
		case ir.ConstSymbol:
			num, ok := sym.Value.(*ir.Number)
			if !ok {
				return nil, fmterr.Internalf(x.Pos(), "constant %s has no folded value", sym.Name)
			}
			return litDim(num, x.Pos())
		}
		return nil, fmterr.Errorf(fmterr.InvalidDimension, x.Pos(), "cannot use %s %s as a size", sym.Kind, sym.Name)
	}
	return nil, fmterr.Errorf(fmterr.InvalidDimension, expr.Pos(), "a size must be a literal integer or a declared symbol")
}

func litDim(num *ir.Number, pos fmterr.Pos) (ir.Dim, error) {
	n, ok := num.IsInt()
	if !ok || n <= 0 {
		return nil, fmterr.Errorf(fmterr.InvalidDimension, pos, "size %s is not a positive integer", num)
	}
	return ir.LitDim(n), nil
}

func (b *builder) constDecl(decl *syntax.ConstDecl) error {
	value, err := b.foldConst(decl.Value)
	if err != nil {
		return err
	}
	return b.declare(&ir.Symbol{
		Name:   decl.Name.Name,
		Kind:   ir.ConstSymbol,
		Shp:    ir.Scalar(),
		NoDiff: true,
		Pos:    decl.Name.Pos(),
		Value:  value,
	})
}

func (b *builder) exprDecl(decl *syntax.ExprDecl) error {
	value, err := b.buildExpr(decl.Value)
	if err != nil {
		return err
	}
	sym := &ir.Symbol{
		Name:   decl.Name.Name,
		Kind:   ir.SubexprSymbol,
		Shp:    value.Shape(),
		NoDiff: true,
		Pos:    decl.Name.Pos(),
		Value:  value,
	}
	if decl.Main() {
		if b.prog.main != nil {
			return fmterr.Errorf(fmterr.DuplicateSymbol, decl.Pos(), "main expression already declared as %s at %s", b.prog.main.Name, b.prog.main.Pos)
		}
		if !value.Shape().IsScalar() {
			return fmterr.Errorf(fmterr.ShapeError, decl.Value.Pos(), "main expression must be a scalar, got %s", value.Shape())
		}
		b.prog.main = sym
	}
	return b.declare(sym)
}
