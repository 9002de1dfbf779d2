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

func (b *builder) buildExpr(expr syntax.Expr) (ir.Expr, error) {
	switch x := expr.(type) {
	case *syntax.NumberLit:
		return parseNumber(x)
	case *syntax.Ident:
		return b.ident(x)
	case *syntax.ParenExpr:
		return b.buildExpr(x.X)
	case *syntax.UnaryExpr:
		opx, err := b.buildExpr(x.X)
		if err != nil {
			return nil, err
		}
		return ir.NewNeg(x.Pos(), opx), nil
	case *syntax.BinaryExpr:
		opx, err := b.buildExpr(x.X)
		if err != nil {
			return nil, err
		}
		opy, err := b.buildExpr(x.Y)
		if err != nil {
			return nil, err
		}
		return ir.NewBinary(x.OpPos, x.Op, opx, opy)
	case *syntax.CallExpr:
		return b.call(x)
	case *syntax.IndexExpr:
		opx, err := b.buildExpr(x.X)
		if err != nil {
			return nil, err
		}
		at, err := b.buildExpr(x.Index)
		if err != nil {
			return nil, err
		}
		return ir.NewIndex(x.Lbrack, opx, at)
	case *syntax.TransposeExpr:
		opx, err := b.buildExpr(x.X)
		if err != nil {
			return nil, err
		}
		return ir.NewTranspose(x.Quote, opx), nil
	case *syntax.VectorLit:
		elts := make([]ir.Expr, len(x.Elts))
		for i, elt := range x.Elts {
			var err error
			if elts[i], err = b.buildExpr(elt); err != nil {
				return nil, err
			}
		}
		return ir.NewVectorLit(x.Pos(), elts)
	case *syntax.ReduceExpr:
		return b.reduce(x)
	}
	return nil, fmterr.Internalf(expr.Pos(), "unknown expression node %T", expr)
}

// ident resolves a name. Constants substitute their folded literal
// and named sub-expressions substitute their tree: the built
// representation only references input symbols and loop variables.
func (b *builder) ident(x *syntax.Ident) (ir.Expr, error) {
	sym, ok := b.lookup(x.Name)
	if !ok {
		return nil, fmterr.Errorf(fmterr.UnresolvedReference, x.Pos(), "undefined: %s (symbols must be declared before their first use)", x.Name)
	}
	switch sym.Kind {
	case ir.ConstSymbol:
		num, ok := sym.Value.(*ir.Number)
		if !ok {
			return nil, fmterr.Internalf(x.Pos(), "constant %s has no folded value", sym.Name)
		}
		return ir.NewNumber(x.Pos(), num.Val), nil
	case ir.SubexprSymbol:
		return sym.Value, nil
	}
	return ir.NewRef(x.Pos(), sym), nil
}

func (b *builder) call(x *syntax.CallExpr) (ir.Expr, error) {
	if x.Fun.Name == "transpose" {
		if len(x.Args) != 1 {
			return nil, fmterr.Errorf(fmterr.ShapeError, x.Pos(), "transpose expects exactly one argument, got %d", len(x.Args))
		}
		arg, err := b.buildExpr(x.Args[0])
		if err != nil {
			return nil, err
		}
		return ir.NewTranspose(x.Pos(), arg), nil
	}
	fun, ok := ir.FuncByName(x.Fun.Name)
	if !ok {
		return nil, fmterr.Errorf(fmterr.UnresolvedReference, x.Pos(), "undefined function: %s", x.Fun.Name)
	}
	if len(x.Args) != 1 {
		return nil, fmterr.Errorf(fmterr.ShapeError, x.Pos(), "%s expects exactly one argument, got %d", fun, len(x.Args))
	}
	arg, err := b.buildExpr(x.Args[0])
	if err != nil {
		return nil, err
	}
	return ir.NewCall(x.Pos(), fun, arg)
}

func (b *builder) reduce(x *syntax.ReduceExpr) (ir.Expr, error) {
	lo, err := b.buildExpr(x.Lo)
	if err != nil {
		return nil, err
	}
	hi, err := b.buildExpr(x.Hi)
	if err != nil {
		return nil, err
	}
	sym := &ir.Symbol{
		Name:   x.Index.Name,
		Kind:   ir.LoopSymbol,
		Shp:    ir.Scalar(),
		NoDiff: true,
		Pos:    x.Index.Pos(),
	}
	b.pushLoop(sym)
	defer b.popLoop()
	body, err := b.buildExpr(x.Body)
	if err != nil {
		return nil, err
	}
	red, err := ir.NewReduce(x.Pos(), x.Op, sym, lo, hi, body)
	if err != nil {
		return nil, err
	}
	// Literal bounds are walked now so that an index moving out of
	// range is reported here rather than by a later stage.
	if _, _, err := ir.Unroll(red); err != nil {
		return nil, err
	}
	return red, nil
}
