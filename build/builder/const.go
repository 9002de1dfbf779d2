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
	"math/big"

	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

func parseNumber(lit *syntax.NumberLit) (*ir.Number, error) {
	f, _, err := big.ParseFloat(lit.Value, 10, 53, big.ToNearestEven)
	if err != nil {
		return nil, fmterr.Internalf(lit.Pos(), "cannot parse number literal %s: %v", lit.Value, err)
	}
	return ir.NewNumber(lit.Pos(), f), nil
}

// foldConst folds a constant initialiser. Only literal arithmetic
// and references to previously declared constants are allowed.
func (b *builder) foldConst(expr syntax.Expr) (*ir.Number, error) {
	switch x := expr.(type) {
	case *syntax.NumberLit:
		return parseNumber(x)
	case *syntax.Ident:
		sym, ok := b.prog.syms.Load(x.Name)
		if !ok || sym.Kind != ir.ConstSymbol {
			return nil, fmterr.Errorf(fmterr.NonConstantExpression, x.Pos(), "%s does not reference a constant", x.Name)
		}
		num, ok := sym.Value.(*ir.Number)
		if !ok {
			return nil, fmterr.Internalf(x.Pos(), "constant %s has no folded value", sym.Name)
		}
		return ir.NewNumber(x.Pos(), num.Val), nil
	case *syntax.ParenExpr:
		return b.foldConst(x.X)
	case *syntax.UnaryExpr:
		v, err := b.foldConst(x.X)
		if err != nil {
			return nil, err
		}
		return ir.NewNumber(x.Pos(), new(big.Float).Neg(v.Val)), nil
	case *syntax.BinaryExpr:
		xv, err := b.foldConst(x.X)
		if err != nil {
			return nil, err
		}
		yv, err := b.foldConst(x.Y)
		if err != nil {
			return nil, err
		}
		val, err := foldBinary(x.OpPos, x.Op, xv.Val, yv.Val)
		if err != nil {
			return nil, err
		}
		return ir.NewNumber(x.Pos(), val), nil
	}
	return nil, fmterr.Errorf(fmterr.NonConstantExpression, expr.Pos(), "expression is not constant: a constant folds over literal arithmetic and constant references only")
}

func foldBinary(pos fmterr.Pos, op syntax.TokenType, x, y *big.Float) (*big.Float, error) {
	switch op {
	case syntax.ADD, syntax.SUB, syntax.MUL, syntax.QUO, syntax.POW:
	default:
		return nil, fmterr.Errorf(fmterr.NonConstantExpression, pos, "operator %s is not constant arithmetic", op)
	}
	if op == syntax.QUO && y.Sign() == 0 {
		return nil, fmterr.Errorf(fmterr.NonConstantExpression, pos, "division by zero in a constant")
	}
	z, ok := ir.FoldBinary(op, x, y)
	if !ok {
		return nil, fmterr.Errorf(fmterr.NonConstantExpression, pos, "invalid constant power %s ^ %s", x.Text('g', -1), y.Text('g', -1))
	}
	return z, nil
}
