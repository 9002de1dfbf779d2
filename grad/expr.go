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

package grad

import (
	"math"
	"math/big"

	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

type specialValue int

const (
	notSpecial specialValue = iota
	zeroSpecial
	oneSpecial
)

// result is a derivative under construction. The special kinds let
// the builders below fold additions and products eagerly instead of
// leaving x + 0 and 1 * x trees behind.
type result struct {
	kind specialValue
	expr ir.Expr
}

func zeroOf(src ir.Expr) result {
	return result{kind: zeroSpecial, expr: ir.NewZero(src.Shape())}
}

func zeroShaped(shape ir.Shape) result {
	return result{kind: zeroSpecial, expr: ir.NewZero(shape)}
}

func oneAt(pos fmterr.Pos) result {
	return result{kind: oneSpecial, expr: ir.NewFloat(pos, 1)}
}

// exprOf wraps a source expression, recognizing literal zeros and
// ones so that the builders fold around them.
func exprOf(e ir.Expr) result {
	if ir.IsZero(e) {
		return result{kind: zeroSpecial, expr: e}
	}
	if ir.IsOne(e) {
		return result{kind: oneSpecial, expr: e}
	}
	return result{expr: e}
}

// grader computes derivatives with respect to one variable.
type grader struct {
	wrt Var
}

func (g *grader) grad(src ir.Expr) (result, error) {
	switch x := src.(type) {
	case *ir.Number, *ir.Zero, *ir.Unit:
		return zeroOf(src), nil
	case *ir.Ref:
		return g.gradRef(x)
	case *ir.Unary:
		dx, err := g.grad(x.X)
		if err != nil {
			return result{}, err
		}
		return g.neg(x.Pos(), dx), nil
	case *ir.Binary:
		return g.gradBinary(x)
	case *ir.Call:
		return g.gradCall(x)
	case *ir.Index:
		dx, err := g.grad(x.X)
		if err != nil {
			return result{}, err
		}
		return g.index(x.Pos(), dx, x.At)
	case *ir.Transpose:
		return g.gradTranspose(x)
	case *ir.VectorLit:
		return g.gradVectorLit(x)
	case *ir.Reduce:
		return g.gradReduce(x)
	}
	return result{}, fmterr.Internalf(src.Pos(), "cannot differentiate %T", src)
}

func (g *grader) gradRef(src *ir.Ref) (result, error) {
	if src.Sym != g.wrt.Sym {
		return zeroOf(src), nil
	}
	if g.wrt.Elem < 0 {
		return oneAt(src.Pos()), nil
	}
	unit, err := ir.NewUnit(src.Shape(), g.wrt.Elem)
	if err != nil {
		return result{}, err
	}
	return result{expr: unit}, nil
}

func (g *grader) gradBinary(src *ir.Binary) (result, error) {
	pos := src.Pos()
	du, err := g.grad(src.X)
	if err != nil {
		return result{}, err
	}
	dv, err := g.grad(src.Y)
	if err != nil {
		return result{}, err
	}
	u, v := exprOf(src.X), exprOf(src.Y)
	switch src.Op {
	case syntax.ADD:
		return g.add(pos, du, dv)
	case syntax.SUB:
		return g.sub(pos, du, dv)
	case syntax.MUL:
		left, err := g.mul(pos, du, v)
		if err != nil {
			return result{}, err
		}
		right, err := g.mul(pos, u, dv)
		if err != nil {
			return result{}, err
		}
		return g.add(pos, left, right)
	case syntax.QUO:
		left, err := g.mul(pos, du, v)
		if err != nil {
			return result{}, err
		}
		right, err := g.mul(pos, u, dv)
		if err != nil {
			return result{}, err
		}
		num, err := g.sub(pos, left, right)
		if err != nil {
			return result{}, err
		}
		den, err := g.mul(pos, v, v)
		if err != nil {
			return result{}, err
		}
		return g.quo(pos, num, den)
	case syntax.POW:
		return g.gradPow(src, du, dv)
	case syntax.DOT:
		left, err := g.dot(pos, du, v)
		if err != nil {
			return result{}, err
		}
		right, err := g.dot(pos, u, dv)
		if err != nil {
			return result{}, err
		}
		return g.add(pos, left, right)
	case syntax.HASH:
		if du.kind == zeroSpecial && dv.kind == zeroSpecial {
			return zeroOf(src), nil
		}
		cat, err := ir.NewBinary(pos, syntax.HASH, du.expr, dv.expr)
		if err != nil {
			return result{}, fmterr.Internal(err)
		}
		return result{expr: cat}, nil
	}
	return result{}, fmterr.Internalf(pos, "cannot differentiate operator %s", src.Op)
}

func (g *grader) gradPow(src *ir.Binary, du, dv result) (result, error) {
	pos := src.Pos()
	if du.kind == zeroSpecial && dv.kind == zeroSpecial {
		return zeroOf(src), nil
	}
	if dv.kind == zeroSpecial {
		// Constant exponent: v * u^(v-1) * du.
		exp, err := decrement(pos, src.Y)
		if err != nil {
			return result{}, err
		}
		pw, err := pow(pos, src.X, exp)
		if err != nil {
			return result{}, err
		}
		coef, err := g.mul(pos, exprOf(src.Y), exprOf(pw))
		if err != nil {
			return result{}, err
		}
		return g.mul(pos, coef, du)
	}
	if du.kind == zeroSpecial {
		base, ok := src.X.(*ir.Number)
		if !ok || base.Val.Sign() <= 0 {
			return result{}, fmterr.Errorf(fmterr.UnsupportedDerivative, pos, "cannot differentiate %s with respect to %s: the base of the power is not a positive constant", src, g.wrt)
		}
		// Constant positive base: ln(a) * a^v * dv.
		a, _ := base.Val.Float64()
		coef, err := g.mul(pos, exprOf(ir.NewFloat(pos, math.Log(a))), exprOf(src))
		if err != nil {
			return result{}, err
		}
		return g.mul(pos, coef, dv)
	}
	return result{}, fmterr.Errorf(fmterr.UnsupportedDerivative, pos, "cannot differentiate %s with respect to %s: both the base and the exponent depend on it", src, g.wrt)
}

func (g *grader) gradCall(src *ir.Call) (result, error) {
	du, err := g.grad(src.Arg)
	if err != nil {
		return result{}, err
	}
	if du.kind == zeroSpecial {
		return zeroOf(src), nil
	}
	pos := src.Pos()
	u, self := exprOf(src.Arg), exprOf(src)
	switch src.Fun {
	case ir.FuncSqrt:
		// du / (2 * sqrt(u)): the square root is shared with the
		// value computation.
		den, err := g.mul(pos, exprOf(ir.NewFloat(pos, 2)), self)
		if err != nil {
			return result{}, err
		}
		return g.quo(pos, du, den)
	case ir.FuncLn:
		return g.quo(pos, du, u)
	case ir.FuncSin:
		cos, err := ir.NewCall(pos, ir.FuncCos, src.Arg)
		if err != nil {
			return result{}, fmterr.Internal(err)
		}
		return g.mul(pos, exprOf(cos), du)
	case ir.FuncCos:
		sin, err := ir.NewCall(pos, ir.FuncSin, src.Arg)
		if err != nil {
			return result{}, fmterr.Internal(err)
		}
		m, err := g.mul(pos, exprOf(sin), du)
		if err != nil {
			return result{}, err
		}
		return g.neg(pos, m), nil
	case ir.FuncTan:
		den, err := g.cosSquared(pos, src.Arg, ir.FuncCos)
		if err != nil {
			return result{}, err
		}
		return g.quo(pos, du, den)
	case ir.FuncCot:
		den, err := g.cosSquared(pos, src.Arg, ir.FuncSin)
		if err != nil {
			return result{}, err
		}
		q, err := g.quo(pos, du, den)
		if err != nil {
			return result{}, err
		}
		return g.neg(pos, q), nil
	case ir.FuncNorm:
		return g.gradNorm(src, du)
	}
	return result{}, fmterr.Internalf(pos, "cannot differentiate function %s", src.Fun)
}

// cosSquared returns fun(arg) * fun(arg) for the tangent and
// cotangent denominators.
func (g *grader) cosSquared(pos fmterr.Pos, arg ir.Expr, fun ir.Func) (result, error) {
	call, err := ir.NewCall(pos, fun, arg)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	return g.mul(pos, exprOf(call), exprOf(call))
}

func (g *grader) gradNorm(src *ir.Call, du result) (result, error) {
	pos := src.Pos()
	arg := src.Arg
	if arg.Shape().Kind() == ir.VectorKind {
		// (u . du) / norm(u): the norm is shared with the value
		// computation.
		num, err := g.dot(pos, exprOf(arg), du)
		if err != nil {
			return result{}, err
		}
		return g.quo(pos, num, exprOf(src))
	}
	rows, rowsOk := ir.DimValue(arg.Shape().Rows)
	cols, colsOk := ir.DimValue(arg.Shape().Cols)
	if !rowsOk || !colsOk {
		return result{}, fmterr.Errorf(fmterr.UnsupportedDerivative, pos, "cannot differentiate %s with respect to %s: the matrix has symbolic dimensions", src, g.wrt)
	}
	// Sum u[i][j] * du[i][j] over all the cells, then divide by the
	// norm itself.
	num := zeroShaped(ir.Scalar())
	for i := range rows {
		duRow, err := g.index(pos, du, ir.NewFloat(pos, float64(i)))
		if err != nil {
			return result{}, err
		}
		uRow, err := ir.NewIndex(pos, arg, ir.NewFloat(pos, float64(i)))
		if err != nil {
			return result{}, fmterr.Internal(err)
		}
		for j := range cols {
			duCell, err := g.index(pos, duRow, ir.NewFloat(pos, float64(j)))
			if err != nil {
				return result{}, err
			}
			uCell, err := ir.NewIndex(pos, uRow, ir.NewFloat(pos, float64(j)))
			if err != nil {
				return result{}, fmterr.Internal(err)
			}
			term, err := g.mul(pos, exprOf(uCell), duCell)
			if err != nil {
				return result{}, err
			}
			if num, err = g.add(pos, num, term); err != nil {
				return result{}, err
			}
		}
	}
	return g.quo(pos, num, exprOf(src))
}

func (g *grader) gradTranspose(src *ir.Transpose) (result, error) {
	dx, err := g.grad(src.X)
	if err != nil {
		return result{}, err
	}
	if dx.kind == zeroSpecial {
		return zeroOf(src), nil
	}
	return result{expr: ir.NewTranspose(src.Pos(), dx.expr)}, nil
}

func (g *grader) gradVectorLit(src *ir.VectorLit) (result, error) {
	allZero := true
	elts := make([]ir.Expr, len(src.Elts))
	for i, elt := range src.Elts {
		dElt, err := g.grad(elt)
		if err != nil {
			return result{}, err
		}
		if dElt.kind != zeroSpecial {
			allZero = false
		}
		elts[i] = dElt.expr
	}
	if allZero {
		return zeroOf(src), nil
	}
	lit, err := ir.NewVectorLit(src.Pos(), elts)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	return result{expr: lit}, nil
}

func (g *grader) gradReduce(src *ir.Reduce) (result, error) {
	unrolled, ok, err := ir.Unroll(src)
	if err != nil {
		// Instantiating the loop variable can reveal an index out of
		// its literal range. That is an error in the source.
		return result{}, err
	}
	if ok {
		return g.grad(unrolled)
	}
	dBody, err := g.grad(src.Body)
	if err != nil {
		return result{}, err
	}
	if dBody.kind == zeroSpecial {
		return zeroOf(src), nil
	}
	if src.Op == syntax.PRODUCT {
		return result{}, fmterr.Errorf(fmterr.UnsupportedDerivative, src.Pos(), "cannot differentiate %s with respect to %s: the product bounds are not literal", src, g.wrt)
	}
	sum, err := ir.NewReduce(src.Pos(), syntax.SUM, src.Sym, src.Lo, src.Hi, dBody.expr)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	return result{expr: sum}, nil
}

func (g *grader) neg(pos fmterr.Pos, x result) result {
	if x.kind == zeroSpecial {
		return x
	}
	return result{expr: ir.NewNeg(pos, x.expr)}
}

func (g *grader) add(pos fmterr.Pos, x, y result) (result, error) {
	if x.kind == zeroSpecial {
		return y, nil
	}
	if y.kind == zeroSpecial {
		return x, nil
	}
	sum, err := ir.NewBinary(pos, syntax.ADD, x.expr, y.expr)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	return result{expr: sum}, nil
}

func (g *grader) sub(pos fmterr.Pos, x, y result) (result, error) {
	if y.kind == zeroSpecial {
		return x, nil
	}
	if x.kind == zeroSpecial {
		return g.neg(pos, y), nil
	}
	diff, err := ir.NewBinary(pos, syntax.SUB, x.expr, y.expr)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	return result{expr: diff}, nil
}

func (g *grader) mul(pos fmterr.Pos, x, y result) (result, error) {
	prod, err := ir.NewBinary(pos, syntax.MUL, x.expr, y.expr)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	if x.kind == zeroSpecial || y.kind == zeroSpecial {
		return zeroShaped(prod.Shape()), nil
	}
	if x.kind == oneSpecial {
		return y, nil
	}
	if y.kind == oneSpecial {
		return x, nil
	}
	if folded, ok, err := foldUnitMul(pos, x.expr, y.expr); err != nil {
		return result{}, err
	} else if ok {
		return result{expr: folded}, nil
	}
	return result{expr: prod}, nil
}

// foldUnitMul reduces products against a unit basis vector: a matrix
// times a basis vector picks a column, and a transposed basis vector
// times a matrix or a vector picks a row or an element.
func foldUnitMul(pos fmterr.Pos, x, y ir.Expr) (ir.Expr, bool, error) {
	if unit, ok := y.(*ir.Unit); ok && x.Shape().Kind() == ir.MatrixKind {
		cols := ir.Expr(ir.NewTranspose(pos, x))
		if tr, ok := x.(*ir.Transpose); ok {
			cols = tr.X
		}
		col, err := ir.NewIndex(pos, cols, ir.NewFloat(pos, float64(unit.At)))
		if err != nil {
			return nil, false, fmterr.Internal(err)
		}
		return col, true, nil
	}
	tr, ok := x.(*ir.Transpose)
	if !ok || y.Shape().IsScalar() {
		return nil, false, nil
	}
	unit, ok := tr.X.(*ir.Unit)
	if !ok {
		return nil, false, nil
	}
	pick, err := ir.NewIndex(pos, y, ir.NewFloat(pos, float64(unit.At)))
	if err != nil {
		return nil, false, fmterr.Internal(err)
	}
	if y.Shape().Kind() == ir.MatrixKind {
		return ir.NewTranspose(pos, pick), true, nil
	}
	return pick, true, nil
}

func (g *grader) quo(pos fmterr.Pos, x, y result) (result, error) {
	if x.kind == zeroSpecial {
		return x, nil
	}
	if y.kind == oneSpecial {
		return x, nil
	}
	q, err := ir.NewBinary(pos, syntax.QUO, x.expr, y.expr)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	return result{expr: q}, nil
}

func (g *grader) dot(pos fmterr.Pos, x, y result) (result, error) {
	if x.kind == zeroSpecial || y.kind == zeroSpecial {
		return zeroShaped(ir.Scalar()), nil
	}
	if unit, ok := x.expr.(*ir.Unit); ok {
		return g.index(pos, y, ir.NewFloat(pos, float64(unit.At)))
	}
	if unit, ok := y.expr.(*ir.Unit); ok {
		return g.index(pos, x, ir.NewFloat(pos, float64(unit.At)))
	}
	d, err := ir.NewBinary(pos, syntax.DOT, x.expr, y.expr)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	return result{expr: d}, nil
}

func (g *grader) index(pos fmterr.Pos, x result, at ir.Expr) (result, error) {
	if lit, ok := ir.IntValue(at); ok {
		if unit, ok := x.expr.(*ir.Unit); ok {
			if lit == unit.At {
				return oneAt(pos), nil
			}
			return zeroShaped(ir.Scalar()), nil
		}
		if vec, ok := x.expr.(*ir.VectorLit); ok {
			return exprOf(vec.Elts[lit]), nil
		}
	}
	if _, ok := x.expr.(*ir.Unit); ok {
		return result{}, fmterr.Errorf(fmterr.UnsupportedDerivative, pos, "cannot differentiate with respect to %s: the element of %s read depends on a loop variable", g.wrt, g.wrt.Sym.Name)
	}
	idx, err := ir.NewIndex(pos, x.expr, at)
	if err != nil {
		return result{}, fmterr.Internal(err)
	}
	if x.kind == zeroSpecial {
		return zeroShaped(idx.Shape()), nil
	}
	return result{expr: idx}, nil
}

func decrement(pos fmterr.Pos, v ir.Expr) (ir.Expr, error) {
	if num, ok := v.(*ir.Number); ok {
		return ir.NewNumber(pos, new(big.Float).Sub(num.Val, big.NewFloat(1))), nil
	}
	dec, err := ir.NewBinary(pos, syntax.SUB, v, ir.NewFloat(pos, 1))
	if err != nil {
		return nil, fmterr.Internal(err)
	}
	return dec, nil
}

func pow(pos fmterr.Pos, u, v ir.Expr) (ir.Expr, error) {
	if ir.IsOne(v) {
		return u, nil
	}
	if ir.IsZero(v) {
		return ir.NewFloat(pos, 1), nil
	}
	pw, err := ir.NewBinary(pos, syntax.POW, u, v)
	if err != nil {
		return nil, fmterr.Internal(err)
	}
	return pw, nil
}
