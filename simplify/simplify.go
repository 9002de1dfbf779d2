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

// Package simplify rewrites expressions into a leaner equivalent form
// before code generation and shares repeated subexpressions.
package simplify

import (
	"math/big"

	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
	"github.com/gx-org/gradgen/internal/canon"
)

// Simplify rewrites an expression bottom up: literal arithmetic
// folds, neutral and absorbing operands fold away, double negations
// cancel, and the operands of commutative scalar operators take a
// canonical order. Every rewrite is value-preserving: operands are
// swapped but never reassociated, so float results do not move.
// An expression left untouched is returned unchanged.
func Simplify(expr ir.Expr) (ir.Expr, error) {
	switch x := expr.(type) {
	case *ir.Number, *ir.Ref, *ir.Zero, *ir.Unit:
		return expr, nil
	case *ir.Unary:
		nx, err := Simplify(x.X)
		if err != nil {
			return nil, err
		}
		if nx == x.X {
			if neg := foldNeg(x.Pos(), nx); neg != nil {
				return neg, nil
			}
			return expr, nil
		}
		return simplifyNeg(x.Pos(), nx), nil
	case *ir.Binary:
		return simplifyBinary(x)
	case *ir.Call:
		arg, err := Simplify(x.Arg)
		if err != nil {
			return nil, err
		}
		if arg == x.Arg {
			return expr, nil
		}
		call, err := ir.NewCall(x.Pos(), x.Fun, arg)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		return call, nil
	case *ir.Index:
		return simplifyIndex(x)
	case *ir.Transpose:
		nx, err := Simplify(x.X)
		if err != nil {
			return nil, err
		}
		if nx == x.X {
			return expr, nil
		}
		return ir.NewTranspose(x.Pos(), nx), nil
	case *ir.VectorLit:
		return simplifyVectorLit(x)
	case *ir.Reduce:
		return simplifyReduce(x)
	}
	return nil, fmterr.Internalf(expr.Pos(), "cannot simplify %T", expr)
}

// simplifyNeg negates a simplified operand, cancelling double
// negations and folding literals.
func simplifyNeg(pos fmterr.Pos, x ir.Expr) ir.Expr {
	if neg := foldNeg(pos, x); neg != nil {
		return neg
	}
	return ir.NewNeg(pos, x)
}

// foldNeg returns the folded negation of x, or nil when there is
// nothing to fold.
func foldNeg(pos fmterr.Pos, x ir.Expr) ir.Expr {
	switch v := x.(type) {
	case *ir.Unary:
		return v.X
	case *ir.Number:
		return ir.NewNumber(pos, new(big.Float).Neg(v.Val))
	case *ir.Zero:
		return v
	}
	return nil
}

func simplifyBinary(src *ir.Binary) (ir.Expr, error) {
	x, err := Simplify(src.X)
	if err != nil {
		return nil, err
	}
	y, err := Simplify(src.Y)
	if err != nil {
		return nil, err
	}
	if folded, err := foldBinary(src, x, y); err != nil || folded != nil {
		return folded, err
	}
	if commutes(src.Op, x, y) && canon.Key(y) < canon.Key(x) {
		x, y = y, x
	} else if x == src.X && y == src.Y {
		return src, nil
	}
	b, err := ir.NewBinary(src.Pos(), src.Op, x, y)
	if err != nil {
		return nil, fmterr.Internal(err)
	}
	return b, nil
}

// foldBinary applies the literal and identity rules to simplified
// operands. It returns nil when no rule applies.
func foldBinary(src *ir.Binary, x, y ir.Expr) (ir.Expr, error) {
	pos := src.Pos()
	if xn, ok := x.(*ir.Number); ok {
		if yn, ok := y.(*ir.Number); ok {
			if z, ok := ir.FoldBinary(src.Op, xn.Val, yn.Val); ok {
				return ir.NewNumber(pos, z), nil
			}
		}
	}
	b, err := ir.NewBinary(pos, src.Op, x, y)
	if err != nil {
		return nil, fmterr.Internal(err)
	}
	shape := b.Shape()
	keeps := func(e ir.Expr) bool { return shape.Equal(e.Shape()) }
	switch src.Op {
	case syntax.ADD:
		if ir.IsZero(y) && keeps(x) {
			return x, nil
		}
		if ir.IsZero(x) && keeps(y) {
			return y, nil
		}
	case syntax.SUB:
		if ir.IsZero(y) && keeps(x) {
			return x, nil
		}
		if ir.IsZero(x) && keeps(y) {
			return simplifyNeg(pos, y), nil
		}
	case syntax.MUL:
		if ir.IsZero(x) || ir.IsZero(y) {
			return ir.NewZero(shape), nil
		}
		if ir.IsOne(x) && keeps(y) {
			return y, nil
		}
		if ir.IsOne(y) && keeps(x) {
			return x, nil
		}
	case syntax.QUO:
		if ir.IsZero(x) {
			return ir.NewZero(shape), nil
		}
		if ir.IsOne(y) {
			return x, nil
		}
	case syntax.POW:
		if ir.IsOne(y) {
			return x, nil
		}
		if ir.IsZero(y) {
			return ir.NewFloat(pos, 1), nil
		}
	}
	return nil, nil
}

// commutes reports if the operands of an operation can be swapped
// without moving the result: commutative scalar addition and
// multiplication only. Matrix products and concatenations keep their
// written order.
func commutes(op syntax.TokenType, x, y ir.Expr) bool {
	if op != syntax.ADD && op != syntax.MUL {
		return false
	}
	return x.Shape().IsScalar() && y.Shape().IsScalar()
}

func simplifyIndex(src *ir.Index) (ir.Expr, error) {
	x, err := Simplify(src.X)
	if err != nil {
		return nil, err
	}
	at, err := Simplify(src.At)
	if err != nil {
		return nil, err
	}
	if x == src.X && at == src.At {
		return src, nil
	}
	// A folded index may now be a literal out of a literal range;
	// NewIndex reports that as a shape error.
	return ir.NewIndex(src.Pos(), x, at)
}

func simplifyVectorLit(src *ir.VectorLit) (ir.Expr, error) {
	changed := false
	elts := make([]ir.Expr, len(src.Elts))
	for i, elt := range src.Elts {
		nelt, err := Simplify(elt)
		if err != nil {
			return nil, err
		}
		if nelt != elt {
			changed = true
		}
		elts[i] = nelt
	}
	if !changed {
		return src, nil
	}
	lit, err := ir.NewVectorLit(src.Pos(), elts)
	if err != nil {
		return nil, fmterr.Internal(err)
	}
	return lit, nil
}

func simplifyReduce(src *ir.Reduce) (ir.Expr, error) {
	lo, err := Simplify(src.Lo)
	if err != nil {
		return nil, err
	}
	hi, err := Simplify(src.Hi)
	if err != nil {
		return nil, err
	}
	body, err := Simplify(src.Body)
	if err != nil {
		return nil, err
	}
	if lo == src.Lo && hi == src.Hi && body == src.Body {
		return src, nil
	}
	// Folding a bound can reveal an empty literal range; NewReduce
	// reports that as a shape error.
	return ir.NewReduce(src.Pos(), src.Op, src.Sym, lo, hi, body)
}
