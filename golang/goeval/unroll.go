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

package goeval

import (
	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
)

// unrollReduces expands every reduction whose bounds are literal and
// whose trip count is at most limit into a chain of additions or
// multiplications. Reductions over symbolic bounds always keep their
// loop. A limit of zero disables the pass.
func unrollReduces(e ir.Expr, limit int) (ir.Expr, error) {
	if limit <= 0 {
		return e, nil
	}
	switch x := e.(type) {
	case *ir.Number, *ir.Ref, *ir.Zero, *ir.Unit:
		return e, nil
	case *ir.Unary:
		nx, err := unrollReduces(x.X, limit)
		if err != nil {
			return nil, err
		}
		if nx == x.X {
			return e, nil
		}
		return ir.NewNeg(x.Pos(), nx), nil
	case *ir.Binary:
		nx, err := unrollReduces(x.X, limit)
		if err != nil {
			return nil, err
		}
		ny, err := unrollReduces(x.Y, limit)
		if err != nil {
			return nil, err
		}
		if nx == x.X && ny == x.Y {
			return e, nil
		}
		return ir.NewBinary(x.Pos(), x.Op, nx, ny)
	case *ir.Call:
		arg, err := unrollReduces(x.Arg, limit)
		if err != nil {
			return nil, err
		}
		if arg == x.Arg {
			return e, nil
		}
		call, err := ir.NewCall(x.Pos(), x.Fun, arg)
		if err != nil {
			return nil, fmterr.Internal(err)
		}
		return call, nil
	case *ir.Index:
		nx, err := unrollReduces(x.X, limit)
		if err != nil {
			return nil, err
		}
		if nx == x.X {
			return e, nil
		}
		return ir.NewIndex(x.Pos(), nx, x.At)
	case *ir.Transpose:
		nx, err := unrollReduces(x.X, limit)
		if err != nil {
			return nil, err
		}
		if nx == x.X {
			return e, nil
		}
		return ir.NewTranspose(x.Pos(), nx), nil
	case *ir.VectorLit:
		elts := make([]ir.Expr, len(x.Elts))
		changed := false
		for i, elt := range x.Elts {
			nelt, err := unrollReduces(elt, limit)
			if err != nil {
				return nil, err
			}
			elts[i] = nelt
			changed = changed || nelt != elt
		}
		if !changed {
			return e, nil
		}
		return ir.NewVectorLit(x.Pos(), elts)
	case *ir.Reduce:
		return unrollReduce(x, limit)
	}
	return nil, fmterr.Internalf(e.Pos(), "cannot unroll %T", e)
}

func unrollReduce(src *ir.Reduce, limit int) (ir.Expr, error) {
	body, err := unrollReduces(src.Body, limit)
	if err != nil {
		return nil, err
	}
	red := src
	if body != src.Body {
		if red, err = ir.NewReduce(src.Pos(), src.Op, src.Sym, src.Lo, src.Hi, body); err != nil {
			return nil, err
		}
	}
	lo, loOk := ir.IntValue(red.Lo)
	hi, hiOk := ir.IntValue(red.Hi)
	if !loOk || !hiOk || hi-lo+1 > limit {
		return red, nil
	}
	unrolled, ok, err := ir.Unroll(red)
	if err != nil {
		// Instantiating the loop variable can reveal an index out of
		// its literal range.
		return nil, err
	}
	if !ok {
		return red, nil
	}
	// Instantiation can turn the bounds of an inner reduction into
	// literals, so the expansion gets another look.
	return unrollReduces(unrolled, limit)
}
