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

// Package interp evaluates expressions numerically.
//
// The evaluator follows the semantics of the generated code: float64
// arithmetic, inclusive reduction bounds, and neutral results for
// empty reduction ranges. It backs the tests that compare symbolic
// derivatives against finite differences.
package interp

import (
	"math"

	"github.com/pkg/errors"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

// Env binds symbols to runtime values.
type Env struct {
	vals map[*ir.Symbol]Value
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{vals: make(map[*ir.Symbol]Value)}
}

// Set binds a symbol to a value.
func (env *Env) Set(sym *ir.Symbol, val Value) {
	env.vals[sym] = val
}

// Eval computes the value of an expression in an environment.
func Eval(env *Env, expr ir.Expr) (Value, error) {
	ev := &evaluator{env: env, loops: make(map[*ir.Symbol]float64)}
	return ev.eval(expr)
}

// EvalScalar evaluates an expression expected to produce a scalar.
func EvalScalar(env *Env, expr ir.Expr) (float64, error) {
	val, err := Eval(env, expr)
	if err != nil {
		return 0, err
	}
	s, ok := val.(Scalar)
	if !ok {
		return 0, errors.Errorf("%s is not a scalar", val)
	}
	return float64(s), nil
}

type evaluator struct {
	env   *Env
	loops map[*ir.Symbol]float64
}

func (ev *evaluator) eval(expr ir.Expr) (Value, error) {
	switch x := expr.(type) {
	case *ir.Number:
		f, _ := x.Val.Float64()
		return Scalar(f), nil
	case *ir.Ref:
		return ev.ref(x)
	case *ir.Unary:
		val, err := ev.eval(x.X)
		if err != nil {
			return nil, err
		}
		return mapValue(val, func(a float64) float64 { return -a })
	case *ir.Binary:
		return ev.binary(x)
	case *ir.Call:
		return ev.call(x)
	case *ir.Index:
		return ev.index(x)
	case *ir.Transpose:
		return ev.transpose(x)
	case *ir.VectorLit:
		vec := make(Vector, len(x.Elts))
		for i, elt := range x.Elts {
			val, err := ev.eval(elt)
			if err != nil {
				return nil, err
			}
			s, ok := val.(Scalar)
			if !ok {
				return nil, errors.Errorf("vector element %s is not a scalar", val)
			}
			vec[i] = float64(s)
		}
		return vec, nil
	case *ir.Reduce:
		return ev.reduce(x)
	case *ir.Zero:
		return ev.fill(x.Shape(), 0)
	case *ir.Unit:
		return ev.unit(x)
	}
	return nil, errors.Errorf("cannot evaluate %T", expr)
}

func (ev *evaluator) ref(x *ir.Ref) (Value, error) {
	return ev.lookup(x.Sym)
}

func (ev *evaluator) lookup(sym *ir.Symbol) (Value, error) {
	if val, ok := ev.loops[sym]; ok {
		return Scalar(val), nil
	}
	if val, ok := ev.env.vals[sym]; ok {
		return val, nil
	}
	return nil, errors.Errorf("no value bound to %s", sym.Name)
}

func (ev *evaluator) binary(x *ir.Binary) (Value, error) {
	xv, err := ev.eval(x.X)
	if err != nil {
		return nil, err
	}
	yv, err := ev.eval(x.Y)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case syntax.ADD:
		return zipValues(xv, yv, func(a, b float64) float64 { return a + b })
	case syntax.SUB:
		return zipValues(xv, yv, func(a, b float64) float64 { return a - b })
	case syntax.MUL:
		return mul(xv, yv)
	case syntax.QUO:
		return zipValues(xv, yv, func(a, b float64) float64 { return a / b })
	case syntax.POW:
		return zipValues(xv, yv, math.Pow)
	case syntax.DOT:
		return dot(xv, yv)
	case syntax.HASH:
		return concat(xv, yv)
	}
	return nil, errors.Errorf("cannot evaluate operator %s", x.Op)
}

func mul(x, y Value) (Value, error) {
	if _, ok := x.(Scalar); ok {
		return zipValues(x, y, func(a, b float64) float64 { return a * b })
	}
	if _, ok := y.(Scalar); ok {
		return zipValues(x, y, func(a, b float64) float64 { return a * b })
	}
	xm, err := asMatrix(x)
	if err != nil {
		return nil, err
	}
	ym, err := asMatrix(y)
	if err != nil {
		return nil, err
	}
	r, err := matMul(xm, ym)
	if err != nil {
		return nil, err
	}
	return fromMatrix(r), nil
}

func dot(x, y Value) (Value, error) {
	xv, xOk := x.(Vector)
	yv, yOk := y.(Vector)
	if !xOk || !yOk || len(xv) != len(yv) {
		return nil, errors.Errorf("cannot take the dot product of %s and %s", x, y)
	}
	acc := 0.0
	for i := range xv {
		acc += xv[i] * yv[i]
	}
	return Scalar(acc), nil
}

func concat(x, y Value) (Value, error) {
	xv, xOk := x.(Vector)
	yv, yOk := y.(Vector)
	if !xOk || !yOk {
		return nil, errors.Errorf("cannot concatenate %s and %s", x, y)
	}
	r := make(Vector, 0, len(xv)+len(yv))
	r = append(r, xv...)
	return append(r, yv...), nil
}

func (ev *evaluator) call(x *ir.Call) (Value, error) {
	arg, err := ev.eval(x.Arg)
	if err != nil {
		return nil, err
	}
	if x.Fun == ir.FuncNorm {
		return norm(arg)
	}
	s, ok := arg.(Scalar)
	if !ok {
		return nil, errors.Errorf("%s applies to a scalar, got %s", x.Fun, arg)
	}
	v := float64(s)
	switch x.Fun {
	case ir.FuncSqrt:
		return Scalar(math.Sqrt(v)), nil
	case ir.FuncLn:
		return Scalar(math.Log(v)), nil
	case ir.FuncSin:
		return Scalar(math.Sin(v)), nil
	case ir.FuncCos:
		return Scalar(math.Cos(v)), nil
	case ir.FuncTan:
		return Scalar(math.Tan(v)), nil
	case ir.FuncCot:
		return Scalar(math.Cos(v) / math.Sin(v)), nil
	}
	return nil, errors.Errorf("cannot evaluate function %s", x.Fun)
}

func norm(v Value) (Value, error) {
	acc := 0.0
	switch x := v.(type) {
	case Vector:
		for _, elt := range x {
			acc += elt * elt
		}
	case Matrix:
		for _, row := range x {
			for _, elt := range row {
				acc += elt * elt
			}
		}
	default:
		return nil, errors.Errorf("norm applies to a vector or a matrix, got %s", v)
	}
	return Scalar(math.Sqrt(acc)), nil
}

func (ev *evaluator) index(x *ir.Index) (Value, error) {
	base, err := ev.eval(x.X)
	if err != nil {
		return nil, err
	}
	at, err := ev.intOf(x.At)
	if err != nil {
		return nil, err
	}
	switch b := base.(type) {
	case Vector:
		if at < 0 || at >= len(b) {
			return nil, errors.Errorf("index %d out of range for %s", at, base)
		}
		return Scalar(b[at]), nil
	case Matrix:
		if at < 0 || at >= len(b) {
			return nil, errors.Errorf("index %d out of range for %s", at, base)
		}
		return Vector(b[at]), nil
	}
	return nil, errors.Errorf("cannot index %s", base)
}

func (ev *evaluator) transpose(x *ir.Transpose) (Value, error) {
	val, err := ev.eval(x.X)
	if err != nil {
		return nil, err
	}
	switch v := val.(type) {
	case Scalar:
		return v, nil
	case Vector:
		return Matrix{v}, nil
	case Matrix:
		if len(v) == 0 {
			return v, nil
		}
		r := make(Matrix, len(v[0]))
		for j := range r {
			r[j] = make([]float64, len(v))
			for i := range v {
				r[j][i] = v[i][j]
			}
		}
		return fromMatrix(r), nil
	}
	return nil, errors.Errorf("cannot transpose %s", val)
}

func (ev *evaluator) reduce(x *ir.Reduce) (Value, error) {
	lo, err := ev.intOf(x.Lo)
	if err != nil {
		return nil, err
	}
	hi, err := ev.intOf(x.Hi)
	if err != nil {
		return nil, err
	}
	sum := x.Op == syntax.SUM
	neutral := 1.0
	if sum {
		neutral = 0
	}
	acc, err := ev.fill(x.Shape(), neutral)
	if err != nil {
		return nil, err
	}
	defer delete(ev.loops, x.Sym)
	for i := lo; i <= hi; i++ {
		ev.loops[x.Sym] = float64(i)
		val, err := ev.eval(x.Body)
		if err != nil {
			return nil, err
		}
		if sum {
			acc, err = zipValues(acc, val, func(a, b float64) float64 { return a + b })
		} else {
			acc, err = zipValues(acc, val, func(a, b float64) float64 { return a * b })
		}
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (ev *evaluator) unit(x *ir.Unit) (Value, error) {
	val, err := ev.fill(x.Shape(), 0)
	if err != nil {
		return nil, err
	}
	vec, ok := val.(Vector)
	if !ok || x.At < 0 || x.At >= len(vec) {
		return nil, errors.Errorf("no unit element %d of %s", x.At, val)
	}
	vec[x.At] = 1
	return vec, nil
}

// fill materializes a value of a given shape, resolving symbolic
// dimensions in the environment.
func (ev *evaluator) fill(shape ir.Shape, with float64) (Value, error) {
	switch shape.Kind() {
	case ir.ScalarKind:
		return Scalar(with), nil
	case ir.VectorKind:
		n, err := ev.dim(shape.Rows)
		if err != nil {
			return nil, err
		}
		vec := make(Vector, n)
		for i := range vec {
			vec[i] = with
		}
		return vec, nil
	case ir.MatrixKind:
		rows, err := ev.dim(shape.Rows)
		if err != nil {
			return nil, err
		}
		cols, err := ev.dim(shape.Cols)
		if err != nil {
			return nil, err
		}
		m := make(Matrix, rows)
		for i := range m {
			m[i] = make([]float64, cols)
			for j := range m[i] {
				m[i][j] = with
			}
		}
		return m, nil
	}
	return nil, errors.Errorf("cannot materialize a %s value", shape)
}

// dim resolves a dimension to its runtime length.
func (ev *evaluator) dim(d ir.Dim) (int, error) {
	switch x := d.(type) {
	case ir.LitDim:
		return int(x), nil
	case ir.SymDim:
		val, err := ev.lookup(x.Sym)
		if err != nil {
			return 0, err
		}
		return intValue(val)
	case ir.SumDim:
		a, err := ev.dim(x.X)
		if err != nil {
			return 0, err
		}
		b, err := ev.dim(x.Y)
		if err != nil {
			return 0, err
		}
		return a + b, nil
	}
	return 0, errors.Errorf("cannot resolve dimension %s", d)
}

func (ev *evaluator) intOf(expr ir.Expr) (int, error) {
	val, err := ev.eval(expr)
	if err != nil {
		return 0, err
	}
	return intValue(val)
}

func intValue(val Value) (int, error) {
	s, ok := val.(Scalar)
	if !ok || float64(s) != math.Trunc(float64(s)) {
		return 0, errors.Errorf("%s is not an integer", val)
	}
	return int(s), nil
}
